package batch

// SortMergeOneSideOuterJoinIterator is the merge iterator of a left or right outer join.
// The preserved side is the probe side. Every probe row is reported exactly once, with its
// equal key run when there is one and alone otherwise.
type SortMergeOneSideOuterJoinIterator struct {
	*SortMergeJoinIterator
}

func NewSortMergeOneSideOuterJoinIterator(outer, inner RowIterator, conf *Config) (*SortMergeOneSideOuterJoinIterator, error) {
	itr, err := NewSortMergeJoinIterator(outer, inner, conf)
	if err != nil {
		return nil, err
	}

	return &SortMergeOneSideOuterJoinIterator{SortMergeJoinIterator: itr}, nil
}

// AdvanceOuter consumes the next outer row. After it returns true, Matches is nil when the
// row must be emitted padded with nulls. It returns false once the outer input is exhausted.
func (i *SortMergeOneSideOuterJoinIterator) AdvanceOuter() (bool, error) {
	ok, err := i.AdvanceProbe()
	if err != nil || !ok {
		return false, err
	}

	if i.state == NoMatch && i.matchKey != nil {
		if err := i.clearMatch(); err != nil {
			i.err = err
			return false, err
		}
	}

	return true, nil
}
