package join

import (
	"context"

	"github.com/tryfix/kjoin/data"
)

// Type is the closed set of join semantics both engines support.
type Type int

const (
	InnerJoin Type = iota
	LeftOuterJoin
	RightOuterJoin
	FullOuterJoin
)

func (t Type) String() string {
	switch t {
	case LeftOuterJoin:
		return `LeftOuterJoin`
	case RightOuterJoin:
		return `RightOuterJoin`
	case FullOuterJoin:
		return `FullOuterJoin`
	}

	return `InnerJoin`
}

// Valid reports whether t is one of the declared join types.
func (t Type) Valid() bool {
	return t >= InnerJoin && t <= FullOuterJoin
}

// PreservesLeft reports whether unmatched left rows are emitted null padded.
func (t Type) PreservesLeft() bool {
	return t == LeftOuterJoin || t == FullOuterJoin
}

// PreservesRight reports whether unmatched right rows are emitted null padded.
func (t Type) PreservesRight() bool {
	return t == RightOuterJoin || t == FullOuterJoin
}

// Condition is the residual predicate evaluated on key (and time) eligible pairs.
// A rejected pair produces no output even though keys match.
type Condition func(left, right data.Row) (bool, error)

// Collector receives joined pairs. A nil side is the null padding of an outer join.
type Collector func(ctx context.Context, left, right data.Row) error

// AcceptAll is the Condition of a pure equi join.
func AcceptAll(left, right data.Row) (bool, error) {
	return true, nil
}
