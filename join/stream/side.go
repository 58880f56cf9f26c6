package stream

// Side of the join an event belongs to.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Right {
		return `right`
	}

	return `left`
}

func (s Side) other() Side {
	return 1 - s
}
