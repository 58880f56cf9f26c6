package stream

import (
	"context"

	"github.com/google/uuid"
	"github.com/tryfix/traceable-context"
)

var eventMeta = `join_event_meta`

// EventMeta describes the event that caused a collector call.
type EventMeta struct {
	ID   uuid.UUID
	Join string
	// Side is the input of the triggering row. Timer driven output carries Timer set.
	Side  Side
	Timer bool
	// Timestamp is the row time of the triggering row, or the firing time of the timer.
	Timestamp    int64
	OperatorTime int64
}

func withEventMeta(parent context.Context, meta *EventMeta) context.Context {
	return traceable_context.WithValue(parent, &eventMeta, meta)
}

// Meta returns the event meta of a collector context.
func Meta(ctx context.Context) (*EventMeta, bool) {
	meta, ok := ctx.Value(&eventMeta).(*EventMeta)
	return meta, ok
}

// NewEventContext starts a traceable context for an event entering the join.
func NewEventContext() context.Context {
	return traceable_context.WithUUID(uuid.New())
}
