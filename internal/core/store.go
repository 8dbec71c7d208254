package core

import (
	"context"
	"time"
)

// EntityStore is the durable, append-only record of batches, packages,
// transactions and the events that introduced them.
type EntityStore interface {
	// AppendEvents assigns sequence numbers and durably writes the events
	// together with every entity they introduce. Either all of them become
	// visible or none do.
	AppendEvents(ctx context.Context, events ...*Event) error

	// GetEntity returns the stored record for id or a *NotFoundError.
	GetEntity(ctx context.Context, id string) (*Entity, error)

	// EventsBySubject returns, in sequence order, the events whose SubjectID is
	// one of ids.
	EventsBySubject(ctx context.Context, ids []string) ([]Event, error)

	// Replay streams every event in sequence order.
	Replay(ctx context.Context, fn func(Event) error) error
}

// Locker serializes mutations per entity id. The returned func releases the key.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Clock hands out ledger timestamps.
type Clock interface {
	Now() time.Time
}
