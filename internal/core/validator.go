package core

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Validator is the conservation gate every quantity-consuming operation
// passes through. Callers must hold the entity lock from Reserve until the
// reservation is committed or released.
type Validator struct {
	proj *Projection
}

// NewValidator returns a validator over proj.
func NewValidator(proj *Projection) *Validator {
	return &Validator{proj: proj}
}

// Reserve atomically checks qty against the available quantity of id and
// decrements it. On shortfall it returns a *ConflictError with the available
// quantity observed at that instant.
func (v *Validator) Reserve(id string, qty decimal.Decimal) (*Reservation, error) {
	if !qty.IsPositive() {
		return nil, invalid("quantity_kg", "must be greater than zero")
	}
	if err := v.proj.hold(id, qty); err != nil {
		return nil, err
	}
	return &Reservation{proj: v.proj, entityID: id, qty: qty, held: true}, nil
}

// Resume returns the reservation a pending transaction holds against its
// item. The quantity is already excluded from the projection by the
// transfer_initiated event, so committing or releasing it only applies the
// resolving event.
func (v *Validator) Resume(txn Transaction) *Reservation {
	return &Reservation{proj: v.proj, entityID: txn.ItemID, qty: txn.Quantity}
}

// Reservation is quantity excluded from an entity's available amount until
// it is committed or released.
type Reservation struct {
	mu       sync.Mutex
	proj     *Projection
	entityID string
	qty      decimal.Decimal
	held     bool // in-memory hold placed by Reserve
	done     bool
}

// EntityID returns the entity the reservation is held against.
func (r *Reservation) EntityID() string { return r.entityID }

// Quantity returns the reserved quantity.
func (r *Reservation) Quantity() decimal.Decimal { return r.qty }

// Commit makes the reservation permanent by applying the appended events;
// the hold is swapped for their effect in one critical section. Committing
// twice is a no-op.
func (r *Reservation) Commit(events ...*Event) error {
	return r.finish(events)
}

// Release gives the reserved quantity back. events, if any, are applied in
// the same critical section (a transfer_rejected entry for a resumed
// reservation). Releasing twice is a no-op.
func (r *Reservation) Release(events ...*Event) error {
	return r.finish(events)
}

func (r *Reservation) finish(events []*Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return nil
	}
	r.done = true
	held := decimal.Zero
	if r.held {
		held = r.qty
	}
	return r.proj.settle(r.entityID, held, events)
}
