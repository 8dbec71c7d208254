package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding is the projected, mutable view of one batch or package: who owns
// it, how much of it is still available, and where it is in its lifecycle.
type Holding struct {
	ID         string          `json:"id"`
	Kind       EntityKind      `json:"kind"`
	OwnerID    string          `json:"current_owner_id"`
	Initial    decimal.Decimal `json:"initial_quantity_kg"`
	Available  decimal.Decimal `json:"available_quantity_kg"`
	Status     Status          `json:"status"`
	PendingTxn string          `json:"pending_transaction_id,omitempty"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Violation describes a holding whose quantities do not balance.
type Violation struct {
	EntityID string          `json:"entity_id"`
	Expected decimal.Decimal `json:"expected_kg"` // initial quantity
	Actual   decimal.Decimal `json:"actual_kg"`   // available + divided + packaged + pending
}
