package core

import "time"

// EventType names a ledger entry.
type EventType string

const (
	EventBatchRegistered   EventType = "batch_registered"
	EventBatchDivided      EventType = "batch_divided"
	EventTransferInitiated EventType = "transfer_initiated"
	EventTransferCompleted EventType = "transfer_completed"
	EventTransferRejected  EventType = "transfer_rejected"
	EventPackageCreated    EventType = "package_created"
	EventPackageShipped    EventType = "package_shipped"
)

// Event is one append-only ledger entry. SubjectID is the entity whose
// holding the event changes; entities the event introduces travel with it so
// that creating them and recording the event is a single write.
type Event struct {
	Seq         int64             `json:"seq"`
	ID          string            `json:"event_id"`
	Type        EventType         `json:"event_type"`
	SubjectID   string            `json:"subject_id"`
	ContextID   string            `json:"context_id,omitempty"`
	ActorID     string            `json:"actor_id"`
	Location    string            `json:"location,omitempty"`
	Description string            `json:"description"`
	OccurredAt  time.Time         `json:"occurred_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`

	Batches     []Batch      `json:"batches,omitempty"`
	Division    *Division    `json:"division,omitempty"`
	Package     *Package     `json:"package,omitempty"`
	Transaction *Transaction `json:"transaction,omitempty"`
}

// Entities returns the records first introduced by this event.
func (e *Event) Entities() []Entity {
	var out []Entity
	for i := range e.Batches {
		b := e.Batches[i]
		out = append(out, Entity{Kind: KindBatch, Batch: &b})
	}
	if e.Package != nil {
		pkg := *e.Package
		out = append(out, Entity{Kind: KindPackage, Package: &pkg})
	}
	if e.Transaction != nil && e.Type == EventTransferInitiated {
		txn := *e.Transaction
		out = append(out, Entity{Kind: KindTransaction, Transaction: &txn})
	}
	return out
}

// ID returns the id of the wrapped record.
func (e *Entity) ID() string {
	switch e.Kind {
	case KindBatch:
		return e.Batch.ID
	case KindPackage:
		return e.Package.ID
	case KindTransaction:
		return e.Transaction.ID
	}
	return ""
}
