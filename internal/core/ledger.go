package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// LedgerService records every quantity-moving operation on the lineage graph.
type LedgerService interface {
	RegisterBatch(ctx context.Context, who Identity, spec BatchSpec) (*Batch, error)
	RecordDivision(ctx context.Context, who Identity, parentID string, children []ChildSpec) (*DivisionResult, error)
	RecordTransfer(ctx context.Context, who Identity, spec TransferSpec) (*Transaction, error)
	CompleteTransfer(ctx context.Context, who Identity, txnID string) (*Transaction, error)
	RejectTransfer(ctx context.Context, who Identity, txnID string) (*Transaction, error)
	RecordPackaging(ctx context.Context, who Identity, spec PackageSpec) (*Package, error)
	ShipPackage(ctx context.Context, who Identity, packageID string) (*Holding, error)
}

// DivisionResult is what one division produced.
type DivisionResult struct {
	Division     Division      `json:"division"`
	Children     []Batch       `json:"new_batches"`
	Transactions []Transaction `json:"transactions_created"`
	// Remaining is the parent's available quantity right after the division.
	Remaining decimal.Decimal `json:"original_batch_remaining"`
}

var (
	packageTypes     = map[string]bool{"retail": true, "wholesale": true, "export": true}
	transactionTypes = map[string]bool{"sale": true, "transfer": true}
)

// Quantities and prices carry at most amountScale decimal places and stay
// below maxAmount, the range every store keeps exactly.
const amountScale = 6

var maxAmount = decimal.New(1, 12)

func checkAmount(field string, d decimal.Decimal) error {
	if !d.Equal(d.Truncate(amountScale)) {
		return invalid(field, "must have at most %d decimal places", amountScale)
	}
	if d.Abs().GreaterThanOrEqual(maxAmount) {
		return invalid(field, "must be less than %s", maxAmount)
	}
	return nil
}

// Ledger is the lineage graph builder: every mutation is validated, appended
// to the store and then folded into the projection.
type Ledger struct {
	store     EntityStore
	proj      *Projection
	validator *Validator
	locks     Locker
	clock     Clock
	catalog   *Catalog
	gate      sync.RWMutex // shared by writers; a projection rebuild takes it exclusively
}

// NewLedger wires a ledger over an already built projection.
func NewLedger(store EntityStore, proj *Projection, locks Locker, clock Clock) *Ledger {
	return &Ledger{
		store:     store,
		proj:      proj,
		validator: NewValidator(proj),
		locks:     locks,
		clock:     clock,
		catalog:   DefaultCatalog(),
	}
}

// OpenLedger rebuilds the projection from store and returns a ledger whose
// clock is already past the newest stored event.
func OpenLedger(ctx context.Context, store EntityStore, locks Locker) (*Ledger, error) {
	proj, err := Rebuild(ctx, store)
	if err != nil {
		return nil, err
	}
	clock := NewMonotonicClock()
	_, last := proj.LastEvent()
	clock.Observe(last)
	return NewLedger(store, proj, locks, clock), nil
}

// Projection exposes the ownership resolver backing the ledger.
func (l *Ledger) Projection() *Projection { return l.proj }

// Store exposes the entity store backing the ledger.
func (l *Ledger) Store() EntityStore { return l.store }

// Catalog exposes the spices batches may be registered against.
func (l *Ledger) Catalog() *Catalog { return l.catalog }

// ── Registration ─────────────────────────────────────────────────────────────

// RegisterBatch introduces a new root batch owned by the registering farmer.
func (l *Ledger) RegisterBatch(ctx context.Context, who Identity, spec BatchSpec) (*Batch, error) {
	// 1. Authorization
	if err := authorize(who, ActionRegister); err != nil {
		return nil, err
	}

	// 2. Structural validation
	if spec.SpiceID <= 0 {
		return nil, invalid("spice_id", "is required")
	}
	if _, ok := l.catalog.Spice(spec.SpiceID); !ok {
		return nil, invalid("spice_id", "unknown spice %d", spec.SpiceID)
	}
	if !spec.Quantity.IsPositive() {
		return nil, invalid("quantity_kg", "must be greater than zero")
	}
	if err := checkAmount("quantity_kg", spec.Quantity); err != nil {
		return nil, err
	}
	if strings.TrimSpace(spec.FarmLocation) == "" {
		return nil, invalid("farm_location", "is required")
	}
	if spec.HarvestDate.IsZero() {
		return nil, invalid("harvest_date", "is required")
	}
	if spec.FarmingMethod == "" {
		spec.FarmingMethod = "conventional"
	}
	if spec.EstimatedGrade == "" {
		spec.EstimatedGrade = "B"
	}

	leave, err := l.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer leave()

	now := l.clock.Now()
	if spec.HarvestDate.After(now) {
		return nil, invalid("harvest_date", "cannot be in the future")
	}

	// 3. Build the batch and the event that introduces it
	b := Batch{
		ID:             newBatchID(now),
		SpiceID:        spec.SpiceID,
		FarmerID:       who.UserID,
		FarmLocation:   spec.FarmLocation,
		FarmingMethod:  spec.FarmingMethod,
		EstimatedGrade: spec.EstimatedGrade,
		HarvestDate:    spec.HarvestDate.UTC(),
		Quantity:       spec.Quantity,
		CreatedAt:      now,
	}
	ev := &Event{
		ID:          newEventID(),
		Type:        EventBatchRegistered,
		SubjectID:   b.ID,
		ActorID:     who.UserID,
		Location:    b.FarmLocation,
		Description: fmt.Sprintf("Batch harvested at %s", b.FarmLocation),
		OccurredAt:  now,
		Metadata:    map[string]string{"quantity_kg": b.Quantity.String()},
		Batches:     []Batch{b},
	}

	// 4. Durable append, then projection
	if err := l.append(ctx, ev); err != nil {
		return nil, err
	}
	if err := l.proj.Apply(*ev); err != nil {
		return nil, fmt.Errorf("failed to project registration: %w", err)
	}
	return &b, nil
}

// ── Division ─────────────────────────────────────────────────────────────────

// RecordDivision splits part or all of a batch into new child batches,
// optionally starting a sale of each child in the same append.
func (l *Ledger) RecordDivision(ctx context.Context, who Identity, parentID string, children []ChildSpec) (*DivisionResult, error) {
	// 1. Structural validation
	if parentID == "" {
		return nil, invalid("batch_id", "is required")
	}
	if len(children) == 0 {
		return nil, invalid("divisions", "at least one division is required")
	}
	total := decimal.Zero
	for i, c := range children {
		field := fmt.Sprintf("divisions[%d]", i)
		if !c.Quantity.IsPositive() {
			return nil, invalid(field+".quantity_kg", "must be greater than zero")
		}
		if err := checkAmount(field+".quantity_kg", c.Quantity); err != nil {
			return nil, err
		}
		if err := checkAmount(field+".price_per_kg", c.PricePerKg); err != nil {
			return nil, err
		}
		if c.BuyerID == "" && !c.PricePerKg.IsZero() {
			return nil, invalid(field+".buyer_id", "is required when price_per_kg is set")
		}
		if c.BuyerID != "" {
			if !c.PricePerKg.IsPositive() {
				return nil, invalid(field+".price_per_kg", "must be greater than zero")
			}
			if c.BuyerID == who.UserID {
				return nil, invalid(field+".buyer_id", "cannot sell to yourself")
			}
		}
		total = total.Add(c.Quantity)
	}

	// 2. Serialize on the parent
	leave, err := l.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer leave()
	unlock, err := l.lock(ctx, parentID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// 3. State and authorization
	h, err := l.holding(parentID, KindBatch)
	if err != nil {
		return nil, err
	}
	if h.Kind != KindBatch {
		return nil, &StateError{EntityID: parentID, Status: string(h.Status), Message: "packages cannot be divided"}
	}
	if err := authorize(who, ActionDivide, h.OwnerID); err != nil {
		return nil, err
	}
	if h.PendingTxn != "" {
		return nil, &StateError{EntityID: parentID, Status: string(h.Status), Message: "a transfer is pending"}
	}
	if fullyPackaged(h) {
		return nil, &StateError{EntityID: parentID, Status: string(h.Status), Message: "batch is fully packaged"}
	}
	parent, _ := l.proj.Batch(parentID)

	// 4. One combined reservation for every share
	res, err := l.validator.Reserve(parentID, total)
	if err != nil {
		return nil, err
	}

	// 5. Children, the division event, and any sales started with it
	now := l.clock.Now()
	seen := len(l.proj.Children(parentID))
	div := Division{ID: newDivisionID(now), ParentBatchID: parentID, CreatedAt: now}
	result := &DivisionResult{Remaining: h.Available.Sub(total)}
	for i, c := range children {
		child := parent
		child.ID = newChildBatchID(parentID, seen+i+1)
		child.ParentBatchID = parentID
		child.Quantity = c.Quantity
		child.CreatedAt = now
		result.Children = append(result.Children, child)
		div.Children = append(div.Children, ChildShare{BatchID: child.ID, Quantity: c.Quantity})
	}
	result.Division = div

	events := []*Event{{
		ID:          newEventID(),
		Type:        EventBatchDivided,
		SubjectID:   parentID,
		ContextID:   div.ID,
		ActorID:     who.UserID,
		Location:    parent.FarmLocation,
		Description: fmt.Sprintf("Batch divided into %d sub-batches", len(children)),
		OccurredAt:  now,
		Metadata: map[string]string{
			"total_divisions":        strconv.Itoa(len(children)),
			"total_divided_quantity": total.String(),
			"remaining_quantity":     h.Available.Sub(total).String(),
		},
		Batches:  result.Children,
		Division: &div,
	}}
	for i, c := range children {
		if c.BuyerID == "" {
			continue
		}
		child := result.Children[i]
		at := l.clock.Now()
		t := Transaction{
			ID:              newTransactionID(at),
			FromUserID:      who.UserID,
			ToUserID:        c.BuyerID,
			ItemID:          child.ID,
			ItemKind:        KindBatch,
			Quantity:        child.Quantity,
			PricePerKg:      c.PricePerKg,
			TotalAmount:     child.Quantity.Mul(c.PricePerKg),
			TransactionType: "sale",
			Notes:           fmt.Sprintf("Sale of divided batch %s", child.ID),
			SourceStatus:    StatusRegistered,
			Status:          TxnPending,
			CreatedAt:       at,
		}
		result.Transactions = append(result.Transactions, t)
		events = append(events, initiatedEvent(t, who.UserID, parent.FarmLocation))
	}

	// 6. Durable append, then swap the hold for the appended effect
	if err := l.append(ctx, events...); err != nil {
		_ = res.Release()
		return nil, err
	}
	if err := res.Commit(events...); err != nil {
		return nil, fmt.Errorf("failed to project division: %w", err)
	}
	return result, nil
}

// ── Transfers ────────────────────────────────────────────────────────────────

// RecordTransfer starts a two-phase transfer of a whole holding. The quantity
// leaves the seller's available amount now; ownership moves on completion.
func (l *Ledger) RecordTransfer(ctx context.Context, who Identity, spec TransferSpec) (*Transaction, error) {
	// 1. Structural validation
	if spec.ItemID == "" {
		return nil, invalid("item_id", "is required")
	}
	if spec.ToUserID == "" {
		return nil, invalid("buyer_id", "is required")
	}
	if spec.ToUserID == who.UserID {
		return nil, invalid("buyer_id", "cannot transfer to yourself")
	}
	if spec.TransactionType == "" {
		spec.TransactionType = "sale"
	}
	if !transactionTypes[spec.TransactionType] {
		return nil, invalid("transaction_type", "must be sale or transfer")
	}
	if spec.PricePerKg.IsNegative() {
		return nil, invalid("price_per_kg", "cannot be negative")
	}
	if spec.TransactionType == "sale" && !spec.PricePerKg.IsPositive() {
		return nil, invalid("price_per_kg", "must be greater than zero for a sale")
	}
	if spec.Quantity.IsNegative() {
		return nil, invalid("quantity_kg", "cannot be negative")
	}
	if err := checkAmount("quantity_kg", spec.Quantity); err != nil {
		return nil, err
	}
	if err := checkAmount("price_per_kg", spec.PricePerKg); err != nil {
		return nil, err
	}

	// 2. Serialize on the item
	leave, err := l.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer leave()
	unlock, err := l.lock(ctx, spec.ItemID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// 3. State and authorization
	h, err := l.holding(spec.ItemID, "")
	if err != nil {
		return nil, err
	}
	if err := authorize(who, ActionTransfer, h.OwnerID); err != nil {
		return nil, err
	}
	if h.PendingTxn != "" {
		return nil, &StateError{EntityID: h.ID, Status: string(h.Status), Message: "a transfer is already pending"}
	}
	if !h.Available.IsPositive() {
		return nil, &StateError{EntityID: h.ID, Status: string(h.Status), Message: "nothing left to transfer"}
	}
	qty := spec.Quantity
	if qty.IsZero() {
		qty = h.Available
	}
	if qty.LessThan(h.Available) {
		return nil, invalid("quantity_kg", "partial transfers are not supported, divide the batch first")
	}

	// 4. Reserve the holding
	res, err := l.validator.Reserve(h.ID, qty)
	if err != nil {
		return nil, err
	}

	// 5. Transaction and event
	now := l.clock.Now()
	notes := spec.Notes
	if notes == "" {
		notes = fmt.Sprintf("Sale of %s %s", h.Kind, h.ID)
	}
	t := Transaction{
		ID:              newTransactionID(now),
		FromUserID:      who.UserID,
		ToUserID:        spec.ToUserID,
		ItemID:          h.ID,
		ItemKind:        h.Kind,
		Quantity:        qty,
		PricePerKg:      spec.PricePerKg,
		TotalAmount:     qty.Mul(spec.PricePerKg),
		TransactionType: spec.TransactionType,
		Notes:           notes,
		SourceStatus:    h.Status,
		Status:          TxnPending,
		CreatedAt:       now,
	}
	ev := initiatedEvent(t, who.UserID, l.originOf(h.ID))

	// 6. Durable append, then projection
	if err := l.append(ctx, ev); err != nil {
		_ = res.Release()
		return nil, err
	}
	if err := res.Commit(ev); err != nil {
		return nil, fmt.Errorf("failed to project transfer: %w", err)
	}
	return &t, nil
}

// CompleteTransfer is the buyer accepting a pending transfer.
func (l *Ledger) CompleteTransfer(ctx context.Context, who Identity, txnID string) (*Transaction, error) {
	return l.resolveTransfer(ctx, who, txnID, true)
}

// RejectTransfer releases a pending transfer; the seller gets back exactly
// the reserved quantity and the holding its status from before the transfer.
func (l *Ledger) RejectTransfer(ctx context.Context, who Identity, txnID string) (*Transaction, error) {
	return l.resolveTransfer(ctx, who, txnID, false)
}

func (l *Ledger) resolveTransfer(ctx context.Context, who Identity, txnID string, accept bool) (*Transaction, error) {
	if txnID == "" {
		return nil, invalid("transaction_id", "is required")
	}
	leave, err := l.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer leave()
	t, err := l.proj.Transaction(txnID)
	if err != nil {
		return nil, err
	}

	unlock, err := l.lock(ctx, t.ItemID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Re-read under the lock; a concurrent resolution may have won.
	if t, err = l.proj.Transaction(txnID); err != nil {
		return nil, err
	}
	action, parties := ActionAccept, []string{t.ToUserID}
	if !accept {
		action, parties = ActionReject, []string{t.ToUserID, t.FromUserID}
	}
	if err := authorize(who, action, parties...); err != nil {
		return nil, err
	}
	if t.Status != TxnPending {
		return nil, &StateError{EntityID: t.ID, Status: string(t.Status), Message: "transaction is not pending"}
	}

	now := l.clock.Now()
	ev := &Event{
		ID:         newEventID(),
		SubjectID:  t.ItemID,
		ContextID:  t.ID,
		ActorID:    who.UserID,
		Location:   l.originOf(t.ItemID),
		OccurredAt: now,
		Metadata: map[string]string{
			"transaction_id": t.ID,
			"from_user_id":   t.FromUserID,
			"to_user_id":     t.ToUserID,
			"quantity_kg":    t.Quantity.String(),
		},
	}
	if accept {
		ev.Type = EventTransferCompleted
		ev.Description = fmt.Sprintf("Ownership transferred to user %s", t.ToUserID)
	} else {
		ev.Type = EventTransferRejected
		ev.Description = fmt.Sprintf("Transfer to user %s rejected", t.ToUserID)
	}

	if err := l.append(ctx, ev); err != nil {
		return nil, err
	}
	res := l.validator.Resume(t)
	if accept {
		err = res.Commit(ev)
	} else {
		err = res.Release(ev)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to project transfer resolution: %w", err)
	}
	resolved, err := l.proj.Transaction(txnID)
	if err != nil {
		return nil, err
	}
	return &resolved, nil
}

func initiatedEvent(t Transaction, actor, location string) *Event {
	return &Event{
		ID:          newEventID(),
		Type:        EventTransferInitiated,
		SubjectID:   t.ItemID,
		ContextID:   t.ID,
		ActorID:     actor,
		Location:    location,
		Description: fmt.Sprintf("Sale initiated to buyer %s", t.ToUserID),
		OccurredAt:  t.CreatedAt,
		Metadata: map[string]string{
			"transaction_id": t.ID,
			"quantity_kg":    t.Quantity.String(),
			"price_per_kg":   t.PricePerKg.String(),
			"total_amount":   t.TotalAmount.String(),
		},
		Transaction: &t,
	}
}

// ── Packaging ────────────────────────────────────────────────────────────────

// RecordPackaging draws a terminal package out of a batch.
func (l *Ledger) RecordPackaging(ctx context.Context, who Identity, spec PackageSpec) (*Package, error) {
	// 1. Structural validation
	if spec.SourceBatchID == "" {
		return nil, invalid("batch_id", "is required")
	}
	if !spec.Quantity.IsPositive() {
		return nil, invalid("quantity_kg", "must be greater than zero")
	}
	if spec.PackageType == "" {
		spec.PackageType = "retail"
	}
	if !packageTypes[spec.PackageType] {
		return nil, invalid("package_type", "must be retail, wholesale or export")
	}
	if err := checkAmount("quantity_kg", spec.Quantity); err != nil {
		return nil, err
	}

	// 2. Serialize on the source batch
	leave, err := l.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer leave()
	unlock, err := l.lock(ctx, spec.SourceBatchID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// 3. State and authorization
	h, err := l.holding(spec.SourceBatchID, KindBatch)
	if err != nil {
		return nil, err
	}
	if h.Kind != KindBatch {
		return nil, &StateError{EntityID: h.ID, Status: string(h.Status), Message: "packages cannot be repackaged"}
	}
	if err := authorize(who, ActionPackage, h.OwnerID); err != nil {
		return nil, err
	}
	if h.PendingTxn != "" {
		return nil, &StateError{EntityID: h.ID, Status: string(h.Status), Message: "a transfer is pending"}
	}
	if fullyPackaged(h) {
		return nil, &StateError{EntityID: h.ID, Status: string(h.Status), Message: "batch is fully packaged"}
	}

	// 4. Reserve the packaged quantity
	res, err := l.validator.Reserve(h.ID, spec.Quantity)
	if err != nil {
		return nil, err
	}

	// 5. Package and event
	now := l.clock.Now()
	pkg := Package{
		ID:            newPackageID(now),
		SourceBatchID: h.ID,
		PackagerID:    who.UserID,
		PackageType:   spec.PackageType,
		Quantity:      spec.Quantity,
		CreatedAt:     now,
	}
	if src, ok := l.proj.Batch(h.ID); ok {
		if spice, ok := l.catalog.Spice(src.SpiceID); ok {
			pkg.ExpiryDate = spice.ExpiryFrom(now)
		}
	}
	ev := &Event{
		ID:          newEventID(),
		Type:        EventPackageCreated,
		SubjectID:   h.ID,
		ContextID:   pkg.ID,
		ActorID:     who.UserID,
		Location:    l.originOf(h.ID),
		Description: "Package created from batch",
		OccurredAt:  now,
		Metadata: map[string]string{
			"package_id":   pkg.ID,
			"quantity_kg":  pkg.Quantity.String(),
			"package_type": pkg.PackageType,
		},
		Package: &pkg,
	}

	// 6. Durable append, then projection
	if err := l.append(ctx, ev); err != nil {
		_ = res.Release()
		return nil, err
	}
	if err := res.Commit(ev); err != nil {
		return nil, fmt.Errorf("failed to project packaging: %w", err)
	}
	return &pkg, nil
}

// ShipPackage moves a created package to shipped.
func (l *Ledger) ShipPackage(ctx context.Context, who Identity, packageID string) (*Holding, error) {
	if packageID == "" {
		return nil, invalid("package_id", "is required")
	}
	leave, err := l.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer leave()
	unlock, err := l.lock(ctx, packageID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	h, err := l.holding(packageID, KindPackage)
	if err != nil {
		return nil, err
	}
	if h.Kind != KindPackage {
		return nil, &NotFoundError{Kind: KindPackage, ID: packageID}
	}
	if err := authorize(who, ActionShip, h.OwnerID); err != nil {
		return nil, err
	}
	if h.PendingTxn != "" {
		return nil, &StateError{EntityID: h.ID, Status: string(h.Status), Message: "a transfer is pending"}
	}
	if h.Status != StatusCreated {
		return nil, &StateError{EntityID: h.ID, Status: string(h.Status), Message: "only created packages can be shipped"}
	}

	ev := &Event{
		ID:          newEventID(),
		Type:        EventPackageShipped,
		SubjectID:   h.ID,
		ActorID:     who.UserID,
		Location:    l.originOf(h.ID),
		Description: "Package shipped",
		OccurredAt:  l.clock.Now(),
	}
	if err := l.append(ctx, ev); err != nil {
		return nil, err
	}
	if err := l.proj.Apply(*ev); err != nil {
		return nil, fmt.Errorf("failed to project shipment: %w", err)
	}
	shipped, err := l.proj.Holding(packageID)
	if err != nil {
		return nil, err
	}
	return &shipped, nil
}

// ── Helpers ──────────────────────────────────────────────────────────────────

// enter admits a writer. A projection left diverged by a failed commit is
// rebuilt from the store first, once every in-flight writer has drained.
func (l *Ledger) enter(ctx context.Context) (func(), error) {
	for {
		if l.proj.Diverged() != nil {
			if err := l.rebuild(ctx); err != nil {
				return nil, err
			}
		}
		l.gate.RLock()
		if l.proj.Diverged() == nil {
			return l.gate.RUnlock, nil
		}
		l.gate.RUnlock()
	}
}

func (l *Ledger) rebuild(ctx context.Context) error {
	l.gate.Lock()
	defer l.gate.Unlock()
	if l.proj.Diverged() == nil {
		return nil
	}
	fresh, err := Rebuild(ctx, l.store)
	if err != nil {
		return fmt.Errorf("failed to rebuild diverged projection: %w", err)
	}
	l.proj.replace(fresh)
	return nil
}

// fullyPackaged reports a batch that has nothing left because all of it went
// into packages; asking it for more is a lifecycle error, not a shortfall.
func fullyPackaged(h Holding) bool {
	return h.Kind == KindBatch && h.Status == StatusPackaged && h.Available.IsZero()
}

func (l *Ledger) lock(ctx context.Context, id string) (func(), error) {
	unlock, err := l.locks.Lock(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", id, err)
	}
	return unlock, nil
}

func (l *Ledger) append(ctx context.Context, events ...*Event) error {
	if err := l.store.AppendEvents(ctx, events...); err != nil {
		return fmt.Errorf("failed to append ledger events: %w", err)
	}
	return nil
}

// holding returns the projected holding or a NotFoundError tagged with kind.
func (l *Ledger) holding(id string, kind EntityKind) (Holding, error) {
	h, err := l.proj.Holding(id)
	if err != nil {
		return Holding{}, &NotFoundError{Kind: kind, ID: id}
	}
	return h, nil
}

// originOf returns the farm location of the batch id is, or was drawn from.
func (l *Ledger) originOf(id string) string {
	if pkg, ok := l.proj.Package(id); ok {
		id = pkg.SourceBatchID
	}
	b, _ := l.proj.Batch(id)
	return b.FarmLocation
}
