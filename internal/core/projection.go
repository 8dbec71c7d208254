package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Projection is the ownership resolver: current owner, available quantity and
// status per entity, kept in step with every ledger append. It holds nothing
// that cannot be rebuilt by replaying the ledger from empty.
type Projection struct {
	mu       sync.RWMutex
	holdings map[string]*Holding
	batches  map[string]*Batch
	packages map[string]*Package
	txns     map[string]*Transaction
	children map[string][]string // batch id → child batch ids in creation order
	packaged map[string][]string // batch id → package ids in creation order
	owned    map[string]map[string]struct{}
	userTxns map[string][]string
	lastSeq  int64
	lastAt   time.Time
	diverged error // set when a commit applied only part of its events
}

// NewProjection returns an empty projection.
func NewProjection() *Projection {
	return &Projection{
		holdings: make(map[string]*Holding),
		batches:  make(map[string]*Batch),
		packages: make(map[string]*Package),
		txns:     make(map[string]*Transaction),
		children: make(map[string][]string),
		packaged: make(map[string][]string),
		owned:    make(map[string]map[string]struct{}),
		userTxns: make(map[string][]string),
	}
}

// Rebuild replays the whole ledger into a fresh projection.
func Rebuild(ctx context.Context, store EntityStore) (*Projection, error) {
	p := NewProjection()
	err := store.Replay(ctx, func(ev Event) error {
		return p.Apply(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to replay ledger: %w", err)
	}
	return p, nil
}

// Apply folds one event into the projection.
func (p *Projection) Apply(ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.apply(&ev); err != nil {
		p.diverged = fmt.Errorf("projection diverged from ledger at event %s: %w", ev.ID, err)
		return p.diverged
	}
	return nil
}

func (p *Projection) apply(ev *Event) error {
	switch ev.Type {
	case EventBatchRegistered:
		if len(ev.Batches) != 1 {
			return fmt.Errorf("event %s: registration carries %d batches", ev.ID, len(ev.Batches))
		}
		b := ev.Batches[0]
		p.addBatch(b, ev.ActorID, ev.OccurredAt)

	case EventBatchDivided:
		parent, err := p.holding(ev, ev.SubjectID)
		if err != nil {
			return err
		}
		if ev.Division == nil {
			return fmt.Errorf("event %s: division record missing", ev.ID)
		}
		parent.Available = parent.Available.Sub(ev.Division.Total())
		parent.Status = StatusDivided
		parent.UpdatedAt = ev.OccurredAt
		for _, b := range ev.Batches {
			p.addBatch(b, parent.OwnerID, ev.OccurredAt)
			p.children[parent.ID] = append(p.children[parent.ID], b.ID)
		}
		if parent.Available.IsNegative() {
			return fmt.Errorf("event %s: %s overdrawn to %s", ev.ID, parent.ID, parent.Available)
		}

	case EventTransferInitiated:
		if ev.Transaction == nil {
			return fmt.Errorf("event %s: transaction record missing", ev.ID)
		}
		t := *ev.Transaction
		h, err := p.holding(ev, t.ItemID)
		if err != nil {
			return err
		}
		h.Available = h.Available.Sub(t.Quantity)
		h.PendingTxn = t.ID
		if h.Kind == KindBatch {
			h.Status = StatusTransferPending
		}
		h.UpdatedAt = ev.OccurredAt
		t.Status = TxnPending
		p.txns[t.ID] = &t
		p.userTxns[t.FromUserID] = append(p.userTxns[t.FromUserID], t.ID)
		p.userTxns[t.ToUserID] = append(p.userTxns[t.ToUserID], t.ID)
		if h.Available.IsNegative() {
			return fmt.Errorf("event %s: %s overdrawn to %s", ev.ID, h.ID, h.Available)
		}

	case EventTransferCompleted, EventTransferRejected:
		t, ok := p.txns[ev.ContextID]
		if !ok {
			return fmt.Errorf("event %s: unknown transaction %s", ev.ID, ev.ContextID)
		}
		h, err := p.holding(ev, t.ItemID)
		if err != nil {
			return err
		}
		h.Available = h.Available.Add(t.Quantity)
		h.PendingTxn = ""
		h.UpdatedAt = ev.OccurredAt
		resolved := ev.OccurredAt
		t.ResolvedAt = &resolved
		if ev.Type == EventTransferRejected {
			h.Status = t.SourceStatus
			t.Status = TxnRejected
			break
		}
		p.disown(h.OwnerID, h.ID)
		h.OwnerID = t.ToUserID
		p.own(h.OwnerID, h.ID)
		if h.Kind == KindPackage {
			h.Status = StatusSold
		} else {
			h.Status = StatusTransferred
		}
		t.Status = TxnCompleted

	case EventPackageCreated:
		if ev.Package == nil {
			return fmt.Errorf("event %s: package record missing", ev.ID)
		}
		src, err := p.holding(ev, ev.SubjectID)
		if err != nil {
			return err
		}
		pkg := *ev.Package
		src.Available = src.Available.Sub(pkg.Quantity)
		src.Status = StatusPackaged
		src.UpdatedAt = ev.OccurredAt
		p.packages[pkg.ID] = &pkg
		p.packaged[src.ID] = append(p.packaged[src.ID], pkg.ID)
		p.holdings[pkg.ID] = &Holding{
			ID:        pkg.ID,
			Kind:      KindPackage,
			OwnerID:   ev.ActorID,
			Initial:   pkg.Quantity,
			Available: pkg.Quantity,
			Status:    StatusCreated,
			UpdatedAt: ev.OccurredAt,
		}
		p.own(ev.ActorID, pkg.ID)
		if src.Available.IsNegative() {
			return fmt.Errorf("event %s: %s overdrawn to %s", ev.ID, src.ID, src.Available)
		}

	case EventPackageShipped:
		h, err := p.holding(ev, ev.SubjectID)
		if err != nil {
			return err
		}
		h.Status = StatusShipped
		h.UpdatedAt = ev.OccurredAt

	default:
		return fmt.Errorf("event %s: unknown type %q", ev.ID, ev.Type)
	}

	if ev.Seq > p.lastSeq {
		p.lastSeq = ev.Seq
	}
	if ev.OccurredAt.After(p.lastAt) {
		p.lastAt = ev.OccurredAt
	}
	return nil
}

func (p *Projection) holding(ev *Event, id string) (*Holding, error) {
	h, ok := p.holdings[id]
	if !ok {
		return nil, fmt.Errorf("event %s: unknown entity %s", ev.ID, id)
	}
	return h, nil
}

func (p *Projection) addBatch(b Batch, owner string, at time.Time) {
	p.batches[b.ID] = &b
	p.holdings[b.ID] = &Holding{
		ID:        b.ID,
		Kind:      KindBatch,
		OwnerID:   owner,
		Initial:   b.Quantity,
		Available: b.Quantity,
		Status:    StatusRegistered,
		UpdatedAt: at,
	}
	p.own(owner, b.ID)
}

func (p *Projection) own(user, id string) {
	set, ok := p.owned[user]
	if !ok {
		set = make(map[string]struct{})
		p.owned[user] = set
	}
	set[id] = struct{}{}
}

func (p *Projection) disown(user, id string) {
	delete(p.owned[user], id)
}

// hold is the atomic check-and-decrement behind Validator.Reserve.
func (p *Projection) hold(id string, qty decimal.Decimal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.diverged != nil {
		return p.diverged
	}
	h, ok := p.holdings[id]
	if !ok {
		return &NotFoundError{ID: id}
	}
	if qty.GreaterThan(h.Available) {
		return &ConflictError{EntityID: id, Requested: qty, Available: h.Available}
	}
	h.Available = h.Available.Sub(qty)
	return nil
}

// settle returns a held quantity and applies events in one critical section,
// so readers never observe the hold and the event effect at the same time.
func (p *Projection) settle(id string, held decimal.Decimal, events []*Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !held.IsZero() {
		if h, ok := p.holdings[id]; ok {
			h.Available = h.Available.Add(held)
		}
	}
	for _, ev := range events {
		if err := p.apply(ev); err != nil {
			p.diverged = fmt.Errorf("projection diverged from ledger at event %s: %w", ev.ID, err)
			return p.diverged
		}
	}
	return nil
}

// Diverged returns the failure that left the projection out of step with the
// stored ledger, or nil.
func (p *Projection) Diverged() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.diverged
}

// replace swaps in the state of fresh, a projection nobody else references.
func (p *Projection) replace(fresh *Projection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.holdings = fresh.holdings
	p.batches = fresh.batches
	p.packages = fresh.packages
	p.txns = fresh.txns
	p.children = fresh.children
	p.packaged = fresh.packaged
	p.owned = fresh.owned
	p.userTxns = fresh.userTxns
	p.lastSeq = fresh.lastSeq
	p.lastAt = fresh.lastAt
	p.diverged = nil
}

// Holding returns a copy of the projected state of id.
func (p *Projection) Holding(id string) (Holding, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h, ok := p.holdings[id]
	if !ok {
		return Holding{}, &NotFoundError{ID: id}
	}
	return *h, nil
}

// CurrentOwner returns the user currently owning id.
func (p *Projection) CurrentOwner(id string) (string, error) {
	h, err := p.Holding(id)
	return h.OwnerID, err
}

// AvailableQuantity returns what can still be divided, packaged or transferred.
func (p *Projection) AvailableQuantity(id string) (decimal.Decimal, error) {
	h, err := p.Holding(id)
	return h.Available, err
}

// Status returns the lifecycle status of id.
func (p *Projection) Status(id string) (Status, error) {
	h, err := p.Holding(id)
	return h.Status, err
}

// Batch returns the registration record of a batch.
func (p *Projection) Batch(id string) (Batch, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.batches[id]
	if !ok {
		return Batch{}, false
	}
	return *b, true
}

// Package returns the creation record of a package.
func (p *Projection) Package(id string) (Package, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pkg, ok := p.packages[id]
	if !ok {
		return Package{}, false
	}
	return *pkg, true
}

// Transaction returns a transaction with its current status.
func (p *Projection) Transaction(id string) (Transaction, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.txns[id]
	if !ok {
		return Transaction{}, &NotFoundError{Kind: KindTransaction, ID: id}
	}
	return *t, nil
}

// Children returns the batches split off id, oldest first.
func (p *Projection) Children(id string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.children[id]...)
}

// Packages returns the packages drawn from batch id, oldest first.
func (p *Projection) Packages(id string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.packaged[id]...)
}

// ListBatches returns every batch record, oldest first.
func (p *Projection) ListBatches() []Batch {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Batch, 0, len(p.batches))
	for _, b := range p.batches {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ListPackages returns every package record, oldest first.
func (p *Projection) ListPackages() []Package {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Package, 0, len(p.packages))
	for _, pkg := range p.packages {
		out = append(out, *pkg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ListTransactions returns every transaction with its current status, oldest first.
func (p *Projection) ListTransactions() []Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Transaction, 0, len(p.txns))
	for _, t := range p.txns {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// OwnedBy returns the holdings of kind currently owned by user, sorted by id.
func (p *Projection) OwnedBy(user string, kind EntityKind) []Holding {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []Holding
	for id := range p.owned[user] {
		if h := p.holdings[id]; h != nil && h.Kind == kind {
			out = append(out, *h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TransactionsFor returns every transaction user is a party to, newest first.
func (p *Projection) TransactionsFor(user string) []Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	seen := make(map[string]bool)
	var out []Transaction
	for _, id := range p.userTxns[user] {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, *p.txns[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// LastEvent returns the sequence number and timestamp of the newest applied event.
func (p *Projection) LastEvent() (int64, time.Time) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSeq, p.lastAt
}

// Verify checks the conservation invariant on every holding:
// initial = available + split off + packaged + reserved by a pending transfer.
func (p *Projection) Verify() []Violation {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []Violation
	for id, h := range p.holdings {
		actual := h.Available
		for _, c := range p.children[id] {
			actual = actual.Add(p.batches[c].Quantity)
		}
		for _, pk := range p.packaged[id] {
			actual = actual.Add(p.packages[pk].Quantity)
		}
		if h.PendingTxn != "" {
			actual = actual.Add(p.txns[h.PendingTxn].Quantity)
		}
		if !actual.Equal(h.Initial) || h.Available.IsNegative() {
			out = append(out, Violation{EntityID: id, Expected: h.Initial, Actual: actual})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}
