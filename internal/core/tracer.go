package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// maxLineageDepth bounds the parent walk. Parents always predate children so
// the graph is acyclic; the bound only protects against a corrupted store.
const maxLineageDepth = 1024

// Origin describes the registered root batch of a lineage.
type Origin struct {
	BatchID        string          `json:"batch_id"`
	SpiceID        int             `json:"spice_id"`
	FarmerID       string          `json:"original_owner_id"`
	FarmLocation   string          `json:"farm_location"`
	FarmingMethod  string          `json:"farming_method"`
	EstimatedGrade string          `json:"estimated_grade"`
	HarvestDate    time.Time       `json:"harvest_date"`
	Quantity       decimal.Decimal `json:"original_quantity_kg"`
	RegisteredAt   time.Time       `json:"registered_at"`
}

// JourneyEntry is one step of a traced lineage.
type JourneyEntry struct {
	Timestamp   time.Time         `json:"timestamp"`
	EventType   EventType         `json:"event_type"`
	Description string            `json:"description"`
	User        string            `json:"user"`
	Location    string            `json:"location,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ContextID   string            `json:"context_id,omitempty"`
	SubjectID   string            `json:"subject_id"`
	seq         int64
}

// Provenance is the answer to a trace query.
type Provenance struct {
	SubjectID string         `json:"subject_id"`
	Kind      EntityKind     `json:"subject_type"`
	Batch     *Batch         `json:"batch_details,omitempty"`
	Package   *Package       `json:"package_details,omitempty"`
	Current   *Holding       `json:"current,omitempty"`
	Origin    Origin         `json:"origin_details"`
	Path      []string       `json:"lineage"`
	Journey   []JourneyEntry `json:"full_journey"`
}

// OwnershipChange is one completed transfer along a lineage.
type OwnershipChange struct {
	TransactionID string          `json:"transaction_id"`
	ItemID        string          `json:"item_id"`
	From          string          `json:"from"`
	To            string          `json:"to"`
	Quantity      decimal.Decimal `json:"quantity"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Family is a root batch with everything ever split or packaged from it.
type Family struct {
	Root     Batch          `json:"root"`
	Batches  []Batch        `json:"batches"`
	Packages []Package      `json:"packages"`
	Timeline []JourneyEntry `json:"timeline"`
}

// TracerService answers read-only provenance questions.
type TracerService interface {
	Trace(ctx context.Context, id string) (*Provenance, error)
	History(ctx context.Context, id string) ([]OwnershipChange, error)
	Family(ctx context.Context, id string) (*Family, error)
}

// Tracer answers provenance questions from stored events and the projection.
type Tracer struct {
	store EntityStore
	proj  *Projection
}

// NewTracer reads entity records and events from store; proj supplies the
// current state of the traced subject and the descendant index.
func NewTracer(store EntityStore, proj *Projection) *Tracer {
	return &Tracer{store: store, proj: proj}
}

type pathNode struct {
	id        string
	createdAt time.Time
}

// lineage returns the path root → … → id and the stored record of id.
func (t *Tracer) lineage(ctx context.Context, id string) ([]pathNode, []Batch, *Entity, error) {
	if id == "" {
		return nil, nil, nil, invalid("id", "is required")
	}
	subject, err := t.store.GetEntity(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}

	var path []pathNode
	cursor := ""
	switch subject.Kind {
	case KindPackage:
		path = append(path, pathNode{id: subject.Package.ID, createdAt: subject.Package.CreatedAt})
		cursor = subject.Package.SourceBatchID
	case KindBatch:
		cursor = subject.Batch.ID
	default:
		return nil, nil, nil, invalid("id", "%s is a %s, only batches and packages can be traced", id, subject.Kind)
	}

	var batches []Batch
	for depth := 0; cursor != ""; depth++ {
		if depth >= maxLineageDepth {
			return nil, nil, nil, fmt.Errorf("lineage of %s exceeds %d levels", id, maxLineageDepth)
		}
		ent, err := t.store.GetEntity(ctx, cursor)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to load ancestor %s: %w", cursor, err)
		}
		if ent.Kind != KindBatch {
			return nil, nil, nil, fmt.Errorf("ancestor %s of %s is a %s", cursor, id, ent.Kind)
		}
		batches = append(batches, *ent.Batch)
		path = append(path, pathNode{id: ent.Batch.ID, createdAt: ent.Batch.CreatedAt})
		cursor = ent.Batch.ParentBatchID
	}

	// Collected subject-first; callers want root-first.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	for i, j := 0, len(batches)-1; i < j; i, j = i+1, j-1 {
		batches[i], batches[j] = batches[j], batches[i]
	}
	return path, batches, subject, nil
}

// pathEvents returns the events on the path that belong to this lineage:
// an ancestor's events count only up to the moment the next entity on the
// path was split or packaged off it.
func (t *Tracer) pathEvents(ctx context.Context, path []pathNode) ([]Event, error) {
	ids := make([]string, len(path))
	cutoff := make(map[string]time.Time, len(path))
	for i, n := range path {
		ids[i] = n.id
		if i+1 < len(path) {
			cutoff[n.id] = path[i+1].createdAt
		}
	}
	events, err := t.store.EventsBySubject(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load lineage events: %w", err)
	}
	out := events[:0]
	for _, ev := range events {
		if c, ok := cutoff[ev.SubjectID]; ok && ev.OccurredAt.After(c) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// Trace reconstructs the journey of a batch or package back to its root.
func (t *Tracer) Trace(ctx context.Context, id string) (*Provenance, error) {
	path, batches, subject, err := t.lineage(ctx, id)
	if err != nil {
		return nil, err
	}
	events, err := t.pathEvents(ctx, path)
	if err != nil {
		return nil, err
	}

	root := batches[0]
	p := &Provenance{
		SubjectID: id,
		Kind:      subject.Kind,
		Batch:     subject.Batch,
		Package:   subject.Package,
		Origin: Origin{
			BatchID:        root.ID,
			SpiceID:        root.SpiceID,
			FarmerID:       root.FarmerID,
			FarmLocation:   root.FarmLocation,
			FarmingMethod:  root.FarmingMethod,
			EstimatedGrade: root.EstimatedGrade,
			HarvestDate:    root.HarvestDate,
			Quantity:       root.Quantity,
			RegisteredAt:   root.CreatedAt,
		},
	}
	for _, n := range path {
		p.Path = append(p.Path, n.id)
	}
	if h, err := t.proj.Holding(id); err == nil {
		p.Current = &h
	}

	// A transaction is reported once, in its latest state.
	latest := make(map[string]int)
	for _, ev := range events {
		if ev.Type == EventBatchRegistered {
			continue
		}
		entry := journeyEntry(ev)
		if isTransfer(ev.Type) {
			if i, ok := latest[ev.ContextID]; ok {
				p.Journey[i] = entry
				continue
			}
			latest[ev.ContextID] = len(p.Journey)
		}
		p.Journey = append(p.Journey, entry)
	}
	sortJourney(p.Journey)
	if p.Journey == nil {
		p.Journey = []JourneyEntry{}
	}
	return p, nil
}

// History lists the completed ownership changes along the lineage of id.
func (t *Tracer) History(ctx context.Context, id string) ([]OwnershipChange, error) {
	path, _, _, err := t.lineage(ctx, id)
	if err != nil {
		return nil, err
	}
	events, err := t.pathEvents(ctx, path)
	if err != nil {
		return nil, err
	}
	changes := []OwnershipChange{}
	for _, ev := range events {
		if ev.Type != EventTransferCompleted {
			continue
		}
		ent, err := t.store.GetEntity(ctx, ev.ContextID)
		if err != nil {
			return nil, fmt.Errorf("failed to load transaction %s: %w", ev.ContextID, err)
		}
		txn := ent.Transaction
		changes = append(changes, OwnershipChange{
			TransactionID: txn.ID,
			ItemID:        txn.ItemID,
			From:          txn.FromUserID,
			To:            txn.ToUserID,
			Quantity:      txn.Quantity,
			Timestamp:     ev.OccurredAt,
		})
	}
	return changes, nil
}

// Family returns the root of id's lineage, every batch and package descended
// from it, and all of their events.
func (t *Tracer) Family(ctx context.Context, id string) (*Family, error) {
	_, batches, _, err := t.lineage(ctx, id)
	if err != nil {
		return nil, err
	}
	f := &Family{Root: batches[0], Packages: []Package{}}

	ids := []string{f.Root.ID}
	queue := []string{f.Root.ID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if b, ok := t.proj.Batch(cur); ok {
			f.Batches = append(f.Batches, b)
		}
		for _, pkgID := range t.proj.Packages(cur) {
			if pkg, ok := t.proj.Package(pkgID); ok {
				f.Packages = append(f.Packages, pkg)
				ids = append(ids, pkgID)
			}
		}
		for _, child := range t.proj.Children(cur) {
			ids = append(ids, child)
			queue = append(queue, child)
		}
	}

	events, err := t.store.EventsBySubject(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load family events: %w", err)
	}
	f.Timeline = make([]JourneyEntry, 0, len(events))
	for _, ev := range events {
		f.Timeline = append(f.Timeline, journeyEntry(ev))
	}
	sortJourney(f.Timeline)
	return f, nil
}

func journeyEntry(ev Event) JourneyEntry {
	return JourneyEntry{
		Timestamp:   ev.OccurredAt,
		EventType:   ev.Type,
		Description: ev.Description,
		User:        ev.ActorID,
		Location:    ev.Location,
		Metadata:    ev.Metadata,
		ContextID:   ev.ContextID,
		SubjectID:   ev.SubjectID,
		seq:         ev.Seq,
	}
}

func isTransfer(t EventType) bool {
	return t == EventTransferInitiated || t == EventTransferCompleted || t == EventTransferRejected
}

func sortJourney(j []JourneyEntry) {
	sort.SliceStable(j, func(a, b int) bool {
		if !j[a].Timestamp.Equal(j[b].Timestamp) {
			return j[a].Timestamp.Before(j[b].Timestamp)
		}
		return j[a].seq < j[b].seq
	})
}
