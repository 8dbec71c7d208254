// Package pgstore keeps the ledger in Postgres: every event as a JSONB row in
// ledger_events plus typed rows for the batches, packages and transactions
// the events introduce.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adw-ith/hack25-spicechain/internal/core"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// AppendEvents implements core.EntityStore. Events and entities are written
// in one database transaction.
func (s *Store) AppendEvents(ctx context.Context, events ...*core.Event) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	seqs := make([]int64, len(events))
	for i, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to encode event %s: %w", ev.ID, err)
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO ledger_events (event_id, event_type, subject_id, context_id, actor_id, occurred_at, payload)
			VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)
			RETURNING seq
		`, ev.ID, string(ev.Type), ev.SubjectID, ev.ContextID, ev.ActorID, ev.OccurredAt, payload).Scan(&seqs[i])
		if err != nil {
			return fmt.Errorf("failed to insert event %s: %w", ev.ID, err)
		}

		for _, ent := range ev.Entities() {
			if err := insertEntity(ctx, tx, ent, seqs[i]); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit events: %w", err)
	}
	for i, ev := range events {
		ev.Seq = seqs[i]
	}
	return nil
}

func insertEntity(ctx context.Context, tx pgx.Tx, ent core.Entity, seq int64) error {
	var err error
	switch ent.Kind {
	case core.KindBatch:
		b := ent.Batch
		_, err = tx.Exec(ctx, `
			INSERT INTO batches (batch_id, parent_batch_id, spice_id, farmer_id, farm_location, farming_method,
				estimated_grade, harvest_date, quantity_kg, created_at, event_seq)
			VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, b.ID, b.ParentBatchID, b.SpiceID, b.FarmerID, b.FarmLocation, b.FarmingMethod,
			b.EstimatedGrade, b.HarvestDate, b.Quantity, b.CreatedAt, seq)
	case core.KindPackage:
		p := ent.Package
		_, err = tx.Exec(ctx, `
			INSERT INTO packages (package_id, source_batch_id, packager_id, package_type, quantity_kg, created_at, expiry_date, event_seq)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, p.ID, p.SourceBatchID, p.PackagerID, p.PackageType, p.Quantity, p.CreatedAt, p.ExpiryDate, seq)
	case core.KindTransaction:
		t := ent.Transaction
		_, err = tx.Exec(ctx, `
			INSERT INTO transactions (transaction_id, from_user_id, to_user_id, item_id, item_type, quantity_kg,
				price_per_kg, total_amount, transaction_type, notes, source_status, created_at, event_seq)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`, t.ID, t.FromUserID, t.ToUserID, t.ItemID, string(t.ItemKind), t.Quantity,
			t.PricePerKg, t.TotalAmount, t.TransactionType, t.Notes, string(t.SourceStatus), t.CreatedAt, seq)
	default:
		return fmt.Errorf("unknown entity kind %q", ent.Kind)
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("entity %s already exists", ent.ID())
		}
		return fmt.Errorf("failed to insert %s %s: %w", ent.Kind, ent.ID(), err)
	}
	return nil
}

// GetEntity implements core.EntityStore.
func (s *Store) GetEntity(ctx context.Context, id string) (*core.Entity, error) {
	var b core.Batch
	var parent *string
	err := s.pool.QueryRow(ctx, `
		SELECT batch_id, parent_batch_id, spice_id, farmer_id, farm_location, farming_method,
			estimated_grade, harvest_date, quantity_kg, created_at
		FROM batches WHERE batch_id = $1
	`, id).Scan(&b.ID, &parent, &b.SpiceID, &b.FarmerID, &b.FarmLocation, &b.FarmingMethod,
		&b.EstimatedGrade, &b.HarvestDate, &b.Quantity, &b.CreatedAt)
	if err == nil {
		if parent != nil {
			b.ParentBatchID = *parent
		}
		b.HarvestDate, b.CreatedAt = b.HarvestDate.UTC(), b.CreatedAt.UTC()
		return &core.Entity{Kind: core.KindBatch, Batch: &b}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to fetch batch %s: %w", id, err)
	}

	var p core.Package
	err = s.pool.QueryRow(ctx, `
		SELECT package_id, source_batch_id, packager_id, package_type, quantity_kg, created_at, expiry_date
		FROM packages WHERE package_id = $1
	`, id).Scan(&p.ID, &p.SourceBatchID, &p.PackagerID, &p.PackageType, &p.Quantity, &p.CreatedAt, &p.ExpiryDate)
	if err == nil {
		p.CreatedAt = p.CreatedAt.UTC()
		if p.ExpiryDate != nil {
			exp := p.ExpiryDate.UTC()
			p.ExpiryDate = &exp
		}
		return &core.Entity{Kind: core.KindPackage, Package: &p}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to fetch package %s: %w", id, err)
	}

	var t core.Transaction
	var kind, source string
	err = s.pool.QueryRow(ctx, `
		SELECT transaction_id, from_user_id, to_user_id, item_id, item_type, quantity_kg,
			price_per_kg, total_amount, transaction_type, notes, source_status, created_at
		FROM transactions WHERE transaction_id = $1
	`, id).Scan(&t.ID, &t.FromUserID, &t.ToUserID, &t.ItemID, &kind, &t.Quantity,
		&t.PricePerKg, &t.TotalAmount, &t.TransactionType, &t.Notes, &source, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &core.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transaction %s: %w", id, err)
	}
	t.ItemKind, t.SourceStatus, t.Status = core.EntityKind(kind), core.Status(source), core.TxnPending
	t.CreatedAt = t.CreatedAt.UTC()
	return &core.Entity{Kind: core.KindTransaction, Transaction: &t}, nil
}

// EventsBySubject implements core.EntityStore.
func (s *Store) EventsBySubject(ctx context.Context, ids []string) ([]core.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT seq, payload FROM ledger_events WHERE subject_id = ANY($1) ORDER BY seq
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []core.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Replay implements core.EntityStore.
func (s *Store) Replay(ctx context.Context, fn func(core.Event) error) error {
	rows, err := s.pool.Query(ctx, `SELECT seq, payload FROM ledger_events ORDER BY seq`)
	if err != nil {
		return fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	return rows.Err()
}

func scanEvent(rows pgx.Rows) (core.Event, error) {
	var ev core.Event
	var seq int64
	var payload []byte
	if err := rows.Scan(&seq, &payload); err != nil {
		return ev, fmt.Errorf("failed to scan event: %w", err)
	}
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ev, fmt.Errorf("failed to decode event %d: %w", seq, err)
	}
	ev.Seq = seq
	return ev, nil
}
