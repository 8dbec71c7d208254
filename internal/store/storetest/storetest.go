// Package storetest is the behavioural contract every core.EntityStore
// backend runs in its own tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adw-ith/hack25-spicechain/internal/core"
)

var base = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func registered(id string, at time.Time) *core.Event {
	b := core.Batch{
		ID:             id,
		SpiceID:        3,
		FarmerID:       "7",
		FarmLocation:   "Idukki",
		FarmingMethod:  "organic",
		EstimatedGrade: "A",
		HarvestDate:    at.Add(-48 * time.Hour),
		Quantity:       decimal.NewFromInt(100),
		CreatedAt:      at,
	}
	return &core.Event{
		ID:          "EVT_" + id,
		Type:        core.EventBatchRegistered,
		SubjectID:   id,
		ActorID:     "7",
		Location:    "Idukki",
		Description: "Batch harvested at Idukki",
		OccurredAt:  at,
		Metadata:    map[string]string{"quantity_kg": "100"},
		Batches:     []core.Batch{b},
	}
}

func divided(parent string, at time.Time, children ...string) *core.Event {
	div := core.Division{ID: "DIV_" + parent, ParentBatchID: parent, CreatedAt: at}
	var batches []core.Batch
	for _, c := range children {
		q := decimal.NewFromInt(10)
		batches = append(batches, core.Batch{
			ID: c, ParentBatchID: parent, SpiceID: 3, FarmerID: "7", FarmLocation: "Idukki",
			FarmingMethod: "organic", EstimatedGrade: "A", HarvestDate: base.Add(-48 * time.Hour),
			Quantity: q, CreatedAt: at,
		})
		div.Children = append(div.Children, core.ChildShare{BatchID: c, Quantity: q})
	}
	return &core.Event{
		ID:         "EVT_DIV_" + parent,
		Type:       core.EventBatchDivided,
		SubjectID:  parent,
		ContextID:  div.ID,
		ActorID:    "7",
		OccurredAt: at,
		Batches:    batches,
		Division:   &div,
	}
}

func initiated(item string, at time.Time) *core.Event {
	t := core.Transaction{
		ID: "TXN_" + item, FromUserID: "7", ToUserID: "9", ItemID: item, ItemKind: core.KindBatch,
		Quantity: decimal.NewFromInt(10), PricePerKg: decimal.RequireFromString("12.5"),
		TotalAmount: decimal.NewFromInt(125), TransactionType: "sale",
		SourceStatus: core.StatusRegistered, Status: core.TxnPending, CreatedAt: at,
	}
	return &core.Event{
		ID:          "EVT_TXN_" + item,
		Type:        core.EventTransferInitiated,
		SubjectID:   item,
		ContextID:   t.ID,
		ActorID:     "7",
		OccurredAt:  at,
		Transaction: &t,
	}
}

func packaged(source, id string, at time.Time) *core.Event {
	exp := at.AddDate(0, 24, 0)
	pkg := core.Package{
		ID: id, SourceBatchID: source, PackagerID: "7", PackageType: "retail",
		Quantity: decimal.RequireFromString("0.000001"), CreatedAt: at, ExpiryDate: &exp,
	}
	return &core.Event{
		ID:         "EVT_" + id,
		Type:       core.EventPackageCreated,
		SubjectID:  source,
		ContextID:  id,
		ActorID:    "7",
		OccurredAt: at,
		Package:    &pkg,
	}
}

// Run exercises a fresh store returned by open.
func Run(t *testing.T, open func(t *testing.T) core.EntityStore) {
	t.Run("AppendAssignsIncreasingSeq", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		a, b := registered("BATCH_A", base), registered("BATCH_B", base.Add(time.Second))
		require.NoError(t, s.AppendEvents(ctx, a))
		require.NoError(t, s.AppendEvents(ctx, b))
		assert.Positive(t, a.Seq)
		assert.Greater(t, b.Seq, a.Seq)
	})

	t.Run("GetEntityReturnsIntroducedRecords", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.AppendEvents(ctx,
			registered("BATCH_R", base),
		))
		require.NoError(t, s.AppendEvents(ctx,
			divided("BATCH_R", base.Add(time.Minute), "BATCH_R_DIV1", "BATCH_R_DIV2"),
			initiated("BATCH_R_DIV1", base.Add(2*time.Minute)),
		))

		ent, err := s.GetEntity(ctx, "BATCH_R_DIV2")
		require.NoError(t, err)
		require.Equal(t, core.KindBatch, ent.Kind)
		assert.Equal(t, "BATCH_R", ent.Batch.ParentBatchID)
		assert.True(t, decimal.NewFromInt(10).Equal(ent.Batch.Quantity))
		assert.True(t, base.Add(time.Minute).Equal(ent.Batch.CreatedAt))

		ent, err = s.GetEntity(ctx, "TXN_BATCH_R_DIV1")
		require.NoError(t, err)
		require.Equal(t, core.KindTransaction, ent.Kind)
		assert.Equal(t, "9", ent.Transaction.ToUserID)
		assert.Equal(t, core.StatusRegistered, ent.Transaction.SourceStatus)
		assert.True(t, decimal.RequireFromString("12.5").Equal(ent.Transaction.PricePerKg))
	})

	t.Run("GetEntityUnknownIsNotFound", func(t *testing.T) {
		s := open(t)
		_, err := s.GetEntity(context.Background(), "BATCH_MISSING")
		require.Error(t, err)
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("DuplicateEntityRejectsWholeAppend", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.AppendEvents(ctx, registered("BATCH_D", base)))

		err := s.AppendEvents(ctx,
			registered("BATCH_E", base.Add(time.Second)),
			registered("BATCH_D", base.Add(2*time.Second)),
		)
		require.Error(t, err)

		_, err = s.GetEntity(ctx, "BATCH_E")
		assert.True(t, core.IsNotFound(err), "partial append must not be visible")
		var n int
		require.NoError(t, s.Replay(ctx, func(core.Event) error { n++; return nil }))
		assert.Equal(t, 1, n)
	})

	t.Run("EventsBySubjectInSeqOrder", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.AppendEvents(ctx, registered("BATCH_S", base)))
		require.NoError(t, s.AppendEvents(ctx, registered("BATCH_T", base.Add(time.Second))))
		require.NoError(t, s.AppendEvents(ctx, divided("BATCH_S", base.Add(time.Minute), "BATCH_S_DIV1")))
		require.NoError(t, s.AppendEvents(ctx, initiated("BATCH_S_DIV1", base.Add(2*time.Minute))))

		evs, err := s.EventsBySubject(ctx, []string{"BATCH_S_DIV1", "BATCH_S"})
		require.NoError(t, err)
		require.Len(t, evs, 3)
		assert.Equal(t, core.EventBatchRegistered, evs[0].Type)
		assert.Equal(t, core.EventBatchDivided, evs[1].Type)
		assert.Equal(t, core.EventTransferInitiated, evs[2].Type)
		assert.Equal(t, "TXN_BATCH_S_DIV1", evs[2].ContextID)
		require.NotNil(t, evs[2].Transaction)
		assert.Equal(t, core.StatusRegistered, evs[2].Transaction.SourceStatus)
		for i := 1; i < len(evs); i++ {
			assert.Greater(t, evs[i].Seq, evs[i-1].Seq)
		}
	})

	t.Run("AmountsAndExpiryRoundTripExactly", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		reg := registered("BATCH_Q", base)
		reg.Batches[0].Quantity = decimal.RequireFromString("999999999999.123456")
		txn := initiated("BATCH_Q", base.Add(time.Minute))
		txn.Transaction.Quantity = decimal.RequireFromString("0.123456")
		txn.Transaction.PricePerKg = decimal.RequireFromString("1.654321")
		txn.Transaction.TotalAmount = txn.Transaction.Quantity.Mul(txn.Transaction.PricePerKg)
		require.NoError(t, s.AppendEvents(ctx, reg, txn))
		require.NoError(t, s.AppendEvents(ctx, packaged("BATCH_Q", "PKG_Q", base.Add(2*time.Minute))))

		ent, err := s.GetEntity(ctx, "BATCH_Q")
		require.NoError(t, err)
		assert.Equal(t, "999999999999.123456", ent.Batch.Quantity.String())

		ent, err = s.GetEntity(ctx, "TXN_BATCH_Q")
		require.NoError(t, err)
		assert.Equal(t, "0.204235853376", ent.Transaction.TotalAmount.String())

		ent, err = s.GetEntity(ctx, "PKG_Q")
		require.NoError(t, err)
		require.Equal(t, core.KindPackage, ent.Kind)
		assert.Equal(t, "0.000001", ent.Package.Quantity.String())
		require.NotNil(t, ent.Package.ExpiryDate)
		assert.True(t, base.Add(2*time.Minute).AddDate(0, 24, 0).Equal(*ent.Package.ExpiryDate))
	})

	t.Run("ReplayStreamsEverythingInOrder", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.AppendEvents(ctx, registered("BATCH_P", base)))
		require.NoError(t, s.AppendEvents(ctx, divided("BATCH_P", base.Add(time.Minute), "BATCH_P_DIV1")))

		var got []core.Event
		require.NoError(t, s.Replay(ctx, func(ev core.Event) error {
			got = append(got, ev)
			return nil
		}))
		require.Len(t, got, 2)
		assert.Equal(t, "BATCH_P", got[0].SubjectID)
		require.NotNil(t, got[1].Division)
		assert.Equal(t, "BATCH_P_DIV1", got[1].Division.Children[0].BatchID)
		assert.Equal(t, "100", got[0].Metadata["quantity_kg"])
	})
}
