package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adw-ith/hack25-spicechain/internal/core"
)

func journeyTypes(p *core.Provenance) []core.EventType {
	out := make([]core.EventType, len(p.Journey))
	for i, e := range p.Journey {
		out[i] = e.EventType
	}
	return out
}

func TestTrace_EndToEnd(t *testing.T) {
	l, store := newLedger(t)
	ctx := context.Background()
	tracer := core.NewTracer(store, l.Projection())

	root := register(t, l, "100")
	res, err := l.RecordDivision(ctx, farmer, root.ID, shares("60", "40"))
	require.NoError(t, err)
	a := res.Children[0]

	txn, err := l.RecordTransfer(ctx, farmer, core.TransferSpec{ItemID: a.ID, ToUserID: distributor.UserID, PricePerKg: kg("410")})
	require.NoError(t, err)
	_, err = l.CompleteTransfer(ctx, distributor, txn.ID)
	require.NoError(t, err)

	pkg, err := l.RecordPackaging(ctx, distributor, core.PackageSpec{SourceBatchID: a.ID, Quantity: kg("60")})
	require.NoError(t, err)

	p, err := tracer.Trace(ctx, pkg.ID)
	require.NoError(t, err)

	assert.Equal(t, core.KindPackage, p.Kind)
	require.NotNil(t, p.Package)
	assert.Equal(t, root.ID, p.Origin.BatchID)
	assert.Equal(t, farmer.UserID, p.Origin.FarmerID)
	assert.True(t, kg("100").Equal(p.Origin.Quantity))
	assert.Equal(t, "Idukki, Kerala", p.Origin.FarmLocation)
	assert.False(t, p.Origin.HarvestDate.After(p.Package.CreatedAt))
	assert.Equal(t, []string{root.ID, a.ID, pkg.ID}, p.Path)

	assert.Equal(t, []core.EventType{
		core.EventBatchDivided,
		core.EventTransferCompleted,
		core.EventPackageCreated,
	}, journeyTypes(p))
	for i := 1; i < len(p.Journey); i++ {
		assert.True(t, p.Journey[i].Timestamp.After(p.Journey[i-1].Timestamp), "journey must be strictly ascending")
	}
	assert.Equal(t, txn.ID, p.Journey[1].ContextID)
	assert.Equal(t, distributor.UserID, p.Journey[1].User)
	assert.Equal(t, pkg.ID, p.Journey[2].ContextID)

	history, err := tracer.History(ctx, pkg.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, farmer.UserID, history[0].From)
	assert.Equal(t, distributor.UserID, history[0].To)
	assert.True(t, kg("60").Equal(history[0].Quantity))
}

func TestTrace_MultipleDivisionsAndOwners(t *testing.T) {
	l, store := newLedger(t)
	ctx := context.Background()
	tracer := core.NewTracer(store, l.Projection())

	root := register(t, l, "500")
	first, err := l.RecordDivision(ctx, farmer, root.ID, shares("200", "100"))
	require.NoError(t, err)
	mid := first.Children[0]

	txn, err := l.RecordTransfer(ctx, farmer, core.TransferSpec{ItemID: mid.ID, ToUserID: distributor.UserID, PricePerKg: kg("5")})
	require.NoError(t, err)
	_, err = l.CompleteTransfer(ctx, distributor, txn.ID)
	require.NoError(t, err)

	second, err := l.RecordDivision(ctx, distributor, mid.ID, shares("50"))
	require.NoError(t, err)
	leaf := second.Children[0]

	txn2, err := l.RecordTransfer(ctx, distributor, core.TransferSpec{ItemID: leaf.ID, ToUserID: consumer.UserID, PricePerKg: kg("9")})
	require.NoError(t, err)
	_, err = l.CompleteTransfer(ctx, consumer, txn2.ID)
	require.NoError(t, err)

	// Activity on ancestors after the leaf split off belongs to other lineages.
	_, err = l.RecordDivision(ctx, farmer, root.ID, shares("10"))
	require.NoError(t, err)
	_, err = l.RecordPackaging(ctx, distributor, core.PackageSpec{SourceBatchID: mid.ID, Quantity: kg("20")})
	require.NoError(t, err)
	rejected, err := l.RecordTransfer(ctx, farmer, core.TransferSpec{ItemID: first.Children[1].ID, ToUserID: distributor.UserID, PricePerKg: kg("1")})
	require.NoError(t, err)
	_, err = l.RejectTransfer(ctx, distributor, rejected.ID)
	require.NoError(t, err)

	p, err := tracer.Trace(ctx, leaf.ID)
	require.NoError(t, err)
	assert.Equal(t, core.KindBatch, p.Kind)
	assert.Equal(t, root.ID, p.Origin.BatchID)
	assert.Equal(t, []string{root.ID, mid.ID, leaf.ID}, p.Path)
	assert.Equal(t, []core.EventType{
		core.EventBatchDivided,
		core.EventTransferCompleted,
		core.EventBatchDivided,
		core.EventTransferCompleted,
	}, journeyTypes(p))
	require.NotNil(t, p.Current)
	assert.Equal(t, consumer.UserID, p.Current.OwnerID)

	history, err := tracer.History(ctx, leaf.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, []string{farmer.UserID, distributor.UserID}, []string{history[0].From, history[1].From})
	assert.Equal(t, []string{distributor.UserID, consumer.UserID}, []string{history[0].To, history[1].To})

	fam, err := tracer.Family(ctx, leaf.ID)
	require.NoError(t, err)
	assert.Equal(t, root.ID, fam.Root.ID)
	assert.Len(t, fam.Batches, 5) // root, two first-level children, leaf, late child
	assert.Len(t, fam.Packages, 1)
	for i := 1; i < len(fam.Timeline); i++ {
		assert.False(t, fam.Timeline[i].Timestamp.Before(fam.Timeline[i-1].Timestamp))
	}
	assert.Equal(t, core.EventBatchRegistered, fam.Timeline[0].EventType)
}

func TestTrace_PendingTransferShowsOnce(t *testing.T) {
	l, store := newLedger(t)
	ctx := context.Background()
	tracer := core.NewTracer(store, l.Projection())

	root := register(t, l, "8")
	txn, err := l.RecordTransfer(ctx, farmer, core.TransferSpec{ItemID: root.ID, ToUserID: distributor.UserID, PricePerKg: kg("2")})
	require.NoError(t, err)

	p, err := tracer.Trace(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, p.Journey, 1)
	assert.Equal(t, core.EventTransferInitiated, p.Journey[0].EventType)

	_, err = l.RejectTransfer(ctx, farmer, txn.ID)
	require.NoError(t, err)
	p, err = tracer.Trace(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, p.Journey, 1)
	assert.Equal(t, core.EventTransferRejected, p.Journey[0].EventType)
}

func TestTrace_Errors(t *testing.T) {
	l, store := newLedger(t)
	ctx := context.Background()
	tracer := core.NewTracer(store, l.Projection())

	_, err := tracer.Trace(ctx, "PKG_UNKNOWN")
	assert.True(t, core.IsNotFound(err))

	root := register(t, l, "8")
	txn, err := l.RecordTransfer(ctx, farmer, core.TransferSpec{ItemID: root.ID, ToUserID: distributor.UserID, PricePerKg: kg("2")})
	require.NoError(t, err)
	_, err = tracer.Trace(ctx, txn.ID)
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)

	p, err := tracer.Trace(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{root.ID}, p.Path)
	assert.True(t, p.Origin.RegisteredAt.Equal(root.CreatedAt))
}
