package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/adw-ith/hack25-spicechain/internal/app"
	"github.com/adw-ith/hack25-spicechain/internal/core"
	"github.com/adw-ith/hack25-spicechain/internal/lock"
	"github.com/adw-ith/hack25-spicechain/internal/metrics"
	"github.com/adw-ith/hack25-spicechain/internal/store/memstore"
)

var (
	farmer      = core.Identity{UserID: "11", Role: core.RoleFarmer}
	distributor = core.Identity{UserID: "12", Role: core.RoleDistributor}
)

func kg(v string) decimal.Decimal { return decimal.RequireFromString(v) }

type fixture struct {
	svc     app.ApplicationService
	logs    *observer.ObservedLogs
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	l, err := core.OpenLedger(context.Background(), memstore.New(), lock.NewKeyed())
	require.NoError(t, err)
	observed, logs := observer.New(zapcore.DebugLevel)
	m := metrics.New()
	return fixture{svc: app.NewAppService(l, zap.New(observed), m), logs: logs, metrics: m}
}

func (f fixture) register(t *testing.T, qty string) *core.Batch {
	t.Helper()
	b, err := f.svc.RegisterBatch(context.Background(), farmer, app.RegisterBatchRequest{
		SpiceID:      1,
		Quantity:     kg(qty),
		FarmLocation: "Wayanad",
		HarvestDate:  time.Now().Add(-24 * time.Hour),
	})
	require.NoError(t, err)
	return b
}

func TestAppService_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root := f.register(t, "100")
	div, err := f.svc.DivideBatch(ctx, farmer, app.DivideBatchRequest{
		BatchID: root.ID,
		Divisions: []app.DivisionInput{
			{Quantity: kg("60"), BuyerID: distributor.UserID, PricePerKg: kg("300")},
			{Quantity: kg("40")},
		},
	})
	require.NoError(t, err)
	require.Len(t, div.Transactions, 1)

	dash, err := f.svc.Dashboard(ctx, distributor)
	require.NoError(t, err)
	assert.Equal(t, 1, dash.IncomingPending)
	assert.Equal(t, 0, dash.Batches)

	_, err = f.svc.CompleteTransaction(ctx, distributor, div.Transactions[0].ID)
	require.NoError(t, err)

	mine, err := f.svc.MyBatches(ctx, distributor)
	require.NoError(t, err)
	require.Equal(t, 1, mine.Total)
	require.NotNil(t, mine.Items[0].Batch)
	assert.Equal(t, root.ID, mine.Items[0].Batch.ParentBatchID)

	pkg, err := f.svc.CreatePackage(ctx, distributor, app.CreatePackageRequest{BatchID: div.Children[0].ID, Quantity: kg("60")})
	require.NoError(t, err)
	_, err = f.svc.ShipPackage(ctx, distributor, pkg.ID)
	require.NoError(t, err)

	avail, err := f.svc.AvailableBatches(ctx, distributor)
	require.NoError(t, err)
	assert.Zero(t, avail.Total, "fully packaged batch is not available")

	pkgs, err := f.svc.MyPackages(ctx, distributor)
	require.NoError(t, err)
	require.Equal(t, 1, pkgs.Total)
	assert.Equal(t, core.StatusShipped, pkgs.Items[0].Status)

	p, err := f.svc.Trace(ctx, pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, root.ID, p.Origin.BatchID)

	history, err := f.svc.History(ctx, pkg.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	fam, err := f.svc.Family(ctx, root.ID)
	require.NoError(t, err)
	assert.Len(t, fam.Batches, 3)

	dash, err = f.svc.Dashboard(ctx, farmer)
	require.NoError(t, err)
	assert.Equal(t, 1, dash.CompletedSales)
	assert.True(t, kg("40").Equal(dash.AvailableKg))

	for _, replay := range []bool{false, true} {
		res, err := f.svc.Verify(ctx, replay)
		require.NoError(t, err)
		assert.True(t, res.OK())
		assert.Positive(t, res.LastSeq)
	}

	health := f.svc.Health(ctx)
	assert.Equal(t, "ok", health.Status)
	assert.Positive(t, health.LastSeq)
}

func TestAppService_AuditsOutcomes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root := f.register(t, "50")
	_, err := f.svc.DivideBatch(ctx, farmer, app.DivideBatchRequest{
		BatchID:   root.ID,
		Divisions: []app.DivisionInput{{Quantity: kg("80")}},
	})
	var conflict *core.ConflictError
	require.ErrorAs(t, err, &conflict)

	rejected := f.logs.FilterMessage("ledger operation rejected").All()
	require.Len(t, rejected, 1)
	fields := rejected[0].ContextMap()
	assert.Equal(t, "divide", fields["operation"])
	assert.Equal(t, "conflict", fields["outcome"])
	assert.Equal(t, root.ID, fields["batch_id"])

	recorded := f.logs.FilterMessage("ledger operation recorded").FilterField(zap.String("operation", "register"))
	assert.Equal(t, 1, recorded.Len())

	n, err := testutil.GatherAndCount(f.metrics.Registry(), "spicechain_ledger_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAppService_TransactionPaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		b := f.register(t, "10")
		_, err := f.svc.InitiateTransfer(ctx, farmer, app.TransferRequest{ItemID: b.ID, BuyerID: distributor.UserID, PricePerKg: kg("3")})
		require.NoError(t, err)
	}

	page, err := f.svc.MyTransactions(ctx, distributor, app.Page{Number: 2, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Len(t, page.Transactions, 2)

	last, err := f.svc.MyTransactions(ctx, distributor, app.Page{Number: 3, Size: 2})
	require.NoError(t, err)
	assert.Len(t, last.Transactions, 1)

	beyond, err := f.svc.MyTransactions(ctx, distributor, app.Page{Number: 9, Size: 2})
	require.NoError(t, err)
	assert.Empty(t, beyond.Transactions)

	def, err := f.svc.MyTransactions(ctx, farmer, app.Page{})
	require.NoError(t, err)
	assert.Equal(t, 1, def.Page)
	assert.Equal(t, 20, def.PageSize)
	assert.Len(t, def.Transactions, 5)
	for i := 1; i < len(def.Transactions); i++ {
		assert.False(t, def.Transactions[i].CreatedAt.After(def.Transactions[i-1].CreatedAt))
	}

	_, err = f.svc.RejectTransaction(ctx, distributor, def.Transactions[0].ID)
	require.NoError(t, err)
	dash, err := f.svc.Dashboard(ctx, farmer)
	require.NoError(t, err)
	assert.Equal(t, 4, dash.OutgoingPending)
}
