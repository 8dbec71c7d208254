package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adw-ith/hack25-spicechain/internal/app"
	"github.com/adw-ith/hack25-spicechain/internal/core"
)

func TestAppService_Spices(t *testing.T) {
	f := newFixture(t)
	spices := f.svc.Spices(context.Background())
	require.Len(t, spices, 7)
	assert.Equal(t, "Black Pepper", spices[0].Name)
	assert.Equal(t, 36, spices[0].ShelfLifeMonths)
	for i := 1; i < len(spices); i++ {
		assert.Less(t, spices[i-1].ID, spices[i].ID)
	}
}

func TestAppService_PackageInfo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root := f.register(t, "50")
	div, err := f.svc.DivideBatch(ctx, farmer, app.DivideBatchRequest{
		BatchID:   root.ID,
		Divisions: []app.DivisionInput{{Quantity: kg("20")}},
	})
	require.NoError(t, err)
	child := div.Children[0]

	pkg, err := f.svc.CreatePackage(ctx, farmer, app.CreatePackageRequest{BatchID: child.ID, Quantity: kg("5"), PackageType: "export"})
	require.NoError(t, err)

	info, err := f.svc.PackageInfo(ctx, pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, pkg.ID, info.PackageID)
	assert.Equal(t, "Black Pepper", info.SpiceName)
	assert.Equal(t, root.ID, info.OriginBatchID)
	assert.Equal(t, "Wayanad", info.FarmLocation)
	assert.Equal(t, "export", info.PackageType)
	assert.Equal(t, core.StatusCreated, info.Status)
	assert.True(t, kg("5").Equal(info.Quantity))
	require.NotNil(t, info.ExpiryDate)
	assert.True(t, info.PackageDate.AddDate(0, 36, 0).Equal(*info.ExpiryDate))
	assert.True(t, root.HarvestDate.Equal(info.HarvestDate))

	_, err = f.svc.PackageInfo(ctx, child.ID)
	assert.True(t, core.IsNotFound(err))
}

func TestAppService_Search(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root := f.register(t, "10")
	pkg, err := f.svc.CreatePackage(ctx, farmer, app.CreatePackageRequest{BatchID: root.ID, Quantity: kg("1")})
	require.NoError(t, err)

	res, err := f.svc.Search(ctx, app.SearchRequest{Query: "wayan"})
	require.NoError(t, err)
	require.Len(t, res.Batches, 1)
	assert.Equal(t, root.ID, res.Batches[0].BatchID)
	assert.Equal(t, core.StatusPackaged, res.Batches[0].Status)
	assert.Empty(t, res.Packages)

	res, err = f.svc.Search(ctx, app.SearchRequest{Query: pkg.ID, Type: "package"})
	require.NoError(t, err)
	assert.Nil(t, res.Batches)
	require.Len(t, res.Packages, 1)
	assert.Equal(t, "Black Pepper", res.Packages[0].SpiceName)

	for i := 0; i < 12; i++ {
		f.register(t, "1")
	}
	res, err = f.svc.Search(ctx, app.SearchRequest{Query: "BATCH_", Type: "batch"})
	require.NoError(t, err)
	assert.Len(t, res.Batches, 10)

	var vErr *core.ValidationError
	_, err = f.svc.Search(ctx, app.SearchRequest{Query: "ab"})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "q", vErr.Field)
	_, err = f.svc.Search(ctx, app.SearchRequest{Query: "abc", Type: "user"})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "type", vErr.Field)
}

func TestAppService_SpiceAnalytics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.register(t, "100")
	_, err := f.svc.RegisterBatch(ctx, farmer, app.RegisterBatchRequest{
		SpiceID: 1, Quantity: kg("40"), FarmLocation: "Wayanad", EstimatedGrade: "A",
		HarvestDate: time.Now().AddDate(-2, 0, 0),
	})
	require.NoError(t, err)
	_, err = f.svc.RegisterBatch(ctx, farmer, app.RegisterBatchRequest{
		SpiceID: 2, Quantity: kg("7"), FarmLocation: "Idukki", HarvestDate: time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	div, err := f.svc.DivideBatch(ctx, farmer, app.DivideBatchRequest{
		BatchID: a.ID,
		Divisions: []app.DivisionInput{
			{Quantity: kg("30"), BuyerID: distributor.UserID, PricePerKg: kg("10")},
			{Quantity: kg("30"), BuyerID: distributor.UserID, PricePerKg: kg("15.255")},
			{Quantity: kg("5"), BuyerID: distributor.UserID, PricePerKg: kg("99")},
		},
	})
	require.NoError(t, err)
	for _, txn := range div.Transactions[:2] {
		_, err = f.svc.CompleteTransaction(ctx, distributor, txn.ID)
		require.NoError(t, err)
	}

	res, err := f.svc.SpiceAnalytics(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Black Pepper", res.SpiceName)
	assert.Equal(t, 2, res.TotalBatches)
	assert.True(t, kg("140").Equal(res.TotalQuantity), res.TotalQuantity.String())
	assert.Equal(t, map[string]int{"A": 1, "B": 1}, res.GradeDistribution)
	assert.Equal(t, "12.63", res.AveragePricePerKg.String())

	require.Len(t, res.MonthlyHarvest, 12)
	month := a.HarvestDate.UTC().Format("2006-01")
	var total int
	for _, m := range res.MonthlyHarvest {
		total += m.Batches
		if m.Month == month {
			assert.True(t, kg("100").Equal(m.Quantity))
		}
	}
	assert.Equal(t, 1, total, "the two-year-old harvest falls outside the window")
	assert.Equal(t, time.Now().UTC().Format("2006-01"), res.MonthlyHarvest[11].Month)

	_, err = f.svc.SpiceAnalytics(ctx, 42)
	assert.True(t, core.IsNotFound(err))
}
