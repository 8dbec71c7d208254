package app

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/adw-ith/hack25-spicechain/internal/core"
)

const (
	searchMinLength = 3
	searchLimit     = 10
	harvestMonths   = 12
)

func (s *appService) Spices(ctx context.Context) []core.Spice {
	return s.ledger.Catalog().List()
}

func (s *appService) spiceName(id int) string {
	if sp, ok := s.ledger.Catalog().Spice(id); ok {
		return sp.Name
	}
	return ""
}

func (s *appService) PackageInfo(ctx context.Context, packageID string) (*PackageInfo, error) {
	proj := s.ledger.Projection()
	pkg, ok := proj.Package(packageID)
	if !ok {
		return nil, &core.NotFoundError{Kind: core.KindPackage, ID: packageID}
	}
	h, err := proj.Holding(packageID)
	if err != nil {
		return nil, err
	}
	src, ok := proj.Batch(pkg.SourceBatchID)
	if !ok {
		return nil, &core.NotFoundError{Kind: core.KindBatch, ID: pkg.SourceBatchID}
	}
	origin := src
	for !origin.IsRoot() {
		parent, ok := proj.Batch(origin.ParentBatchID)
		if !ok {
			return nil, &core.NotFoundError{Kind: core.KindBatch, ID: origin.ParentBatchID}
		}
		origin = parent
	}

	return &PackageInfo{
		PackageID:      pkg.ID,
		SpiceName:      s.spiceName(src.SpiceID),
		Quantity:       pkg.Quantity,
		PackageType:    pkg.PackageType,
		Status:         h.Status,
		PackageDate:    pkg.CreatedAt,
		ExpiryDate:     pkg.ExpiryDate,
		OriginBatchID:  origin.ID,
		FarmLocation:   origin.FarmLocation,
		FarmingMethod:  src.FarmingMethod,
		EstimatedGrade: src.EstimatedGrade,
		HarvestDate:    origin.HarvestDate,
	}, nil
}

func (s *appService) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	q := strings.ToLower(strings.TrimSpace(req.Query))
	if len(q) < searchMinLength {
		return nil, &core.ValidationError{Field: "q", Message: "query must be at least 3 characters long"}
	}
	kind := req.Type
	if kind == "" {
		kind = "all"
	}
	if kind != "all" && kind != "batch" && kind != "package" {
		return nil, &core.ValidationError{Field: "type", Message: "must be batch, package or all"}
	}

	proj := s.ledger.Projection()
	res := &SearchResult{}
	if kind == "all" || kind == "batch" {
		res.Batches = []SearchBatch{}
		for _, b := range proj.ListBatches() {
			if len(res.Batches) == searchLimit {
				break
			}
			if !strings.Contains(strings.ToLower(b.ID), q) && !strings.Contains(strings.ToLower(b.FarmLocation), q) {
				continue
			}
			h, _ := proj.Holding(b.ID)
			res.Batches = append(res.Batches, SearchBatch{
				BatchID:      b.ID,
				SpiceName:    s.spiceName(b.SpiceID),
				FarmerID:     b.FarmerID,
				FarmLocation: b.FarmLocation,
				Quantity:     b.Quantity,
				Status:       h.Status,
			})
		}
	}
	if kind == "all" || kind == "package" {
		res.Packages = []SearchPackage{}
		for _, p := range proj.ListPackages() {
			if len(res.Packages) == searchLimit {
				break
			}
			if !strings.Contains(strings.ToLower(p.ID), q) {
				continue
			}
			h, _ := proj.Holding(p.ID)
			src, _ := proj.Batch(p.SourceBatchID)
			res.Packages = append(res.Packages, SearchPackage{
				PackageID:   p.ID,
				SpiceName:   s.spiceName(src.SpiceID),
				Quantity:    p.Quantity,
				Status:      h.Status,
				PackageType: p.PackageType,
			})
		}
	}
	return res, nil
}

// SpiceAnalytics aggregates registered harvest of one spice. Only root
// batches count towards quantity, grades and monthly harvest; split-off
// children would count the same kilograms twice.
func (s *appService) SpiceAnalytics(ctx context.Context, spiceID int) (*SpiceAnalyticsResult, error) {
	spice, ok := s.ledger.Catalog().Spice(spiceID)
	if !ok {
		return nil, &core.NotFoundError{Kind: "spice", ID: strconv.Itoa(spiceID)}
	}
	proj := s.ledger.Projection()

	now := time.Now().UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(harvestMonths - 1), 0)
	months := make([]MonthlyHarvest, harvestMonths)
	for i := range months {
		months[i] = MonthlyHarvest{Month: first.AddDate(0, i, 0).Format("2006-01"), Quantity: decimal.Zero}
	}

	res := &SpiceAnalyticsResult{
		SpiceID:           spice.ID,
		SpiceName:         spice.Name,
		TotalQuantity:     decimal.Zero,
		AveragePricePerKg: decimal.Zero,
		GradeDistribution: map[string]int{},
	}
	ofSpice := make(map[string]bool)
	for _, b := range proj.ListBatches() {
		if b.SpiceID != spiceID {
			continue
		}
		ofSpice[b.ID] = true
		if !b.IsRoot() {
			continue
		}
		res.TotalBatches++
		res.TotalQuantity = res.TotalQuantity.Add(b.Quantity)
		grade := b.EstimatedGrade
		if grade == "" {
			grade = "Unknown"
		}
		res.GradeDistribution[grade]++

		h := b.HarvestDate.UTC()
		idx := (h.Year()-first.Year())*12 + int(h.Month()) - int(first.Month())
		if idx >= 0 && idx < harvestMonths {
			months[idx].Quantity = months[idx].Quantity.Add(b.Quantity)
			months[idx].Batches++
		}
	}
	res.MonthlyHarvest = months

	for _, p := range proj.ListPackages() {
		if ofSpice[p.SourceBatchID] {
			ofSpice[p.ID] = true
		}
	}
	var prices []decimal.Decimal
	for _, t := range proj.ListTransactions() {
		if ofSpice[t.ItemID] && t.Status == core.TxnCompleted && t.TransactionType == "sale" {
			prices = append(prices, t.PricePerKg)
		}
	}
	if len(prices) > 0 {
		res.AveragePricePerKg = decimal.Avg(prices[0], prices[1:]...).Round(2)
	}
	return res, nil
}

