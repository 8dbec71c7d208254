package app

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/adw-ith/hack25-spicechain/internal/core"
)

// HoldingView joins a holding with its immutable record.
type HoldingView struct {
	core.Holding
	Batch   *core.Batch   `json:"batch,omitempty"`
	Package *core.Package `json:"package,omitempty"`
}

// HoldingListResult is returned by MyBatches, AvailableBatches and MyPackages.
type HoldingListResult struct {
	Items []HoldingView `json:"items"`
	Total int           `json:"total"`
}

// TransactionListResult is returned by MyTransactions.
type TransactionListResult struct {
	Transactions []core.Transaction `json:"transactions"`
	Page         int                `json:"page"`
	PageSize     int                `json:"page_size"`
	Total        int                `json:"total"`
}

// DashboardResult is returned by Dashboard.
type DashboardResult struct {
	UserID            string          `json:"user_id"`
	Role              core.Role       `json:"role"`
	Batches           int             `json:"batches"`
	Packages          int             `json:"packages"`
	AvailableKg       decimal.Decimal `json:"available_kg"`
	IncomingPending   int             `json:"incoming_pending"`
	OutgoingPending   int             `json:"outgoing_pending"`
	CompletedSales    int             `json:"completed_sales"`
	CompletedPurchase int             `json:"completed_purchases"`
}

// VerifyResult is returned by Verify.
type VerifyResult struct {
	LastSeq    int64            `json:"last_seq"`
	Replayed   bool             `json:"replayed"`
	Violations []core.Violation `json:"violations"`
}

// OK reports whether every holding balances.
func (r *VerifyResult) OK() bool { return len(r.Violations) == 0 }

// HealthResult is returned by Health.
type HealthResult struct {
	Status      string    `json:"status"`
	LastSeq     int64     `json:"last_seq"`
	LastEventAt time.Time `json:"last_event_at,omitempty"`
	Uptime      string    `json:"uptime"`
}

// PackageInfo is the public consumer view of a package: what it is, where it
// was grown and when it expires. It backs the QR lookup page.
type PackageInfo struct {
	PackageID      string          `json:"package_id"`
	SpiceName      string          `json:"spice_name"`
	Quantity       decimal.Decimal `json:"quantity_kg"`
	PackageType    string          `json:"package_type"`
	Status         core.Status     `json:"status"`
	PackageDate    time.Time       `json:"package_date"`
	ExpiryDate     *time.Time      `json:"expiry_date"`
	OriginBatchID  string          `json:"origin_batch_id"`
	FarmLocation   string          `json:"farm_location"`
	FarmingMethod  string          `json:"farming_method"`
	EstimatedGrade string          `json:"estimated_grade"`
	HarvestDate    time.Time       `json:"harvest_date"`
}

type SearchBatch struct {
	BatchID      string          `json:"batch_id"`
	SpiceName    string          `json:"spice_name"`
	FarmerID     string          `json:"farmer_id"`
	FarmLocation string          `json:"farm_location"`
	Quantity     decimal.Decimal `json:"quantity_kg"`
	Status       core.Status     `json:"status"`
}

type SearchPackage struct {
	PackageID   string          `json:"package_id"`
	SpiceName   string          `json:"spice_name"`
	Quantity    decimal.Decimal `json:"quantity_kg"`
	Status      core.Status     `json:"status"`
	PackageType string          `json:"package_type"`
}

// SearchResult is returned by Search. Kinds that were not searched are nil.
type SearchResult struct {
	Batches  []SearchBatch   `json:"batches,omitempty"`
	Packages []SearchPackage `json:"packages,omitempty"`
}

// MonthlyHarvest is one calendar month of registered harvest.
type MonthlyHarvest struct {
	Month    string          `json:"month"` // YYYY-MM
	Quantity decimal.Decimal `json:"quantity_kg"`
	Batches  int             `json:"batch_count"`
}

// SpiceAnalyticsResult is returned by SpiceAnalytics.
type SpiceAnalyticsResult struct {
	SpiceID           int              `json:"spice_id"`
	SpiceName         string           `json:"spice_name"`
	TotalQuantity     decimal.Decimal  `json:"total_quantity_kg"`
	TotalBatches      int              `json:"total_batches"`
	AveragePricePerKg decimal.Decimal  `json:"average_price_per_kg"`
	GradeDistribution map[string]int   `json:"grade_distribution"`
	MonthlyHarvest    []MonthlyHarvest `json:"monthly_harvest"`
}
