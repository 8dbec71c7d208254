package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntityKind identifies which arena an id lives in.
type EntityKind string

const (
	KindBatch       EntityKind = "batch"
	KindPackage     EntityKind = "package"
	KindTransaction EntityKind = "transaction"
)

// Status is the lifecycle state of a batch or package.
//
// Batches move through:
//
//	registered → {divided, transfer-pending, packaged}
//	transfer-pending → transferred (accept) | previous status (reject)
//
// Packages move through created → shipped → sold. A pending transfer of a
// package keeps its status and is visible through Holding.PendingTxn.
type Status string

const (
	StatusRegistered      Status = "registered"
	StatusDivided         Status = "divided"
	StatusTransferPending Status = "transfer-pending"
	StatusTransferred     Status = "transferred"
	StatusPackaged        Status = "packaged"
	StatusSold            Status = "sold"
	StatusCreated         Status = "created"
	StatusShipped         Status = "shipped"
)

// TxnStatus is the lifecycle state of a transaction.
type TxnStatus string

const (
	TxnPending   TxnStatus = "pending"
	TxnCompleted TxnStatus = "completed"
	TxnRejected  TxnStatus = "rejected"
)

// Batch is the immutable registration record of a tracked quantity of one spice.
// Owner, status and available quantity are projections; see Holding.
type Batch struct {
	ID             string          `json:"batch_id"`
	ParentBatchID  string          `json:"parent_batch_id,omitempty"`
	SpiceID        int             `json:"spice_id"`
	FarmerID       string          `json:"farmer_id"`
	FarmLocation   string          `json:"farm_location"`
	FarmingMethod  string          `json:"farming_method"`
	EstimatedGrade string          `json:"estimated_grade"`
	HarvestDate    time.Time       `json:"harvest_date"`
	Quantity       decimal.Decimal `json:"quantity_kg"`
	CreatedAt      time.Time       `json:"created_at"`
}

// IsRoot reports whether the batch was registered rather than split off a parent.
func (b *Batch) IsRoot() bool { return b.ParentBatchID == "" }

// Package is a terminal, non-divisible unit drawn from exactly one batch.
type Package struct {
	ID            string          `json:"package_id"`
	SourceBatchID string          `json:"batch_id"`
	PackagerID    string          `json:"packager_id"`
	PackageType   string          `json:"package_type"`
	Quantity      decimal.Decimal `json:"quantity_kg"`
	CreatedAt     time.Time       `json:"package_date"`
	ExpiryDate    *time.Time      `json:"expiry_date,omitempty"`
}

// Transaction is an ownership-change request. Its Status field is a snapshot
// taken when read from the projection; the stored record is the initiation.
type Transaction struct {
	ID              string          `json:"transaction_id"`
	FromUserID      string          `json:"from_user_id"`
	ToUserID        string          `json:"to_user_id"`
	ItemID          string          `json:"item_id"`
	ItemKind        EntityKind      `json:"item_type"`
	Quantity        decimal.Decimal `json:"quantity_kg"`
	PricePerKg      decimal.Decimal `json:"price_per_kg"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	TransactionType string          `json:"transaction_type"`
	Notes           string          `json:"notes,omitempty"`
	SourceStatus    Status          `json:"source_status,omitempty"`
	Status          TxnStatus       `json:"payment_status"`
	CreatedAt       time.Time       `json:"transaction_date"`
	ResolvedAt      *time.Time      `json:"resolved_at,omitempty"`
}

// ChildShare is one (child batch, quantity) pair of a division.
type ChildShare struct {
	BatchID  string          `json:"batch_id"`
	Quantity decimal.Decimal `json:"quantity_kg"`
}

// Division records one split of a parent batch.
type Division struct {
	ID            string       `json:"division_id"`
	ParentBatchID string       `json:"parent_batch_id"`
	Children      []ChildShare `json:"children"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Total returns the quantity removed from the parent by the division.
func (d *Division) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, c := range d.Children {
		sum = sum.Add(c.Quantity)
	}
	return sum
}

// BatchSpec is the input for registering a new root batch.
type BatchSpec struct {
	SpiceID        int
	Quantity       decimal.Decimal
	FarmLocation   string
	FarmingMethod  string
	EstimatedGrade string
	HarvestDate    time.Time
}

// ChildSpec is one requested share of a division. BuyerID and PricePerKg,
// when both set, initiate a pending sale of the new child in the same append.
type ChildSpec struct {
	Quantity   decimal.Decimal
	BuyerID    string
	PricePerKg decimal.Decimal
}

// TransferSpec is the input for initiating an ownership change.
// A zero Quantity means "everything currently available".
type TransferSpec struct {
	ItemID          string
	ToUserID        string
	Quantity        decimal.Decimal
	PricePerKg      decimal.Decimal
	TransactionType string
	Notes           string
}

// PackageSpec is the input for packaging part of a batch.
type PackageSpec struct {
	SourceBatchID string
	Quantity      decimal.Decimal
	PackageType   string
}

// Entity is the tagged union returned by EntityStore.GetEntity.
type Entity struct {
	Kind        EntityKind
	Batch       *Batch
	Package     *Package
	Transaction *Transaction
}
