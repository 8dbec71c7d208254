package app

import (
	"time"

	"github.com/shopspring/decimal"
)

// RegisterBatchRequest is the input for registering a harvested batch.
type RegisterBatchRequest struct {
	SpiceID        int
	Quantity       decimal.Decimal
	FarmLocation   string
	FarmingMethod  string
	EstimatedGrade string
	HarvestDate    time.Time
}

// DivideBatchRequest is the input for splitting a batch.
type DivideBatchRequest struct {
	BatchID   string
	Divisions []DivisionInput
}

// DivisionInput is one requested child of a DivideBatchRequest.
type DivisionInput struct {
	Quantity   decimal.Decimal
	BuyerID    string          // optional: initiates a sale of the child
	PricePerKg decimal.Decimal // required when BuyerID is set
}

// TransferRequest is the input for initiating a sale or transfer.
type TransferRequest struct {
	ItemID          string
	BuyerID         string
	Quantity        decimal.Decimal // zero means "everything available"
	PricePerKg      decimal.Decimal
	TransactionType string // "sale" (default) or "transfer"
	Notes           string
}

// CreatePackageRequest is the input for packaging part of a batch.
type CreatePackageRequest struct {
	BatchID     string
	Quantity    decimal.Decimal
	PackageType string
}

// Page selects a window of a list. Zero values mean first page, default size.
type Page struct {
	Number int
	Size   int
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func (p Page) normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = defaultPageSize
	}
	if p.Size > maxPageSize {
		p.Size = maxPageSize
	}
	return p
}

// SearchRequest matches Query against batch ids, farm locations and package
// ids. Type is batch, package or all (the default).
type SearchRequest struct {
	Query string
	Type  string
}
