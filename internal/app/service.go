package app

import (
	"context"

	"github.com/adw-ith/hack25-spicechain/internal/core"
)

// ApplicationService is the single interface all adapters (HTTP, CLI) call.
// It decouples presentation from the ledger. Implementations contain no
// display logic of any kind.
type ApplicationService interface {
	// RegisterBatch records a freshly harvested root batch owned by the calling farmer.
	RegisterBatch(ctx context.Context, who core.Identity, req RegisterBatchRequest) (*core.Batch, error)

	// DivideBatch splits part of a batch into child batches, optionally
	// initiating a sale of each child in the same append.
	DivideBatch(ctx context.Context, who core.Identity, req DivideBatchRequest) (*core.DivisionResult, error)

	// InitiateTransfer opens a pending sale or transfer of a batch or package.
	InitiateTransfer(ctx context.Context, who core.Identity, req TransferRequest) (*core.Transaction, error)

	// CompleteTransaction accepts a pending transfer on behalf of the buyer.
	CompleteTransaction(ctx context.Context, who core.Identity, txnID string) (*core.Transaction, error)

	// RejectTransaction cancels a pending transfer and restores the reserved quantity.
	RejectTransaction(ctx context.Context, who core.Identity, txnID string) (*core.Transaction, error)

	// CreatePackage packages part of a batch into a terminal package.
	CreatePackage(ctx context.Context, who core.Identity, req CreatePackageRequest) (*core.Package, error)

	// ShipPackage moves a package from created to shipped.
	ShipPackage(ctx context.Context, who core.Identity, packageID string) (*core.Holding, error)

	// Trace reconstructs the provenance of a batch or package back to its root.
	Trace(ctx context.Context, id string) (*core.Provenance, error)

	// History lists the completed ownership changes along the lineage of id.
	History(ctx context.Context, id string) ([]core.OwnershipChange, error)

	// Family returns every batch and package descended from the root of id.
	Family(ctx context.Context, id string) (*core.Family, error)

	// MyBatches lists the batches the caller currently owns.
	MyBatches(ctx context.Context, who core.Identity) (*HoldingListResult, error)

	// AvailableBatches lists the caller's batches that still have quantity to
	// divide, package or sell.
	AvailableBatches(ctx context.Context, who core.Identity) (*HoldingListResult, error)

	// MyPackages lists the packages the caller currently owns.
	MyPackages(ctx context.Context, who core.Identity) (*HoldingListResult, error)

	// MyTransactions pages through the transactions the caller is a party to, newest first.
	MyTransactions(ctx context.Context, who core.Identity, page Page) (*TransactionListResult, error)

	// Dashboard summarises the caller's holdings and open transfers.
	Dashboard(ctx context.Context, who core.Identity) (*DashboardResult, error)

	// Spices lists the spice catalog batches are registered against.
	Spices(ctx context.Context) []core.Spice

	// PackageInfo is the public consumer lookup of a package and its origin.
	PackageInfo(ctx context.Context, packageID string) (*PackageInfo, error)

	// Search finds batches by id or farm location and packages by id.
	Search(ctx context.Context, req SearchRequest) (*SearchResult, error)

	// SpiceAnalytics summarises registered harvest and sale prices of one spice.
	SpiceAnalytics(ctx context.Context, spiceID int) (*SpiceAnalyticsResult, error)

	// Verify checks the conservation invariant on every holding. With replay
	// set it first rebuilds a fresh projection from the store.
	Verify(ctx context.Context, replay bool) (*VerifyResult, error)

	// Health reports the projection's position in the ledger.
	Health(ctx context.Context) *HealthResult
}
