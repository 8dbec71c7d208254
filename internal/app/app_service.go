package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/adw-ith/hack25-spicechain/internal/core"
	"github.com/adw-ith/hack25-spicechain/internal/metrics"
)

type appService struct {
	ledger  *core.Ledger
	tracer  core.TracerService
	log     *zap.Logger
	metrics *metrics.Metrics
	started time.Time
}

// NewAppService constructs an appService that satisfies ApplicationService.
// m may be nil when metrics are disabled.
func NewAppService(ledger *core.Ledger, log *zap.Logger, m *metrics.Metrics) ApplicationService {
	return &appService{
		ledger:  ledger,
		tracer:  core.NewTracer(ledger.Store(), ledger.Projection()),
		log:     log.Named("app"),
		metrics: m,
		started: time.Now(),
	}
}

// audit records the outcome of one mutating operation in the log and metrics.
func (s *appService) audit(op string, who core.Identity, kg decimal.Decimal, err error, fields ...zap.Field) {
	s.metrics.Operation(op, kg.InexactFloat64(), err)
	fields = append(fields,
		zap.String("operation", op),
		zap.String("user_id", who.UserID),
		zap.String("role", string(who.Role)),
		zap.String("quantity_kg", kg.String()),
	)
	switch outcome := metrics.Outcome(err); outcome {
	case "ok":
		s.log.Info("ledger operation recorded", fields...)
	case "error":
		s.log.Error("ledger operation failed", append(fields, zap.Error(err))...)
	default:
		s.log.Warn("ledger operation rejected", append(fields, zap.String("outcome", outcome), zap.Error(err))...)
	}
}

// RegisterBatch records a harvested root batch.
func (s *appService) RegisterBatch(ctx context.Context, who core.Identity, req RegisterBatchRequest) (*core.Batch, error) {
	b, err := s.ledger.RegisterBatch(ctx, who, core.BatchSpec{
		SpiceID:        req.SpiceID,
		Quantity:       req.Quantity,
		FarmLocation:   req.FarmLocation,
		FarmingMethod:  req.FarmingMethod,
		EstimatedGrade: req.EstimatedGrade,
		HarvestDate:    req.HarvestDate,
	})
	var id string
	if b != nil {
		id = b.ID
	}
	s.audit("register", who, req.Quantity, err, zap.String("batch_id", id))
	return b, err
}

// DivideBatch splits a batch into children.
func (s *appService) DivideBatch(ctx context.Context, who core.Identity, req DivideBatchRequest) (*core.DivisionResult, error) {
	specs := make([]core.ChildSpec, len(req.Divisions))
	total := decimal.Zero
	for i, d := range req.Divisions {
		specs[i] = core.ChildSpec{Quantity: d.Quantity, BuyerID: d.BuyerID, PricePerKg: d.PricePerKg}
		total = total.Add(d.Quantity)
	}
	res, err := s.ledger.RecordDivision(ctx, who, req.BatchID, specs)
	s.audit("divide", who, total, err,
		zap.String("batch_id", req.BatchID),
		zap.Int("divisions", len(req.Divisions)),
	)
	return res, err
}

// InitiateTransfer opens a pending transfer.
func (s *appService) InitiateTransfer(ctx context.Context, who core.Identity, req TransferRequest) (*core.Transaction, error) {
	t, err := s.ledger.RecordTransfer(ctx, who, core.TransferSpec{
		ItemID:          req.ItemID,
		ToUserID:        req.BuyerID,
		Quantity:        req.Quantity,
		PricePerKg:      req.PricePerKg,
		TransactionType: req.TransactionType,
		Notes:           req.Notes,
	})
	kg, txnID := req.Quantity, ""
	if t != nil {
		kg, txnID = t.Quantity, t.ID
	}
	s.audit("transfer", who, kg, err,
		zap.String("item_id", req.ItemID),
		zap.String("buyer_id", req.BuyerID),
		zap.String("transaction_id", txnID),
	)
	return t, err
}

// CompleteTransaction accepts a pending transfer.
func (s *appService) CompleteTransaction(ctx context.Context, who core.Identity, txnID string) (*core.Transaction, error) {
	t, err := s.ledger.CompleteTransfer(ctx, who, txnID)
	s.audit("complete", who, txnQuantity(t), err, zap.String("transaction_id", txnID))
	return t, err
}

// RejectTransaction cancels a pending transfer.
func (s *appService) RejectTransaction(ctx context.Context, who core.Identity, txnID string) (*core.Transaction, error) {
	t, err := s.ledger.RejectTransfer(ctx, who, txnID)
	s.audit("reject", who, txnQuantity(t), err, zap.String("transaction_id", txnID))
	return t, err
}

func txnQuantity(t *core.Transaction) decimal.Decimal {
	if t == nil {
		return decimal.Zero
	}
	return t.Quantity
}

// CreatePackage packages part of a batch.
func (s *appService) CreatePackage(ctx context.Context, who core.Identity, req CreatePackageRequest) (*core.Package, error) {
	p, err := s.ledger.RecordPackaging(ctx, who, core.PackageSpec{
		SourceBatchID: req.BatchID,
		Quantity:      req.Quantity,
		PackageType:   req.PackageType,
	})
	var id string
	if p != nil {
		id = p.ID
	}
	s.audit("package", who, req.Quantity, err,
		zap.String("batch_id", req.BatchID),
		zap.String("package_id", id),
	)
	return p, err
}

// ShipPackage marks a package shipped.
func (s *appService) ShipPackage(ctx context.Context, who core.Identity, packageID string) (*core.Holding, error) {
	h, err := s.ledger.ShipPackage(ctx, who, packageID)
	s.audit("ship", who, decimal.Zero, err, zap.String("package_id", packageID))
	return h, err
}

func (s *appService) Trace(ctx context.Context, id string) (*core.Provenance, error) {
	return s.tracer.Trace(ctx, id)
}

func (s *appService) History(ctx context.Context, id string) ([]core.OwnershipChange, error) {
	return s.tracer.History(ctx, id)
}

func (s *appService) Family(ctx context.Context, id string) (*core.Family, error) {
	return s.tracer.Family(ctx, id)
}

func (s *appService) MyBatches(ctx context.Context, who core.Identity) (*HoldingListResult, error) {
	return s.holdings(who, core.KindBatch, false), nil
}

func (s *appService) AvailableBatches(ctx context.Context, who core.Identity) (*HoldingListResult, error) {
	return s.holdings(who, core.KindBatch, true), nil
}

func (s *appService) MyPackages(ctx context.Context, who core.Identity) (*HoldingListResult, error) {
	return s.holdings(who, core.KindPackage, false), nil
}

func (s *appService) holdings(who core.Identity, kind core.EntityKind, availableOnly bool) *HoldingListResult {
	proj := s.ledger.Projection()
	items := []HoldingView{}
	for _, h := range proj.OwnedBy(who.UserID, kind) {
		if availableOnly && (!h.Available.IsPositive() || h.PendingTxn != "") {
			continue
		}
		v := HoldingView{Holding: h}
		switch kind {
		case core.KindBatch:
			if b, ok := proj.Batch(h.ID); ok {
				v.Batch = &b
			}
		case core.KindPackage:
			if p, ok := proj.Package(h.ID); ok {
				v.Package = &p
			}
		}
		items = append(items, v)
	}
	return &HoldingListResult{Items: items, Total: len(items)}
}

func (s *appService) MyTransactions(ctx context.Context, who core.Identity, page Page) (*TransactionListResult, error) {
	page = page.normalize()
	all := s.ledger.Projection().TransactionsFor(who.UserID)

	start := (page.Number - 1) * page.Size
	if start > len(all) {
		start = len(all)
	}
	end := start + page.Size
	if end > len(all) {
		end = len(all)
	}
	return &TransactionListResult{
		Transactions: append([]core.Transaction{}, all[start:end]...),
		Page:         page.Number,
		PageSize:     page.Size,
		Total:        len(all),
	}, nil
}

func (s *appService) Dashboard(ctx context.Context, who core.Identity) (*DashboardResult, error) {
	proj := s.ledger.Projection()
	batches := proj.OwnedBy(who.UserID, core.KindBatch)
	packages := proj.OwnedBy(who.UserID, core.KindPackage)

	d := &DashboardResult{
		UserID:      who.UserID,
		Role:        who.Role,
		Batches:     len(batches),
		Packages:    len(packages),
		AvailableKg: decimal.Zero,
	}
	for _, h := range batches {
		d.AvailableKg = d.AvailableKg.Add(h.Available)
	}
	for _, h := range packages {
		d.AvailableKg = d.AvailableKg.Add(h.Available)
	}
	for _, t := range proj.TransactionsFor(who.UserID) {
		incoming := t.ToUserID == who.UserID
		switch {
		case t.Status == core.TxnPending && incoming:
			d.IncomingPending++
		case t.Status == core.TxnPending:
			d.OutgoingPending++
		case t.Status == core.TxnCompleted && incoming:
			d.CompletedPurchase++
		case t.Status == core.TxnCompleted:
			d.CompletedSales++
		}
	}
	return d, nil
}

func (s *appService) Verify(ctx context.Context, replay bool) (*VerifyResult, error) {
	proj := s.ledger.Projection()
	if replay {
		var err error
		proj, err = core.Rebuild(ctx, s.ledger.Store())
		if err != nil {
			return nil, fmt.Errorf("failed to replay ledger: %w", err)
		}
	}
	seq, _ := proj.LastEvent()
	res := &VerifyResult{LastSeq: seq, Replayed: replay, Violations: proj.Verify()}
	for _, v := range res.Violations {
		s.log.Error("conservation violated",
			zap.String("entity_id", v.EntityID),
			zap.String("expected_kg", v.Expected.String()),
			zap.String("actual_kg", v.Actual.String()),
		)
	}
	return res, nil
}

func (s *appService) Health(ctx context.Context) *HealthResult {
	seq, at := s.ledger.Projection().LastEvent()
	status := "ok"
	if s.ledger.Projection().Diverged() != nil {
		status = "degraded"
	}
	return &HealthResult{
		Status:      status,
		LastSeq:     seq,
		LastEventAt: at,
		Uptime:      time.Since(s.started).Truncate(time.Second).String(),
	}
}
