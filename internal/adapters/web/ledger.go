package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/adw-ith/hack25-spicechain/internal/app"
	"github.com/adw-ith/hack25-spicechain/internal/core"
)

// parseDate accepts a calendar date (2006-01-02) or a full RFC 3339 timestamp.
func parseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, &core.ValidationError{Field: field, Message: "must be a date (YYYY-MM-DD) or RFC 3339 timestamp"}
}

// registerBatch handles POST /api/registerbatch.
func (h *Handler) registerBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SpiceID        int             `json:"spice_id"`
		Quantity       decimal.Decimal `json:"quantity_kg"`
		FarmLocation   string          `json:"farm_location"`
		FarmingMethod  string          `json:"farming_method"`
		EstimatedGrade string          `json:"estimated_grade"`
		HarvestDate    string          `json:"harvest_date"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	harvest, err := parseDate("harvest_date", req.HarvestDate)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	b, err := h.svc.RegisterBatch(r.Context(), caller(r), app.RegisterBatchRequest{
		SpiceID:        req.SpiceID,
		Quantity:       req.Quantity,
		FarmLocation:   req.FarmLocation,
		FarmingMethod:  req.FarmingMethod,
		EstimatedGrade: req.EstimatedGrade,
		HarvestDate:    harvest,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":  "Batch registered successfully",
		"batch_id": b.ID,
		"batch":    b,
	})
}

// divideBatch handles POST /api/batch/divide.
func (h *Handler) divideBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BatchID   flexID `json:"batch_id"`
		Divisions []struct {
			Quantity   decimal.Decimal `json:"quantity_kg"`
			BuyerID    flexID          `json:"buyer_id"`
			PricePerKg decimal.Decimal `json:"price_per_kg"`
		} `json:"divisions"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	in := app.DivideBatchRequest{BatchID: string(req.BatchID)}
	for _, d := range req.Divisions {
		in.Divisions = append(in.Divisions, app.DivisionInput{
			Quantity:   d.Quantity,
			BuyerID:    string(d.BuyerID),
			PricePerKg: d.PricePerKg,
		})
	}
	res, err := h.svc.DivideBatch(r.Context(), caller(r), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":                  "Batch divided successfully",
		"division_id":              res.Division.ID,
		"original_batch_remaining": res.Remaining,
		"new_batches":              res.Children,
		"transactions_created":     res.Transactions,
		"summary": map[string]int{
			"total_divisions":  len(res.Children),
			"immediately_sold": len(res.Transactions),
			"kept_for_later":   len(res.Children) - len(res.Transactions),
		},
	})
}

type transferBody struct {
	ItemID          flexID          `json:"item_id"`
	BuyerID         flexID          `json:"buyer_id"`
	Quantity        decimal.Decimal `json:"quantity_kg"`
	PricePerKg      decimal.Decimal `json:"price_per_kg"`
	TransactionType string          `json:"transaction_type"`
	Notes           string          `json:"notes"`
}

func (b transferBody) request() app.TransferRequest {
	return app.TransferRequest{
		ItemID:          string(b.ItemID),
		BuyerID:         string(b.BuyerID),
		Quantity:        b.Quantity,
		PricePerKg:      b.PricePerKg,
		TransactionType: b.TransactionType,
		Notes:           b.Notes,
	}
}

// sellBatch handles POST /api/batch/{id}/sell.
func (h *Handler) sellBatch(w http.ResponseWriter, r *http.Request) {
	var body transferBody
	if !decodeJSON(w, r, &body) {
		return
	}
	body.ItemID = flexID(chi.URLParam(r, "id"))
	h.initiate(w, r, body.request())
}

// createTransaction handles POST /api/transaction for batches and packages.
func (h *Handler) createTransaction(w http.ResponseWriter, r *http.Request) {
	var body transferBody
	if !decodeJSON(w, r, &body) {
		return
	}
	h.initiate(w, r, body.request())
}

func (h *Handler) initiate(w http.ResponseWriter, r *http.Request, req app.TransferRequest) {
	t, err := h.svc.InitiateTransfer(r.Context(), caller(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":        "Transaction created successfully",
		"transaction_id": t.ID,
		"total_amount":   t.TotalAmount,
		"transaction":    t,
	})
}

// completeTransaction handles POST /api/transaction/{id}/complete.
func (h *Handler) completeTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.CompleteTransaction(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Transaction completed successfully",
		"status":      t.Status,
		"transaction": t,
	})
}

// rejectTransaction handles POST /api/transaction/{id}/reject.
func (h *Handler) rejectTransaction(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.RejectTransaction(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Transaction rejected",
		"status":      t.Status,
		"transaction": t,
	})
}

// createPackage handles POST /api/package.
func (h *Handler) createPackage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BatchID     flexID          `json:"batch_id"`
		Quantity    decimal.Decimal `json:"quantity_kg"`
		PackageType string          `json:"package_type"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.CreatePackage(r.Context(), caller(r), app.CreatePackageRequest{
		BatchID:     string(req.BatchID),
		Quantity:    req.Quantity,
		PackageType: req.PackageType,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":    "Package created successfully",
		"package_id": p.ID,
		"package":    p,
	})
}

// shipPackage handles POST /api/package/{id}/ship.
func (h *Handler) shipPackage(w http.ResponseWriter, r *http.Request) {
	hold, err := h.svc.ShipPackage(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hold)
}
