package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/adw-ith/hack25-spicechain/internal/app"
	"github.com/adw-ith/hack25-spicechain/internal/core"
)

// trace handles GET /api/trace/{id}.
func (h *Handler) trace(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Trace(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// history handles GET /api/getHistory/{id}.
func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	changes, err := h.svc.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if changes == nil {
		changes = []core.OwnershipChange{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": changes})
}

// family handles GET /api/batch/{id}/history.
func (h *Handler) family(w http.ResponseWriter, r *http.Request) {
	f, err := h.svc.Family(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *Handler) myBatches(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.MyBatches(r.Context(), caller(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"batches": res.Items, "total": res.Total})
}

func (h *Handler) availableBatches(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.AvailableBatches(r.Context(), caller(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"batches": res.Items, "total": res.Total})
}

func (h *Handler) myPackages(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.MyPackages(r.Context(), caller(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"packages": res.Items, "total": res.Total})
}

// transactions handles GET /api/transactions?page=N&per_page=M.
func (h *Handler) transactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := app.Page{}
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			h.fail(w, r, &core.ValidationError{Field: "page", Message: "must be an integer"})
			return
		}
		page.Number = n
	}
	if v := q.Get("per_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			h.fail(w, r, &core.ValidationError{Field: "per_page", Message: "must be an integer"})
			return
		}
		page.Size = n
	}

	res, err := h.svc.MyTransactions(r.Context(), caller(r), page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Dashboard(r.Context(), caller(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// packageInfo handles GET /api/qr/{id}, the consumer view behind a package's QR code.
func (h *Handler) packageInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.PackageInfo(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// search handles GET /api/search?q=...&type=batch|package|all.
func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.svc.Search(r.Context(), app.SearchRequest{Query: q.Get("q"), Type: q.Get("type")})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) spices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"spices": h.svc.Spices(r.Context())})
}

func (h *Handler) spiceAnalytics(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, &core.ValidationError{Field: "id", Message: "must be an integer"})
		return
	}
	res, err := h.svc.SpiceAnalytics(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
