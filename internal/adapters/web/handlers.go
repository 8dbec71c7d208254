package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/adw-ith/hack25-spicechain/internal/app"
	"github.com/adw-ith/hack25-spicechain/internal/core"
	"github.com/adw-ith/hack25-spicechain/internal/metrics"
)

// Options configures the HTTP adapter.
type Options struct {
	AllowedOrigins string // comma-separated
	JWTSecret      string
	CookieName     string
	BodyLimit      int64
}

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc     app.ApplicationService
	log     *zap.Logger
	metrics *metrics.Metrics
	opts    Options
	router  chi.Router
}

// NewHandler creates and wires the chi router with all routes. m may be nil,
// in which case /metrics is not mounted.
func NewHandler(svc app.ApplicationService, opts Options, log *zap.Logger, m *metrics.Metrics) http.Handler {
	if opts.CookieName == "" {
		opts.CookieName = "auth_token"
	}
	if opts.BodyLimit <= 0 {
		opts.BodyLimit = 1 << 20
	}
	h := &Handler{svc: svc, log: log.Named("web"), metrics: m, opts: opts}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(h.log, m))
	r.Use(Recoverer(h.log))
	r.Use(CORS(opts.AllowedOrigins))

	// ── Public ────────────────────────────────────────────────────────────────
	r.Get("/api/health", h.health)
	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	// Provenance is readable by anyone holding a package id (QR codes).
	r.Get("/api/trace/{id}", h.trace)
	r.Get("/api/fetchhistory/{id}", h.trace)
	r.Get("/api/getHistory/{id}", h.history)
	r.Get("/api/qr/{id}", h.packageInfo)
	r.Get("/api/search", h.search)
	r.Get("/api/spices", h.spices)

	// ── Protected API routes (return 401 JSON if unauthenticated) ────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(opts.BodyLimit))

		r.Get("/api/auth/me", h.me)

		// Ledger writes
		r.Post("/api/registerbatch", h.registerBatch)
		r.Post("/api/batch/divide", h.divideBatch)
		r.Post("/api/batch/{id}/sell", h.sellBatch)
		r.Post("/api/transaction", h.createTransaction)
		r.Post("/api/transaction/{id}/complete", h.completeTransaction)
		r.Post("/api/transaction/{id}/reject", h.rejectTransaction)
		r.Post("/api/package", h.createPackage)
		r.Post("/api/package/{id}/ship", h.shipPackage)

		// Read models
		r.Get("/api/batch/{id}/history", h.family)
		r.Get("/api/mybatches", h.myBatches)
		r.Get("/api/mybatches/available", h.availableBatches)
		r.Get("/api/mypackages", h.myPackages)
		r.Get("/api/transactions", h.transactions)
		r.Get("/api/dashboard", h.dashboard)
		r.Get("/api/analytics/spice/{id}", h.spiceAnalytics)
	})

	h.router = r
	return r
}

// health returns service status and the projection's ledger position.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Health(r.Context()))
}

// caller returns the identity injected by RequireAuth.
func caller(r *http.Request) core.Identity {
	who, _ := identityFromContext(r.Context())
	return who
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
