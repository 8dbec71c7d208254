package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/adw-ith/hack25-spicechain/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Field     string `json:"field,omitempty"`
	Available string `json:"available,omitempty"`
	Status    string `json:"status,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	writeErrorBody(w, r, errorResponse{Error: message, Code: code}, status)
}

func writeErrorBody(w http.ResponseWriter, r *http.Request, resp errorResponse, status int) {
	resp.RequestID = requestIDFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fail maps a ledger error onto an HTTP response. Anything that is not a
// typed ledger error is logged and reported as a generic 500.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		vErr     *core.ValidationError
		nfErr    *core.NotFoundError
		conflict *core.ConflictError
		stateErr *core.StateError
		authErr  *core.AuthorizationError
	)
	switch {
	case errors.As(err, &vErr):
		writeErrorBody(w, r, errorResponse{Error: vErr.Error(), Code: "VALIDATION_ERROR", Field: vErr.Field}, http.StatusBadRequest)
	case errors.As(err, &nfErr):
		writeErrorBody(w, r, errorResponse{Error: nfErr.Error(), Code: "NOT_FOUND"}, http.StatusNotFound)
	case errors.As(err, &conflict):
		writeErrorBody(w, r, errorResponse{
			Error:     conflict.Error(),
			Code:      "INSUFFICIENT_QUANTITY",
			Available: conflict.Available.String(),
		}, http.StatusConflict)
	case errors.As(err, &stateErr):
		writeErrorBody(w, r, errorResponse{Error: stateErr.Error(), Code: "INVALID_STATE", Status: stateErr.Status}, http.StatusConflict)
	case errors.As(err, &authErr):
		writeErrorBody(w, r, errorResponse{Error: authErr.Error(), Code: "FORBIDDEN"}, http.StatusForbidden)
	default:
		h.log.Error("request failed",
			zap.String("request_id", requestIDFromContext(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}
