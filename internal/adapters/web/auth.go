package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/adw-ith/hack25-spicechain/internal/core"
)

type identityKey struct{}

// identityFromContext returns the caller identity stored in ctx.
func identityFromContext(ctx context.Context) (core.Identity, bool) {
	v, ok := ctx.Value(identityKey{}).(core.Identity)
	return v, ok
}

// flexID accepts a user id encoded either as a JSON string or a number.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("user id must be a string or a number")
	}
	*f = flexID(n.String())
	return nil
}

// jwtClaims is the token payload issued by the authentication service.
// Older tokens carry the id in user_id instead of sub.
type jwtClaims struct {
	Subject flexID `json:"sub"`
	UserID  flexID `json:"user_id,omitempty"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

func (c *jwtClaims) identity() (core.Identity, error) {
	id := string(c.Subject)
	if id == "" {
		id = string(c.UserID)
	}
	if id == "" {
		return core.Identity{}, fmt.Errorf("token has no subject")
	}
	role, ok := core.ParseRole(c.Role)
	if !ok {
		return core.Identity{}, fmt.Errorf("unknown role %q", c.Role)
	}
	return core.Identity{UserID: id, Role: role}, nil
}

// tokenFromRequest prefers the Authorization bearer header over the cookie.
func (h *Handler) tokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if rest, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(rest)
		}
	}
	if cookie, err := r.Cookie(h.opts.CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// RequireAuth is chi middleware that validates the caller's JWT and injects
// the core.Identity into the request context. Returns 401 if the token is
// absent or invalid.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := h.tokenFromRequest(r)
		if raw == "" {
			writeError(w, r, "authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		claims := &jwtClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(h.opts.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			writeError(w, r, "invalid or expired token", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}
		who, err := claims.identity()
		if err != nil {
			writeError(w, r, "invalid token claims: "+err.Error(), "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, who)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// me handles GET /api/auth/me and echoes the resolved identity.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	who, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, r, "not authenticated", "UNAUTHORIZED", http.StatusUnauthorized)
		return
	}
	type meResponse struct {
		UserID string    `json:"user_id"`
		Role   core.Role `json:"role"`
	}
	writeJSON(w, http.StatusOK, meResponse{UserID: who.UserID, Role: who.Role})
}
