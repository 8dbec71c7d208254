package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adw-ith/hack25-spicechain/internal/adapters/web"
	"github.com/adw-ith/hack25-spicechain/internal/app"
	"github.com/adw-ith/hack25-spicechain/internal/core"
	"github.com/adw-ith/hack25-spicechain/internal/lock"
	"github.com/adw-ith/hack25-spicechain/internal/metrics"
	"github.com/adw-ith/hack25-spicechain/internal/store/memstore"
)

const secret = "test-secret"

type server struct {
	t *testing.T
	h http.Handler
}

func newServer(t *testing.T) *server {
	t.Helper()
	l, err := core.OpenLedger(context.Background(), memstore.New(), lock.NewKeyed())
	require.NoError(t, err)
	m := metrics.New()
	svc := app.NewAppService(l, zap.NewNop(), m)
	h := web.NewHandler(svc, web.Options{JWTSecret: secret, BodyLimit: 4 << 10}, zap.NewNop(), m)
	return &server{t: t, h: h}
}

// token signs claims the way the external auth service does; sub may be a
// number or a string.
func token(t *testing.T, sub any, role string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func (s *server) do(method, path, tok string, body any) (*httptest.ResponseRecorder, map[string]any) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)

	out := map[string]any{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func TestHealthAndAuth(t *testing.T) {
	s := newServer(t)

	rec, body := s.do(http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec, body = s.do(http.MethodGet, "/api/mybatches", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", body["code"])

	rec, _ = s.do(http.MethodGet, "/api/mybatches", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(http.MethodGet, "/api/mybatches", token(t, 5, "astronaut"), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body = s.do(http.MethodGet, "/api/auth/me", token(t, 5, "middleman"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5", body["user_id"])
	assert.Equal(t, "distributor", body["role"])

	t.Run("Cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.AddCookie(&http.Cookie{Name: "auth_token", Value: token(t, "7", "farmer")})
		rec := httptest.NewRecorder()
		s.h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestLedgerFlow(t *testing.T) {
	s := newServer(t)
	farmer := token(t, 1, "farmer")
	buyer := token(t, 2, "distributor")
	stranger := token(t, 3, "consumer")

	rec, body := s.do(http.MethodPost, "/api/registerbatch", farmer, map[string]any{
		"spice_id":      4,
		"quantity_kg":   100,
		"farm_location": "Kumily",
		"harvest_date":  time.Now().AddDate(0, 0, -3).Format("2006-01-02"),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	root := body["batch_id"].(string)

	rec, body = s.do(http.MethodPost, "/api/batch/divide", farmer, map[string]any{
		"batch_id": root,
		"divisions": []map[string]any{
			{"quantity_kg": 60, "buyer_id": 2, "price_per_kg": "310.5"},
			{"quantity_kg": "30"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	summary := body["summary"].(map[string]any)
	assert.EqualValues(t, 2, summary["total_divisions"])
	assert.EqualValues(t, 1, summary["immediately_sold"])
	assert.Equal(t, "10", body["original_batch_remaining"])
	child := body["new_batches"].([]any)[0].(map[string]any)["batch_id"].(string)
	txn := body["transactions_created"].([]any)[0].(map[string]any)["transaction_id"].(string)

	rec, body = s.do(http.MethodPost, "/api/batch/divide", farmer, map[string]any{
		"batch_id":  root,
		"divisions": []map[string]any{{"quantity_kg": 25}},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INSUFFICIENT_QUANTITY", body["code"])
	assert.Equal(t, "10", body["available"])

	rec, body = s.do(http.MethodPost, "/api/transaction/"+txn+"/complete", stranger, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", body["code"])

	rec, body = s.do(http.MethodPost, "/api/transaction/"+txn+"/complete", buyer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "completed", body["status"])

	rec, body = s.do(http.MethodPost, "/api/transaction/"+txn+"/complete", buyer, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "completed", body["status"])

	rec, body = s.do(http.MethodPost, "/api/package", buyer, map[string]any{
		"batch_id": child, "quantity_kg": 60, "package_type": "export",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	pkg := body["package_id"].(string)

	rec, _ = s.do(http.MethodPost, "/api/package/"+pkg+"/ship", buyer, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Trace is public.
	rec, body = s.do(http.MethodGet, "/api/trace/"+pkg, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	origin := body["origin_details"].(map[string]any)
	assert.Equal(t, root, origin["batch_id"])
	journey := body["full_journey"].([]any)
	require.Len(t, journey, 4)
	var types []string
	for _, j := range journey {
		types = append(types, j.(map[string]any)["event_type"].(string))
	}
	assert.Equal(t, []string{"batch_divided", "transfer_completed", "package_created", "package_shipped"}, types)

	rec, body = s.do(http.MethodGet, "/api/getHistory/"+pkg, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := body["history"].([]any)
	require.Len(t, history, 1)
	assert.Equal(t, "1", history[0].(map[string]any)["from"])
	assert.Equal(t, "2", history[0].(map[string]any)["to"])

	rec, _ = s.do(http.MethodGet, "/api/trace/BATCH_NOPE", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = s.do(http.MethodGet, "/api/mypackages", buyer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["total"])

	rec, body = s.do(http.MethodGet, "/api/dashboard", farmer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["completed_sales"])

	rec, body = s.do(http.MethodGet, "/api/transactions?page=1&per_page=5", buyer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["total"])

	rec, _ = s.do(http.MethodGet, "/api/transactions?page=x", buyer, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = s.do(http.MethodGet, "/api/batch/"+child+"/history", buyer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["batches"], 3)
}

func TestSellAndReject(t *testing.T) {
	s := newServer(t)
	farmer := token(t, "10", "farmer")
	buyer := token(t, "20", "distributor")

	_, body := s.do(http.MethodPost, "/api/registerbatch", farmer, map[string]any{
		"spice_id": 1, "quantity_kg": "12.5", "farm_location": "Munnar", "harvest_date": "2024-11-02",
	})
	id := body["batch_id"].(string)

	rec, body := s.do(http.MethodPost, "/api/batch/"+id+"/sell", farmer, map[string]any{"buyer_id": "20"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "price_per_kg", body["field"])

	rec, body = s.do(http.MethodPost, "/api/batch/"+id+"/sell", farmer, map[string]any{"buyer_id": 20, "price_per_kg": 8})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	txn := body["transaction_id"].(string)

	rec, body = s.do(http.MethodGet, "/api/mybatches/available", farmer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, body["total"])

	rec, body = s.do(http.MethodPost, "/api/transaction/"+txn+"/reject", buyer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rejected", body["status"])

	rec, body = s.do(http.MethodGet, "/api/mybatches/available", farmer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["total"])

	rec, body = s.do(http.MethodPost, "/api/transaction", farmer, map[string]any{
		"item_id": id, "buyer_id": 20, "transaction_type": "transfer",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, body["transaction_id"])
}

func TestRequestValidation(t *testing.T) {
	s := newServer(t)
	farmer := token(t, 1, "farmer")

	rec, body := s.do(http.MethodPost, "/api/registerbatch", farmer, map[string]any{
		"spice_id": 1, "quantity_kg": 5, "farm_location": "X", "harvest_date": "yesterday",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "harvest_date", body["field"])

	rec, _ = s.do(http.MethodPost, "/api/registerbatch", token(t, 2, "consumer"), map[string]any{
		"spice_id": 1, "quantity_kg": 5, "farm_location": "X", "harvest_date": "2024-01-01",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/registerbatch", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+farmer)
	rr := httptest.NewRecorder()
	s.h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	big := `{"farm_location":"` + strings.Repeat("a", 8<<10) + `"}`
	req = httptest.NewRequest(http.MethodPost, "/api/registerbatch", strings.NewReader(big))
	req.Header.Set("Authorization", "Bearer "+farmer)
	rr = httptest.NewRecorder()
	s.h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newServer(t)
	s.do(http.MethodGet, "/api/health", "", nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `spicechain_http_requests_total{method="GET",route="/api/health",status="200"} 1`)
}

func TestCatalogSearchAndPackageLookup(t *testing.T) {
	s := newServer(t)
	farmer := token(t, 1, "farmer")

	rec, body := s.do(http.MethodGet, "/api/spices", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body["spices"], 7)

	rec, body = s.do(http.MethodPost, "/api/registerbatch", farmer, map[string]any{
		"spice_id": 4, "quantity_kg": 8, "farm_location": "Kumily",
		"harvest_date": time.Now().AddDate(0, 0, -3).Format("2006-01-02"),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	root := body["batch_id"].(string)

	rec, body = s.do(http.MethodPost, "/api/registerbatch", farmer, map[string]any{
		"spice_id": 4, "quantity_kg": "0.1234567", "farm_location": "Kumily",
		"harvest_date": time.Now().AddDate(0, 0, -3).Format("2006-01-02"),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "quantity_kg", body["field"])

	rec, body = s.do(http.MethodPost, "/api/package", farmer, map[string]any{"batch_id": root, "quantity_kg": 8})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	pkg := body["package_id"].(string)

	rec, body = s.do(http.MethodPost, "/api/package", farmer, map[string]any{"batch_id": root, "quantity_kg": 1})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_STATE", body["code"])
	assert.Equal(t, "packaged", body["status"])

	// The QR lookup is public.
	rec, body = s.do(http.MethodGet, "/api/qr/"+pkg, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Cloves", body["spice_name"])
	assert.Equal(t, "Kumily", body["farm_location"])
	assert.Equal(t, root, body["origin_batch_id"])
	assert.NotNil(t, body["expiry_date"])

	rec, _ = s.do(http.MethodGet, "/api/qr/PKG_NOPE", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = s.do(http.MethodGet, "/api/search?q=kumi", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body["batches"], 1)

	rec, body = s.do(http.MethodGet, "/api/search?q=ab", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])

	rec, _ = s.do(http.MethodGet, "/api/analytics/spice/4", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body = s.do(http.MethodGet, "/api/analytics/spice/4", farmer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, body["total_batches"])
	assert.Equal(t, "8", body["total_quantity_kg"])

	rec, _ = s.do(http.MethodGet, "/api/analytics/spice/cloves", farmer, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = s.do(http.MethodGet, "/api/analytics/spice/99", farmer, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
