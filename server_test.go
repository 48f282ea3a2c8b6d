package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/retail_backend/config"
	"bitbucket.org/mmdatafocus/retail_backend/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testServer struct {
	t       *testing.T
	router  *gin.Engine
	headers map[string]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("DEV_HEADER_SESSION", "true")

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, models.Migrate(db))
	require.NoError(t, config.UseDB(db))
	t.Cleanup(func() {
		_ = sqlDB.Close()
		_ = config.UseDB(nil)
	})

	return &testServer{t: t, router: newRouter(config.GetLogger()), headers: map[string]string{}}
}

func (s *testServer) do(method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func idOf(m map[string]any) int {
	return int(m["id"].(float64))
}

// login creates a company and sends its ids as dev headers from then on.
func (s *testServer) login() {
	s.t.Helper()
	w, body := s.do(http.MethodPost, "/api/companies", map[string]any{
		"name": "Golden Pharmacy",
		"fiscal_year": map[string]any{
			"name": "2024", "start_date": "2024-01-01", "end_date": "2024-12-31",
		},
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	s.headers["X-Company-Id"] = strconv.Itoa(idOf(body["company"].(map[string]any)))
	s.headers["X-Fiscal-Year-Id"] = strconv.Itoa(idOf(body["fiscal_year"].(map[string]any)))
	s.headers["X-User-Id"] = "1"
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, _ = s.do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "retail_http_requests_total")

	w, _ = s.do(http.MethodGet, "/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecoveryWrapsEveryMiddleware(t *testing.T) {
	s := newTestServer(t)
	require.NotEmpty(t, s.router.Handlers)
	first := runtime.FuncForPC(reflect.ValueOf(s.router.Handlers[0]).Pointer()).Name()
	assert.Contains(t, first, "Recovery")

	s.router.GET("/api/boom", func(c *gin.Context) { panic("boom") })
	s.login()
	w, _ := s.do(http.MethodGet, "/api/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRoutesNeedASession(t *testing.T) {
	s := newTestServer(t)
	w, _ := s.do(http.MethodPost, "/api/items", map[string]any{"name": "Paracetamol"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPurchaseSaleAndLedgerOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.login()

	w, supplier := s.do(http.MethodPost, "/api/accounts", map[string]any{
		"name": "Shwe Supplier", "group": "Sundry Creditors",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, item := s.do(http.MethodPost, "/api/items", map[string]any{"name": "Paracetamol"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	itemId := idOf(item)

	w, bill := s.do(http.MethodPost, "/api/purchase-bills", map[string]any{
		"party_account_id": idOf(supplier),
		"payment_mode":     "credit",
		"date":             "2024-03-01",
		"vat_mode":         false,
		"vat_percentage":   "13",
		"auto_round_off":   false,
		"items":            []map[string]any{{"item_id": itemId, "quantity": "10", "price": "100"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "PB-1", bill["bill_number"])
	assert.Equal(t, "1130", bill["total_amount"])
	balances := map[float64]string{}
	for _, row := range bill["transactions"].([]any) {
		tr := row.(map[string]any)
		balances[tr["account_id"].(float64)] = tr["balance"].(string)
	}
	assert.Equal(t, "-1130", balances[float64(idOf(supplier))])

	w, missing := s.do(http.MethodPost, "/api/purchase-bills", map[string]any{
		"party_account_id": idOf(supplier),
		"payment_mode":     "credit",
		"date":             "2024-03-01",
		"vat_percentage":   "13",
		"items":            []map[string]any{{"item_id": itemId, "quantity": "1", "price": "100"}},
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, "required", missing["error"].(map[string]any)["details"].(map[string]any)["vat_mode"])

	w, failed := s.do(http.MethodPost, "/api/sales-bills", map[string]any{
		"payment_mode":      "cash",
		"cash_account_name": "Walk-in Customer",
		"date":              "2024-03-02",
		"vat_mode":          false,
		"vat_percentage":    "13",
		"auto_round_off":    false,
		"items":             []map[string]any{{"item_id": itemId, "quantity": "20", "price": "150"}},
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	appErr := failed["error"].(map[string]any)
	assert.Equal(t, "INSUFFICIENT_STOCK", appErr["code"])
	assert.Equal(t, "10", appErr["details"].(map[string]any)["available"])

	w, ledger := s.do(http.MethodGet, fmt.Sprintf("/api/items/%d/ledger?from=2024-01-01&to=2024-12-31", itemId), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rows := ledger["rows"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "Shwe Supplier", rows[0].(map[string]any)["counterparty_name"])
	assert.Equal(t, "10", rows[0].(map[string]any)["balance"])

	w, fetched := s.do(http.MethodGet, fmt.Sprintf("/api/bills/%d", idOf(bill)), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Shwe Supplier", fetched["counterparty"])
	assert.Equal(t, "Paracetamol", fetched["item_names"].(map[string]any)[strconv.Itoa(itemId)])

	w, _ = s.do(http.MethodGet, "/api/bills/9999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, report := s.do(http.MethodGet, "/api/reports/vat", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "-130", report["net_vat_payable"])
}

func TestValuationPreview(t *testing.T) {
	s := newTestServer(t)

	w, v := s.do(http.MethodPost, "/api/valuation/preview", map[string]any{
		"lines":          []map[string]any{{"quantity": "1", "unit_price": "10.05", "vatable": true}},
		"vat_mode":       false,
		"vat_percentage": "13",
		"auto_round_off": true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "11", v["total_amount"])
	assert.Equal(t, "-0.36", v["round_off_amount"])

	w, _ = s.do(http.MethodPost, "/api/valuation/preview", map[string]any{"lines": []any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
