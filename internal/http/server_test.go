package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/core"
	tlog "tally/internal/log"
	"tally/internal/services"
	"tally/internal/storage/memory"
)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	return newTestServerOn(t, memory.New(), opts)
}

// newTestServerOn serves store, letting a test write behind the server's back
// the way the worker does.
func newTestServerOn(t *testing.T, store *memory.Store, opts Options) *Server {
	t.Helper()
	cal := services.NewCalendar(func() time.Time { return time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC) }, time.UTC)
	if opts.Logger == nil {
		opts.Logger = tlog.New(tlog.Config{Output: io.Discard})
	}
	s, err := NewServer(":0", services.NewEngine(store, cal), services.NewLedgerService(store, nil, cal), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t, Options{})
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/healthz", "").Code)
	rec := do(t, s, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	down := newTestServer(t, Options{Ready: func(context.Context) error { return errors.New("db gone") }})
	assert.Equal(t, http.StatusServiceUnavailable, do(t, down, http.MethodGet, "/readyz", "").Code)
}

func TestRange(t *testing.T) {
	s := newTestServer(t, Options{})

	got := decode(t, do(t, s, http.MethodGet, "/api/range?range=this_week", ""))
	assert.Equal(t, "This Week", got["title"])
	assert.Equal(t, map[string]any{"start": "2025-03-10", "end": "2025-03-15"}, got["range"])

	// unknown specs fall back to today
	got = decode(t, do(t, s, http.MethodGet, "/api/range?range=sometime", ""))
	assert.Equal(t, map[string]any{"start": "2025-03-15", "end": "2025-03-15"}, got["range"])
}

func TestTransactionsFeedReports(t *testing.T) {
	s := newTestServer(t, Options{})

	for _, body := range []string{
		`{"kind":"expense","category":"Food","amount":"10,50","date":"2025-03-01"}`,
		`{"category":"Food","amount":4.5,"date":"2025-03-03"}`,
		`{"kind":"resisted","category":"Gadgets","amount":"99","date":"2025-03-02"}`,
	} {
		rec := do(t, s, http.MethodPost, "/api/transactions", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := do(t, s, http.MethodGet, "/api/summary?range=this_month", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "miss", rec.Header().Get("X-Cache"))
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "15", data["total_expenses"])
	assert.Equal(t, "99", data["total_resisted"])
	assert.Equal(t, []any{"Food"}, data["categories"])

	assert.Equal(t, "hit", do(t, s, http.MethodGet, "/api/summary?range=this_month", "").Header().Get("X-Cache"))

	// a write invalidates
	require.Equal(t, http.StatusCreated, do(t, s, http.MethodPost, "/api/transactions",
		`{"category":"Rent","amount":"500","date":"2025-03-05"}`).Code)
	rec = do(t, s, http.MethodGet, "/api/summary?range=this_month", "")
	assert.Equal(t, "miss", rec.Header().Get("X-Cache"))
	data = decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "515", data["total_expenses"])
	assert.Equal(t, []any{"Rent", "Food"}, data["categories"])
}

func TestTimeSeries(t *testing.T) {
	s := newTestServer(t, Options{})
	require.Equal(t, http.StatusCreated, do(t, s, http.MethodPost, "/api/transactions",
		`{"category":"Food","amount":"3","date":"2025-03-12"}`).Code)

	got := decode(t, do(t, s, http.MethodGet, "/api/timeseries?range=this_week&granularity=day", ""))
	assert.Equal(t, "day", got["granularity"])
	data := got["data"].(map[string]any)
	assert.Len(t, data["buckets"], 6)
	assert.Equal(t, []any{"0", "0", "3", "0", "0", "0"}, data["expenses"])

	rec := do(t, s, http.MethodGet, "/api/timeseries?granularity=year", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "invalid granularity")

	for _, g := range []string{"day", "week", "month"} {
		rec = do(t, s, http.MethodGet, "/api/timeseries?granularity="+g+"&range=from+0001-01-01+to+9999-12-31", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, g)
		assert.Contains(t, decode(t, rec)["error"], "range too large", g)
	}
}

func TestGroupedReports(t *testing.T) {
	s := newTestServer(t, Options{})
	for _, body := range []string{
		`{"category":"Food","amount":"1","date":"2025-01-10"}`,
		`{"category":"Food","amount":"2","date":"2025-03-10"}`,
	} {
		require.Equal(t, http.StatusCreated, do(t, s, http.MethodPost, "/api/transactions", body).Code)
	}

	target := "/api/summary/grouped?granularity=month&range=" + "from+2025-01-01+to+2025-03-31"
	data := decode(t, do(t, s, http.MethodGet, target, ""))["data"].([]any)
	require.Len(t, data, 2, "only occupied months")
	first := data[0].(map[string]any)["bucket"].(map[string]any)
	assert.Equal(t, "2025-01", first["key"])
	assert.Equal(t, "January 2025", first["label"])

	target = "/api/detail/grouped?granularity=week&range=" + "from+2025-01-01+to+2025-03-31"
	assert.Len(t, decode(t, do(t, s, http.MethodGet, target, ""))["data"].([]any), 2)

	detail := decode(t, do(t, s, http.MethodGet, "/api/detail?range=last_month", ""))["data"].(map[string]any)
	assert.Empty(t, detail["categories"])
}

func TestTransactionValidation(t *testing.T) {
	s := newTestServer(t, Options{})

	tests := []struct {
		name string
		body string
	}{
		{"negative amount", `{"category":"Food","amount":"-1"}`},
		{"garbage amount", `{"category":"Food","amount":"ten"}`},
		{"missing amount", `{"category":"Food"}`},
		{"empty category", `{"category":"  ","amount":"1"}`},
		{"bad kind", `{"kind":"refund","category":"Food","amount":"1"}`},
		{"bad date", `{"category":"Food","amount":"1","date":"15/03/2025"}`},
		{"unknown field", `{"category":"Food","amount":"1","tip":"2"}`},
		{"two objects", `{"category":"Food","amount":"1"}{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/transactions", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode(t, rec)["request_id"])
		})
	}

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, s, http.MethodGet, "/api/transactions", "").Code)
}

func TestAssetsValuationsAndNetWorth(t *testing.T) {
	s := newTestServer(t, Options{})

	rec := do(t, s, http.MethodPost, "/api/assets",
		`{"type":"stock","name":"ACME","ticker":"acme","quantity":"2","purchase_price":"50","purchase_date":"2025-01-02"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	asset := decode(t, rec)
	assert.Equal(t, "ACME", asset["ticker"])
	id := int64(asset["id"].(float64))

	rec = do(t, s, http.MethodPost, "/api/assets/"+itoa(id)+"/valuations", `{"price":"75","as_of":"2025-03-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "150", decode(t, rec)["total_value"])

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodPost, "/api/assets/999/valuations", `{"price":"1"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/assets/abc/valuations", `{"price":"1"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/assets", `{"type":"stock","name":"X","quantity":"0","purchase_price":"1"}`).Code)

	require.Equal(t, http.StatusCreated, do(t, s, http.MethodPost, "/api/transactions",
		`{"category":"Food","amount":"30","date":"2025-02-01"}`).Code)

	rec = do(t, s, http.MethodPost, "/api/networth", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	point := decode(t, rec)
	assert.Equal(t, "2025-03-15", point["date"])
	assert.Equal(t, "120", point["net_worth"])

	hist := decode(t, do(t, s, http.MethodGet, "/api/networth/history?range=this_month&granularity=month", ""))["data"].(map[string]any)
	assert.Equal(t, []any{"120"}, hist["net_worth"])

	pf := decode(t, do(t, s, http.MethodGet, "/api/portfolio", ""))
	assert.Equal(t, "150", pf["total"])
	assert.Equal(t, "50", pf["gain_loss"])

	pf = decode(t, do(t, s, http.MethodGet, "/api/portfolio?as_of=2025-02-01", ""))
	assert.Equal(t, "100", pf["total"])

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/portfolio?as_of=yesterday", "").Code)
}

func TestNetWorthViewsSeeOutOfBandWrites(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	s := newTestServerOn(t, store, Options{})

	a, err := store.CreateAsset(ctx, core.Asset{
		Type: core.AssetCash, Name: "Savings", Quantity: decimal.NewFromInt(1),
		PurchasePrice: decimal.NewFromInt(100), PurchaseDate: core.MustParseDate("2025-01-01"),
	})
	require.NoError(t, err)
	on := core.MustParseDate("2025-03-15")
	require.NoError(t, store.UpsertNetWorth(ctx, core.NetWorthPoint{
		Date: on, TotalAssets: decimal.NewFromInt(100), NetWorth: decimal.NewFromInt(100),
	}))

	tests := []struct {
		target string
		field  func(map[string]any) any
	}{
		{"/api/networth/history?range=this_month&granularity=month", func(m map[string]any) any {
			return m["data"].(map[string]any)["net_worth"]
		}},
		{"/api/portfolio", func(m map[string]any) any { return m["total"] }},
	}
	for _, tt := range tests {
		rec := do(t, s, http.MethodGet, tt.target, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Empty(t, rec.Header().Get("X-Cache"), tt.target)
	}

	// the worker writes straight to storage
	require.NoError(t, store.UpsertNetWorth(ctx, core.NetWorthPoint{
		Date: on, TotalAssets: decimal.NewFromInt(250), NetWorth: decimal.NewFromInt(250),
	}))
	_, err = store.AppendSnapshot(ctx, a.Valuation(decimal.NewFromInt(250), on))
	require.NoError(t, err)

	assert.Equal(t, []any{"250"}, tests[0].field(decode(t, do(t, s, http.MethodGet, tests[0].target, ""))))
	assert.Equal(t, "250", tests[1].field(decode(t, do(t, s, http.MethodGet, tests[1].target, ""))))
}

func TestRateLimitOnWrites(t *testing.T) {
	s := newTestServer(t, Options{RateLimitPerMinute: 2})
	body := `{"category":"Food","amount":"1","date":"2025-03-01"}`
	assert.Equal(t, http.StatusCreated, do(t, s, http.MethodPost, "/api/transactions", body).Code)
	assert.Equal(t, http.StatusCreated, do(t, s, http.MethodPost, "/api/transactions", body).Code)
	rec := do(t, s, http.MethodPost, "/api/transactions", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// reads are not limited
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/summary", "").Code)
	}

	stats := decode(t, do(t, s, http.MethodGet, "/api/stats", ""))
	assert.Equal(t, float64(1), stats["rate_limit_hits"])
	assert.Equal(t, float64(4), stats["cache_hits"])
}

func TestBodyTooLarge(t *testing.T) {
	s := newTestServer(t, Options{})
	big := `{"category":"` + string(bytes.Repeat([]byte("a"), maxBodyBytes)) + `","amount":"1"}`
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/transactions", big).Code)
}
