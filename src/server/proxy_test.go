package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"market-relay/src/alpaca"
	"market-relay/src/logger"
	"market-relay/src/models"
)

// -----------------------------------------------------------------------------
// Fake vendor REST
// -----------------------------------------------------------------------------

type fakeVendorREST struct {
	barsQuery  *models.MBarsQuery
	snapSymbol string
	snapFeed   string
	ticket     *models.MOrderTicket

	response []byte
	err      error
}

func (f *fakeVendorREST) GetBars(ctx context.Context, q models.MBarsQuery) ([]byte, error) {
	f.barsQuery = &q
	return f.response, f.err
}

func (f *fakeVendorREST) GetSnapshot(ctx context.Context, symbol, feed string) ([]byte, error) {
	f.snapSymbol = symbol
	f.snapFeed = feed
	return f.response, f.err
}

func (f *fakeVendorREST) GetAccount(ctx context.Context) ([]byte, error) {
	return f.response, f.err
}

func (f *fakeVendorREST) GetPositions(ctx context.Context) ([]byte, error) {
	return f.response, f.err
}

func (f *fakeVendorREST) CreateOrder(ctx context.Context, ticket models.MOrderTicket) ([]byte, error) {
	f.ticket = &ticket
	return f.response, f.err
}

// -----------------------------------------------------------------------------

func newTestServer(t *testing.T, vendor *fakeVendorREST) *RelayServer {
	t.Helper()
	cfg := &models.MConfig{
		Name:     "market-relay",
		Host:     "127.0.0.1",
		Port:     4000,
		LogLevel: "ERROR",
	}
	return NewRelayServer(cfg, logger.NewLogger("ERROR", "test"), vendor, nil, nil)
}

func doRequest(t *testing.T, s *RelayServer, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	return rec
}

// -----------------------------------------------------------------------------
// Bars
// -----------------------------------------------------------------------------

// TestBarsPassthrough covers the lowercase-symbol request returning the
// vendor body unmodified.
func TestBarsPassthrough(t *testing.T) {
	body := `{"bars":[{"t":"2024-01-02T00:00:00Z","o":1,"h":2,"l":0.5,"c":1.5,"v":100}]}`
	vendor := &fakeVendorREST{response: []byte(body)}
	s := newTestServer(t, vendor)

	rec := doRequest(t, s, "GET", "/api/market/bars?symbol=aapl", "")
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != body {
		t.Errorf("body = %q, want vendor body unmodified", rec.Body.String())
	}
	if vendor.barsQuery.Symbol != "AAPL" {
		t.Errorf("symbol = %q, want AAPL (uppercased)", vendor.barsQuery.Symbol)
	}
}

// -----------------------------------------------------------------------------

// TestBarsDefaults verifies timeframe/limit/feed defaults reach the vendor.
func TestBarsDefaults(t *testing.T) {
	vendor := &fakeVendorREST{response: []byte(`{}`)}
	s := newTestServer(t, vendor)

	rec := doRequest(t, s, "GET", "/api/market/bars", "")
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	q := vendor.barsQuery
	if q.Symbol != "AAPL" {
		t.Errorf("symbol = %q, want AAPL", q.Symbol)
	}
	if q.Timeframe != "1Min" {
		t.Errorf("timeframe = %q, want 1Min", q.Timeframe)
	}
	if q.Limit != 500 {
		t.Errorf("limit = %d, want 500", q.Limit)
	}
	if q.Feed != "delayed_sip" {
		t.Errorf("feed = %q, want delayed_sip", q.Feed)
	}
}

// -----------------------------------------------------------------------------

// TestBarsValidation covers fail-fast rejection of bad inputs before any
// vendor call.
func TestBarsValidation(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"unknown timeframe", "/api/market/bars?timeframe=2Min"},
		{"non-numeric limit", "/api/market/bars?limit=lots"},
		{"negative limit", "/api/market/bars?limit=-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vendor := &fakeVendorREST{response: []byte(`{}`)}
			s := newTestServer(t, vendor)

			rec := doRequest(t, s, "GET", tt.path, "")
			if rec.Code != 400 {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if vendor.barsQuery != nil {
				t.Error("vendor should not be called for invalid input")
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Snapshot
// -----------------------------------------------------------------------------

func TestSnapshot(t *testing.T) {
	vendor := &fakeVendorREST{response: []byte(`{"latestTrade":{"p":1}}`)}
	s := newTestServer(t, vendor)

	rec := doRequest(t, s, "GET", "/api/market/snapshot?symbol=msft", "")
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if vendor.snapSymbol != "MSFT" {
		t.Errorf("symbol = %q, want MSFT", vendor.snapSymbol)
	}
	if vendor.snapFeed != "delayed_sip" {
		t.Errorf("feed = %q, want delayed_sip", vendor.snapFeed)
	}
}

// -----------------------------------------------------------------------------
// Orders
// -----------------------------------------------------------------------------

// TestOrderDefaults covers the body {symbol:"tsla", qty:5} with no side.
func TestOrderDefaults(t *testing.T) {
	vendor := &fakeVendorREST{response: []byte(`{"id":"order-1"}`)}
	s := newTestServer(t, vendor)

	rec := doRequest(t, s, "POST", "/api/paper/order", `{"symbol":"tsla","qty":5}`)
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	want := models.MOrderTicket{
		Symbol:      "TSLA",
		Qty:         "5",
		Side:        "buy",
		Type:        "market",
		TimeInForce: "day",
	}
	if *vendor.ticket != want {
		t.Errorf("ticket = %+v, want %+v", *vendor.ticket, want)
	}
}

// -----------------------------------------------------------------------------

// TestOrderSideCoercion: anything but exactly "sell" becomes "buy".
func TestOrderSideCoercion(t *testing.T) {
	tests := []struct {
		side string
		want string
	}{
		{"sell", "sell"},
		{"buy", "buy"},
		{"SELL", "buy"},
		{"short", "buy"},
		{"", "buy"},
	}

	for _, tt := range tests {
		t.Run("side="+tt.side, func(t *testing.T) {
			vendor := &fakeVendorREST{response: []byte(`{}`)}
			s := newTestServer(t, vendor)

			body := `{"symbol":"AAPL","side":"` + tt.side + `"}`
			if tt.side == "" {
				body = `{"symbol":"AAPL"}`
			}
			doRequest(t, s, "POST", "/api/paper/order", body)

			if vendor.ticket.Side != tt.want {
				t.Errorf("side = %q, want %q", vendor.ticket.Side, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------

func TestOrderRequiresSymbol(t *testing.T) {
	vendor := &fakeVendorREST{response: []byte(`{}`)}
	s := newTestServer(t, vendor)

	rec := doRequest(t, s, "POST", "/api/paper/order", `{"qty":1}`)
	if rec.Code != 400 {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if vendor.ticket != nil {
		t.Error("vendor should not be called without a symbol")
	}
}

// -----------------------------------------------------------------------------

// TestOrderQtyStringified covers string and fractional quantities.
func TestOrderQtyStringified(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"symbol":"AAPL","qty":5}`, "5"},
		{`{"symbol":"AAPL","qty":"3"}`, "3"},
		{`{"symbol":"AAPL","qty":0.5}`, "0.5"},
		{`{"symbol":"AAPL"}`, "1"},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			vendor := &fakeVendorREST{response: []byte(`{}`)}
			s := newTestServer(t, vendor)
			doRequest(t, s, "POST", "/api/paper/order", tt.body)

			if vendor.ticket.Qty != tt.want {
				t.Errorf("qty = %q, want %q", vendor.ticket.Qty, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Error shape
// -----------------------------------------------------------------------------

// TestVendorFailureShape: every endpoint surfaces vendor failures as
// HTTP 500 with an {error} body carrying the vendor status code.
func TestVendorFailureShape(t *testing.T) {
	apiErr := &alpaca.APIError{
		StatusCode: 503,
		Status:     "Service Unavailable",
		Body:       []byte("upstream down"),
	}

	endpoints := []struct {
		method string
		path   string
		body   string
	}{
		{"GET", "/api/market/bars", ""},
		{"GET", "/api/market/snapshot", ""},
		{"GET", "/api/paper/account", ""},
		{"GET", "/api/paper/positions", ""},
		{"POST", "/api/paper/order", `{"symbol":"AAPL"}`},
	}

	for _, ep := range endpoints {
		t.Run(ep.path, func(t *testing.T) {
			vendor := &fakeVendorREST{err: apiErr}
			s := newTestServer(t, vendor)

			rec := doRequest(t, s, ep.method, ep.path, ep.body)
			if rec.Code != 500 {
				t.Fatalf("status = %d, want 500", rec.Code)
			}

			var resp map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("body %q is not JSON: %v", rec.Body.String(), err)
			}
			if !strings.Contains(resp["error"], "503 Service Unavailable") {
				t.Errorf("error = %q, want vendor status code and text", resp["error"])
			}
			if !strings.Contains(resp["error"], "upstream down") {
				t.Errorf("error = %q, want vendor body text", resp["error"])
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Local endpoints
// -----------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	s := newTestServer(t, &fakeVendorREST{})

	rec := doRequest(t, s, "GET", "/api/health", "")
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("health body not JSON: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
}

// -----------------------------------------------------------------------------

func TestMarketStatus(t *testing.T) {
	s := newTestServer(t, &fakeVendorREST{})

	rec := doRequest(t, s, "GET", "/api/market/status", "")
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("status body not JSON: %v", err)
	}
	for _, key := range []string{"is_open", "is_trading_day", "timezone"} {
		if _, ok := resp[key]; !ok {
			t.Errorf("status body missing %q", key)
		}
	}
}
