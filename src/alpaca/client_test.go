package alpaca

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"market-relay/src/logger"
	"market-relay/src/models"
)

// -----------------------------------------------------------------------------

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &models.MAlpacaConfig{
		KeyID:        "server-key",
		SecretKey:    "server-secret",
		DataBaseURL:  srv.URL,
		PaperBaseURL: srv.URL,
		Feed:         "delayed_sip",
	}
	net := &models.MNetworkConfig{RequestTimeout: 5, AuthTimeout: 5}

	return NewClient(cfg, net, logger.NewLogger("ERROR", "test")), srv
}

// -----------------------------------------------------------------------------

// TestCredentialInjection verifies every call authenticates with the
// configured server-side credentials.
func TestCredentialInjection(t *testing.T) {
	var gotKey, gotSecret string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("APCA-API-KEY-ID")
		gotSecret = r.Header.Get("APCA-API-SECRET-KEY")
		w.Write([]byte(`{}`))
	}))

	if _, err := client.GetAccount(context.Background()); err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if gotKey != "server-key" || gotSecret != "server-secret" {
		t.Errorf("credentials = %q/%q, want server-key/server-secret", gotKey, gotSecret)
	}
}

// -----------------------------------------------------------------------------

// TestGetBars verifies the query string built from a bars request.
func TestGetBars(t *testing.T) {
	var gotPath, gotQuery string
	body := `{"bars":[{"t":"2024-01-02T00:00:00Z","o":1,"h":2,"l":0.5,"c":1.5,"v":100}]}`
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(body))
	}))

	query := models.MBarsQuery{
		Symbol:    "AAPL",
		Timeframe: "1Min",
		Limit:     500,
		Feed:      "delayed_sip",
	}
	resp, err := client.GetBars(context.Background(), query)
	if err != nil {
		t.Fatalf("GetBars: %v", err)
	}

	if gotPath != "/v2/stocks/AAPL/bars" {
		t.Errorf("path = %q, want /v2/stocks/AAPL/bars", gotPath)
	}
	for _, want := range []string{"timeframe=1Min", "limit=500", "feed=delayed_sip"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}
	if strings.Contains(gotQuery, "start=") || strings.Contains(gotQuery, "end=") {
		t.Errorf("query %q should not carry empty start/end", gotQuery)
	}

	// Vendor body passes through byte for byte.
	if string(resp) != body {
		t.Errorf("body = %q, want %q", resp, body)
	}
}

// -----------------------------------------------------------------------------

// TestCreateOrder verifies the order ticket forwarded to the vendor.
func TestCreateOrder(t *testing.T) {
	var gotTicket map[string]string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v2/orders" {
			t.Errorf("got %s %s, want POST /v2/orders", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotTicket)
		w.Write([]byte(`{"id":"order-1"}`))
	}))

	ticket := models.MOrderTicket{
		Symbol:      "TSLA",
		Qty:         "5",
		Side:        "buy",
		Type:        "market",
		TimeInForce: "day",
	}
	if _, err := client.CreateOrder(context.Background(), ticket); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	want := map[string]string{
		"symbol":        "TSLA",
		"qty":           "5",
		"side":          "buy",
		"type":          "market",
		"time_in_force": "day",
	}
	for k, v := range want {
		if gotTicket[k] != v {
			t.Errorf("ticket[%s] = %q, want %q", k, gotTicket[k], v)
		}
	}
}

// -----------------------------------------------------------------------------

// TestAPIError verifies the uniform error shape for vendor failures.
func TestAPIError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"message":"down for maintenance"}`))
	}))

	_, err := client.GetAccount(context.Background())
	if err == nil {
		t.Fatal("expected error for 503")
	}

	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.StatusCode != 503 {
		t.Errorf("StatusCode = %d, want 503", apiErr.StatusCode)
	}

	msg := err.Error()
	if !strings.HasPrefix(msg, "503 Service Unavailable") {
		t.Errorf("message %q should start with '503 Service Unavailable'", msg)
	}
	if !strings.Contains(msg, "down for maintenance") {
		t.Errorf("message %q should carry the vendor body", msg)
	}
}
