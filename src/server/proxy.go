package server

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"market-relay/src/alpaca"
	"market-relay/src/models"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// Defaults and validation
// -----------------------------------------------------------------------------

const (
	defaultSymbol    = "AAPL"
	defaultTimeframe = "1Min"
	defaultLimit     = 500
	defaultFeed      = "delayed_sip"
)

// The vendor's recognized bar timeframes. Anything else is rejected before
// the vendor call rather than passed through.
var validTimeframes = map[string]bool{
	"1Min":  true,
	"5Min":  true,
	"15Min": true,
	"1Hour": true,
	"1Day":  true,
}

// -----------------------------------------------------------------------------
// REST Proxy Handlers
// -----------------------------------------------------------------------------

func (s *RelayServer) getBars(c *gin.Context) {
	symbol := normalizeSymbol(c.Query("symbol"))

	timeframe := c.DefaultQuery("timeframe", defaultTimeframe)
	if !validTimeframes[timeframe] {
		c.JSON(400, gin.H{"error": fmt.Sprintf("invalid timeframe %q (accepted: 1Min, 5Min, 15Min, 1Hour, 1Day)", timeframe)})
		return
	}

	limit := defaultLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(400, gin.H{"error": fmt.Sprintf("invalid limit %q", raw)})
			return
		}
		limit = parsed
	}

	query := models.MBarsQuery{
		Symbol:    symbol,
		Timeframe: timeframe,
		Start:     c.Query("start"),
		End:       c.Query("end"),
		Limit:     limit,
		Feed:      c.DefaultQuery("feed", defaultFeed),
	}

	start := time.Now()
	body, err := s.vendor.GetBars(c.Request.Context(), query)
	s.finishProxy(c, "bars", symbol, start, body, err)
}

// -----------------------------------------------------------------------------

func (s *RelayServer) getSnapshot(c *gin.Context) {
	symbol := normalizeSymbol(c.Query("symbol"))
	feed := c.DefaultQuery("feed", defaultFeed)

	start := time.Now()
	body, err := s.vendor.GetSnapshot(c.Request.Context(), symbol, feed)
	s.finishProxy(c, "snapshot", symbol, start, body, err)
}

// -----------------------------------------------------------------------------

func (s *RelayServer) getAccount(c *gin.Context) {
	start := time.Now()
	body, err := s.vendor.GetAccount(c.Request.Context())
	s.finishProxy(c, "account", "", start, body, err)
}

// -----------------------------------------------------------------------------

func (s *RelayServer) getPositions(c *gin.Context) {
	start := time.Now()
	body, err := s.vendor.GetPositions(c.Request.Context())
	s.finishProxy(c, "positions", "", start, body, err)
}

// -----------------------------------------------------------------------------

// orderBody is the browser-facing order shape. Qty is interface{} because
// clients send it as a JSON number or a string interchangeably.
type orderBody struct {
	Symbol      string      `json:"symbol"`
	Qty         interface{} `json:"qty"`
	Side        string      `json:"side"`
	Type        string      `json:"type"`
	TimeInForce string      `json:"time_in_force"`
}

// -----------------------------------------------------------------------------

func (s *RelayServer) postOrder(c *gin.Context) {
	var body orderBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(400, gin.H{"error": fmt.Sprintf("invalid order body: %v", err)})
		return
	}

	if strings.TrimSpace(body.Symbol) == "" {
		c.JSON(400, gin.H{"error": "symbol is required"})
		return
	}

	ticket := models.MOrderTicket{
		Symbol:      strings.ToUpper(strings.TrimSpace(body.Symbol)),
		Qty:         stringifyQty(body.Qty),
		Side:        coerceSide(body.Side),
		Type:        orDefault(body.Type, "market"),
		TimeInForce: orDefault(body.TimeInForce, "day"),
	}

	start := time.Now()
	resp, err := s.vendor.CreateOrder(c.Request.Context(), ticket)
	s.finishProxy(c, "order", ticket.Symbol, start, resp, err)
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// finishProxy writes the vendor response (unmodified on success, uniform
// {error} on failure) and records the call in the audit store.
func (s *RelayServer) finishProxy(c *gin.Context, endpoint, symbol string, start time.Time, body []byte, err error) {
	status := 200
	if err != nil {
		status = vendorStatus(err)
		c.JSON(500, gin.H{"error": err.Error()})
	} else {
		c.Data(200, "application/json", body)
	}

	s.auditProxy(endpoint, symbol, status, time.Since(start))
}

// -----------------------------------------------------------------------------

func (s *RelayServer) auditProxy(endpoint, symbol string, vendorStatus int, latency time.Duration) {
	if s.db == nil {
		return
	}
	rec := models.MProxyRequestRecord{
		Timestamp:    time.Now().Unix(),
		Endpoint:     endpoint,
		Symbol:       symbol,
		VendorStatus: vendorStatus,
		LatencyMs:    latency.Milliseconds(),
	}
	if err := s.db.SaveProxyRequest(rec); err != nil {
		s.Logger.Debug("failed to save proxy request record: %v", err)
	}
}

// -----------------------------------------------------------------------------

// vendorStatus extracts the vendor HTTP status from a proxy error, or 0 for
// transport-level failures that never reached the vendor.
func vendorStatus(err error) int {
	var apiErr *alpaca.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// -----------------------------------------------------------------------------

func normalizeSymbol(symbol string) string {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return defaultSymbol
	}
	return strings.ToUpper(symbol)
}

// -----------------------------------------------------------------------------

// coerceSide maps anything but an exact "sell" to "buy".
func coerceSide(side string) string {
	if side == "sell" {
		return "sell"
	}
	return "buy"
}

// -----------------------------------------------------------------------------

// stringifyQty renders the client-supplied quantity as the string the vendor
// order API expects. Whole-number floats lose their fraction marker, so a
// JSON 5 becomes "5".
func stringifyQty(qty interface{}) string {
	switch v := qty.(type) {
	case nil:
		return "1"
	case string:
		if strings.TrimSpace(v) == "" {
			return "1"
		}
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// -----------------------------------------------------------------------------

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
