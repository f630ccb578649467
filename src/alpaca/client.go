package alpaca

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"market-relay/src/logger"
	"market-relay/src/models"
)

// -----------------------------------------------------------------------------
// APIError
// -----------------------------------------------------------------------------

// APIError is any non-2xx response from the vendor. Its Error() string is
// what REST proxy callers ultimately see inside the {error} body, so it
// carries the vendor status code, status text and response body.
type APIError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if body == "" {
		return fmt.Sprintf("%d %s", e.StatusCode, e.Status)
	}
	return fmt.Sprintf("%d %s %s", e.StatusCode, e.Status, body)
}

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

// Client talks to the vendor's data and paper-trading REST APIs. Credentials
// come exclusively from the injected config; nothing a browser sends is ever
// used for authentication.
type Client struct {
	Config     *models.MAlpacaConfig
	Logger     *logger.Logger
	httpClient *http.Client
}

// -----------------------------------------------------------------------------

// NewClient creates a vendor REST client with a per-request deadline taken
// from the network config.
func NewClient(cfg *models.MAlpacaConfig, net *models.MNetworkConfig, log *logger.Logger) *Client {
	return &Client{
		Config: cfg,
		Logger: log,
		httpClient: &http.Client{
			Timeout: time.Duration(net.RequestTimeout) * time.Second,
		},
	}
}

// -----------------------------------------------------------------------------
// IVendorREST implementation
// -----------------------------------------------------------------------------

// GetBars fetches historical bars for one symbol.
func (c *Client) GetBars(ctx context.Context, query models.MBarsQuery) ([]byte, error) {
	q := url.Values{}
	q.Set("timeframe", query.Timeframe)
	q.Set("limit", strconv.Itoa(query.Limit))
	q.Set("feed", query.Feed)
	if query.Start != "" {
		q.Set("start", query.Start)
	}
	if query.End != "" {
		q.Set("end", query.End)
	}

	path := fmt.Sprintf("/v2/stocks/%s/bars", url.PathEscape(query.Symbol))
	return c.doRequest(ctx, http.MethodGet, c.Config.DataBaseURL+path, q, nil)
}

// -----------------------------------------------------------------------------

// GetSnapshot fetches the latest snapshot for one symbol.
func (c *Client) GetSnapshot(ctx context.Context, symbol, feed string) ([]byte, error) {
	q := url.Values{}
	q.Set("feed", feed)

	path := fmt.Sprintf("/v2/stocks/%s/snapshot", url.PathEscape(symbol))
	return c.doRequest(ctx, http.MethodGet, c.Config.DataBaseURL+path, q, nil)
}

// -----------------------------------------------------------------------------

// GetAccount fetches the paper-trading account.
func (c *Client) GetAccount(ctx context.Context) ([]byte, error) {
	return c.doRequest(ctx, http.MethodGet, c.Config.PaperBaseURL+"/v2/account", nil, nil)
}

// -----------------------------------------------------------------------------

// GetPositions fetches the paper-trading positions array.
func (c *Client) GetPositions(ctx context.Context) ([]byte, error) {
	return c.doRequest(ctx, http.MethodGet, c.Config.PaperBaseURL+"/v2/positions", nil, nil)
}

// -----------------------------------------------------------------------------

// CreateOrder places a paper-trading order.
func (c *Client) CreateOrder(ctx context.Context, ticket models.MOrderTicket) ([]byte, error) {
	payload, err := json.Marshal(ticket)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order ticket: %w", err)
	}
	return c.doRequest(ctx, http.MethodPost, c.Config.PaperBaseURL+"/v2/orders", nil, payload)
}

// -----------------------------------------------------------------------------
// Private methods
// -----------------------------------------------------------------------------

// doRequest performs one vendor call. Single attempt, no retry: the proxy
// surfaces failures to the browser instead of hiding them behind retries.
func (c *Client) doRequest(ctx context.Context, method, fullURL string, query url.Values, body []byte) ([]byte, error) {
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("APCA-API-KEY-ID", c.Config.KeyID)
	req.Header.Set("APCA-API-SECRET-KEY", c.Config.SecretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vendor request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read vendor response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.Logger.Warning("vendor returned %d for %s %s", resp.StatusCode, method, fullURL)
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Status:     http.StatusText(resp.StatusCode),
			Body:       respBody,
		}
	}

	return respBody, nil
}
