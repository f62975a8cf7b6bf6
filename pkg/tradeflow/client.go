// Package tradeflow provides a Go client for the tradeflow-server API.
package tradeflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// TraceHeader carries the trace id between client and server. When a request
// sets it, the server reuses the caller's id for the whole pipeline run.
const TraceHeader = "X-Trace-Id"

// Client talks to a tradeflow-server instance.
type Client struct {
	baseURL    string
	traceID    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTraceID sets a fixed trace id sent on every request.
func WithTraceID(id string) Option {
	return func(c *Client) { c.traceID = id }
}

// NewClient creates a client for the given base URL, e.g. "http://localhost:8080".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitOrder submits an order on the standard workflow. Rejected and errored
// orders are not client errors: the returned outcome's Status says what
// happened.
func (c *Client) SubmitOrder(ctx context.Context, req OrderRequest) (*Outcome, error) {
	return c.submit(ctx, "/api/v1/orders", req)
}

// SubmitInstitutional submits an order on the institutional workflow.
func (c *Client) SubmitInstitutional(ctx context.Context, req OrderRequest) (*Outcome, error) {
	return c.submit(ctx, "/api/v1/orders/institutional", req)
}

// SubmitAlgo submits an order on the algorithmic workflow.
func (c *Client) SubmitAlgo(ctx context.Context, req OrderRequest) (*Outcome, error) {
	return c.submit(ctx, "/api/v1/orders/algo", req)
}

func (c *Client) submit(ctx context.Context, path string, req OrderRequest) (*Outcome, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding order: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.traceID != "" {
		httpReq.Header.Set(TraceHeader, c.traceID)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// 200, 422 and 502 all carry an outcome body. Anything else is a
	// transport-level failure.
	switch resp.StatusCode {
	case http.StatusOK, http.StatusUnprocessableEntity, http.StatusBadGateway:
		var outcome Outcome
		if err := json.NewDecoder(resp.Body).Decode(&outcome); err != nil {
			return nil, fmt.Errorf("decoding outcome: %w", err)
		}
		return &outcome, nil
	default:
		return nil, apiError(resp)
	}
}

// GetOrder fetches the stored outcome for an order id.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Outcome, error) {
	var outcome Outcome
	if err := c.get(ctx, "/api/v1/orders/"+url.PathEscape(orderID), &outcome); err != nil {
		return nil, err
	}
	return &outcome, nil
}

// ListOrders lists stored outcomes, optionally filtered by terminal status
// (EXECUTED, REJECTED, ERROR). A zero limit uses the server default.
func (c *Client) ListOrders(ctx context.Context, status string, limit int) (*OrderList, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/v1/orders"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var list OrderList
	if err := c.get(ctx, path, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetPrice fetches the indicative quote for a symbol.
func (c *Client) GetPrice(ctx context.Context, symbol string) (*Price, error) {
	var price Price
	if err := c.get(ctx, "/api/v1/prices/"+url.PathEscape(symbol), &price); err != nil {
		return nil, err
	}
	return &price, nil
}

// GetPositions fetches the live post-trade account snapshot.
func (c *Client) GetPositions(ctx context.Context) (*Positions, error) {
	var pos Positions
	if err := c.get(ctx, "/api/v1/positions", &pos); err != nil {
		return nil, err
	}
	return &pos, nil
}

// Health checks server liveness.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.get(ctx, "/health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// GetMetrics fetches the pipeline counters.
func (c *Client) GetMetrics(ctx context.Context) (*Metrics, error) {
	var m Metrics
	if err := c.get(ctx, "/metrics", &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if c.traceID != "" {
		req.Header.Set(TraceHeader, c.traceID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
	}
	return fmt.Errorf("server returned %d", resp.StatusCode)
}
