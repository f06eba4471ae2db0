package bybitclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jpillora/backoff"
	jsoniter "github.com/json-iterator/go"

	"tradeJournal/internal/domain"
	"tradeJournal/internal/ports"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// Base URLs
	baseURLProduction = "https://api.bybit.com"

	pathClosedPnl     = "/v5/position/closed-pnl"
	pathOrderHistory  = "/v5/order/history"
	pathExecutionList = "/v5/execution/list"
	pathServerTime    = "/v5/market/time"

	maxPageSize = 100
)

// Client implements the ports.FeedClient interface against the Bybit V5 REST API.
type Client struct {
	httpClient       *http.Client
	logger           ports.Logger
	apiKey           string
	secretKey        string
	baseURL          string
	category         string
	settleCoin       string
	recvWindowMs     int
	pageSize         int
	rateLimitRetries int
	retryMinDelay    time.Duration
	retryMaxDelay    time.Duration
	now              func() time.Time
}

// Config holds configuration specific to the Bybit client adapter.
type Config struct {
	APIKey           string
	SecretKey        string
	BaseURL          string // Defaults to production
	Category         string // Defaults to "linear"
	SettleCoin       string // Defaults to "USDT"
	RecvWindowMs     int    // Defaults to 5000
	PageSize         int    // Page size of the execution feed, defaults to 50
	Timeout          time.Duration
	RateLimitRetries int
	RetryMinDelay    time.Duration // First backoff step for rate-limited calls (e.g., 500 * time.Millisecond)
	RetryMaxDelay    time.Duration
	Logger           ports.Logger
	HTTPClient       *http.Client     // Optional, a client with Timeout is built otherwise
	Now              func() time.Time // Optional clock used for request timestamps
}

// New creates a new Bybit client adapter. Credentials are mandatory since every
// feed used for reconciliation is private.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Bybit client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("bybit client requires API key and secret: %w", ports.ErrConfigurationError)
	}

	c := &Client{
		httpClient:       cfg.HTTPClient,
		logger:           cfg.Logger,
		apiKey:           cfg.APIKey,
		secretKey:        cfg.SecretKey,
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		category:         cfg.Category,
		settleCoin:       cfg.SettleCoin,
		recvWindowMs:     cfg.RecvWindowMs,
		pageSize:         cfg.PageSize,
		rateLimitRetries: cfg.RateLimitRetries,
		retryMinDelay:    cfg.RetryMinDelay,
		retryMaxDelay:    cfg.RetryMaxDelay,
		now:              cfg.Now,
	}

	if c.baseURL == "" {
		c.baseURL = baseURLProduction
	}
	if c.category == "" {
		c.category = "linear"
	}
	if c.settleCoin == "" {
		c.settleCoin = "USDT"
	}
	if c.recvWindowMs <= 0 {
		c.recvWindowMs = 5000
	}
	if c.pageSize <= 0 || c.pageSize > maxPageSize {
		c.pageSize = 50
	}
	if c.rateLimitRetries < 0 {
		c.rateLimitRetries = 0
	}
	if c.retryMinDelay <= 0 {
		c.retryMinDelay = 500 * time.Millisecond
	}
	if c.retryMaxDelay < c.retryMinDelay {
		c.retryMaxDelay = 10 * time.Second
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}

	cfg.Logger.Info(context.Background(), "Bybit client configured", map[string]interface{}{
		"baseURL":    c.baseURL,
		"category":   c.category,
		"settleCoin": c.settleCoin,
	})
	return c, nil
}

// APIError is a non-zero retCode returned inside a Bybit response envelope.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("<APIError> retCode=%d, retMsg=%s", e.Code, e.Message)
}

// HTTPError is a non-2xx status without a usable envelope.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("<HTTPError> status=%d, body=%s", e.StatusCode, e.Body)
}

type envelope struct {
	RetCode int                 `json:"retCode"`
	RetMsg  string              `json:"retMsg"`
	Result  jsoniter.RawMessage `json:"result"`
	Time    int64               `json:"time"`
}

type listResult[T any] struct {
	Category       string `json:"category"`
	List           []T    `json:"list"`
	NextPageCursor string `json:"nextPageCursor"`
}

type serverTimeResult struct {
	TimeSecond string `json:"timeSecond"`
	TimeNano   string `json:"timeNano"`
}

// isRateLimited reports whether err is worth another attempt after a pause.
func isRateLimited(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 10006 || apiErr.Code == 10018
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// handleError translates Bybit failures into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var mappedErr error
	var apiErr *APIError
	var httpErr *HTTPError
	switch {
	case errors.As(err, &apiErr):
		fields["retCode"] = apiErr.Code
		fields["retMsg"] = apiErr.Message
		switch apiErr.Code {
		case 10003, // API key is invalid
			10004, // Signature error
			10005, // Permission denied
			10007, // User authentication failed
			33004: // API key expired
			mappedErr = ports.ErrAuthenticationFailed
		case 10006, 10018: // Too many visits
			mappedErr = ports.ErrRateLimited
		case 10002: // Request timestamp outside recv_window
			mappedErr = ports.ErrTimeout
		case 10001: // Parameter error
			mappedErr = ports.ErrInvalidRequest
		default:
			mappedErr = ports.ErrTransport
		}
	case errors.As(err, &httpErr):
		fields["status"] = httpErr.StatusCode
		switch httpErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			mappedErr = ports.ErrAuthenticationFailed
		case http.StatusTooManyRequests:
			mappedErr = ports.ErrRateLimited
		default:
			mappedErr = ports.ErrTransport
		}
	case errors.Is(err, context.DeadlineExceeded):
		mappedErr = ports.ErrTimeout
	case errors.Is(err, context.Canceled):
		finalErr := fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
		c.logger.Debug(ctx, operation+" canceled", fields)
		return finalErr
	default:
		// Network failures and undecodable bodies
		mappedErr = ports.ErrTransport
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
}

// get performs one request, retrying only rate-limited responses, and returns the raw
// result object of the envelope.
func (c *Client) get(ctx context.Context, operation, path string, params map[string]string, signed bool) (jsoniter.RawMessage, error) {
	query := encodeQuery(params)
	b := &backoff.Backoff{Min: c.retryMinDelay, Max: c.retryMaxDelay, Factor: 2, Jitter: true}

	for {
		start := time.Now()
		result, err := c.send(ctx, path, query, signed)
		c.logger.Debug(ctx, operation+" request completed", map[string]interface{}{
			"path":     path,
			"query":    query,
			"duration": time.Since(start).String(),
			"ok":       err == nil,
		})
		if err == nil {
			return result, nil
		}
		if !isRateLimited(err) || int(b.Attempt()) >= c.rateLimitRetries {
			return nil, c.handleError(ctx, err, operation)
		}

		delay := b.Duration()
		c.logger.Warn(ctx, operation+": rate limited, backing off", map[string]interface{}{
			"attempt": int(b.Attempt()),
			"delay":   delay.String(),
		})
		select {
		case <-ctx.Done():
			return nil, c.handleError(ctx, ctx.Err(), operation)
		case <-time.After(delay):
		}
	}
}

func (c *Client) send(ctx context.Context, path, query string, signed bool) (jsoniter.RawMessage, error) {
	endpoint := c.baseURL + path
	if query != "" {
		endpoint += "?" + query
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	if signed {
		ts := c.now().UnixMilli()
		req.Header.Set("X-BAPI-API-KEY", c.apiKey)
		req.Header.Set("X-BAPI-TIMESTAMP", strconv.FormatInt(ts, 10))
		req.Header.Set("X-BAPI-RECV-WINDOW", strconv.Itoa(c.recvWindowMs))
		req.Header.Set("X-BAPI-SIGN", sign(c.secretKey, signaturePayload(ts, c.apiKey, c.recvWindowMs, query)))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil && env.RetCode != 0 {
			return nil, &APIError{Code: env.RetCode, Message: env.RetMsg}
		}
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode response envelope: %w", decodeErr)
	}
	if env.RetCode != 0 {
		return nil, &APIError{Code: env.RetCode, Message: env.RetMsg}
	}
	return env.Result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// getList fetches a paginated V5 list endpoint and returns its first page.
func getList[T any](ctx context.Context, c *Client, operation, path string, params map[string]string) ([]T, error) {
	raw, err := c.get(ctx, operation, path, params, true)
	if err != nil {
		return nil, err
	}
	var res listResult[T]
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &res); err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("decode %s result: %w", path, err), operation)
		}
	}
	if res.List == nil {
		return []T{}, nil
	}
	return res.List, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

// ListClosedPositions retrieves the latest closed positions for the configured settle coin.
func (c *Client) ListClosedPositions(ctx context.Context, limit int) ([]domain.ClosedPosition, error) {
	op := "ListClosedPositions"
	positions, err := getList[domain.ClosedPosition](ctx, c, op, pathClosedPnl, map[string]string{
		"category":   c.category,
		"settleCoin": c.settleCoin,
		"limit":      strconv.Itoa(clampLimit(limit)),
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"count": len(positions)})
	return positions, nil
}

// ListOrders retrieves the recent order history for a symbol.
func (c *Client) ListOrders(ctx context.Context, symbol string, limit int) ([]domain.OrderRecord, error) {
	op := "ListOrders"
	orders, err := getList[domain.OrderRecord](ctx, c, op, pathOrderHistory, map[string]string{
		"category": c.category,
		"symbol":   symbol,
		"limit":    strconv.Itoa(clampLimit(limit)),
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "count": len(orders)})
	return orders, nil
}

// ListExecutions retrieves fills for a symbol starting at sinceMs.
func (c *Client) ListExecutions(ctx context.Context, symbol string, sinceMs int64) ([]domain.Execution, error) {
	op := "ListExecutions"
	execs, err := getList[domain.Execution](ctx, c, op, pathExecutionList, map[string]string{
		"category":  c.category,
		"symbol":    symbol,
		"startTime": strconv.FormatInt(sinceMs, 10),
		"limit":     strconv.Itoa(c.pageSize),
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "since": sinceMs, "count": len(execs)})
	return execs, nil
}

// ServerTime retrieves the current server time from the exchange (public endpoint).
func (c *Client) ServerTime(ctx context.Context) (time.Time, error) {
	op := "ServerTime"
	raw, err := c.get(ctx, op, pathServerTime, nil, false)
	if err != nil {
		return time.Time{}, err
	}
	var res serverTimeResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return time.Time{}, c.handleError(ctx, fmt.Errorf("decode server time: %w", err), op)
	}
	nanos, err := strconv.ParseInt(res.TimeNano, 10, 64)
	if err != nil {
		return time.Time{}, c.handleError(ctx, fmt.Errorf("could not parse server time '%s': %w", res.TimeNano, err), op)
	}
	return time.Unix(0, nanos).UTC(), nil
}
