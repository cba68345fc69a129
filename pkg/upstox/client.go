// Package upstox is a REST client for the Upstox market-data and login APIs.
// It covers the endpoints the screener needs: historical and intraday candles
// and the OAuth authorization-code exchange.
//
// Usage example:
//
//	c := upstox.NewClient(upstox.Config{AccessToken: token})
//	rows, err := c.HistoricalCandles(ctx, "NSE_EQ|INE002A01018", "days", 1, "2025-10-03", "2025-06-01")
//	if err != nil { log.Fatal(err) }
//	fmt.Println("got", len(rows), "candles")
package upstox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ---- Config & client ----

// Breaker guards outbound requests. A breaker that refuses a call returns
// its own error without invoking fn.
type Breaker interface {
	Execute(fn func() error) error
}

type Config struct {
	APIKey      string // client_id
	APISecret   string // client_secret
	RedirectURL string
	AccessToken string

	BaseURL    string        // default: https://api.upstox.com
	Timeout    time.Duration // default: 10s
	HTTPClient *http.Client  // optional; overrides Timeout
	Debug      bool

	// Retry policy for 429 and 5xx responses and network errors.
	MaxRetries      uint64        // default: 4
	RetryInitial    time.Duration // default: 500ms
	RetryMaxElapsed time.Duration // default: 30s

	Breaker Breaker      // optional
	Logger  *slog.Logger // default: slog.Default()
}

type Client struct {
	apiKey      string
	apiSecret   string
	redirectURL string
	accessToken string

	baseURL    string
	httpClient *http.Client
	debug      bool

	maxRetries      uint64
	retryInitial    time.Duration
	retryMaxElapsed time.Duration

	breaker Breaker
	log     *slog.Logger
}

const (
	defaultBaseURL = "https://api.upstox.com"
	apiVersion     = "2.0"
)

var routes = map[string]string{
	"login.dialog": "/v2/login/authorization/dialog",
	"login.token":  "/v2/login/authorization/token",

	"candle.historical": "/v3/historical-candle/%s/%s/%d/%s",
	"candle.intraday":   "/v3/historical-candle/intraday/%s/%s/%d",
}

// NewClient initializes the client with defaults applied.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 4
	}
	if cfg.RetryInitial == 0 {
		cfg.RetryInitial = 500 * time.Millisecond
	}
	if cfg.RetryMaxElapsed == 0 {
		cfg.RetryMaxElapsed = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		apiKey:          cfg.APIKey,
		apiSecret:       cfg.APISecret,
		redirectURL:     cfg.RedirectURL,
		accessToken:     cfg.AccessToken,
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:      cfg.HTTPClient,
		debug:           cfg.Debug,
		maxRetries:      cfg.MaxRetries,
		retryInitial:    cfg.RetryInitial,
		retryMaxElapsed: cfg.RetryMaxElapsed,
		breaker:         cfg.Breaker,
		log:             cfg.Logger.With(slog.String("component", "upstox")),
	}
}

// SetAccessToken replaces the bearer token used for market-data calls.
func (c *Client) SetAccessToken(t string) { c.accessToken = t }

// ---- Errors ----

// ErrTooManyRequests is wrapped by errors for HTTP 429 responses.
var ErrTooManyRequests = errors.New("upstox: too many requests")

// APIError is a non-2xx response or an envelope with status "error".
type APIError struct {
	StatusCode int
	Code       string // provider error code, e.g. UDAPI100050
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("upstox: http %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("upstox: http %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusTooManyRequests {
		return ErrTooManyRequests
	}
	return nil
}

// retryable reports whether the failure is worth another attempt.
func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		ErrorCode string `json:"errorCode"`
		Message   string `json:"message"`
	} `json:"errors"`
}

// ---- Helpers ----

func (c *Client) requestHeaders(form bool) http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	h.Set("Api-Version", apiVersion)
	if form {
		h.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.accessToken != "" {
		h.Set("Authorization", "Bearer "+c.accessToken)
	}
	return h
}

// do sends a request with retry and circuit breaking and decodes the
// envelope's data field into out.
func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	reqURL := c.baseURL + path

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.retryInitial
	eb.MaxElapsedTime = c.retryMaxElapsed
	bo := backoff.WithContext(backoff.WithMaxRetries(eb, c.maxRetries), ctx)

	op := func() error {
		if c.breaker == nil {
			return c.attempt(ctx, method, reqURL, form, out)
		}
		called := false
		err := c.breaker.Execute(func() error {
			called = true
			return c.attempt(ctx, method, reqURL, form, out)
		})
		if err != nil && !called {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		if errors.Is(err, ErrTooManyRequests) {
			c.log.Info("rate limited, waiting before retry",
				slog.String("path", path), slog.Duration("wait", wait))
			return
		}
		c.log.Warn("request failed, retrying",
			slog.String("method", method), slog.String("path", path),
			slog.Duration("wait", wait), slog.Any("err", err))
	}
	return backoff.RetryNotify(op, bo, notify)
}

// attempt performs one HTTP round trip. Non-retryable failures are
// returned as backoff.Permanent.
func (c *Client) attempt(ctx context.Context, method, reqURL string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header = c.requestHeaders(form != nil)

	if c.debug {
		c.log.Debug("request", slog.String("method", method), slog.String("url", reqURL))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if c.debug {
		c.log.Debug("response", slog.Int("code", resp.StatusCode), slog.Int("bytes", len(raw)))
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || env.Status == "error" {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(bytes.TrimSpace(raw))}
		if decodeErr == nil && len(env.Errors) > 0 {
			apiErr.Code = env.Errors[0].ErrorCode
			apiErr.Message = env.Errors[0].Message
		}
		if apiErr.retryable() {
			return apiErr
		}
		return backoff.Permanent(apiErr)
	}
	if decodeErr != nil {
		return backoff.Permanent(fmt.Errorf("upstox: couldn't parse JSON response: %w", decodeErr))
	}
	if out == nil {
		return nil
	}
	// The token endpoint answers with a bare object, not an envelope.
	data := env.Data
	if len(data) == 0 {
		data = raw
	}
	if err := json.Unmarshal(data, out); err != nil {
		return backoff.Permanent(fmt.Errorf("upstox: couldn't parse response data: %w", err))
	}
	return nil
}

// IsTransient reports whether err is a failure worth counting against the
// provider's health: network errors, 429 and 5xx responses. Client errors
// such as an unknown instrument are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.retryable()
	}
	var perm *backoff.PermanentError
	return !errors.As(err, &perm)
}
