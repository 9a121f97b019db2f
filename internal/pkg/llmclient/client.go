// Package llmclient provides the base HTTP client shared by AI provider adapters:
// request building, bounded retries with backoff, error classification and circuit breaking.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"ascendfit/internal/core"
	"ascendfit/internal/httpclient"
)

// Config holds configuration for the provider client
type Config struct {
	// ProviderName identifies the provider in errors and logs
	ProviderName string

	// BaseURL is prefixed to relative endpoints
	BaseURL string

	MaxRetries     int           // retries after the first attempt (default: 2)
	InitialBackoff time.Duration // default: 500ms
	MaxBackoff     time.Duration // default: 8s
	BackoffFactor  float64       // default: 2.0

	// CircuitBreaker is disabled when nil
	CircuitBreaker *CircuitBreakerConfig
}

// CircuitBreakerConfig holds circuit breaker settings
type CircuitBreakerConfig struct {
	// ConsecutiveFailures opens the circuit
	ConsecutiveFailures uint32
	// HalfOpenRequests is the number of probes allowed while half-open
	HalfOpenRequests uint32
	// OpenTimeout is how long the circuit stays open before probing
	OpenTimeout time.Duration
}

// DefaultConfig returns default client configuration
func DefaultConfig(providerName, baseURL string) Config {
	return Config{
		ProviderName:   providerName,
		BaseURL:        baseURL,
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
		BackoffFactor:  2.0,
		CircuitBreaker: &CircuitBreakerConfig{
			ConsecutiveFailures: 5,
			HalfOpenRequests:    1,
			OpenTimeout:         30 * time.Second,
		},
	}
}

// HeaderSetter is a function that sets headers on an HTTP request
type HeaderSetter func(req *http.Request)

// Client is a base HTTP client for AI providers
type Client struct {
	httpClient   *http.Client
	config       Config
	headerSetter HeaderSetter
	breaker      *gobreaker.CircuitBreaker[any]
}

// New creates a client on the default unary HTTP client
func New(config Config, headerSetter HeaderSetter) *Client {
	return NewWithHTTPClient(httpclient.NewHTTPClient(nil), config, headerSetter)
}

// NewWithHTTPClient creates a client on a caller-supplied HTTP client
func NewWithHTTPClient(httpClient *http.Client, config Config, headerSetter HeaderSetter) *Client {
	c := &Client{
		httpClient:   httpClient,
		config:       config,
		headerSetter: headerSetter,
	}
	if config.CircuitBreaker != nil {
		c.breaker = newBreaker(config.ProviderName, *config.CircuitBreaker)
	}
	return c
}

func newBreaker(name string, cfg CircuitBreakerConfig) *gobreaker.CircuitBreaker[any] {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !countsAsFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "provider", name, "from", from.String(), "to", to.String())
		},
	})
}

// countsAsFailure reports whether err says the provider itself is unhealthy.
// Client-side mistakes, rate limits and quota errors leave the circuit alone.
func countsAsFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var fe *core.FitError
	if !errors.As(err, &fe) {
		return true
	}
	switch fe.Kind {
	case core.ErrorKindRateLimit, core.ErrorKindQuota, core.ErrorKindValidation:
		return false
	}
	return fe.StatusCode == 0 || fe.StatusCode >= 500
}

// BaseURL returns the current base URL
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Request represents an HTTP request to be made
type Request struct {
	Method string
	// Endpoint is appended to BaseURL unless it is already an absolute URL
	Endpoint string
	// Body is JSON encoded when RawBody is nil
	Body        interface{}
	RawBody     []byte
	ContentType string
	Headers     map[string]string
	// NoRetry sends the request exactly once
	NoRetry bool
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Do executes a request and unmarshals the JSON response into result
func (c *Client) Do(ctx context.Context, req Request, result interface{}) error {
	resp, err := c.DoRaw(ctx, req)
	if err != nil {
		return err
	}
	if result != nil {
		if err := json.Unmarshal(resp.Body, result); err != nil {
			return core.NewProviderError(c.config.ProviderName, resp.StatusCode, "failed to unmarshal response: "+err.Error(), err)
		}
	}
	return nil
}

// DoRaw executes a request with retries and circuit breaking and returns the raw
// 2xx response. Any other status is returned as a *core.FitError.
func (c *Client) DoRaw(ctx context.Context, req Request) (*Response, error) {
	if c.breaker == nil {
		return c.doWithRetry(ctx, req)
	}
	out, err := c.breaker.Execute(func() (any, error) {
		return c.doWithRetry(ctx, req)
	})
	if err != nil {
		return nil, c.breakerError(err)
	}
	return out.(*Response), nil
}

func (c *Client) doWithRetry(ctx context.Context, req Request) (*Response, error) {
	maxAttempts := c.config.MaxRetries + 1
	if req.NoRetry || maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.calculateBackoff(attempt)
			slog.Debug("retrying provider request",
				"provider", c.config.ProviderName,
				"feature", core.GetFeature(ctx),
				"request_id", core.GetRequestID(ctx),
				"attempt", attempt+1,
				"backoff", backoff,
				"error", lastErr,
			)
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		resp, err := c.doRequest(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		lastErr = core.ParseProviderError(c.config.ProviderName, resp.StatusCode, resp.Body, nil)
		if !isRetryable(resp.StatusCode) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// DoStream opens a streaming request and returns its body once a 2xx status arrives.
// Streams are never retried because the caller may already have consumed events.
func (c *Client) DoStream(ctx context.Context, req Request) (io.ReadCloser, error) {
	open := func() (any, error) {
		httpReq, err := c.buildRequest(ctx, req)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, core.NewProviderError(c.config.ProviderName, 0, "failed to send request: "+err.Error(), err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			respBody, readErr := io.ReadAll(resp.Body)
			if readErr != nil {
				respBody = []byte("failed to read error response")
			}
			_ = resp.Body.Close()
			return nil, core.ParseProviderError(c.config.ProviderName, resp.StatusCode, respBody, nil)
		}
		return resp.Body, nil
	}

	if c.breaker == nil {
		body, err := open()
		if err != nil {
			return nil, err
		}
		return body.(io.ReadCloser), nil
	}
	body, err := c.breaker.Execute(open)
	if err != nil {
		return nil, c.breakerError(err)
	}
	return body.(io.ReadCloser), nil
}

func (c *Client) breakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return core.NewProviderError(c.config.ProviderName, http.StatusServiceUnavailable,
			"circuit breaker is open - provider temporarily unavailable", err)
	}
	return err
}

// doRequest executes a single HTTP request without retries
func (c *Client) doRequest(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, core.NewProviderError(c.config.ProviderName, 0, "failed to send request: "+err.Error(), err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewProviderError(c.config.ProviderName, 0, "failed to read response: "+err.Error(), err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	url := req.Endpoint
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = c.config.BaseURL + req.Endpoint
	}

	var bodyReader io.Reader
	contentType := req.ContentType
	switch {
	case req.RawBody != nil:
		bodyReader = bytes.NewReader(req.RawBody)
	case req.Body != nil:
		bodyBytes, err := json.Marshal(req.Body)
		if err != nil {
			return nil, core.NewInternalError("failed to marshal request", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
		if contentType == "" {
			contentType = "application/json"
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, bodyReader)
	if err != nil {
		return nil, core.NewInternalError("failed to create request", err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	if c.headerSetter != nil {
		c.headerSetter(httpReq)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	return httpReq, nil
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	factor := c.config.BackoffFactor
	if factor <= 0 {
		factor = 2.0
	}
	backoff := float64(c.config.InitialBackoff) * math.Pow(factor, float64(attempt-1))
	if c.config.MaxBackoff > 0 && backoff > float64(c.config.MaxBackoff) {
		backoff = float64(c.config.MaxBackoff)
	}
	return time.Duration(backoff)
}

// isRetryable covers transient gateway failures only. 429 is surfaced to the
// caller immediately so clients can back off themselves.
func isRetryable(statusCode int) bool {
	return statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusBadGateway ||
		statusCode == http.StatusGatewayTimeout
}
