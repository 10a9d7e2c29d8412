package fetchkit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/studyhall-labs/fetchkit/internal/backoff"
)

// RetryCondition decides whether a failed attempt should be retried.
// statusCode is zero and err non-nil for transport-level failures; the
// reverse holds for HTTP-level failures.
type RetryCondition func(statusCode int, err error) bool

// DefaultRetryCondition retries transport errors and the retryable status
// family (408, 429, 5xx gateway/server errors). Other 4xx fail immediately.
func DefaultRetryCondition(statusCode int, err error) bool {
	if err != nil {
		return true
	}
	return RetryableStatus(statusCode)
}

// Client is a resilient HTTP client: per-attempt timeouts, classification
// aware retries with exponential backoff plus jitter, offline fast-fail,
// optional circuit breaking and rate limiting, and network status
// publication. It is safe for concurrent use.
type Client struct {
	httpClient        *http.Client
	maxRetries        int
	baseDelay         time.Duration
	maxDelay          time.Duration
	backoffMultiplier float64
	jitterMax         time.Duration
	timeout           time.Duration
	retryCondition    RetryCondition
	circuitBreaker    *CircuitBreaker
	rateLimiter       *RateLimiter
	status            *StatusMonitor
	metrics           *MetricsCollector
	logger            Logger
	validationError   error
}

// New constructs a Client using the provided functional options. A best
// effort validation is performed; call IsValid / ValidationError for errors.
func New(options ...Option) *Client {
	client := &Client{
		httpClient:        &http.Client{},
		maxRetries:        3,
		baseDelay:         time.Second,
		maxDelay:          10 * time.Second,
		backoffMultiplier: 2.0,
		jitterMax:         time.Second,
		timeout:           30 * time.Second,
		retryCondition:    DefaultRetryCondition,
		status:            NewStatusMonitor(),
	}

	for _, option := range options {
		option(client)
	}

	if client.metrics != nil && client.status != nil {
		client.metrics.RecordNetworkOnline("default", client.status.Online())
		client.status.Subscribe(func(s NetworkStatus) {
			client.metrics.RecordNetworkOnline("default", s.Online)
		})
	}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	return client
}

// Status returns the network status monitor this client publishes to.
func (c *Client) Status() *StatusMonitor {
	return c.status
}

// Get performs an HTTP GET and returns the parsed response body.
func (c *Client) Get(ctx context.Context, url string) (interface{}, error) {
	return c.do(ctx, http.MethodGet, url, nil)
}

// Post performs an HTTP POST with payload encoded as JSON.
func (c *Client) Post(ctx context.Context, url string, payload interface{}) (interface{}, error) {
	return c.do(ctx, http.MethodPost, url, payload)
}

// Put performs an HTTP PUT with payload encoded as JSON.
func (c *Client) Put(ctx context.Context, url string, payload interface{}) (interface{}, error) {
	return c.do(ctx, http.MethodPut, url, payload)
}

// Delete performs an HTTP DELETE and returns the parsed response body.
func (c *Client) Delete(ctx context.Context, url string) (interface{}, error) {
	return c.do(ctx, http.MethodDelete, url, nil)
}

// do funnels every verb through one retry routine. Success parses the body
// by Content-Type (JSON if declared, raw text otherwise). Retryable failures
// consume the backoff budget before surfacing; non-retryable 4xx surface
// immediately with the response body embedded.
func (c *Client) do(ctx context.Context, method, rawURL string, payload interface{}) (interface{}, error) {
	start := time.Now()
	endpoint := endpointFromURL(rawURL)

	if c.metrics != nil {
		c.metrics.RecordRequestStart(method, endpoint)
		defer c.metrics.RecordRequestEnd(method, endpoint)
	}

	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("fetchkit: encode request body: %w", err)
		}
		body = encoded
	}

	if !c.online() {
		return nil, c.failOffline(method, rawURL, endpoint, 0)
	}

	var lastErr *RequestError
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// A connection known to be down is not worth the remaining budget.
			if !c.online() {
				return nil, c.failOffline(method, rawURL, endpoint, attempt)
			}
			if c.status != nil {
				c.status.markRetrying(attempt)
			}
			if c.metrics != nil {
				c.metrics.RecordRetry(method, endpoint, attempt)
			}
			if c.logger != nil {
				c.logger.Info("Retry attempt", "method", method, "url", rawURL, "attempt", attempt, "maxRetries", c.maxRetries)
			}
		}

		if c.rateLimiter != nil {
			allowed := c.rateLimiter.Allow()
			if c.metrics != nil {
				c.metrics.RecordRateLimiterTokens("default", c.rateLimiter.Tokens())
			}
			if !allowed {
				reqErr := &RequestError{
					Kind:    ErrorKindRateLimit,
					Message: "rate limit exceeded",
					Method:  method,
					URL:     rawURL,
					Cause:   ErrRateLimited,
				}
				return nil, c.fail(reqErr, method, endpoint, start)
			}
		}

		if c.circuitBreaker != nil && !c.circuitBreaker.Allow() {
			reqErr := &RequestError{
				Kind:    ErrorKindCircuit,
				Message: "circuit breaker is open",
				Method:  method,
				URL:     rawURL,
				Cause:   ErrCircuitOpen,
			}
			return nil, c.fail(reqErr, method, endpoint, start)
		}

		result, reqErr := c.attempt(ctx, method, rawURL, body)
		if reqErr == nil {
			if c.circuitBreaker != nil {
				c.circuitBreaker.RecordSuccess()
				if c.metrics != nil {
					c.metrics.RecordCircuitBreakerState("default", c.circuitBreaker.State())
				}
			}
			if c.status != nil {
				c.status.markSuccess()
			}
			if c.metrics != nil {
				c.metrics.RecordRequest(method, endpoint, result.statusCode, time.Since(start))
			}
			return result.value, nil
		}

		if c.circuitBreaker != nil && c.countsAsBreakerFailure(reqErr) {
			c.circuitBreaker.RecordFailure()
			if c.metrics != nil {
				c.metrics.RecordCircuitBreakerState("default", c.circuitBreaker.State())
			}
		}

		// Caller gave up; surface the cancellation untouched.
		if ctx.Err() != nil && errors.Is(reqErr.Cause, context.Canceled) {
			return nil, ctx.Err()
		}

		reqErr.Attempt = attempt
		reqErr.MaxRetries = c.maxRetries

		if !c.shouldRetry(reqErr) || attempt == c.maxRetries {
			return nil, c.fail(reqErr, method, endpoint, start)
		}

		lastErr = reqErr
		delay := reqErr.retryAfter
		if delay <= 0 {
			delay = backoff.Delay(attempt, c.baseDelay, c.maxDelay, c.backoffMultiplier, c.jitterMax)
		}
		if c.logger != nil {
			c.logger.Info("Scheduling retry", "method", method, "url", rawURL, "attempt", attempt+1, "backoff", delay)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			// Caller abandonment, not a request failure; no terminal status.
			return nil, ctx.Err()
		}
	}

	return nil, c.fail(lastErr, method, endpoint, start)
}

type attemptResult struct {
	value      interface{}
	statusCode int
}

// attempt issues one HTTP call under the per-attempt timeout and classifies
// the outcome.
func (c *Client) attempt(parent context.Context, method, rawURL string, body []byte) (*attemptResult, *RequestError) {
	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, &RequestError{
			Kind:    ErrorKindClient,
			Message: "invalid request",
			Method:  method,
			URL:     rawURL,
			Cause:   err,
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) && parent.Err() == nil {
			return nil, &RequestError{
				Kind:    ErrorKindTimeout,
				Message: "request timed out",
				Method:  method,
				URL:     rawURL,
				Cause:   err,
			}
		}
		return nil, &RequestError{
			Kind:    ErrorKindNetwork,
			Message: "network request failed",
			Method:  method,
			URL:     rawURL,
			Cause:   err,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{
			Kind:    ErrorKindNetwork,
			Message: "reading response body failed",
			Method:  method,
			URL:     rawURL,
			Cause:   err,
		}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		value, perr := parseBody(resp.Header.Get("Content-Type"), data)
		if perr != nil {
			return nil, &RequestError{
				Kind:       ErrorKindClient,
				Message:    "decoding response body failed",
				StatusCode: resp.StatusCode,
				Method:     method,
				URL:        rawURL,
				Cause:      perr,
			}
		}
		return &attemptResult{value: value, statusCode: resp.StatusCode}, nil
	}

	kind := ErrorKindClient
	if resp.StatusCode >= 500 {
		kind = ErrorKindServer
	}
	reqErr := &RequestError{
		Kind:       kind,
		Message:    "request failed",
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(data)),
		Method:     method,
		URL:        rawURL,
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		reqErr.retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	}
	return nil, reqErr
}

func (c *Client) shouldRetry(reqErr *RequestError) bool {
	switch reqErr.Kind {
	case ErrorKindTimeout, ErrorKindNetwork:
		cause := reqErr.Cause
		if cause == nil {
			cause = reqErr
		}
		return c.retryCondition(0, cause)
	case ErrorKindServer, ErrorKindClient:
		return c.retryCondition(reqErr.StatusCode, nil)
	default:
		return false
	}
}

// countsAsBreakerFailure limits breaker accounting to failures that suggest
// the upstream is unhealthy, not caller mistakes.
func (c *Client) countsAsBreakerFailure(reqErr *RequestError) bool {
	switch reqErr.Kind {
	case ErrorKindTimeout, ErrorKindNetwork:
		return true
	case ErrorKindServer:
		return reqErr.StatusCode >= 500
	default:
		return false
	}
}

// fail records a terminal failure: metrics, status publication, log.
func (c *Client) fail(reqErr *RequestError, method, endpoint string, start time.Time) *RequestError {
	if c.metrics != nil {
		c.metrics.RecordError(reqErr.Kind, method, endpoint)
		c.metrics.RecordRequest(method, endpoint, reqErr.StatusCode, time.Since(start))
	}
	if c.status != nil {
		c.status.markFailure(reqErr.Error())
	}
	if c.logger != nil {
		c.logger.Error("Request failed", "method", method, "endpoint", endpoint, "kind", reqErr.Kind, "error", reqErr.Message)
	}
	return reqErr
}

func (c *Client) failOffline(method, rawURL, endpoint string, attempt int) *RequestError {
	reqErr := &RequestError{
		Kind:       ErrorKindOffline,
		Message:    "no connection",
		Method:     method,
		URL:        rawURL,
		Attempt:    attempt,
		MaxRetries: c.maxRetries,
		Cause:      ErrOffline,
	}
	if c.metrics != nil {
		c.metrics.RecordError(ErrorKindOffline, method, endpoint)
	}
	if c.status != nil {
		c.status.markFailure(ErrOffline.Error())
	}
	if c.logger != nil {
		c.logger.Warn("Offline, failing fast", "method", method, "url", rawURL, "attempt", attempt)
	}
	return reqErr
}

func (c *Client) online() bool {
	return c.status == nil || c.status.Online()
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// parseBody decodes the response body by declared content type: JSON when
// declared, raw text otherwise.
func parseBody(contentType string, data []byte) (interface{}, error) {
	if strings.Contains(contentType, "application/json") && len(data) > 0 {
		var value interface{}
		if err := json.Unmarshal(data, &value); err != nil {
			return nil, err
		}
		return value, nil
	}
	return string(data), nil
}

// parseRetryAfter parses the Retry-After header value. It supports both
// delay-seconds format and HTTP-date format, capped at 1 hour.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if seconds > 0 {
			delay := time.Duration(seconds) * time.Second
			if delay > time.Hour {
				delay = time.Hour
			}
			return delay
		}
		return 0
	}

	if t, err := http.ParseTime(value); err == nil {
		delay := time.Until(t)
		if delay > 0 && delay <= time.Hour {
			return delay
		}
	}

	return 0
}

func endpointFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}

	var builder strings.Builder
	builder.WriteString(u.Host)

	if u.Path != "" && u.Path != "/" {
		builder.WriteString(u.Path)
	} else {
		builder.WriteByte('/')
	}

	return builder.String()
}
