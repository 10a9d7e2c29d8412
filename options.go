package fetchkit

import (
	"fmt"
	"net/http"
	"time"
)

// Option represents a Client configuration option
type Option func(*Client)

// WithMaxRetries sets the maximum number of retry attempts after the first.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithBaseDelay sets the first retry's backoff delay.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = d
	}
}

// WithMaxDelay caps the computed backoff delay (jitter is added on top).
func WithMaxDelay(d time.Duration) Option {
	return func(c *Client) {
		c.maxDelay = d
	}
}

// WithBackoffMultiplier sets the exponential growth factor between retries.
func WithBackoffMultiplier(f float64) Option {
	return func(c *Client) {
		c.backoffMultiplier = f
	}
}

// WithJitterMax bounds the random jitter added to each backoff delay.
// Zero disables jitter.
func WithJitterMax(d time.Duration) Option {
	return func(c *Client) {
		if d < 0 {
			d = 0
		}
		c.jitterMax = d
	}
}

// WithTimeout sets the per-attempt timeout, enforced via context
// cancellation.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRetryCondition sets a custom retry condition.
func WithRetryCondition(fn RetryCondition) Option {
	return func(c *Client) {
		c.retryCondition = fn
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithStatusMonitor injects a shared status monitor. Several clients may
// publish to one monitor.
func WithStatusMonitor(m *StatusMonitor) Option {
	return func(c *Client) {
		c.status = m
	}
}

// WithCircuitBreaker enables circuit breaking with the given configuration.
func WithCircuitBreaker(config CircuitBreakerConfig) Option {
	return func(c *Client) {
		c.circuitBreaker = NewCircuitBreaker(config)
	}
}

// WithRateLimiter enables token-bucket rate limiting.
func WithRateLimiter(maxTokens int, refillRate time.Duration) Option {
	return func(c *Client) {
		c.rateLimiter = NewRateLimiter(maxTokens, refillRate)
	}
}

// WithMetrics enables Prometheus metrics collection on the default
// registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithLogger sets a logger for request lifecycle events.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSimpleLogger enables logging with a console logger.
func WithSimpleLogger() Option {
	return func(c *Client) {
		c.logger = NewSimpleLogger()
	}
}

// ValidateConfiguration validates the client configuration and returns an
// error if invalid.
func (c *Client) ValidateConfiguration() error {
	var problems []string

	problems = append(problems, c.validateRetryConfig()...)
	problems = append(problems, c.validateRateLimiterConfig()...)
	problems = append(problems, c.validateCircuitBreakerConfig()...)
	problems = append(problems, c.validateHTTPClientConfig()...)
	problems = append(problems, c.validateExtremeValues()...)

	if len(problems) > 0 {
		return &RequestError{
			Kind:    ErrorKindValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", problems),
		}
	}

	return nil
}

func (c *Client) validateRetryConfig() []string {
	var problems []string

	if c.maxRetries < 0 {
		problems = append(problems, "maxRetries must be non-negative")
	}
	if c.baseDelay <= 0 {
		problems = append(problems, "baseDelay must be positive")
	}
	if c.maxDelay < c.baseDelay {
		problems = append(problems, "maxDelay must be greater than or equal to baseDelay")
	}
	if c.backoffMultiplier <= 0 {
		problems = append(problems, "backoffMultiplier must be positive")
	}
	if c.jitterMax < 0 {
		problems = append(problems, "jitterMax must be non-negative")
	}
	if c.timeout <= 0 {
		problems = append(problems, "timeout must be positive")
	}
	if c.retryCondition == nil {
		problems = append(problems, "retryCondition must be set")
	}

	return problems
}

func (c *Client) validateRateLimiterConfig() []string {
	var problems []string

	if c.rateLimiter != nil {
		if c.rateLimiter.maxTokens <= 0 {
			problems = append(problems, "rateLimiter maxTokens must be positive")
		}
		if c.rateLimiter.refillRate <= 0 {
			problems = append(problems, "rateLimiter refillRate must be positive")
		}
	}

	return problems
}

func (c *Client) validateCircuitBreakerConfig() []string {
	var problems []string

	if c.circuitBreaker != nil {
		if c.circuitBreaker.config.FailureThreshold <= 0 {
			problems = append(problems, "circuitBreaker FailureThreshold must be positive")
		}
		if c.circuitBreaker.config.RecoveryTimeout <= 0 {
			problems = append(problems, "circuitBreaker RecoveryTimeout must be positive")
		}
		if c.circuitBreaker.config.SuccessThreshold <= 0 {
			problems = append(problems, "circuitBreaker SuccessThreshold must be positive")
		}
	}

	return problems
}

func (c *Client) validateHTTPClientConfig() []string {
	var problems []string

	if c.httpClient == nil {
		problems = append(problems, "HTTP client cannot be nil")
	}

	return problems
}

func (c *Client) validateExtremeValues() []string {
	var problems []string

	if c.maxRetries > 100 {
		problems = append(problems, "maxRetries > 100 may cause excessive resource usage")
	}
	if c.baseDelay > 10*time.Minute {
		problems = append(problems, "baseDelay > 10m may cause very long delays")
	}
	if c.maxDelay > time.Hour {
		problems = append(problems, "maxDelay > 1h may cause extremely long delays")
	}
	if c.timeout > 10*time.Minute {
		problems = append(problems, "timeout > 10m may cause requests to hang for too long")
	}
	if c.rateLimiter != nil && c.rateLimiter.maxTokens > 1000000 {
		problems = append(problems, "rateLimiter maxTokens > 1M may cause memory issues")
	}

	return problems
}
