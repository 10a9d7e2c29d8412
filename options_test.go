package fetchkit

import (
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestOptionsOverrideDefaults(t *testing.T) {
	httpClient := &http.Client{}
	monitor := NewStatusMonitor()

	c := New(
		WithMaxRetries(7),
		WithBaseDelay(200*time.Millisecond),
		WithMaxDelay(5*time.Second),
		WithBackoffMultiplier(1.5),
		WithJitterMax(50*time.Millisecond),
		WithTimeout(10*time.Second),
		WithHTTPClient(httpClient),
		WithStatusMonitor(monitor),
	)

	if c.maxRetries != 7 {
		t.Errorf("Expected maxRetries 7, got %d", c.maxRetries)
	}
	if c.baseDelay != 200*time.Millisecond {
		t.Errorf("Expected baseDelay 200ms, got %v", c.baseDelay)
	}
	if c.maxDelay != 5*time.Second {
		t.Errorf("Expected maxDelay 5s, got %v", c.maxDelay)
	}
	if c.backoffMultiplier != 1.5 {
		t.Errorf("Expected backoffMultiplier 1.5, got %v", c.backoffMultiplier)
	}
	if c.jitterMax != 50*time.Millisecond {
		t.Errorf("Expected jitterMax 50ms, got %v", c.jitterMax)
	}
	if c.timeout != 10*time.Second {
		t.Errorf("Expected timeout 10s, got %v", c.timeout)
	}
	if c.httpClient != httpClient {
		t.Error("Custom HTTP client not applied")
	}
	if c.Status() != monitor {
		t.Error("Shared status monitor not applied")
	}
	if !c.IsValid() {
		t.Errorf("Configuration should validate: %v", c.ValidationError())
	}
}

func TestWithJitterMaxClampsNegative(t *testing.T) {
	c := New(WithJitterMax(-time.Second))

	if c.jitterMax != 0 {
		t.Errorf("Negative jitter should clamp to zero, got %v", c.jitterMax)
	}
}

func TestWithRetryCondition(t *testing.T) {
	never := func(statusCode int, err error) bool { return false }
	c := New(WithRetryCondition(never))

	if c.retryCondition(500, nil) {
		t.Error("Custom retry condition not applied")
	}
}

func TestWithCircuitBreakerAndRateLimiter(t *testing.T) {
	c := New(
		WithCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2}),
		WithRateLimiter(10, time.Second),
	)

	if c.circuitBreaker == nil || c.circuitBreaker.config.FailureThreshold != 2 {
		t.Error("Circuit breaker not configured")
	}
	if c.rateLimiter == nil || c.rateLimiter.maxTokens != 10 {
		t.Error("Rate limiter not configured")
	}
	if !c.IsValid() {
		t.Errorf("Configuration should validate: %v", c.ValidationError())
	}
}

func TestValidateConfigurationCatchesBadRetrySettings(t *testing.T) {
	c := New(
		WithMaxRetries(-1),
		WithBaseDelay(0),
		WithBackoffMultiplier(0),
	)

	if c.IsValid() {
		t.Fatal("Invalid configuration should fail validation")
	}

	var reqErr *RequestError
	if !errors.As(c.ValidationError(), &reqErr) || reqErr.Kind != ErrorKindValidation {
		t.Errorf("Expected a validation error, got %v", c.ValidationError())
	}
}

func TestValidateConfigurationCatchesBadDelayOrdering(t *testing.T) {
	c := New(
		WithBaseDelay(10*time.Second),
		WithMaxDelay(time.Second),
	)

	if c.IsValid() {
		t.Error("maxDelay below baseDelay should fail validation")
	}
}

func TestValidateConfigurationCatchesNilHTTPClient(t *testing.T) {
	c := New(WithHTTPClient(nil))

	if c.IsValid() {
		t.Error("Nil HTTP client should fail validation")
	}
}

func TestValidateConfigurationFlagsExtremeValues(t *testing.T) {
	c := New(
		WithMaxRetries(1000),
		WithTimeout(time.Hour),
	)

	if c.IsValid() {
		t.Error("Extreme values should fail validation")
	}
}

func TestValidateConfigurationAcceptsDefaults(t *testing.T) {
	c := New()

	if err := c.ValidateConfiguration(); err != nil {
		t.Errorf("Default configuration should validate, got %v", err)
	}
}
