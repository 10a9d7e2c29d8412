package fetchkit

import (
	"errors"
	"fmt"
	"time"
)

// Error kinds used to classify request failures.
const (
	ErrorKindOffline    = "Offline"
	ErrorKindTimeout    = "Timeout"
	ErrorKindNetwork    = "Network"
	ErrorKindServer     = "Server"
	ErrorKindClient     = "Client"
	ErrorKindCircuit    = "CircuitOpen"
	ErrorKindRateLimit  = "RateLimit"
	ErrorKindValidation = "Validation"
)

// Sentinel errors for common failure scenarios
var (
	// ErrOffline is returned without attempting network I/O when connectivity
	// is known to be down.
	ErrOffline = errors.New("fetchkit: no connection")

	// ErrCircuitOpen is returned when the circuit breaker is in open state
	ErrCircuitOpen = errors.New("fetchkit: circuit open")

	// ErrRateLimited is returned when a request is denied due to rate limiting
	ErrRateLimited = errors.New("fetchkit: rate limited")
)

// RequestError is the error type surfaced by the Client. For HTTP failures it
// embeds the status code and the response body text.
type RequestError struct {
	Kind       string
	Message    string
	StatusCode int
	Body       string
	Method     string
	URL        string
	Attempt    int
	MaxRetries int
	Cause      error

	// retryAfter carries a server-requested delay (Retry-After header)
	// between attempts; zero when the server did not send one.
	retryAfter time.Duration
}

// Error implements error interface.
func (e *RequestError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d/%d)", msg, e.Attempt, e.MaxRetries)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RequestError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error kinds for errors.Is.
func (e *RequestError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*RequestError); ok {
		return e.Kind == targetErr.Kind
	}
	return false
}

// RetryableStatus reports whether an HTTP status code is worth retrying.
// Covers request timeout, too many requests and the transient 5xx family.
func RetryableStatus(code int) bool {
	switch code {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsTransient determines if an error represents a transient failure that
// might succeed on retry. Returns true for network errors, timeouts and
// retryable HTTP statuses. Returns false for other 4xx client errors,
// offline fast-fails and configuration errors.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrRateLimited) {
		return true
	}

	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		switch reqErr.Kind {
		case ErrorKindNetwork, ErrorKindTimeout, ErrorKindServer:
			return true
		case ErrorKindClient:
			return RetryableStatus(reqErr.StatusCode)
		default:
			return false
		}
	}

	return false
}
