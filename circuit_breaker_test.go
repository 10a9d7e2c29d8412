package fetchkit

import (
	"testing"
	"time"
)

func TestCircuitBreakerDefaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})

	if cb.config.FailureThreshold != 5 {
		t.Errorf("Expected failure threshold 5, got %d", cb.config.FailureThreshold)
	}
	if cb.config.RecoveryTimeout != 60*time.Second {
		t.Errorf("Expected recovery timeout 60s, got %v", cb.config.RecoveryTimeout)
	}
	if cb.config.SuccessThreshold != 2 {
		t.Errorf("Expected success threshold 2, got %d", cb.config.SuccessThreshold)
	}
	if cb.State() != StateClosed {
		t.Error("Breaker should start closed")
	}
}

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  time.Minute,
		SuccessThreshold: 1,
	})

	for i := 0; i < 2; i++ {
		cb.RecordFailure()
		if !cb.Allow() {
			t.Fatalf("Breaker should stay closed below the threshold (failure %d)", i+1)
		}
	}

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Error("Breaker should open at the failure threshold")
	}
	if cb.Allow() {
		t.Error("Open breaker should deny requests")
	}
}

func TestCircuitBreakerRecoversThroughHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  10 * time.Millisecond,
		SuccessThreshold: 2,
	})

	cb.RecordFailure()
	if cb.Allow() {
		t.Fatal("Breaker should be open")
	}

	time.Sleep(20 * time.Millisecond)

	if !cb.Allow() {
		t.Fatal("Breaker should probe after the recovery timeout")
	}
	if cb.State() != StateHalfOpen {
		t.Errorf("Expected half-open, got %v", cb.State())
	}

	cb.RecordSuccess()
	if cb.State() != StateHalfOpen {
		t.Error("One success below the threshold should keep the breaker half-open")
	}

	cb.RecordSuccess()
	if cb.State() != StateClosed {
		t.Error("Enough successes should close the breaker")
	}
}

func TestCircuitBreakerReopensOnHalfOpenFailure(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  10 * time.Millisecond,
		SuccessThreshold: 2,
	})

	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	if !cb.Allow() {
		t.Fatal("Breaker should probe after the recovery timeout")
	}

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Error("A failure while half-open should reopen the breaker")
	}
}

func TestCircuitBreakerSuccessResetsFailureStreak(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		RecoveryTimeout:  time.Minute,
		SuccessThreshold: 1,
	})

	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()

	if cb.State() != StateClosed {
		t.Error("Interleaved success should reset the failure streak")
	}
}
