package backoff

import (
	"testing"
	"time"
)

func TestDelayGrowsExponentially(t *testing.T) {
	base := time.Second
	max := time.Hour

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
	}
	for attempt, expected := range want {
		if d := Delay(attempt, base, max, 2.0, 0); d != expected {
			t.Errorf("Delay(attempt=%d) = %v, want %v", attempt, d, expected)
		}
	}
}

func TestDelayCapsAtMax(t *testing.T) {
	if d := Delay(10, time.Second, 10*time.Second, 2.0, 0); d != 10*time.Second {
		t.Errorf("Delay should cap at max, got %v", d)
	}
}

func TestDelayJitterBounds(t *testing.T) {
	base := time.Second
	max := 10 * time.Second
	jitterMax := time.Second

	for i := 0; i < 100; i++ {
		d := Delay(10, base, max, 2.0, jitterMax)
		if d < max || d >= max+jitterMax {
			t.Fatalf("Jittered delay %v outside [max, max+jitterMax)", d)
		}
	}
}

func TestDelayJitterVaries(t *testing.T) {
	first := Delay(3, time.Second, time.Hour, 2.0, time.Second)
	for i := 0; i < 50; i++ {
		if Delay(3, time.Second, time.Hour, 2.0, time.Second) != first {
			return
		}
	}
	t.Error("Jitter produced the same delay 50 times in a row")
}

func TestDelayNegativeAttempt(t *testing.T) {
	if d := Delay(-1, time.Second, time.Minute, 2.0, 0); d != time.Second {
		t.Errorf("Negative attempt should be treated as zero, got %v", d)
	}
}

func TestDelayOverflowClamped(t *testing.T) {
	if d := Delay(1000, time.Second, time.Minute, 2.0, 0); d != time.Minute {
		t.Errorf("Huge attempt should still cap at max, got %v", d)
	}
}

func TestPow(t *testing.T) {
	tests := []struct {
		base     float64
		exponent int
		want     float64
	}{
		{2.0, 0, 1.0},
		{2.0, 1, 2.0},
		{2.0, 5, 32.0},
		{1.5, 2, 2.25},
	}
	for _, tt := range tests {
		if got := Pow(tt.base, tt.exponent); got != tt.want {
			t.Errorf("Pow(%v, %d) = %v, want %v", tt.base, tt.exponent, got, tt.want)
		}
	}
}
