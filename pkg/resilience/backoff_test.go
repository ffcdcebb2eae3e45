package resilience

import (
	"testing"
	"time"
)

func TestExponentialBackoff_NextDelay(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, 1 * time.Second}, // capped
		{10, 1 * time.Second},
	}

	for _, tt := range tests {
		if got := backoff.NextDelay(tt.attempt); got != tt.expected {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.expected, got)
		}
	}
}

func TestExponentialBackoff_NegativeAttempt(t *testing.T) {
	backoff := BrokerBackoff()
	if got := backoff.NextDelay(-1); got != backoff.BaseDelay {
		t.Errorf("expected base delay %v for negative attempt, got %v", backoff.BaseDelay, got)
	}
}

func TestExponentialBackoff_JitterStaysBounded(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   10 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.1,
	}

	for i := 0; i < 100; i++ {
		got := backoff.NextDelay(2)
		min := 360 * time.Millisecond
		max := 440 * time.Millisecond
		if got < min || got > max {
			t.Fatalf("delay %v outside jitter bounds [%v, %v]", got, min, max)
		}
	}
}
