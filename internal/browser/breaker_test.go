package browser

import (
	"testing"
	"time"
)

func TestSessionBreaker_OpensAtThreshold(t *testing.T) {
	sb := NewSessionBreaker(WithBreakerThreshold(3))

	sb.RecordFailure()
	sb.RecordFailure()
	if !sb.Allow() {
		t.Fatal("breaker opened before threshold")
	}

	sb.RecordFailure()
	if sb.Allow() {
		t.Fatal("breaker still allows at threshold")
	}
	if got := sb.State(); got != BreakerOpen {
		t.Fatalf("got state %v, want BreakerOpen", got)
	}
}

func TestSessionBreaker_HalfOpenAfterCooldown(t *testing.T) {
	now := time.Now()
	sb := NewSessionBreaker(
		WithBreakerThreshold(1),
		WithBreakerCooldown(30*time.Second),
		WithBreakerClock(func() time.Time { return now }),
	)

	sb.RecordFailure()
	if sb.Allow() {
		t.Fatal("expected open breaker")
	}
	if got := sb.Cooldown(); got != 30*time.Second {
		t.Fatalf("got cooldown %v, want 30s", got)
	}

	now = now.Add(30 * time.Second)
	if !sb.Allow() {
		t.Fatal("expected probe allowed after cooldown")
	}
	if got := sb.State(); got != BreakerHalfOpen {
		t.Fatalf("got state %v, want BreakerHalfOpen", got)
	}
	if got := sb.Cooldown(); got != 0 {
		t.Fatalf("got cooldown %v, want 0 outside open state", got)
	}
}

func TestSessionBreaker_ProbeSuccessClosesAndResets(t *testing.T) {
	now := time.Now()
	sb := NewSessionBreaker(
		WithBreakerThreshold(2),
		WithBreakerCooldown(time.Second),
		WithBreakerClock(func() time.Time { return now }),
	)

	sb.RecordFailure()
	sb.RecordFailure()
	now = now.Add(time.Second)
	if !sb.Allow() {
		t.Fatal("expected probe allowed")
	}

	sb.RecordSuccess()
	if got := sb.State(); got != BreakerClosed {
		t.Fatalf("got state %v, want BreakerClosed", got)
	}

	// The failure counter must restart from zero after closing.
	sb.RecordFailure()
	if !sb.Allow() {
		t.Fatal("single failure after close reopened the breaker")
	}
}

func TestSessionBreaker_ProbeFailureReopens(t *testing.T) {
	now := time.Now()
	sb := NewSessionBreaker(
		WithBreakerThreshold(1),
		WithBreakerCooldown(time.Second),
		WithBreakerClock(func() time.Time { return now }),
	)

	sb.RecordFailure()
	now = now.Add(time.Second)
	if !sb.Allow() {
		t.Fatal("expected probe allowed")
	}

	sb.RecordFailure()
	if sb.Allow() {
		t.Fatal("failed probe left the breaker usable")
	}
	// The cool-down restarts from the probe failure.
	if got := sb.Cooldown(); got != time.Second {
		t.Fatalf("got cooldown %v, want 1s", got)
	}
}

func TestSessionBreaker_SuccessResetsClosedCounter(t *testing.T) {
	sb := NewSessionBreaker(WithBreakerThreshold(2))

	sb.RecordFailure()
	sb.RecordSuccess()
	sb.RecordFailure()
	if !sb.Allow() {
		t.Fatal("interleaved success did not reset the failure count")
	}
}

func TestSessionBreaker_Reset(t *testing.T) {
	sb := NewSessionBreaker(WithBreakerThreshold(1))

	sb.RecordFailure()
	if sb.Allow() {
		t.Fatal("expected open breaker")
	}

	sb.Reset()
	if !sb.Allow() {
		t.Fatal("reset breaker still rejects")
	}
	if got := sb.State(); got != BreakerClosed {
		t.Fatalf("got state %v, want BreakerClosed", got)
	}
}
