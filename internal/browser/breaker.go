package browser

import (
	"sync"
	"time"
)

// BreakerState represents the circuit breaker state.
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // Normal operation, fetches pass through.
	BreakerOpen                         // Fetches short-circuit to session replacement.
	BreakerHalfOpen                     // One probe fetch allowed to test recovery.
)

// SessionBreaker accumulates session-level navigation failures. While
// open, the fetch path skips straight to a forced session replacement and
// waits out the cool-down instead of hammering a site that is throttling
// us. Thread-safe: all state transitions use a mutex.
type SessionBreaker struct {
	mu          sync.Mutex
	state       BreakerState
	failures    int
	successes   int
	threshold   int           // failures before opening
	cooldown    time.Duration // how long to stay open before half-open
	halfOpenMax int           // successes in half-open before closing
	lastFailure time.Time
	now         func() time.Time // injectable clock for testing
}

// BreakerOption configures a SessionBreaker.
type BreakerOption func(*SessionBreaker)

// WithBreakerThreshold sets the failure count that trips the breaker open.
func WithBreakerThreshold(n int) BreakerOption {
	return func(sb *SessionBreaker) { sb.threshold = n }
}

// WithBreakerCooldown sets how long the breaker stays open before
// transitioning to half-open.
func WithBreakerCooldown(d time.Duration) BreakerOption {
	return func(sb *SessionBreaker) { sb.cooldown = d }
}

// WithBreakerClock sets a custom clock function (for testing).
func WithBreakerClock(fn func() time.Time) BreakerOption {
	return func(sb *SessionBreaker) { sb.now = fn }
}

// NewSessionBreaker creates a breaker with defaults tuned for one serial
// fetch loop: 5 failures to open, 30s cool-down, and a single clean load
// to close again from half-open.
func NewSessionBreaker(opts ...BreakerOption) *SessionBreaker {
	sb := &SessionBreaker{
		state:       BreakerClosed,
		threshold:   5,
		cooldown:    30 * time.Second,
		halfOpenMax: 1,
		now:         time.Now,
	}
	for _, o := range opts {
		o(sb)
	}
	return sb
}

// State returns the current breaker state.
func (sb *SessionBreaker) State() BreakerState {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.maybeTransition()
	return sb.state
}

// Allow checks whether a fetch may proceed. Returns false if the breaker
// is open and the cool-down has not elapsed.
func (sb *SessionBreaker) Allow() bool {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.maybeTransition()
	return sb.state != BreakerOpen
}

// Cooldown returns how long an open breaker still has to wait before a
// probe is allowed. Zero when the breaker is not open.
func (sb *SessionBreaker) Cooldown() time.Duration {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.maybeTransition()
	if sb.state != BreakerOpen {
		return 0
	}
	return sb.cooldown - sb.now().Sub(sb.lastFailure)
}

// RecordSuccess records a successful load.
func (sb *SessionBreaker) RecordSuccess() {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	switch sb.state {
	case BreakerHalfOpen:
		sb.successes++
		if sb.successes >= sb.halfOpenMax {
			sb.state = BreakerClosed
			sb.failures = 0
			sb.successes = 0
		}
	case BreakerClosed:
		sb.failures = 0
	}
}

// RecordFailure records a failed load.
func (sb *SessionBreaker) RecordFailure() {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.lastFailure = sb.now()
	switch sb.state {
	case BreakerClosed:
		sb.failures++
		if sb.failures >= sb.threshold {
			sb.state = BreakerOpen
		}
	case BreakerHalfOpen:
		// Any failure in half-open goes back to open.
		sb.state = BreakerOpen
		sb.successes = 0
	}
}

// Reset forces the breaker back to closed state.
func (sb *SessionBreaker) Reset() {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	sb.state = BreakerClosed
	sb.failures = 0
	sb.successes = 0
}

// maybeTransition checks if an open breaker should move to half-open.
// Must be called with mu held.
func (sb *SessionBreaker) maybeTransition() {
	if sb.state == BreakerOpen && sb.now().Sub(sb.lastFailure) >= sb.cooldown {
		sb.state = BreakerHalfOpen
		sb.successes = 0
	}
}
