package browser

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// NavigatorConfig tunes the fetch loop.
type NavigatorConfig struct {
	// MaxRetries bounds load attempts per fetch. Default: 3.
	MaxRetries int

	// BackoffBase scales the linear backoff between transient retries
	// (base × attempt number). Default: 1500ms.
	BackoffBase time.Duration

	// JitterMin and JitterMax bound the human-ish pause after every
	// successful load. Defaults: 2s and 4s.
	JitterMin time.Duration
	JitterMax time.Duration

	// NavTimeout is the per-attempt load deadline. Default: 20s.
	NavTimeout time.Duration

	// RateLimit caps navigations per second underneath the jitter, so a
	// misconfigured jitter can never turn into a hammering loop. Default: 1.
	RateLimit float64

	Logger *slog.Logger
}

func (c *NavigatorConfig) defaults() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 1500 * time.Millisecond
	}
	if c.JitterMin <= 0 {
		c.JitterMin = 2 * time.Second
	}
	if c.JitterMax <= c.JitterMin {
		c.JitterMax = c.JitterMin + 2*time.Second
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = defaultNavTimeout
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 1
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Outcome reports how one fetch ended. Attempts counts loads actually
// tried; Err is the last failure when OK is false.
type Outcome struct {
	OK       bool
	Class    FailureClass
	Attempts int
	Err      error
}

// captureTimeout bounds diagnostic capture on a possibly-hung transport.
const captureTimeout = 5 * time.Second

// Navigator drives page fetches over one exclusively-owned session,
// classifying failures and replacing the session when the transport is
// poisoned. Not safe for concurrent use: navigation is strictly
// sequential and the session is never shared.
type Navigator struct {
	cfg     NavigatorConfig
	mgr     *Manager
	breaker *SessionBreaker
	limiter *rate.Limiter
	capt    *Capturer
	logger  *slog.Logger
	session *Session
}

// NewNavigator creates a Navigator on mgr's browser. capt may be nil to
// disable diagnostic captures.
func NewNavigator(mgr *Manager, capt *Capturer, cfg NavigatorConfig) *Navigator {
	cfg.defaults()
	return &Navigator{
		cfg:     cfg,
		mgr:     mgr,
		breaker: NewSessionBreaker(),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		capt:    capt,
		logger:  cfg.Logger,
	}
}

// Breaker exposes the session breaker for status reporting.
func (n *Navigator) Breaker() *SessionBreaker {
	return n.breaker
}

// Fetch loads pageURL with retries, backoff and failure classification.
//
// Timeouts retry on the same session immediately (the stalled load has
// already been stopped). Transient protocol errors retry after a linear
// backoff. A poisoned transport is never retried: the session is
// discarded and replaced before returning. Exhausting retries also
// replaces the session. A cancelled context returns OK=false with the
// context error.
func (n *Navigator) Fetch(ctx context.Context, pageURL string) Outcome {
	// Open breaker: skip straight to a fresh session and wait out the
	// cool-down instead of hammering a site that is throttling us.
	for !n.breaker.Allow() {
		wait := n.breaker.Cooldown()
		n.logger.Warn("browser: circuit open, forcing session replacement",
			"cooldown_ms", wait.Milliseconds())
		if err := n.replaceSession(ctx); err != nil {
			return Outcome{Class: ClassSocketPoisoned, Err: err}
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return Outcome{Err: err}
		}
	}

	var lastErr error
	lastClass := ClassTransientProtocol

	for attempt := 1; attempt <= n.cfg.MaxRetries; attempt++ {
		if err := n.ensureSession(); err != nil {
			return Outcome{Class: ClassSocketPoisoned, Attempts: attempt - 1, Err: err}
		}
		if err := n.limiter.Wait(ctx); err != nil {
			return Outcome{Class: lastClass, Attempts: attempt - 1, Err: err}
		}

		err := n.session.Navigate(ctx, pageURL)
		if err == nil {
			n.breaker.RecordSuccess()
			// Human-ish pause after every successful load.
			_ = sleepCtx(ctx, n.jitter())
			return Outcome{OK: true, Attempts: attempt}
		}

		if ctx.Err() != nil {
			return Outcome{Class: lastClass, Attempts: attempt, Err: ctx.Err()}
		}

		class := Classify(err)
		lastErr, lastClass = err, class
		n.breaker.RecordFailure()
		n.capture(ctx, class, pageURL)
		n.logger.Warn("browser: navigation failed",
			"url", pageURL,
			"attempt", attempt,
			"max_retries", n.cfg.MaxRetries,
			"class", class.String(),
			"error", err)

		switch class {
		case ClassSocketPoisoned:
			// Dead transport. No retry on this session.
			if rerr := n.replaceSession(ctx); rerr != nil {
				return Outcome{Class: class, Attempts: attempt, Err: rerr}
			}
			return Outcome{Class: class, Attempts: attempt, Err: err}

		case ClassTransientProtocol:
			if serr := sleepCtx(ctx, n.cfg.BackoffBase*time.Duration(attempt)); serr != nil {
				return Outcome{Class: class, Attempts: attempt, Err: serr}
			}

		case ClassTimeout:
			// Load already stopped; go straight into the next attempt.
		}
	}

	// Retries exhausted. The session has proven itself useless on this
	// target; replace it so the next item starts clean.
	if err := n.replaceSession(ctx); err != nil {
		n.logger.Error("browser: session replacement failed", "error", err)
	}
	return Outcome{Class: lastClass, Attempts: n.cfg.MaxRetries, Err: lastErr}
}

// HTML serialises the current session's DOM.
func (n *Navigator) HTML(ctx context.Context) (string, error) {
	if err := n.ensureSession(); err != nil {
		return "", err
	}
	return n.session.HTML(ctx)
}

// Refresh tears the current session down and warms the new one on
// homeURL. Long runs call this periodically so cookies, listeners and
// renderer memory never accumulate in one tab. A warm-up load failure is
// logged, not fatal: the next fetch will retry through the usual path.
func (n *Navigator) Refresh(ctx context.Context, homeURL string) error {
	if err := n.replaceSession(ctx); err != nil {
		return err
	}
	if homeURL != "" {
		if out := n.Fetch(ctx, homeURL); !out.OK {
			n.logger.Warn("browser: session warm-up failed",
				"url", homeURL, "class", out.Class.String(), "error", out.Err)
		}
	}
	return nil
}

// CaptureNow saves a screenshot of whatever the session currently shows.
// For failures outside the navigation path, where the fetch loop's own
// capture never fires. Best-effort; "" when nothing was saved.
func (n *Navigator) CaptureNow(tag string) string {
	if n.capt == nil || n.session == nil {
		return ""
	}
	captCtx, cancel := context.WithTimeout(context.Background(), captureTimeout)
	defer cancel()
	return n.capt.CaptureError(n.session.Page().Context(captCtx), tag)
}

// Close releases the current session. The manager is closed by its owner.
func (n *Navigator) Close() error {
	if n.session != nil {
		err := n.session.Close()
		n.session = nil
		return err
	}
	return nil
}

func (n *Navigator) ensureSession() error {
	if n.session != nil {
		return nil
	}
	s, err := NewSession(n.mgr, n.cfg.NavTimeout)
	if err != nil {
		return err
	}
	n.session = s
	return nil
}

// replaceSession discards the current session wholesale: page closed,
// browser recycled, fresh stealth page on the new process.
func (n *Navigator) replaceSession(ctx context.Context) error {
	if n.session != nil {
		if err := n.session.Close(); err != nil {
			n.logger.Debug("browser: closing poisoned session", "error", err)
		}
		n.session = nil
	}
	if err := n.mgr.Recycle(ctx); err != nil {
		return err
	}
	return n.ensureSession()
}

// capture saves a screenshot plus a markdown DOM snapshot of the failed
// page. Best-effort with its own deadline: a hung transport must not
// stall the fetch loop, and capture failures are swallowed.
func (n *Navigator) capture(ctx context.Context, class FailureClass, pageURL string) {
	if n.capt == nil || n.session == nil {
		return
	}
	captCtx, cancel := context.WithTimeout(ctx, captureTimeout)
	defer cancel()

	tag := hostTag(pageURL)
	n.capt.Capture(n.session.Page().Context(captCtx), class, tag)

	if raw, err := n.session.HTML(captCtx); err == nil {
		n.capt.CaptureDOM(raw, pageURL, class, tag)
	}
}

func (n *Navigator) jitter() time.Duration {
	span := n.cfg.JitterMax - n.cfg.JitterMin
	return n.cfg.JitterMin + time.Duration(rand.Float64()*float64(span))
}

// sleepCtx sleeps for d, returning early with the context error when the
// context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func hostTag(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return "page"
	}
	return strings.TrimPrefix(u.Host, "www.")
}
