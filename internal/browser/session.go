package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
)

// defaultNavTimeout bounds one page-load attempt.
const defaultNavTimeout = 20 * time.Second

// Session wraps one stealth Rod page. A session is exclusively owned by
// the fetch loop and never shared; when the transport underneath it goes
// bad the whole session is discarded, not repaired.
type Session struct {
	page    *rod.Page
	logger  *slog.Logger
	timeout time.Duration
}

// NewSession opens a fresh stealth page on the manager's current browser.
// A timeout of zero uses the default per-load deadline.
func NewSession(mgr *Manager, timeout time.Duration) (*Session, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}
	if timeout <= 0 {
		timeout = defaultNavTimeout
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create page: %w", err)
	}

	return &Session{
		page:    page,
		logger:  mgr.cfg.Logger,
		timeout: timeout,
	}, nil
}

// Navigate loads pageURL and waits for the load event, bounded by the
// session's per-load deadline. On a wait failure the in-flight load is
// stopped before returning so the next attempt starts clean.
func (s *Session) Navigate(ctx context.Context, pageURL string) error {
	navCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.page.Context(navCtx).Navigate(pageURL); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}

	if err := s.page.Context(navCtx).WaitLoad(); err != nil {
		s.stopLoad()
		return fmt.Errorf("browser: wait load %s: %w", pageURL, err)
	}
	return nil
}

// stopLoad aborts whatever is still loading. It runs on its own short
// context because the navigation context has typically expired by now.
func (s *Session) stopLoad() {
	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := s.page.Context(stopCtx).Eval(`() => window.stop()`); err != nil {
		s.logger.Debug("browser: window.stop failed", "error", err)
	}
}

// HTML serialises the current DOM as outer HTML.
func (s *Session) HTML(ctx context.Context) (string, error) {
	res, err := s.page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: get DOM: %w", err)
	}
	return res.Value.Str(), nil
}

// Page exposes the underlying Rod page for diagnostics.
func (s *Session) Page() *rod.Page {
	return s.page
}

// Close closes the page.
func (s *Session) Close() error {
	if s.page != nil {
		return s.page.Close()
	}
	return nil
}
