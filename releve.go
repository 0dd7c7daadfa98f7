// Package releve surveys catalog sites for launch dates and retail price
// ranges across a roster of models. A run claims items from a SQLite
// ledger, drives one exclusively-owned browser session through search,
// match and extraction, and checkpoints the roster plus per-source
// results without blocking the loop. Runs are resumable: done items are
// skipped, crash leftovers are reclaimed, and an error subset can be
// replayed from a label list.
package releve

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/hazyhaar/releve/internal/browser"
	"github.com/hazyhaar/releve/internal/checkpoint"
	"github.com/hazyhaar/releve/internal/dbopen"
	"github.com/hazyhaar/releve/internal/idgen"
	"github.com/hazyhaar/releve/internal/match"
	"github.com/hazyhaar/releve/internal/roster"
	"github.com/hazyhaar/releve/internal/runner"
	"github.com/hazyhaar/releve/internal/sources"
	"github.com/hazyhaar/releve/internal/store"
)

// Tally re-exports the run loop's end-of-run counts.
type Tally = runner.Tally

// Service wires the roster, ledger, browser stack and checkpoint
// persister behind one façade shared by the CLI, the operator HTTP
// surface and the MCP tools.
type Service struct {
	cfg    *Config
	logger *slog.Logger

	source sources.Source
	mode   runner.Mode
	db     *sql.DB
	store  *store.Store
	table  *roster.Table
	pers   *checkpoint.Persister
	events *store.EventRecorder
	runID  string

	// fetcher, when set by an option, replaces the browser stack.
	fetcher runner.Fetcher

	mu      sync.Mutex
	run     *runner.Runner
	running bool
}

// New creates a Service: loads the roster, opens the state database and
// applies its schema. The browser is not started until Run.
func New(cfg *Config, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("releve: nil config")
	}
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Roster == "" {
		return nil, errors.New("releve: roster path required")
	}

	src, ok := sources.ByName(cfg.Source)
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrUnknownSource, cfg.Source, sources.Names())
	}
	mode, err := runner.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}

	table, err := roster.Load(cfg.Roster)
	if err != nil {
		return nil, fmt.Errorf("releve: load roster: %w", err)
	}
	// Output problems should surface now, not at the first checkpoint.
	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("releve: output dir: %w", err)
	}

	db, err := dbopen.Open(cfg.StateDB, dbopen.WithMkdirAll())
	if err != nil {
		return nil, err
	}
	if err := store.ApplySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("releve: apply schema: %w", err)
	}

	runID := idgen.NewRunID()
	svc := &Service{
		cfg:    cfg,
		logger: logger,
		source: src,
		mode:   mode,
		db:     db,
		store:  store.New(db),
		table:  table,
		pers:   checkpoint.New(&checkpoint.FileSink{OutDir: cfg.OutDir}, logger),
		events: store.NewEventRecorder(db, runID, 0),
		runID:  runID,
	}
	// Every completed checkpoint lands in the event ledger, so a failing
	// disk shows up in /events and not just in process logs.
	svc.pers.OnPersist = func(err error, took time.Duration) {
		if err != nil {
			svc.events.Record("error", "checkpoint", "", err.Error())
			return
		}
		svc.events.Record("info", "checkpoint", "", "saved in "+took.String())
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// ServiceOption configures a Service during creation.
type ServiceOption func(*Service)

// WithFetcher replaces the browser stack with a caller-supplied page
// fetcher. Use in tests to drive the run loop without Chrome.
func WithFetcher(f runner.Fetcher) ServiceOption {
	return func(svc *Service) { svc.fetcher = f }
}

// RunID identifies this process's run in the events table and logs.
func (s *Service) RunID() string {
	return s.runID
}

// Run prepares the ledger for the configured mode, starts the browser
// and processes every claimable roster item. It returns the end-of-run
// tally; a second concurrent call returns ErrRunActive.
func (s *Service) Run(ctx context.Context) (*Tally, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrRunActive
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	entries, err := runner.Prepare(ctx, s.store, s.table, s.source, s.mode, s.cfg.ErrorList)
	if err != nil {
		return nil, err
	}
	s.recordRunMeta(ctx)
	s.logger.Info("run prepared",
		"run_id", s.runID,
		"source", s.source.Name(),
		"mode", string(s.mode),
		"items", len(entries))

	nav := s.fetcher
	if nav == nil {
		live, cleanup, err := s.openBrowser(ctx)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		nav = live
	}

	r := runner.New(nav, s.source, s.store, s.table, s.pers, s.events, runner.Config{
		RefreshEvery:  s.cfg.Run.RefreshEvery,
		PersistEvery:  s.cfg.Run.PersistEvery,
		MaxCandidates: s.cfg.Run.MaxCandidates,
		MaxPages:      s.cfg.Run.MaxPages,
		Logger:        s.logger,
	})
	s.mu.Lock()
	s.run = r
	s.mu.Unlock()

	tally, err := r.Run(ctx, entries)
	if tally != nil {
		s.logger.Info("run finished",
			"processed", tally.Processed,
			"found", tally.Found,
			"partially_found", tally.PartiallyFound,
			"not_found", tally.NotFound,
			"errored", tally.Errored,
			"skipped", tally.Skipped)
	}
	return tally, err
}

// recordRunMeta stamps the state database with this run's identity.
// Item statuses are shared across sources, so resuming a database that
// another source last used would skip its done items; that deserves a
// warning before anything runs.
func (s *Service) recordRunMeta(ctx context.Context) {
	if prev, err := s.store.GetMeta(ctx, "source"); err == nil && prev != "" && prev != s.source.Name() {
		s.logger.Warn("state database last used by a different source",
			"previous", prev, "current", s.source.Name())
	}
	meta := map[string]string{
		"run_id": s.runID,
		"source": s.source.Name(),
		"mode":   string(s.mode),
		"roster": s.cfg.Roster,
	}
	for k, v := range meta {
		if err := s.store.SetMeta(ctx, k, v); err != nil {
			s.logger.Warn("run meta write failed", "key", k, "error", err)
			return
		}
	}
}

func (s *Service) openBrowser(ctx context.Context) (runner.Fetcher, func(), error) {
	mgr := browser.NewManager(browser.Config{
		RemoteURL: s.cfg.Browser.Remote,
		Headless:  s.cfg.Browser.Headless,
		Logger:    s.logger,
	})
	if _, err := mgr.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("releve: start browser: %w", err)
	}
	capt := browser.NewCapturer(s.cfg.CaptureDir, s.logger)
	nav := browser.NewNavigator(mgr, capt, browser.NavigatorConfig{
		MaxRetries:  s.cfg.Browser.MaxRetries,
		BackoffBase: s.cfg.Browser.BackoffBase,
		JitterMin:   s.cfg.Browser.JitterMin,
		JitterMax:   s.cfg.Browser.JitterMax,
		NavTimeout:  s.cfg.Browser.NavTimeout,
		RateLimit:   s.cfg.Browser.RateLimit,
		Logger:      s.logger,
	})
	cleanup := func() {
		if err := nav.Close(); err != nil {
			s.logger.Warn("session close failed", "error", err)
		}
		if err := mgr.Close(); err != nil {
			s.logger.Warn("browser close failed", "error", err)
		}
	}
	return nav, cleanup, nil
}

// Status is the operator view of run progress.
type Status struct {
	RunID   string         `json:"run_id"`
	Source  string         `json:"source"`
	Mode    string         `json:"mode"`
	Running bool           `json:"running"`
	Total   int            `json:"total"`
	Items   map[string]int `json:"items"`

	LastSaveAt    string `json:"last_save_at,omitempty"`
	LastSaveTook  string `json:"last_save_took,omitempty"`
	LastSaveError string `json:"last_save_error,omitempty"`

	DroppedEvents int64 `json:"dropped_events"`
}

// Status reports item counts by ledger status plus the most recent
// checkpoint outcome.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	counts, total, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	items := make(map[string]int, len(counts))
	for k, v := range counts {
		items[string(k)] = v
	}
	st := &Status{
		RunID:         s.runID,
		Source:        s.source.Name(),
		Mode:          string(s.mode),
		Running:       s.isRunning(),
		Total:         total,
		Items:         items,
		DroppedEvents: s.events.Dropped(),
	}
	if last := s.pers.Last(); !last.At.IsZero() {
		st.LastSaveAt = last.At.UTC().Format(time.RFC3339)
		st.LastSaveTook = last.Took.String()
		st.LastSaveError = last.Error
	}
	return st, nil
}

// Summary reports result counts by confidence for the configured source.
func (s *Service) Summary(ctx context.Context) (*store.Summary, error) {
	return s.store.Summarize(ctx, s.source.Name())
}

// ItemDetail pairs an item's ledger state with its stored result.
type ItemDetail struct {
	Item   *store.Item   `json:"item"`
	Result *store.Result `json:"result,omitempty"`
}

// ItemDetail looks up one item by label or display name. Nil when the
// roster has no such item; Result stays nil until the item has been
// processed against this source.
func (s *Service) ItemDetail(ctx context.Context, label string) (*ItemDetail, error) {
	key := match.Normalize(label)
	it, err := s.store.GetItem(ctx, key)
	if err != nil {
		return nil, err
	}
	if it == nil {
		return nil, nil
	}
	res, err := s.store.GetResult(ctx, key, s.source.Name())
	if err != nil {
		return nil, err
	}
	return &ItemDetail{Item: it, Result: res}, nil
}

// ErroredItems lists items whose last attempt failed, in roster order.
// Their labels feed the error list for a retry-errors pass.
func (s *Service) ErroredItems(ctx context.Context, limit int) ([]*store.Item, error) {
	return s.store.ListByStatus(ctx, store.StatusErrored, limit)
}

// Events returns recent diagnostic events, optionally filtered by item
// label.
func (s *Service) Events(ctx context.Context, label string, limit int) ([]*store.Event, error) {
	return s.store.RecentEvents(ctx, label, limit)
}

// SnapshotAck reports how a save-now request was handled.
type SnapshotAck struct {
	Triggered bool   `json:"triggered"`
	Busy      bool   `json:"busy"`
	Error     string `json:"error,omitempty"`
}

// SnapshotNow triggers an asynchronous checkpoint of the live run. A
// snapshot already in flight is reported as busy, not an error: the
// operator's intent — progress on disk soon — is already being served.
func (s *Service) SnapshotNow() SnapshotAck {
	s.mu.Lock()
	r := s.run
	s.mu.Unlock()
	if r == nil {
		return SnapshotAck{Error: ErrNoRun.Error()}
	}
	switch err := s.pers.Trigger(r.Snapshot); {
	case err == nil:
		return SnapshotAck{Triggered: true}
	case errors.Is(err, checkpoint.ErrSnapshotBusy):
		return SnapshotAck{Busy: true}
	default:
		return SnapshotAck{Error: err.Error()}
	}
}

// Close waits out any in-flight checkpoint, flushes buffered events and
// closes the state database. Call after Run has returned.
func (s *Service) Close() error {
	s.pers.Wait()
	if err := s.events.Close(); err != nil {
		s.logger.Warn("event recorder close failed", "error", err)
	}
	return s.db.Close()
}

func (s *Service) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
