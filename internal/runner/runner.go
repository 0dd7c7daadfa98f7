// Package runner drives a survey run: one item at a time in roster
// order, search → match → bounded page fan-out → aggregate → record,
// with periodic session refreshes and non-blocking checkpoints. Every
// per-item failure is contained at the item boundary; nothing inside an
// item can take the run down.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/hazyhaar/releve/internal/agg"
	"github.com/hazyhaar/releve/internal/browser"
	"github.com/hazyhaar/releve/internal/checkpoint"
	"github.com/hazyhaar/releve/internal/extract"
	"github.com/hazyhaar/releve/internal/match"
	"github.com/hazyhaar/releve/internal/roster"
	"github.com/hazyhaar/releve/internal/sources"
	"github.com/hazyhaar/releve/internal/store"
)

// Availability labels written to results. Date and price sheets
// historically spell their empty outcome differently; both spellings are
// load-bearing for the people filtering on them.
const (
	availFound        = "Found"
	availNoExactDate  = "No exact date"
	availDateMissing  = "Not found"
	availPriceMissing = "Not Found"
	availError        = "Error"
)

// noURL is written where a result row has no page to point at.
const noURL = "URL not available"

// dateColumns are the roster columns a date source fills, after the
// survey sheet's original layout.
var dateColumns = []string{
	"Launch_Date_India", "Launch_Source", "Launch_URL", "Launch_Availability",
}

// Config tunes the run loop. The zero value is usable.
type Config struct {
	// RefreshEvery is the number of items between proactive session
	// refreshes. Default: 80.
	RefreshEvery int

	// PersistEvery is the number of items between periodic checkpoints.
	// Default: 100.
	PersistEvery int

	// MaxCandidates bounds how many search-result cards are considered
	// per search page. Default: sources.MaxCandidates.
	MaxCandidates int

	// MaxPages bounds detail-plus-variant page visits per matched item.
	// Default: sources.MaxPages.
	MaxPages int

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.RefreshEvery <= 0 {
		c.RefreshEvery = 80
	}
	if c.PersistEvery <= 0 {
		c.PersistEvery = 100
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = sources.MaxCandidates
	}
	if c.MaxPages <= 0 {
		c.MaxPages = sources.MaxPages
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Fetcher is the navigation surface the loop drives. *browser.Navigator
// satisfies it; tests substitute a scripted fake.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) browser.Outcome
	HTML(ctx context.Context) (string, error)
	Refresh(ctx context.Context, homeURL string) error
	CaptureNow(tag string) string
}

// Tally is the end-of-run summary.
type Tally struct {
	Processed      int
	Found          int
	PartiallyFound int
	NotFound       int
	Errored        int
	Skipped        int
}

// Runner owns one run of one source over a roster.
type Runner struct {
	cfg    Config
	nav    Fetcher
	source sources.Source
	store  *store.Store
	pers   *checkpoint.Persister
	events *store.EventRecorder
	logger *slog.Logger

	// mu guards the roster table and accumulated results; the snapshot
	// copy runs under it while the loop goroutine is between mutations.
	mu      sync.Mutex
	table   *roster.Table
	results map[string]*store.Result
}

// New assembles a Runner. events may be nil.
func New(nav Fetcher, src sources.Source, st *store.Store, table *roster.Table,
	pers *checkpoint.Persister, events *store.EventRecorder, cfg Config) *Runner {
	cfg.defaults()
	return &Runner{
		cfg:     cfg,
		nav:     nav,
		source:  src,
		store:   st,
		pers:    pers,
		events:  events,
		logger:  cfg.Logger,
		table:   table,
		results: make(map[string]*store.Result),
	}
}

// Run processes entries in order and returns the tally. A cancelled
// context stops the loop at the next item boundary; the item being
// processed at that moment stays in flight and is reset to pending on
// the next startup. The deferred finalizer writes one last checkpoint on
// every exit path.
func (r *Runner) Run(ctx context.Context, entries []roster.Entry) (*Tally, error) {
	// Prior runs' results hydrate the snapshot set, so a resumed or
	// subset run still checkpoints the complete results file instead of
	// shrinking it to this run's items.
	prior, err := r.store.ListResults(ctx, r.source.Name())
	if err != nil {
		return nil, fmt.Errorf("runner: load prior results: %w", err)
	}

	r.mu.Lock()
	for _, res := range prior {
		r.results[res.Label] = res
	}
	ensureColumns(r.table, r.source)
	r.mu.Unlock()

	tally := &Tally{}
	defer func() {
		if err := r.pers.Flush(r.Snapshot); err != nil {
			r.logger.Error("final checkpoint failed", "error", err)
		}
	}()

	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return tally, err
		}
		if i > 0 && i%r.cfg.RefreshEvery == 0 {
			r.logger.Info("periodic session refresh", "after_items", i)
			if err := r.nav.Refresh(ctx, r.source.Home()); err != nil {
				r.logger.Warn("session refresh failed", "error", err)
			}
		}

		claimed, err := r.store.ClaimItem(ctx, entry.Label)
		if err != nil {
			return tally, fmt.Errorf("runner: claim %q: %w", entry.Label, err)
		}
		if !claimed {
			tally.Skipped++
			continue
		}

		r.logger.Info("item start", "item", entry.Display, "position", i+1, "of", len(entries))
		res := r.processItemSafe(ctx, entry)
		if err := ctx.Err(); err != nil {
			// Cancelled mid-item: the claim stays in flight and the
			// startup reset returns it to pending next run.
			return tally, err
		}
		r.record(ctx, entry, res, tally)

		if (i+1)%r.cfg.PersistEvery == 0 {
			r.triggerCheckpoint()
		}
	}
	return tally, nil
}

// itemResult carries one item's outcome across the panic boundary.
type itemResult struct {
	agg        agg.Result
	searchURLs []string
	err        error
}

// processItemSafe converts panics inside adapters or extraction into an
// itemResult error, so one malformed page never ends the run.
func (r *Runner) processItemSafe(ctx context.Context, entry roster.Entry) (res itemResult) {
	defer func() {
		if p := recover(); p != nil {
			res.err = fmt.Errorf("runner: item panicked: %v", p)
		}
	}()
	return r.processItem(ctx, entry)
}

func (r *Runner) processItem(ctx context.Context, entry roster.Entry) itemResult {
	var res itemResult
	var matched *sources.Candidate

	for _, searchURL := range r.source.SearchURLs(entry.Display) {
		if ctx.Err() != nil {
			return res
		}
		res.searchURLs = append(res.searchURLs, searchURL)
		doc, ok := r.fetchDoc(ctx, searchURL)
		if !ok {
			continue
		}
		cands := r.source.Candidates(doc, searchURL)
		if len(cands) > r.cfg.MaxCandidates {
			cands = cands[:r.cfg.MaxCandidates]
		}
		for i := range cands {
			if match.Matches(entry.Display, cands[i].Title) {
				matched = &cands[i]
				break
			}
		}
		if matched != nil {
			break
		}
	}

	if matched == nil {
		res.agg = agg.Aggregate(nil)
		return res
	}
	r.logger.Info("candidate matched",
		"item", entry.Display, "title", matched.Title, "url", matched.URL)

	var obs []agg.Observation
	pages := 1
	if doc, ok := r.fetchDoc(ctx, matched.URL); ok {
		obs = append(obs, r.source.Extract(doc, matched.URL, entry.Display)...)
		for _, variantURL := range r.source.Variants(doc, matched.URL) {
			if pages >= r.cfg.MaxPages || ctx.Err() != nil {
				break
			}
			pages++
			vdoc, ok := r.fetchDoc(ctx, variantURL)
			if !ok {
				continue
			}
			obs = append(obs, r.source.Extract(vdoc, variantURL, entry.Display)...)
		}
	}

	res.agg = agg.Aggregate(obs)
	return res
}

// fetchDoc navigates to one page and parses it. False means the page is
// unusable; the cause has already been logged or captured downstream.
func (r *Runner) fetchDoc(ctx context.Context, pageURL string) (*html.Node, bool) {
	out := r.nav.Fetch(ctx, pageURL)
	if !out.OK {
		return nil, false
	}
	raw, err := r.nav.HTML(ctx)
	if err != nil {
		r.logger.Warn("dom read failed", "url", pageURL, "error", err)
		return nil, false
	}
	doc, err := extract.Parse(raw)
	if err != nil {
		r.logger.Warn("parse failed", "url", pageURL, "error", err)
		return nil, false
	}
	return doc, true
}

// record writes an item's outcome everywhere it lives: the ledger, the
// roster cells, the in-memory result set behind snapshots, the tally.
func (r *Runner) record(ctx context.Context, entry roster.Entry, res itemResult, tally *Tally) {
	tally.Processed++
	searchJoined := strings.Join(res.searchURLs, ", ")

	if res.err != nil {
		tally.Errored++
		r.logger.Error("item failed", "item", entry.Display, "error", res.err)
		r.nav.CaptureNow(entry.Label)
		if r.events != nil {
			r.events.Record("error", "item_error", entry.Label, res.err.Error())
		}
		if err := r.store.MarkErrored(ctx, entry.Label, res.err.Error()); err != nil {
			r.logger.Error("mark errored failed", "item", entry.Display, "error", err)
		}
		row := &store.Result{
			Label: entry.Label, Source: r.source.Name(),
			Confidence: "errored", Availability: availError,
			SearchURL: searchJoined,
		}
		if err := r.store.UpsertResult(ctx, row); err != nil {
			r.logger.Error("result write failed", "item", entry.Display, "error", err)
		}
		r.mu.Lock()
		r.results[entry.Label] = row
		// Not scraped: the next resume pass picks the item up again.
		r.setCell(entry.Row, scrapedColumn(r.source), "No")
		r.mu.Unlock()
		return
	}

	a := res.agg
	row := &store.Result{
		Label:        entry.Label,
		Source:       r.source.Name(),
		DateText:     a.Date,
		PriceLow:     a.Prices.Low,
		PriceHigh:    a.Prices.High,
		PriceRef:     a.Prices.Reference,
		Confidence:   string(a.Confidence),
		URL:          a.Source,
		Availability: availability(r.source.Kind(), a.Confidence),
		SearchURL:    searchJoined,
	}
	if err := r.store.UpsertResult(ctx, row); err != nil {
		r.logger.Error("result write failed", "item", entry.Display, "error", err)
	}
	if err := r.store.MarkDone(ctx, entry.Label); err != nil {
		r.logger.Error("mark done failed", "item", entry.Display, "error", err)
	}

	r.mu.Lock()
	r.results[entry.Label] = row
	r.fillRoster(entry, row)
	r.mu.Unlock()

	switch a.Confidence {
	case agg.Found:
		tally.Found++
	case agg.PartiallyFound:
		tally.PartiallyFound++
	default:
		tally.NotFound++
	}
	if r.events != nil {
		r.events.Record("info", "item_done", entry.Label, row.Availability)
	}
	r.logger.Info("item done",
		"item", entry.Display,
		"confidence", row.Confidence,
		"availability", row.Availability,
		"date", row.DateText,
		"low", row.PriceLow,
		"high", row.PriceHigh,
		"mrp", row.PriceRef)
}

// fillRoster writes an item's cells. Callers hold mu.
func (r *Runner) fillRoster(entry roster.Entry, row *store.Result) {
	r.setCell(entry.Row, scrapedColumn(r.source), "Yes")
	if r.source.Kind() != sources.KindDate {
		return
	}
	title := sources.Title(r.source.Name())
	sourceTag, pageURL := "", ""
	if row.Confidence != string(agg.NotFound) {
		sourceTag, pageURL = title, row.URL
	}
	r.setCell(entry.Row, "Launch_Date_India", row.DateText)
	r.setCell(entry.Row, "Launch_Source", sourceTag)
	r.setCell(entry.Row, "Launch_URL", pageURL)
	r.setCell(entry.Row, "Launch_Availability", row.Availability)
}

func (r *Runner) setCell(rowIdx int, column, value string) {
	if err := r.table.Set(rowIdx, column, value); err != nil {
		r.logger.Warn("roster cell write failed", "column", column, "error", err)
	}
}

// Snapshot deep-copies run progress for the persister. Price sources get
// a results file next to the roster; the date source writes into the
// roster alone. Safe to call from any goroutine.
func (r *Runner) Snapshot() *checkpoint.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := &checkpoint.Snapshot{Table: r.table.Clone()}
	if r.source.Kind() == sources.KindPrice {
		snap.Source = r.source.Name()
		snap.Out = r.outputRowsLocked()
	}
	return snap
}

// outputRowsLocked builds the results file over the whole roster, not
// just this run's entries: a retry pass must not shrink the file down to
// its subset.
func (r *Runner) outputRowsLocked() []checkpoint.OutputRow {
	rows := make([]checkpoint.OutputRow, 0, len(r.results))
	for _, e := range r.table.Entries() {
		res, ok := r.results[e.Label]
		if !ok {
			continue
		}
		productURL := res.URL
		if productURL == "" {
			productURL = noURL
		}
		rows = append(rows, checkpoint.OutputRow{
			Model:        e.Display,
			LowPrice:     formatPrice(res.PriceLow),
			HighPrice:    formatPrice(res.PriceHigh),
			MRP:          formatPrice(res.PriceRef),
			ProductURL:   productURL,
			Availability: res.Availability,
			SearchURLs:   res.SearchURL,
		})
	}
	return rows
}

func (r *Runner) triggerCheckpoint() {
	err := r.pers.Trigger(r.Snapshot)
	switch {
	case err == nil:
	case errors.Is(err, checkpoint.ErrSnapshotBusy):
		r.logger.Warn("checkpoint skipped, previous write still running")
	default:
		r.logger.Error("checkpoint trigger failed", "error", err)
	}
}

// availability maps an aggregate confidence to the sheet label for the
// source's kind.
func availability(kind sources.Kind, conf agg.Confidence) string {
	if kind == sources.KindDate {
		switch conf {
		case agg.Found:
			return availFound
		case agg.PartiallyFound:
			return availNoExactDate
		default:
			return availDateMissing
		}
	}
	if conf == agg.Found {
		return availFound
	}
	return availPriceMissing
}

// scrapedColumn names the per-source status column.
func scrapedColumn(src sources.Source) string {
	return "Scraped_" + sources.Title(src.Name())
}

// ensureColumns makes sure every column this source writes exists.
func ensureColumns(table *roster.Table, src sources.Source) {
	cols := []string{scrapedColumn(src)}
	if src.Kind() == sources.KindDate {
		cols = append(cols, dateColumns...)
	}
	table.EnsureColumns(cols...)
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
