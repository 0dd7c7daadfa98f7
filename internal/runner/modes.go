package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/hazyhaar/releve/internal/roster"
	"github.com/hazyhaar/releve/internal/sources"
	"github.com/hazyhaar/releve/internal/store"
)

// Mode selects how a run treats earlier progress.
type Mode string

const (
	// ModeFresh discards all prior state and re-scrapes the roster.
	ModeFresh Mode = "fresh"

	// ModeResume keeps done items done and works through the rest.
	ModeResume Mode = "resume"

	// ModeRetryErrors replays only the items named in an error list.
	ModeRetryErrors Mode = "retry-errors"
)

// ParseMode validates a mode flag value.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFresh, ModeResume, ModeRetryErrors:
		return Mode(s), nil
	}
	return "", fmt.Errorf("runner: unknown mode %q (want fresh, resume or retry-errors)", s)
}

// Prepare seeds the ledger from the roster and applies the mode's reset
// policy, returning the entries the run should walk. Crash leftovers in
// in_flight are returned to pending regardless of mode.
func Prepare(ctx context.Context, st *store.Store, table *roster.Table,
	src sources.Source, mode Mode, errorListPath string) ([]roster.Entry, error) {

	entries := table.Entries()
	if len(entries) == 0 {
		return nil, errors.New("runner: roster has no labelled rows")
	}

	seed := make([]store.SeedItem, len(entries))
	for i, e := range entries {
		seed[i] = store.SeedItem{Label: e.Label, Display: e.Display}
	}
	if err := st.SeedItems(ctx, seed); err != nil {
		return nil, fmt.Errorf("runner: seed items: %w", err)
	}
	// Items a previous process died holding go back to pending.
	if _, err := st.ResetInFlight(ctx); err != nil {
		return nil, fmt.Errorf("runner: reset in-flight: %w", err)
	}

	switch mode {
	case ModeFresh:
		if _, err := st.ResetAll(ctx); err != nil {
			return nil, fmt.Errorf("runner: reset all: %w", err)
		}
		clearColumns(table, src)
	case ModeResume:
		// State as-is: ClaimItem skips done rows.
	case ModeRetryErrors:
		if errorListPath == "" {
			return nil, errors.New("runner: retry-errors mode needs an error list")
		}
		labels, err := roster.LoadErrorList(errorListPath)
		if err != nil {
			return nil, err
		}
		entries = roster.FilterEntries(entries, labels)
		if len(entries) == 0 {
			return nil, errors.New("runner: error list matched no roster rows")
		}
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Label
		}
		if _, err := st.ResetForRetry(ctx, names); err != nil {
			return nil, fmt.Errorf("runner: reset for retry: %w", err)
		}
	default:
		return nil, fmt.Errorf("runner: unknown mode %q", mode)
	}
	return entries, nil
}

// clearColumns blanks the cells a fresh run will refill, so a crash
// mid-run leaves no stale values from the previous pass.
func clearColumns(table *roster.Table, src sources.Source) {
	ensureColumns(table, src)
	cols := []string{scrapedColumn(src)}
	if src.Kind() == sources.KindDate {
		cols = append(cols, dateColumns...)
	}
	for i := range table.Rows {
		for _, col := range cols {
			v := ""
			if col == scrapedColumn(src) {
				v = "No"
			}
			_ = table.Set(i, col, v)
		}
	}
}
