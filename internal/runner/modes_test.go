package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/releve/internal/sources"
	"github.com/hazyhaar/releve/internal/store"
)

func TestParseMode(t *testing.T) {
	for _, s := range []string{"fresh", "resume", "retry-errors"} {
		m, err := ParseMode(s)
		if err != nil || string(m) != s {
			t.Errorf("ParseMode(%q) = %q, %v", s, m, err)
		}
	}
	if _, err := ParseMode("bogus"); err == nil {
		t.Error("bogus mode accepted")
	}
}

func TestPrepare_FreshResetsLedgerAndColumns(t *testing.T) {
	// WHAT: fresh mode returns finished items to pending and blanks the
	// cells a previous pass filled.
	// WHY: a fresh run must not inherit stale dates from last month.
	ctx := context.Background()
	st := newTestStore(t)
	tbl := newTestTable(t, "Nova 12", "Breeze K5")
	src := sources.GSMArena{}

	entries, err := Prepare(ctx, st, tbl, src, ModeResume, "")
	if err != nil {
		t.Fatalf("first prepare: %v", err)
	}
	if err := st.MarkDone(ctx, entries[0].Label); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	tbl.EnsureColumns("Launch_Date_India", "Scraped_GSMArena")
	if err := tbl.Set(entries[0].Row, "Launch_Date_India", "2023, May 05"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := tbl.Set(entries[0].Row, "Scraped_GSMArena", "Yes"); err != nil {
		t.Fatalf("set: %v", err)
	}

	entries, err = Prepare(ctx, st, tbl, src, ModeFresh, "")
	if err != nil {
		t.Fatalf("fresh prepare: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	item, err := st.GetItem(ctx, entries[0].Label)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item.Status != store.StatusPending || item.Attempts != 0 {
		t.Errorf("got status=%q attempts=%d, want pending/0", item.Status, item.Attempts)
	}
	if got := tbl.Get(entries[0].Row, "Launch_Date_India"); got != "" {
		t.Errorf("stale date survived: %q", got)
	}
	if got := tbl.Get(entries[0].Row, "Scraped_GSMArena"); got != "No" {
		t.Errorf("got scraped flag %q, want No", got)
	}
}

func TestPrepare_ResumeKeepsDone(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	tbl := newTestTable(t, "Nova 12", "Breeze K5")
	src := sources.GSMArena{}

	entries, err := Prepare(ctx, st, tbl, src, ModeResume, "")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := st.MarkDone(ctx, entries[0].Label); err != nil {
		t.Fatalf("mark done: %v", err)
	}

	if _, err := Prepare(ctx, st, tbl, src, ModeResume, ""); err != nil {
		t.Fatalf("second prepare: %v", err)
	}
	item, err := st.GetItem(ctx, entries[0].Label)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item.Status != store.StatusDone {
		t.Errorf("got status %q, want done", item.Status)
	}
}

func TestPrepare_ResumeRecoversCrashLeftovers(t *testing.T) {
	// WHAT: items a dead process left in flight come back as pending.
	ctx := context.Background()
	st := newTestStore(t)
	tbl := newTestTable(t, "Nova 12")
	src := sources.GSMArena{}

	entries, err := Prepare(ctx, st, tbl, src, ModeResume, "")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if _, err := st.ClaimItem(ctx, entries[0].Label); err != nil {
		t.Fatalf("claim: %v", err)
	}

	if _, err := Prepare(ctx, st, tbl, src, ModeResume, ""); err != nil {
		t.Fatalf("second prepare: %v", err)
	}
	item, err := st.GetItem(ctx, entries[0].Label)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item.Status != store.StatusPending {
		t.Errorf("got status %q, want pending", item.Status)
	}
}

func TestPrepare_RetryErrorsFiltersAndResets(t *testing.T) {
	// WHAT: retry mode walks only the listed items; listed errored items
	// go back to pending, listed done items stay done.
	// WHY: a replay targets yesterday's failures, not the whole roster.
	ctx := context.Background()
	st := newTestStore(t)
	tbl := newTestTable(t, "Nova 12", "Breeze K5", "Pixel Town")
	src := sources.GSMArena{}

	all, err := Prepare(ctx, st, tbl, src, ModeResume, "")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := st.MarkErrored(ctx, all[0].Label, "boom"); err != nil {
		t.Fatalf("mark errored: %v", err)
	}
	if err := st.MarkDone(ctx, all[1].Label); err != nil {
		t.Fatalf("mark done: %v", err)
	}

	listPath := filepath.Join(t.TempDir(), "errors.txt")
	if err := os.WriteFile(listPath, []byte("Nova 12\nBreeze K5\n"), 0o644); err != nil {
		t.Fatalf("write list: %v", err)
	}

	entries, err := Prepare(ctx, st, tbl, src, ModeRetryErrors, listPath)
	if err != nil {
		t.Fatalf("retry prepare: %v", err)
	}
	if len(entries) != 2 || entries[0].Display != "Nova 12" || entries[1].Display != "Breeze K5" {
		t.Fatalf("got entries %+v", entries)
	}

	nova, err := st.GetItem(ctx, all[0].Label)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if nova.Status != store.StatusPending {
		t.Errorf("got status %q, want pending", nova.Status)
	}
	breeze, err := st.GetItem(ctx, all[1].Label)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if breeze.Status != store.StatusDone {
		t.Errorf("got status %q, want done", breeze.Status)
	}
}

func TestPrepare_RetryErrorsNeedsList(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	tbl := newTestTable(t, "Nova 12")

	_, err := Prepare(ctx, st, tbl, sources.GSMArena{}, ModeRetryErrors, "")
	if err == nil || !strings.Contains(err.Error(), "error list") {
		t.Errorf("got %v, want error list complaint", err)
	}
}

func TestPrepare_RetryErrorsNoMatches(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	tbl := newTestTable(t, "Nova 12")
	listPath := filepath.Join(t.TempDir(), "errors.txt")
	if err := os.WriteFile(listPath, []byte("Galaxy Far Away\n"), 0o644); err != nil {
		t.Fatalf("write list: %v", err)
	}

	_, err := Prepare(ctx, st, tbl, sources.GSMArena{}, ModeRetryErrors, listPath)
	if err == nil || !strings.Contains(err.Error(), "matched no roster rows") {
		t.Errorf("got %v, want no-match error", err)
	}
}

func TestPrepare_EmptyRosterFails(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	tbl := newTestTable(t)

	_, err := Prepare(ctx, st, tbl, sources.GSMArena{}, ModeResume, "")
	if err == nil || !strings.Contains(err.Error(), "no labelled rows") {
		t.Errorf("got %v, want empty roster error", err)
	}
}
