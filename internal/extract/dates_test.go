package extract

import (
	"strings"
	"testing"
)

func TestFindLaunchDate_SpecSheetForm(t *testing.T) {
	// WHAT: the "2024, March 15" spec-sheet form is matched in full.
	// WHY: the bare-year fallback would otherwise truncate it to "2024".
	text := "Network GSM / HSPA Announced 2024, March 15 Status Available"
	if got := FindLaunchDate(text); got != "2024, March 15" {
		t.Errorf("got %q, want %q", got, "2024, March 15")
	}
}

func TestFindLaunchDate_DayFirstForm(t *testing.T) {
	text := "The device launched 15 March 2024 in select markets."
	if got := FindLaunchDate(text); got != "15 March 2024" {
		t.Errorf("got %q, want %q", got, "15 March 2024")
	}
}

func TestFindLaunchDate_MonthDayYearForm(t *testing.T) {
	text := "Release date: March 15, 2024 for all regions."
	if got := FindLaunchDate(text); got != "March 15, 2024" {
		t.Errorf("got %q, want %q", got, "March 15, 2024")
	}
}

func TestFindLaunchDate_MonthYearForm(t *testing.T) {
	text := "Announced March 2024. Shipping later."
	if got := FindLaunchDate(text); got != "March 2024" {
		t.Errorf("got %q, want %q", got, "March 2024")
	}
}

func TestFindLaunchDate_BareYearFallback(t *testing.T) {
	// WHAT: with no fuller phrase nearby, a standalone year still counts.
	text := "Announced: Q3 2024"
	if got := FindLaunchDate(text); got != "2024" {
		t.Errorf("got %q, want %q", got, "2024")
	}
}

func TestFindLaunchDate_AnchorPriorityOverPosition(t *testing.T) {
	// WHAT: "announced" wins over "release" even when "release" appears
	// earlier in the page.
	// WHY: anchors are ranked by reliability, not reading order; news blurbs
	// mention "release" long before the spec table row.
	pad := strings.Repeat("x ", 100)
	text := "Global release window 2020. " + pad + " Announced 2024, March 15."
	if got := FindLaunchDate(text); got != "2024, March 15" {
		t.Errorf("got %q, want %q", got, "2024, March 15")
	}
}

func TestFindLaunchDate_WindowExcludesDistantDates(t *testing.T) {
	// WHAT: a year far outside the anchor window is ignored.
	pad := strings.Repeat("y ", 200)
	text := "Copyright 2019. " + pad + " Device announced but date not shared."
	if got := FindLaunchDate(text); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestFindLaunchDate_NoAnchor(t *testing.T) {
	if got := FindLaunchDate("A page about 2024 phones with no label."); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestFindLaunchDate_CaseInsensitiveAnchor(t *testing.T) {
	text := "ANNOUNCED 2024, January 9"
	if got := FindLaunchDate(text); got != "2024, January 9" {
		t.Errorf("got %q, want %q", got, "2024, January 9")
	}
}

func TestFindLaunchDate_Empty(t *testing.T) {
	if got := FindLaunchDate(""); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}
