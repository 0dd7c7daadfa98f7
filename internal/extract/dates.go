package extract

import (
	"regexp"
	"strings"
)

// Window around an anchor word searched for a date phrase, in bytes.
// Spec pages mention the date shortly after the word itself, but the
// label row sometimes precedes it, hence the smaller lead.
const (
	dateWindowBefore = 120
	dateWindowAfter  = 260
)

// dateAnchors are scanned in order; the first anchor present in the page
// decides the window. "Announced" is the spec-sheet row label and the most
// reliable; the others catch news-style phrasing.
var dateAnchors = []string{"announced", "launched", "release date", "release"}

// datePatterns run most-specific first so "2024, March 15" is not truncated
// to "2024" by the bare-year fallback.
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(\d{4}\s*,?\s*[A-Za-z]+\s+\d{1,2})\b`), // 2024, March 15
	regexp.MustCompile(`(?i)\b(\d{1,2}\s+[A-Za-z]+\s+\d{4})\b`),      // 15 March 2024
	regexp.MustCompile(`(?i)\b([A-Za-z]+\s+\d{1,2}\s*,?\s*\d{4})\b`), // March 15, 2024
	regexp.MustCompile(`(?i)\b(\d{4}\s*,?\s*[A-Za-z]+)\b`),           // 2024, March
	regexp.MustCompile(`(?i)\b([A-Za-z]+\s+\d{4})\b`),                // March 2024
	regexp.MustCompile(`(?i)\b(\d{4})\b`),                            // 2024
}

// FindLaunchDate scans page body text for a launch-date phrase near an
// anchor word. The date is returned as shown by the page, not normalized:
// sources disagree on granularity (full date, month, bare year) and the
// roster records what the source claims.
func FindLaunchDate(text string) string {
	if text == "" {
		return ""
	}
	lower := strings.ToLower(text)
	for _, anchor := range dateAnchors {
		idx := strings.Index(lower, anchor)
		if idx < 0 {
			continue
		}
		start := max(0, idx-dateWindowBefore)
		end := min(len(text), idx+dateWindowAfter)
		window := text[start:end]
		for _, re := range datePatterns {
			if m := re.FindStringSubmatch(window); m != nil {
				return strings.TrimSpace(m[1])
			}
		}
	}
	return ""
}
