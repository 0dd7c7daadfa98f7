// Package sources holds the per-site catalog adapters: search URL
// construction, result-card enumeration, variant discovery and fact
// extraction behind one uniform interface. Each site's selector rules
// live in its own file; the reusable date-window and price-parsing
// helpers live in internal/extract. Adapters parse already-fetched DOM
// snapshots and never navigate themselves.
package sources

import (
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/releve/internal/agg"
)

// Kind tells what fact a source yields.
type Kind string

const (
	KindDate  Kind = "date"
	KindPrice Kind = "price"
)

// Caps on per-item page work. MaxCandidates bounds how many result cards
// are considered per search; MaxPages bounds detail plus variant visits
// for the matched candidate.
const (
	MaxCandidates = 8
	MaxPages      = 5
)

// Candidate is one search-result entry offered for matching.
type Candidate struct {
	Title string
	URL   string
}

// Source is one catalog site behind the uniform adapter interface.
type Source interface {
	// Name is the short registry key ("gsmarena", "amazon", "flipkart").
	Name() string
	Kind() Kind
	// Home is the page used to warm a fresh session.
	Home() string
	// SearchURLs returns the search pages to try in order; the run loop
	// stops at the first one that yields a matching candidate.
	SearchURLs(query string) []string
	// Candidates enumerates result cards on a search page, accessory
	// listings already dropped, URLs resolved absolute against pageURL.
	Candidates(doc *html.Node, pageURL string) []Candidate
	// Variants lists further variant pages reachable from a detail page,
	// deduplicated and capped, excluding pageURL itself.
	Variants(doc *html.Node, pageURL string) []string
	// Extract pulls observations out of one detail or variant page.
	// An empty result means nothing recognizable was present; an
	// observation carrying zero values means the page was recognized
	// but held no usable fact.
	Extract(doc *html.Node, pageURL, query string) []agg.Observation
}

var registry = map[string]func() Source{
	"gsmarena": func() Source { return GSMArena{} },
	"amazon":   func() Source { return Amazon{} },
	"flipkart": func() Source { return Flipkart{} },
}

// ByName returns the named source adapter.
func ByName(name string) (Source, bool) {
	mk, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	return mk(), true
}

// Names lists the registered sources in stable order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Title is the human form of a source name, used in roster column
// headers and run summaries.
func Title(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gsmarena":
		return "GSMArena"
	case "amazon":
		return "Amazon"
	case "flipkart":
		return "Flipkart"
	case "":
		return ""
	}
	name = strings.TrimSpace(name)
	return strings.ToUpper(name[:1]) + name[1:]
}

// ExcludeKeywords mark accessory listings that pollute device searches.
// Titles containing any of them are skipped before matching.
var ExcludeKeywords = []string{
	"cover", "case", "charger", "screen protector", "cable", "earphone",
	"headphone", "tempered glass", "skin", "stand", "bag", "adapter",
	"power bank", "holder", "mount", "pouch", "warranty", "insurance",
}

// IsAccessory reports whether a listing title names an accessory rather
// than a device.
func IsAccessory(title string) bool {
	lower := strings.ToLower(title)
	for _, kw := range ExcludeKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// plausible reports whether a parsed price sits inside the accepted
// retail band. Price pages are littered with EMI instalments, bank-offer
// amounts and badge numbers; the band is how adapters pick the real
// figure out of that noise.
func plausible(p float64) bool {
	return p >= agg.MinPlausiblePrice && p <= agg.MaxPlausiblePrice
}

// resolveURL makes href absolute against the page it appeared on.
func resolveURL(pageURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

// stripQuery drops query and fragment, so colour/storage permutations of
// one listing deduplicate to a single page.
func stripQuery(link string) string {
	if i := strings.IndexAny(link, "?#"); i >= 0 {
		return link[:i]
	}
	return link
}

// dedupeLinks keeps the first occurrence of each base URL, drops the page
// itself, and caps the result.
func dedupeLinks(links []string, selfURL string, max int) []string {
	seen := map[string]struct{}{stripQuery(selfURL): {}}
	out := make([]string, 0, max)
	for _, l := range links {
		base := stripQuery(l)
		if _, ok := seen[base]; ok {
			continue
		}
		seen[base] = struct{}{}
		out = append(out, l)
		if len(out) == max {
			break
		}
	}
	return out
}
