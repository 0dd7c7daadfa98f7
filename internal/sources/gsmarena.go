package sources

import (
	"net/url"

	"golang.org/x/net/html"

	"github.com/hazyhaar/releve/internal/agg"
	"github.com/hazyhaar/releve/internal/extract"
)

// GSMArena reads launch dates off spec pages. Its search results are a
// flat list of device anchors under div.makers, and the date itself is
// fished out of page text around announcement anchors rather than any
// particular selector, which survives their markup churn.
type GSMArena struct{}

func (GSMArena) Name() string { return "gsmarena" }

func (GSMArena) Kind() Kind { return KindDate }

func (GSMArena) Home() string { return "https://www.gsmarena.com" }

func (GSMArena) SearchURLs(query string) []string {
	return []string{
		"https://www.gsmarena.com/results.php3?sQuickSearch=yes&sName=" + url.QueryEscape(query),
	}
}

func (GSMArena) Candidates(doc *html.Node, pageURL string) []Candidate {
	var out []Candidate
	for _, a := range extract.QueryAll(doc, "div.makers a") {
		title := extract.Text(extract.Query(a, "span"))
		if title == "" {
			title = extract.Text(a)
		}
		link := resolveURL(pageURL, extract.Attr(a, "href"))
		if title == "" || link == "" {
			continue
		}
		out = append(out, Candidate{Title: title, URL: link})
	}
	return out
}

// Variants is nil: one spec page carries the launch date for every
// storage and colour permutation.
func (GSMArena) Variants(doc *html.Node, pageURL string) []string { return nil }

func (GSMArena) Extract(doc *html.Node, pageURL, query string) []agg.Observation {
	body := extract.BodyText(doc)
	if body == "" {
		return nil
	}
	return []agg.Observation{agg.DateObservation(extract.FindLaunchDate(body), pageURL)}
}
