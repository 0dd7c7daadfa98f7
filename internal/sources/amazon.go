package sources

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/releve/internal/agg"
	"github.com/hazyhaar/releve/internal/extract"
	"github.com/hazyhaar/releve/internal/match"
)

// Amazon reads selling prices and list prices off amazon.in detail
// pages. Result cards carry stable data-component-type attributes;
// prices hide among EMI figures and savings badges, so every selector
// hit is band-checked before it counts.
type Amazon struct{}

// Selling-price selectors in preference order. Only the first element
// per selector is read: later hits are savings amounts or exchange
// offers, not the price to pay.
var amazonSellingSelectors = []string{
	"span[class*=priceToPay] span.a-offscreen",
	"span.a-price-whole",
	"span.a-price span.a-offscreen",
}

// Strikethrough list-price selectors. All hits are read and the largest
// plausible one wins.
var amazonMRPSelectors = []string{
	"span.a-text-price span.a-offscreen",
	"span[data-a-strike=true] span.a-offscreen",
	"span[data-a-strike=true]",
}

// Variant link selectors, colour and storage first, then the twister
// container and a generic list fallback. Every page found here is
// re-verified against the query before its prices count.
var amazonVariantSelectors = []string{
	"div#variation_color_name li a",
	"li[id*=color_name] a",
	"div#variation_size_name li a",
	"li[id*=size_name] a",
	"li[id*=style_name] a",
	"div#twister li a[href*=/dp/]",
	"div.a-section ul.a-unordered-list li a[href*=/dp/]",
}

func (Amazon) Name() string { return "amazon" }

func (Amazon) Kind() Kind { return KindPrice }

func (Amazon) Home() string { return "https://www.amazon.in" }

func (Amazon) SearchURLs(query string) []string {
	return []string{
		"https://www.amazon.in/s?k=" + url.QueryEscape(query+" mobile phone"),
	}
}

func (Amazon) Candidates(doc *html.Node, pageURL string) []Candidate {
	var out []Candidate
	for _, card := range extract.QueryAll(doc, "div[data-component-type=s-search-result]") {
		link := extract.Query(card, "h2 a")
		if link == nil {
			continue
		}
		out = appendCandidate(out, extract.Text(link), resolveURL(pageURL, extract.Attr(link, "href")))
	}
	if len(out) > 0 {
		return out
	}
	// Sparse or reshuffled result page: fall back to bare product links.
	for _, a := range extract.QueryAll(doc, "a[href*=/dp/]") {
		href := extract.Attr(a, "href")
		if strings.Contains(href, "#customerReviews") {
			continue
		}
		out = appendCandidate(out, extract.Text(a), resolveURL(pageURL, href))
	}
	return out
}

func appendCandidate(out []Candidate, title, link string) []Candidate {
	if title == "" || link == "" || IsAccessory(title) {
		return out
	}
	return append(out, Candidate{Title: title, URL: link})
}

func (Amazon) Variants(doc *html.Node, pageURL string) []string {
	var links []string
	for _, sel := range amazonVariantSelectors {
		for _, a := range extract.QueryAll(doc, sel) {
			href := extract.Attr(a, "href")
			if !strings.Contains(href, "/dp/") {
				continue
			}
			if strings.Contains(href, "#customerReviews") || strings.Contains(href, "/images/") {
				continue
			}
			links = append(links, resolveURL(pageURL, href))
		}
	}
	return dedupeLinks(links, pageURL, MaxPages)
}

func (Amazon) Extract(doc *html.Node, pageURL, query string) []agg.Observation {
	title := extract.Text(extract.Query(doc, "#productTitle"))
	if title == "" {
		title = extract.Text(extract.Query(doc, "h1"))
	}
	if title == "" || IsAccessory(title) {
		return nil
	}
	// Detail pages get the lenient check: full titles bury the model
	// name under RAM, colour and network noise.
	if ok, _ := match.Score(query, title); !ok {
		return nil
	}
	if !amazonIsPhonePage(doc) {
		return nil
	}

	var selling float64
	for _, sel := range amazonSellingSelectors {
		nodes := extract.QueryAll(doc, sel)
		if len(nodes) == 0 {
			continue
		}
		if p, ok := extract.ParsePrice(extract.Text(nodes[0])); ok && plausible(p) {
			selling = p
			break
		}
	}

	var mrp float64
	for _, sel := range amazonMRPSelectors {
		for _, n := range extract.QueryAll(doc, sel) {
			text := extract.Text(n)
			if !strings.Contains(text, "₹") {
				continue
			}
			if p, ok := extract.ParsePrice(text); ok && plausible(p) && p > mrp {
				mrp = p
			}
		}
	}

	return []agg.Observation{agg.PriceObservation(selling, mrp, pageURL)}
}

// amazonIsPhonePage filters out laptops and accessories that leak into
// phone searches. A phone breadcrumb accepts outright; otherwise the
// page is rejected only when its opening text reads like a laptop
// listing with no mention of phones.
func amazonIsPhonePage(doc *html.Node) bool {
	for _, bc := range extract.QueryAll(doc, "div#wayfinding-breadcrumbs_feature_div a") {
		text := strings.ToLower(extract.Text(bc))
		if strings.Contains(text, "mobile") || strings.Contains(text, "phone") || strings.Contains(text, "smartphone") {
			return true
		}
	}
	body := strings.ToLower(extract.BodyText(doc))
	head := body
	if len(head) > 500 {
		head = head[:500]
	}
	if strings.Contains(head, "laptop") || strings.Contains(head, "notebook") {
		lead := body
		if len(lead) > 300 {
			lead = lead[:300]
		}
		if !strings.Contains(lead, "mobile") && !strings.Contains(lead, "phone") {
			return false
		}
	}
	return true
}
