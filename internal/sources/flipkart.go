package sources

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/releve/internal/agg"
	"github.com/hazyhaar/releve/internal/extract"
	"github.com/hazyhaar/releve/internal/match"
)

// Flipkart reads prices off flipkart.com, which rotates obfuscated
// class names between deploys. Each concern therefore carries a list of
// every class generation seen in the wild, tried in order, with a
// generic product-link fallback when all of them have rotated away.
type Flipkart struct{}

// Result-card anchor classes across markup generations. The first class
// that matches anything wins the whole page.
var flipkartCardClasses = []string{
	"._1fQZEK",
	".CGtC98",
	".VJA3rP",
	"._2kHMtA",
	"._1AtVbE",
	"._13oc-S",
	".s1Q9rs",
	".cPHDOP",
	".tUxRFH",
}

// Detail-page title selectors, first non-empty text wins.
var flipkartTitleSelectors = []string{
	".B_NuCI",
	"span.VU-ZEz",
	"span._35KyD6",
	"h1.yhB1nd",
}

// Strikethrough list-price selectors. Hits must still read like a price
// before they count.
var flipkartMRPSelectors = []string{
	"div[class*=_3I9_wc]",
	"div[style*=line-through]",
	"span[style*=line-through]",
}

// Variant link selectors: the dedicated swatch class plus product links
// inside column layouts.
var flipkartVariantSelectors = []string{
	"a._1fGeJ5",
	"div[class*=col] a[href*=/p/]",
	"li[class*=col] a[href*=/p/]",
}

func (Flipkart) Name() string { return "flipkart" }

func (Flipkart) Kind() Kind { return KindPrice }

func (Flipkart) Home() string { return "https://www.flipkart.com" }

// SearchURLs returns the bare model query first and a "mobile"-suffixed
// retry, which rescues models whose bare name surfaces only accessories.
func (Flipkart) SearchURLs(query string) []string {
	return []string{
		"https://www.flipkart.com/search?q=" + url.QueryEscape(query),
		"https://www.flipkart.com/search?q=" + url.QueryEscape(query+" mobile"),
	}
}

func (Flipkart) Candidates(doc *html.Node, pageURL string) []Candidate {
	var out []Candidate
	for _, class := range flipkartCardClasses {
		anchors := extract.QueryAll(doc, "a"+class)
		if len(anchors) == 0 {
			continue
		}
		for _, a := range anchors {
			out = appendCandidate(out, extract.Text(a), resolveURL(pageURL, extract.Attr(a, "href")))
		}
		break
	}
	if len(out) > 0 {
		return out
	}
	// All known card classes rotated away: take any product link with
	// visible text and let matching sort them out.
	for _, a := range extract.QueryAll(doc, "a[href*=/p/]") {
		out = appendCandidate(out, extract.Text(a), resolveURL(pageURL, extract.Attr(a, "href")))
	}
	return out
}

func (Flipkart) Variants(doc *html.Node, pageURL string) []string {
	var links []string
	for _, sel := range flipkartVariantSelectors {
		for _, a := range extract.QueryAll(doc, sel) {
			href := extract.Attr(a, "href")
			if !strings.Contains(href, "/p/") {
				continue
			}
			links = append(links, resolveURL(pageURL, href))
		}
	}
	// Storage swatches ("128 GB", "256 GB") sometimes link without /p/.
	for _, a := range extract.QueryAll(doc, "li[class*=col] a") {
		href := extract.Attr(a, "href")
		if href == "" || !strings.Contains(extract.Text(a), "GB") {
			continue
		}
		links = append(links, resolveURL(pageURL, href))
	}
	return dedupeLinks(links, pageURL, MaxPages)
}

func (Flipkart) Extract(doc *html.Node, pageURL, query string) []agg.Observation {
	var title string
	for _, sel := range flipkartTitleSelectors {
		if title = extract.Text(extract.Query(doc, sel)); title != "" {
			break
		}
	}
	// A rotated title class leaves the title empty; prices are still
	// worth reading because the candidate matched on the search page.
	if title != "" {
		if IsAccessory(title) {
			return nil
		}
		if !match.Matches(query, title) {
			return nil
		}
	}

	var mrp float64
	for _, sel := range flipkartMRPSelectors {
		for _, n := range extract.QueryAll(doc, sel) {
			text := strings.TrimSpace(extract.Text(n))
			if !strings.HasPrefix(text, "₹") || !validPriceText(text) {
				continue
			}
			if p, ok := extract.ParsePrice(text); ok && plausible(p) && p > mrp {
				mrp = p
			}
		}
	}

	var selling float64
	for _, tag := range []string{"div", "span"} {
		for _, n := range extract.QueryAll(doc, tag+"[class*=_30jeq3]") {
			text := strings.TrimSpace(extract.Text(n))
			if !strings.HasPrefix(text, "₹") || !validPriceText(text) {
				continue
			}
			if isStruckThrough(n) {
				continue
			}
			if p, ok := extract.ParsePrice(text); ok && plausible(p) && (selling == 0 || p < selling) {
				selling = p
			}
		}
	}

	return []agg.Observation{agg.PriceObservation(selling, mrp, pageURL)}
}

// isStruckThrough reports whether a price element renders crossed out,
// either through the MRP class, its own style or the parent's style.
func isStruckThrough(n *html.Node) bool {
	if strings.Contains(extract.Attr(n, "class"), "_3I9_wc") {
		return true
	}
	if strings.Contains(extract.Attr(n, "style"), "line-through") {
		return true
	}
	if p := n.Parent; p != nil && strings.Contains(extract.Attr(p, "style"), "line-through") {
		return true
	}
	return false
}

// validPriceText rejects text that starts with a rupee sign but is not
// a plain price: banner lines, EMI offers, cashback promos.
func validPriceText(text string) bool {
	if text == "" || len(text) > 100 {
		return false
	}
	digits := 0
	for _, r := range text {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits < 4 {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range []string{"save", "off", "discount", "cashback", "bank", "emi", "extra"} {
		if strings.Contains(lower, kw) {
			return false
		}
	}
	return true
}
