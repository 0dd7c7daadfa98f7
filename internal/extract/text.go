package extract

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

var sanitizer = bluemonday.UGCPolicy()

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

// BodyText returns the page body's text, whitespace-collapsed, for anchor
// and window scans. Falls back to the whole document when no body element
// exists (fragment input).
func BodyText(doc *html.Node) string {
	if body := Query(doc, "body"); body != nil {
		return Text(body)
	}
	return Text(doc)
}

// Markdown renders raw page HTML as markdown for diagnostic snapshots.
// The HTML is sanitized first so stored captures carry no script payloads.
// Returns "" when the page yields no convertible content.
func Markdown(rawHTML, sourceURL string) string {
	if rawHTML == "" {
		return ""
	}
	clean := sanitizer.Sanitize(rawHTML)
	out, err := mdConverter.ConvertString(clean, converter.WithDomain(sourceURL))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(out)
}
