// Package extract pulls structured values out of captured page HTML:
// nodes by CSS selector, linearized body text, launch-date phrases near
// anchor words, and numeric prices from marketplace price strings.
//
// The selector engine supports the subset the site adapters need:
//   - tag: "a", "span", "div"
//   - .class: ".makers", "._1fQZEK"
//   - #id: "#twister"
//   - tag.class: "span.a-offscreen"
//   - tag#id: "div#centerCol"
//   - tag[attr]: "span[data-a-strike]"
//   - tag[attr=val]: "div[data-component-type=s-search-result]"
//   - tag[attr*=val]: "a[href*=/dp/]" (substring)
//   - parts separated by space (descendant combinator)
package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// Parse parses raw page HTML into a node tree. The parser is tolerant:
// marketplace markup is rarely well-formed.
func Parse(rawHTML string) (*html.Node, error) {
	return html.Parse(strings.NewReader(rawHTML))
}

// QueryAll returns all nodes under root matching the selector, in document
// order, without duplicates.
func QueryAll(root *html.Node, selector string) []*html.Node {
	parts := strings.Fields(selector)
	if len(parts) == 0 || root == nil {
		return nil
	}

	matches := matchSimple(root, parts[0])

	// Descendant combinator: each further part narrows to descendants of
	// the previous matches.
	for i := 1; i < len(parts); i++ {
		var next []*html.Node
		for _, parent := range matches {
			for c := parent.FirstChild; c != nil; c = c.NextSibling {
				next = append(next, matchSimple(c, parts[i])...)
			}
		}
		matches = next
	}

	// Nested containers can report the same node via multiple parents.
	seen := make(map[*html.Node]struct{}, len(matches))
	out := matches[:0]
	for _, n := range matches {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Query returns the first node matching the selector, or nil.
func Query(root *html.Node, selector string) *html.Node {
	matches := QueryAll(root, selector)
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

// matchSimple finds all nodes in root's subtree (root included) matching a
// single selector part.
func matchSimple(root *html.Node, sel string) []*html.Node {
	m := parseSimpleSelector(sel)
	var results []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if matchesSelector(n, m) {
			results = append(results, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return results
}

type simpleSelector struct {
	tag        string
	id         string
	class      string
	attrKey    string
	attrVal    string
	attrSubstr bool
}

// parseSimpleSelector parses "tag.class", "#id", "tag[attr*=val]", etc.
func parseSimpleSelector(sel string) simpleSelector {
	var s simpleSelector

	if idx := strings.IndexByte(sel, '['); idx >= 0 {
		attrPart := strings.TrimRight(sel[idx+1:], "]")
		sel = sel[:idx]
		if opIdx := strings.Index(attrPart, "*="); opIdx >= 0 {
			s.attrKey = attrPart[:opIdx]
			s.attrVal = strings.Trim(attrPart[opIdx+2:], `"'`)
			s.attrSubstr = true
		} else if eqIdx := strings.IndexByte(attrPart, '='); eqIdx >= 0 {
			s.attrKey = attrPart[:eqIdx]
			s.attrVal = strings.Trim(attrPart[eqIdx+1:], `"'`)
		} else {
			s.attrKey = attrPart
		}
	}

	if idx := strings.IndexByte(sel, '#'); idx >= 0 {
		s.id = sel[idx+1:]
		sel = sel[:idx]
	}

	if idx := strings.IndexByte(sel, '.'); idx >= 0 {
		s.class = sel[idx+1:]
		sel = sel[:idx]
	}

	s.tag = sel
	return s
}

// matchesSelector checks if a node matches a parsed simple selector.
func matchesSelector(n *html.Node, s simpleSelector) bool {
	if n.Type != html.ElementNode {
		return false
	}

	if s.tag != "" && n.Data != s.tag {
		return false
	}

	if s.id != "" {
		if Attr(n, "id") != s.id {
			return false
		}
	}

	if s.class != "" {
		classes := strings.Fields(Attr(n, "class"))
		found := false
		for _, c := range classes {
			if c == s.class {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if s.attrKey != "" {
		val := Attr(n, s.attrKey)
		switch {
		case s.attrSubstr:
			if !strings.Contains(val, s.attrVal) {
				return false
			}
		case s.attrVal != "":
			if val != s.attrVal {
				return false
			}
		default:
			if !HasAttr(n, s.attrKey) {
				return false
			}
		}
	}

	return true
}

// Attr returns the value of an attribute on a node, or "".
func Attr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// HasAttr checks if a node has a specific attribute.
func HasAttr(n *html.Node, key string) bool {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return true
		}
	}
	return false
}

// Text returns the node's visible text with whitespace collapsed to single
// spaces. Script and style subtrees are skipped.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
