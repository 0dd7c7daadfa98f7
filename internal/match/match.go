// Package match decides whether a catalog listing's title denotes the same
// product as a roster label. Line-extension suffixes ("Pro", "Max") name
// different products than their base model, so naive substring matching
// silently merges their observations; the strict matcher here rejects those
// collisions while still tolerating brand prefixes, capacity and colour
// tokens.
package match

import "strings"

// VariantTokens is the closed set of line-extension markers that turn a base
// label into a different product. One shared list for every catalog source;
// additions go through review, not configuration.
var VariantTokens = []string{
	"pro", "max", "mini", "plus", "ultra", "lite", "fe",
	"edge", "note", "fold", "flip", "se", "prime", "air",
	"neo", "master", "edition", "turbo", "racing", "gt",
	"carbon", "explorer", "speed", "youth", "classic",
}

var variantSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(VariantTokens))
	for _, v := range VariantTokens {
		m[v] = struct{}{}
	}
	return m
}()

// IsVariant reports whether tok is a line-extension marker.
func IsVariant(tok string) bool {
	_, ok := variantSet[tok]
	return ok
}

// Normalize lowercases s, turns hyphens into spaces, and collapses runs of
// whitespace into single spaces.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "-", " ")
	return strings.Join(strings.Fields(s), " ")
}

// Tokenize splits the normalized form of s on whitespace.
func Tokenize(s string) []string {
	return strings.Fields(Normalize(s))
}

// Matches reports whether title names exactly the product in query.
//
// The query token sequence must appear contiguously in the title; tokens
// before it (a brand prefix) are fine. After the matched span:
//   - nothing, or capacity/colour/packaging tokens: same product;
//   - "5g": same product, unless a variant marker follows it;
//   - a variant marker: a different product line, rejected.
func Matches(query, title string) bool {
	qt := Tokenize(query)
	tt := Tokenize(title)
	if len(qt) == 0 || len(tt) == 0 {
		return false
	}

	pos := -1
	for i := 0; i+len(qt) <= len(tt); i++ {
		if equalTokens(tt[i:i+len(qt)], qt) {
			pos = i
			break
		}
	}
	if pos < 0 {
		return false
	}

	rest := tt[pos+len(qt):]
	if len(rest) == 0 {
		return true
	}

	next := rest[0]
	if next == "5g" {
		// "Nova 12 5G" is the same product; "Nova 12 5G Pro" is not.
		if len(rest) > 1 && IsVariant(rest[1]) {
			return false
		}
		return true
	}
	if IsVariant(next) {
		return false
	}
	return true
}

func equalTokens(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
