package match

import (
	"regexp"
	"strings"
)

// stopWords are marketplace filler that never distinguishes one product from
// another: listing noise, category words, connectivity markers.
var stopWords = map[string]struct{}{
	"sponsored": {}, "visit": {}, "the": {}, "store": {}, "brand": {},
	"new": {}, "original": {}, "genuine": {}, "authentic": {},
	"official": {}, "latest": {}, "smartphone": {}, "mobile": {},
	"phone": {}, "cell": {}, "dual": {}, "sim": {},
	"5g": {}, "4g": {}, "lte": {}, "volte": {},
}

var (
	punctRe    = regexp.MustCompile(`[^a-z0-9\s]`)
	capacityRe = regexp.MustCompile(`\d+\s*(gb|tb|ram|rom|mah)`)
)

// normalizeLoose strips punctuation, capacity specs ("128GB", "5000 mAh")
// and collapses whitespace. Stop words are removed at token level.
func normalizeLoose(s string) string {
	s = strings.ToLower(s)
	s = punctRe.ReplaceAllString(s, " ")
	s = capacityRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// looseTokens returns the normalized tokens of s with stop words removed.
// When minLen2 is set, single-character tokens are dropped too — applied to
// the query side only, so a stray initial never counts toward overlap.
func looseTokens(s string, minLen2 bool) []string {
	var out []string
	for _, tok := range strings.Fields(normalizeLoose(s)) {
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if minLen2 && len(tok) < 2 {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// Score ranks title against query by token overlap: the fraction of query
// tokens that appear as a substring of (or contain) some title token. A
// candidate passes at ≥70% overlap — unless the title carries a variant
// marker the query never mentions, which rejects it outright; overlap must
// never override the variant-collision rule.
func Score(query, title string) (bool, float64) {
	qTokens := looseTokens(query, true)
	tTokens := looseTokens(title, false)
	if len(qTokens) == 0 || len(tTokens) == 0 {
		return false, 0
	}

	matched := 0
	for _, q := range qTokens {
		for _, t := range tTokens {
			if strings.Contains(t, q) || strings.Contains(q, t) {
				matched++
				break
			}
		}
	}
	ratio := float64(matched) / float64(len(qTokens))
	if ratio < 0.7 {
		return false, ratio
	}

	querySet := make(map[string]struct{})
	for _, tok := range Tokenize(query) {
		querySet[tok] = struct{}{}
	}
	for _, t := range tTokens {
		if !IsVariant(t) {
			continue
		}
		if _, inQuery := querySet[t]; !inQuery {
			return false, 0
		}
	}
	return true, ratio
}
