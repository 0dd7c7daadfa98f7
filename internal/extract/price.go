package extract

import (
	"regexp"
	"strconv"
)

var nonAmountRe = regexp.MustCompile(`[^\d.]`)

// ParsePrice extracts a numeric amount from marketplace price text such as
// "₹24,999" or "1,29,999.00". Currency symbols, grouping commas, and any
// other decoration are stripped; the remaining digits parse as one number.
// ok is false when no amount is present.
func ParsePrice(s string) (amount float64, ok bool) {
	cleaned := nonAmountRe.ReplaceAllString(s, "")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
