// Package agg reduces the raw observations collected for one roster item
// into a single validated result. Marketplace pages bleed stray integers —
// postal codes, "you save" deltas, bank-offer amounts — so every price
// passes a plausibility band and a spread filter before the range is formed,
// and a reference (strike-through) price is only believed when it sits in a
// sane relation to the price actually charged.
package agg

import "sort"

// Plausibility band for a single price observation, in currency units.
// Values outside it are discarded before any statistics are computed.
const (
	MinPlausiblePrice = 3_000
	MaxPlausiblePrice = 200_000
)

// spreadFactor triggers the outlier filter: when max > spreadFactor × min,
// the low cluster is treated as misread fragments and dropped.
const spreadFactor = 3

// spreadKeep is the fraction of the maximum a value must reach to survive
// the outlier filter.
const spreadKeep = 0.5

// refMaxMultiple caps how far above the primary price a reference price may
// sit before it is considered noise and dropped.
const refMaxMultiple = 3

// Kind discriminates what a raw observation carries.
type Kind int

const (
	KindDate Kind = iota
	KindPrice
)

// Observation is one extraction attempt's output. Several observations may
// exist per item, one per visited candidate or variant page.
type Observation struct {
	Kind      Kind
	Date      string  // KindDate: raw date text as shown by the source
	Price     float64 // KindPrice: price charged
	Reference float64 // KindPrice: strike-through price, 0 when absent
	Source    string  // URL the observation came from
}

// DateObservation builds a date-kind observation.
func DateObservation(text, source string) Observation {
	return Observation{Kind: KindDate, Date: text, Source: source}
}

// PriceObservation builds a price-kind observation.
func PriceObservation(price, reference float64, source string) Observation {
	return Observation{Kind: KindPrice, Price: price, Reference: reference, Source: source}
}

// Confidence labels how much of the item was resolved.
type Confidence string

const (
	// Found: a usable value exists.
	Found Confidence = "found"
	// PartiallyFound: a source was reached but nothing survived validation.
	PartiallyFound Confidence = "partially_found"
	// NotFound: nothing was reached or matched at all.
	NotFound Confidence = "not_found"
)

// PriceRange is the aggregated price result for one item.
// Reference, when non-zero, is always ≥ Low.
type PriceRange struct {
	Low       float64
	High      float64
	Reference float64
}

// Result is the aggregate of all observations for one item against one
// source. Exactly one of Date / Prices is populated, per the source's kind.
type Result struct {
	Date       string
	Prices     PriceRange
	Confidence Confidence
	Source     string
}

// Aggregate reduces observations to one Result. It is pure: the input slice
// is never mutated and equal inputs produce identical Results.
//
// Price path: band-check every price, dedupe, drop the low cluster when the
// spread exceeds 3×, then Low = min and High = max of the survivors. A
// reference price is kept only when strictly greater than Low and at most
// 3×Low; dropped otherwise, with Reference falling back to Low so the pair
// is never inconsistent. When no price survives but references do, the
// minimum reference stands in as the price.
//
// Date path: the first non-empty date text wins.
func Aggregate(obs []Observation) Result {
	var res Result

	date, dateSrc, sawDate := firstDate(obs)
	prices, refs, priceSrc, sawPrice := collectPrices(obs)

	if sawDate && date != "" {
		res.Date = date
		res.Source = dateSrc
		res.Confidence = Found
		return res
	}

	survivors := filterSpread(prices)
	if len(survivors) == 0 && len(refs) > 0 {
		// No charged price seen anywhere, only strike-through values.
		// The smallest reference is the least inflated stand-in.
		min := refs[0]
		for _, r := range refs[1:] {
			if r < min {
				min = r
			}
		}
		survivors = []float64{min}
	}

	if len(survivors) > 0 {
		low := survivors[0]
		high := survivors[0]
		for _, p := range survivors[1:] {
			if p < low {
				low = p
			}
			if p > high {
				high = p
			}
		}
		res.Prices = PriceRange{Low: low, High: high, Reference: pickReference(low, refs)}
		res.Source = priceSrc
		res.Confidence = Found
		return res
	}

	if sawDate || sawPrice {
		res.Confidence = PartiallyFound
		if priceSrc != "" {
			res.Source = priceSrc
		} else {
			res.Source = dateSrc
		}
		return res
	}

	res.Confidence = NotFound
	return res
}

// firstDate returns the first non-empty date observation.
func firstDate(obs []Observation) (date, source string, saw bool) {
	for _, o := range obs {
		if o.Kind != KindDate {
			continue
		}
		saw = true
		if source == "" {
			source = o.Source
		}
		if o.Date != "" {
			return o.Date, o.Source, true
		}
	}
	return "", source, saw
}

// collectPrices returns band-valid deduplicated prices and references.
func collectPrices(obs []Observation) (prices, refs []float64, source string, saw bool) {
	seenPrice := map[float64]struct{}{}
	seenRef := map[float64]struct{}{}
	for _, o := range obs {
		if o.Kind != KindPrice {
			continue
		}
		saw = true
		if source == "" {
			source = o.Source
		}
		if inBand(o.Price) {
			if _, dup := seenPrice[o.Price]; !dup {
				seenPrice[o.Price] = struct{}{}
				prices = append(prices, o.Price)
			}
		}
		if inBand(o.Reference) {
			if _, dup := seenRef[o.Reference]; !dup {
				seenRef[o.Reference] = struct{}{}
				refs = append(refs, o.Reference)
			}
		}
	}
	sort.Float64s(prices)
	sort.Float64s(refs)
	return prices, refs, source, saw
}

func inBand(p float64) bool {
	return p >= MinPlausiblePrice && p <= MaxPlausiblePrice
}

// filterSpread drops the low cluster when the spread exceeds spreadFactor.
// A "you save ₹X" fragment misread as a price sits far below the real
// values; everything under half the maximum goes with it.
func filterSpread(prices []float64) []float64 {
	if len(prices) < 2 {
		return prices
	}
	min := prices[0]
	max := prices[len(prices)-1]
	if max <= spreadFactor*min {
		return prices
	}
	threshold := max * spreadKeep
	var kept []float64
	for _, p := range prices {
		if p >= threshold {
			kept = append(kept, p)
		}
	}
	return kept
}

// pickReference selects the reference price for a chosen low price: the
// largest reference that is strictly above low and at most refMaxMultiple
// times it. With no valid reference, low itself is returned so the pair
// stays consistent (no discount signal available).
func pickReference(low float64, refs []float64) float64 {
	best := 0.0
	for _, r := range refs {
		if r > low && r <= refMaxMultiple*low && r > best {
			best = r
		}
	}
	if best == 0 {
		return low
	}
	return best
}
