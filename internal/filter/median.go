// Package filter turns raw leads and resale evidence into confidence-scored
// qualified leads, and detects cross-exchange crypto spreads.
package filter

import "sort"

// PricePoint is one sell-side price observation with a trust weight. Listing
// pages carry a higher weight than blog or aggregator mentions.
type PricePoint struct {
	Cents   int64
	Weight  int
	Listing bool
	URL     string
}

// WeightedMedian returns the weighted median price: the first entry, in
// ascending price order, at which the cumulative weight reaches half the
// total. Returns 0 for an empty set.
func WeightedMedian(points []PricePoint) int64 {
	if len(points) == 0 {
		return 0
	}

	sorted := make([]PricePoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Cents < sorted[j].Cents })

	total := 0
	for _, p := range sorted {
		total += p.Weight
	}
	if total <= 0 {
		return 0
	}

	cum := 0
	for _, p := range sorted {
		cum += p.Weight
		if cum*2 >= total {
			return p.Cents
		}
	}
	return sorted[len(sorted)-1].Cents
}
