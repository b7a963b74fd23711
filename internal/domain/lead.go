package domain

// SellPriceType is the three-tier trust classification for a sell-side price
// estimate, based on how many independent listing-derived data points back it.
type SellPriceType string

const (
	// SellPriceVerified means at least two independent listing-quality data
	// points support the estimate.
	SellPriceVerified SellPriceType = "verified"
	// SellPriceEstimated means the estimate rests on a single data point or on
	// non-listing evidence.
	SellPriceEstimated SellPriceType = "estimated"
	// SellPriceResearchNeeded means no sell-side evidence was found; the
	// estimate is zero and a human (or the snipe engine) must dig further.
	SellPriceResearchNeeded SellPriceType = "research_needed"
)

// Confidence grades how much to trust a qualified lead. It is derived from the
// count of listing-quality data points combined with spread magnitude, never
// from spread size alone.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ScoutLead is a raw, unverified candidate discovered by a source fetcher.
// Immutable once created; consumed by the resale filter.
type ScoutLead struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet"`
	Source   string `json:"source"`
	Category string `json:"category"`
	// PriceFound is the buy-side price in integer cents, nil when the source
	// text stated no price.
	PriceFound *int64 `json:"priceFound"`
}

// Price returns the stated buy price in cents and whether one was found.
func (l ScoutLead) Price() (int64, bool) {
	if l.PriceFound == nil {
		return 0, false
	}
	return *l.PriceFound, true
}

// QualifiedLead is a scout lead that passed programmatic spread filtering and
// is eligible for LLM verification. Created by the filter, consumed once by
// the snipe engine, then discarded.
//
// Invariants: EstimatedSpread == SellPriceEstimate - BuyPrice whenever
// SellPriceEstimate > 0, and SellPriceType == research_needed implies
// SellPriceEstimate == 0.
type QualifiedLead struct {
	ScoutLead

	BuyPrice          int64         `json:"buyPrice"`
	SellPriceEstimate int64         `json:"sellPriceEstimate"`
	SellPriceType     SellPriceType `json:"sellPriceType"`
	EstimatedSpread   int64         `json:"estimatedSpread"`
	SpreadPercent     float64       `json:"spreadPercent"`
	Confidence        Confidence    `json:"confidence"`
	SellURL           string        `json:"sellUrl"`
}
