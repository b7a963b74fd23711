package filter

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lukemartin/snipebot/internal/domain"
	"github.com/lukemartin/snipebot/internal/extract"
)

var hundred = decimal.NewFromInt(100)

// Anchor bounds for outlier rejection: sell-side evidence outside this band
// around the buy price is discarded as noise (wrong product, bundle listings,
// parts-only sales).
const (
	anchorUpperMultiple = 15.0
	anchorLowerFraction = 0.15
)

const (
	listingWeight    = 3
	nonListingWeight = 1
)

// SearchResult is one hit of resale evidence returned by a Searcher.
type SearchResult struct {
	URL     string
	Title   string
	Content string
}

// Searcher runs a single resale-evidence query. Implemented by the web-search
// client; faked in tests.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

// Config holds the agent-type-specific qualification thresholds and the
// per-run lookup budget.
type Config struct {
	MinProfitCents   int64
	MinSpreadPercent float64
	// MaxLookups caps resale lookups per run to conserve provider budget.
	MaxLookups int
	// MaxConsecutiveErrors aborts further lookups after this many provider
	// failures in a row, which usually means rate limiting.
	MaxConsecutiveErrors int
	// LookupDelay throttles successive lookups.
	LookupDelay time.Duration
	// ResultsPerLookup is the max hits requested per query.
	ResultsPerLookup int
}

// withDefaults fills unset budget fields.
func (c Config) withDefaults() Config {
	if c.MaxLookups <= 0 {
		c.MaxLookups = 25
	}
	if c.MaxConsecutiveErrors <= 0 {
		c.MaxConsecutiveErrors = 3
	}
	if c.LookupDelay <= 0 {
		c.LookupDelay = 500 * time.Millisecond
	}
	if c.ResultsPerLookup <= 0 {
		c.ResultsPerLookup = 5
	}
	return c
}

// Qualifier turns priced scout leads plus resale evidence into qualified
// leads. The computation is a pure function of (leads, search responses):
// re-running over the same snapshot yields identical output.
type Qualifier struct {
	search Searcher
	cfg    Config
	logger *slog.Logger
}

// NewQualifier creates a Qualifier with the given searcher and thresholds.
func NewQualifier(search Searcher, cfg Config, logger *slog.Logger) *Qualifier {
	return &Qualifier{
		search: search,
		cfg:    cfg.withDefaults(),
		logger: logger.With(slog.String("component", "qualifier")),
	}
}

// Qualify looks up resale evidence for each priced lead and returns the leads
// that clear both the absolute profit and percentage spread thresholds.
// Provider errors never propagate; at worst they shrink the evidence set.
func (q *Qualifier) Qualify(ctx context.Context, leads []domain.ScoutLead) []domain.QualifiedLead {
	candidates := q.orderCandidates(leads)
	if len(candidates) > q.cfg.MaxLookups {
		candidates = candidates[:q.cfg.MaxLookups]
	}

	var qualified []domain.QualifiedLead
	consecutiveErrors := 0

	for i, lead := range candidates {
		if ctx.Err() != nil {
			break
		}
		if consecutiveErrors >= q.cfg.MaxConsecutiveErrors {
			q.logger.WarnContext(ctx, "aborting resale lookups, provider likely rate limiting",
				slog.Int("consecutive_errors", consecutiveErrors),
				slog.Int("lookups_done", i),
			)
			break
		}
		if i > 0 {
			if !sleepCtx(ctx, q.cfg.LookupDelay) {
				break
			}
		}

		buyPrice, _ := lead.Price()
		results, err := q.search.Search(ctx, resaleQuery(lead.Title), q.cfg.ResultsPerLookup)
		if err != nil {
			consecutiveErrors++
			q.logger.DebugContext(ctx, "resale lookup failed",
				slog.String("title", lead.Title),
				slog.String("error", err.Error()),
			)
			continue
		}
		consecutiveErrors = 0

		ql, ok := q.qualifyOne(lead, buyPrice, results)
		if ok {
			qualified = append(qualified, ql)
		}
	}

	return qualified
}

// qualifyOne evaluates a single lead against its resale evidence.
func (q *Qualifier) qualifyOne(lead domain.ScoutLead, buyPrice int64, results []SearchResult) (domain.QualifiedLead, bool) {
	points := EvidencePoints(buyPrice, results)
	if len(points) == 0 {
		return domain.QualifiedLead{}, false
	}

	sellEstimate := WeightedMedian(points)
	if sellEstimate <= 0 {
		return domain.QualifiedLead{}, false
	}

	listingCount := 0
	for _, p := range points {
		if p.Listing {
			listingCount++
		}
	}

	spread := sellEstimate - buyPrice
	spreadPct := float64(spread) / float64(buyPrice) * 100

	if spread < q.cfg.MinProfitCents || spreadPct < q.cfg.MinSpreadPercent {
		return domain.QualifiedLead{}, false
	}

	priceType := domain.SellPriceEstimated
	if listingCount >= 2 {
		priceType = domain.SellPriceVerified
	}

	return domain.QualifiedLead{
		ScoutLead:         lead,
		BuyPrice:          buyPrice,
		SellPriceEstimate: sellEstimate,
		SellPriceType:     priceType,
		EstimatedSpread:   spread,
		SpreadPercent:     spreadPct,
		Confidence:        GradeConfidence(listingCount, spreadPct),
		SellURL:           nearestListingURL(points, sellEstimate),
	}, true
}

// EvidencePoints converts search hits into weighted, anchor-filtered price
// points. Price extraction is restricted to one price per hit, and listing
// pages outweigh blog or aggregator mentions.
func EvidencePoints(buyPrice int64, results []SearchResult) []PricePoint {
	var points []PricePoint
	for _, res := range results {
		prices := extract.AllPrices(res.Title + " " + res.Content)
		if len(prices) == 0 {
			continue
		}
		cents := prices[0]
		if !anchored(buyPrice, cents) {
			continue
		}
		if extract.IsListingURL(res.URL) {
			points = append(points, PricePoint{Cents: cents, Weight: listingWeight, Listing: true, URL: res.URL})
		} else {
			points = append(points, PricePoint{Cents: cents, Weight: nonListingWeight, URL: res.URL})
		}
	}
	return points
}

// anchored reports whether a sell-side price is plausibly the same item as
// the buy-side price.
func anchored(buyPrice, sellPrice int64) bool {
	if buyPrice <= 0 {
		return sellPrice > 0
	}
	lo := float64(buyPrice) * anchorLowerFraction
	hi := float64(buyPrice) * anchorUpperMultiple
	p := float64(sellPrice)
	return p >= lo && p <= hi
}

// GradeConfidence derives a confidence tier from the count of listing-quality
// data points combined with spread magnitude. A single noisy outlier can
// never produce high confidence regardless of how large the spread looks.
func GradeConfidence(listingCount int, spreadPercent float64) domain.Confidence {
	switch {
	case listingCount >= 3 && spreadPercent >= 40:
		return domain.ConfidenceHigh
	case listingCount >= 2 || (listingCount >= 1 && spreadPercent >= 30):
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

// orderCandidates keeps only priced leads and sorts direct listing URLs
// first so the lookup budget is spent on the highest-trust sources.
func (q *Qualifier) orderCandidates(leads []domain.ScoutLead) []domain.ScoutLead {
	var out []domain.ScoutLead
	for _, l := range leads {
		if _, ok := l.Price(); ok {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return extract.IsListingURL(out[i].URL) && !extract.IsListingURL(out[j].URL)
	})
	return out
}

// nearestListingURL returns the URL of the listing-quality point closest to
// the median estimate, falling back to any point's URL.
func nearestListingURL(points []PricePoint, median int64) string {
	best := ""
	bestDist := int64(math.MaxInt64)
	for _, p := range points {
		if !p.Listing {
			continue
		}
		d := p.Cents - median
		if d < 0 {
			d = -d
		}
		if d < bestDist {
			bestDist = d
			best = p.URL
		}
	}
	if best == "" && len(points) > 0 {
		best = points[0].URL
	}
	return best
}

// resaleQuery builds the evidence query for a lead title.
func resaleQuery(title string) string {
	return fmt.Sprintf("%s sold price listing", title)
}

// sleepCtx sleeps for d unless the context ends first. Returns false when the
// context ended.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
