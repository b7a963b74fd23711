package source

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lukemartin/snipebot/internal/domain"
	"github.com/lukemartin/snipebot/internal/platform/discogs"
)

// mintGrades lists the suggestion grades used as the sell-side estimate, best
// first.
var mintGrades = []string{"Mint (M)", "Near Mint (NM or M-)", "Very Good Plus (VG+)"}

// CollectiblesFetcher searches Discogs releases for the configured queries
// and pulls live marketplace stats per release. The lowest current ask is the
// buy side; the price suggestion for a near-mint copy is the sell side, so
// leads come out pre-qualified.
type CollectiblesFetcher struct {
	client           *discogs.Client
	queries          []string
	releasesPerQuery int
	statsConcurrency int
	delay            time.Duration
	minProfitCents   int64
	minSpreadPercent float64
	logger           *slog.Logger
}

func NewCollectiblesFetcher(client *discogs.Client, queries []string, minProfitCents int64, minSpreadPercent float64, logger *slog.Logger) *CollectiblesFetcher {
	return &CollectiblesFetcher{
		client:           client,
		queries:          queries,
		releasesPerQuery: 5,
		statsConcurrency: 3,
		delay:            time.Second,
		minProfitCents:   minProfitCents,
		minSpreadPercent: minSpreadPercent,
		logger:           logger.With(slog.String("component", "source.collectibles")),
	}
}

func (f *CollectiblesFetcher) Name() string { return "collectibles" }

func (f *CollectiblesFetcher) Fetch(ctx context.Context) Result {
	var out Result
	// Runs without a Discogs token still scout the other collectible sources;
	// this source reports itself inaccessible instead of failing the run.
	if f.client == nil {
		out.Diagnostics = append(out.Diagnostics,
			blockedDiagnostic("collectibles", time.Now(), "discogs token not configured"))
		return out
	}
	for i, query := range f.queries {
		if i > 0 {
			// Discogs enforces 60 requests/minute per token.
			sleepCtx(ctx, f.delay)
		}
		started := time.Now()
		qualified, err := f.fetchQuery(ctx, query)
		if err != nil {
			f.logger.WarnContext(ctx, "collectibles query failed",
				slog.String("query", query), slog.String("error", err.Error()))
		}
		out.Qualified = append(out.Qualified, qualified...)
		out.Diagnostics = append(out.Diagnostics, diagnostic("collectibles:"+query, len(qualified), started, err))
	}
	return out
}

func (f *CollectiblesFetcher) fetchQuery(ctx context.Context, query string) ([]domain.QualifiedLead, error) {
	releases, err := f.client.SearchReleases(ctx, query, f.releasesPerQuery)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	var qualified []domain.QualifiedLead

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.statsConcurrency)
	for _, release := range releases {
		release := release
		g.Go(func() error {
			ql, ok, err := f.evaluateRelease(gctx, release)
			if err != nil {
				// Per-release stats failures are logged and skipped; the
				// search itself succeeded.
				f.logger.DebugContext(gctx, "release stats unavailable",
					slog.Int("release", release.ID), slog.String("error", err.Error()))
				return nil
			}
			if ok {
				mu.Lock()
				qualified = append(qualified, ql)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return qualified, err
	}
	return qualified, nil
}

// evaluateRelease compares the lowest current ask against the near-mint price
// suggestion.
func (f *CollectiblesFetcher) evaluateRelease(ctx context.Context, release discogs.Release) (domain.QualifiedLead, bool, error) {
	stats, err := f.client.GetMarketStats(ctx, release.ID)
	if err != nil {
		return domain.QualifiedLead{}, false, err
	}
	if stats.Blocked || stats.NumForSale == 0 || stats.LowestPrice.Cents() <= 0 {
		return domain.QualifiedLead{}, false, nil
	}

	suggestions, err := f.client.GetPriceSuggestions(ctx, release.ID)
	if err != nil {
		return domain.QualifiedLead{}, false, err
	}
	sellCents := int64(0)
	for _, grade := range mintGrades {
		if s, ok := suggestions[grade]; ok && s.Value > 0 {
			sellCents = int64(s.Value*100 + 0.5)
			break
		}
	}
	if sellCents == 0 {
		return domain.QualifiedLead{}, false, nil
	}

	buyCents := stats.LowestPrice.Cents()
	spread := sellCents - buyCents
	pct := float64(spread) / float64(buyCents) * 100
	if spread < f.minProfitCents || pct < f.minSpreadPercent {
		return domain.QualifiedLead{}, false, nil
	}

	// Multiple copies for sale means the ask is a real market price, not one
	// seller's mistake.
	sellType := domain.SellPriceEstimated
	if stats.NumForSale >= 2 {
		sellType = domain.SellPriceVerified
	}

	listingURL := fmt.Sprintf("https://www.discogs.com/sell/release/%d", release.ID)
	ql := domain.QualifiedLead{
		ScoutLead: domain.ScoutLead{
			Title:      release.Title,
			URL:        listingURL,
			Snippet:    fmt.Sprintf("%d for sale, lowest ask $%.2f", stats.NumForSale, float64(buyCents)/100),
			Source:     "discogs",
			Category:   "collectibles",
			PriceFound: &buyCents,
		},
		BuyPrice:          buyCents,
		SellPriceEstimate: sellCents,
		SellPriceType:     sellType,
		EstimatedSpread:   spread,
		SpreadPercent:     pct,
		Confidence:        collectibleConfidence(stats.NumForSale, pct),
		SellURL:           listingURL,
	}
	return ql, true, nil
}

func collectibleConfidence(numForSale int, spreadPercent float64) domain.Confidence {
	switch {
	case numForSale >= 3 && spreadPercent >= 40:
		return domain.ConfidenceHigh
	case numForSale >= 2:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}
