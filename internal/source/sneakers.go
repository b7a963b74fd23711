package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/lukemartin/snipebot/internal/domain"
)

// sneakerProduct is one product from the market browse endpoint. Prices come
// back in whole dollars.
type sneakerProduct struct {
	Title  string `json:"title"`
	URLKey string `json:"urlKey"`
	Market struct {
		LowestAsk   int64 `json:"lowestAsk"`
		HighestBid  int64 `json:"highestBid"`
		LastSale    int64 `json:"lastSale"`
		SalesLast72 int   `json:"salesLast72Hours"`
	} `json:"market"`
}

type sneakerBrowse struct {
	Products []sneakerProduct `json:"Products"`
}

// SneakerFetcher polls a sneaker marketplace browse API for each configured
// search term. The gap between the lowest current ask and the last sale price
// is the spread; both sides come from live market data, so leads come out
// pre-qualified.
type SneakerFetcher struct {
	client           *resty.Client
	queries          []string
	resultsPerQuery  int
	delay            time.Duration
	minProfitCents   int64
	minSpreadPercent float64
	logger           *slog.Logger
}

func NewSneakerFetcher(queries []string, minProfitCents int64, minSpreadPercent float64, logger *slog.Logger) *SneakerFetcher {
	client := resty.New().
		SetBaseURL("https://stockx.com/api").
		SetTimeout(10 * time.Second).
		SetHeader("User-Agent", "snipebot/1.0 (arbitrage scout)").
		SetHeader("Accept", "application/json")
	return &SneakerFetcher{
		client:           client,
		queries:          queries,
		resultsPerQuery:  10,
		delay:            time.Second,
		minProfitCents:   minProfitCents,
		minSpreadPercent: minSpreadPercent,
		logger:           logger.With(slog.String("component", "source.sneakers")),
	}
}

func (f *SneakerFetcher) Name() string { return "sneakers" }

func (f *SneakerFetcher) Fetch(ctx context.Context) Result {
	var out Result
	for i, query := range f.queries {
		if i > 0 {
			sleepCtx(ctx, f.delay)
		}
		started := time.Now()
		qualified, blocked, err := f.fetchQuery(ctx, query)
		switch {
		case blocked:
			out.Diagnostics = append(out.Diagnostics, blockedDiagnostic("sneakers:"+query, started, "browse endpoint refused the request"))
		default:
			if err != nil {
				f.logger.WarnContext(ctx, "sneaker query failed",
					slog.String("query", query), slog.String("error", err.Error()))
			}
			out.Qualified = append(out.Qualified, qualified...)
			out.Diagnostics = append(out.Diagnostics, diagnostic("sneakers:"+query, len(qualified), started, err))
		}
	}
	return out
}

func (f *SneakerFetcher) fetchQuery(ctx context.Context, query string) ([]domain.QualifiedLead, bool, error) {
	var browse sneakerBrowse
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"_search":        query,
			"dataType":       "product",
			"resultsPerPage": fmt.Sprint(f.resultsPerQuery),
		}).
		SetResult(&browse).
		Get("/browse")
	if err != nil {
		return nil, false, fmt.Errorf("source: sneakers %q: %w", query, err)
	}
	if resp.StatusCode() == 403 || resp.StatusCode() == 429 {
		return nil, true, nil
	}
	if resp.IsError() {
		return nil, false, fmt.Errorf("source: sneakers %q: status %d", query, resp.StatusCode())
	}

	var qualified []domain.QualifiedLead
	for _, p := range browse.Products {
		buyCents := p.Market.LowestAsk * 100
		sellCents := p.Market.LastSale * 100
		if buyCents <= 0 || sellCents <= 0 {
			continue
		}
		spread := sellCents - buyCents
		pct := float64(spread) / float64(buyCents) * 100
		if spread < f.minProfitCents || pct < f.minSpreadPercent {
			continue
		}

		productURL := "https://stockx.com/" + p.URLKey
		ql := domain.QualifiedLead{
			ScoutLead: domain.ScoutLead{
				Title:      p.Title,
				URL:        productURL,
				Snippet:    fmt.Sprintf("lowest ask $%d, last sale $%d, %d sales in 72h", p.Market.LowestAsk, p.Market.LastSale, p.Market.SalesLast72),
				Source:     "stockx",
				Category:   "sneakers",
				PriceFound: &buyCents,
			},
			BuyPrice:          buyCents,
			SellPriceEstimate: sellCents,
			// Last-sale data is a real transaction, not an estimate.
			SellPriceType:   domain.SellPriceVerified,
			EstimatedSpread: spread,
			SpreadPercent:   pct,
			Confidence:      sneakerConfidence(p.Market.SalesLast72, pct),
			SellURL:         productURL,
		}
		qualified = append(qualified, ql)
	}
	return qualified, false, nil
}

// sneakerConfidence leans on recent sales volume; a stale last sale on an
// illiquid shoe is weak evidence however wide the spread looks.
func sneakerConfidence(salesLast72 int, spreadPercent float64) domain.Confidence {
	switch {
	case salesLast72 >= 5 && spreadPercent >= 20:
		return domain.ConfidenceHigh
	case salesLast72 >= 2:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}
