package run

import (
	"context"
	"log/slog"

	"github.com/lukemartin/snipebot/internal/filter"
	"github.com/lukemartin/snipebot/internal/platform/discogs"
	"github.com/lukemartin/snipebot/internal/platform/openlibrary"
	"github.com/lukemartin/snipebot/internal/platform/tavily"
	"github.com/lukemartin/snipebot/internal/source"
)

// Clients bundles the external API clients the fetcher factory draws from.
type Clients struct {
	Search    *tavily.Client
	Discogs   *discogs.Client
	Catalog   *openlibrary.Client
	Exchanges []source.ExchangeClient
}

// NewFetcherFactory returns the production fetcher factory: an exhaustive
// mapping from configuration variant to the source fetchers it scouts with.
func NewFetcherFactory(c Clients, logger *slog.Logger) FetcherFactory {
	return func(cfg TypeConfig) []source.Fetcher {
		switch cfg := cfg.(type) {
		case CryptoConfig:
			return []source.Fetcher{
				source.NewCryptoFetcher(c.Exchanges, cfg.Pairs, logger),
			}

		case ResaleConfig:
			return []source.Fetcher{
				source.NewRedditFetcher(cfg.Subreddits, "resale", cfg.MinProfitCents, logger),
				source.NewCraigslistFetcher(cfg.Cities, cfg.Categories, cfg.Queries, logger),
				source.NewWebSearchFetcher(c.Search, resaleSearchQueries(cfg.Queries), "resale", logger),
			}

		case DealsConfig:
			return []source.Fetcher{
				source.NewDealFetcher(source.DealConfig{
					FeedURLs:         cfg.FeedURLs,
					MinProfitCents:   cfg.MinProfitCents,
					MinSpreadPercent: cfg.MinSpreadPercent,
				}, logger),
			}

		case BooksConfig:
			return []source.Fetcher{
				source.NewBooksFetcher(c.Search, c.Catalog, cfg.Queries, logger),
			}

		case CollectiblesConfig:
			return []source.Fetcher{
				source.NewCollectiblesFetcher(c.Discogs, cfg.DiscogsQueries, cfg.MinProfitCents, cfg.MinSpreadPercent, logger),
				source.NewSneakerFetcher(cfg.SneakerQueries, cfg.MinProfitCents, cfg.MinSpreadPercent, logger),
			}

		default:
			return nil
		}
	}
}

// resaleSearchQueries turns brand queries into for-sale search phrasing for
// the catch-all web scout.
func resaleSearchQueries(queries []string) []string {
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		out = append(out, q+" for sale listing price")
	}
	return out
}

// TavilySearcher adapts the Tavily client to the resale filter's Searcher
// interface.
type TavilySearcher struct {
	Client *tavily.Client
}

// Search runs one lookup without answer synthesis.
func (s TavilySearcher) Search(ctx context.Context, query string, maxResults int) ([]filter.SearchResult, error) {
	resp, err := s.Client.Search(ctx, query, maxResults, false)
	if err != nil {
		return nil, err
	}
	out := make([]filter.SearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, filter.SearchResult{URL: r.URL, Title: r.Title, Content: r.Content})
	}
	return out, nil
}

var _ filter.Searcher = TavilySearcher{}
