package source

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/lukemartin/snipebot/internal/domain"
	"github.com/lukemartin/snipebot/internal/extract"
	"github.com/lukemartin/snipebot/internal/platform/tavily"
)

// WebSearchFetcher is the catch-all scout: it runs a batch of search queries
// and turns every priced hit into a raw lead. It also serves as a fallback
// when a structured source comes back thin.
type WebSearchFetcher struct {
	search       *tavily.Client
	queries      []string
	category     string
	perQuery     int
	delay        time.Duration
	queryTimeout time.Duration
	logger       *slog.Logger
}

func NewWebSearchFetcher(search *tavily.Client, queries []string, category string, logger *slog.Logger) *WebSearchFetcher {
	return &WebSearchFetcher{
		search:       search,
		queries:      queries,
		category:     category,
		perQuery:     8,
		delay:        400 * time.Millisecond,
		queryTimeout: 10 * time.Second,
		logger:       logger.With(slog.String("component", "source.websearch")),
	}
}

func (f *WebSearchFetcher) Name() string { return "websearch" }

func (f *WebSearchFetcher) Fetch(ctx context.Context) Result {
	var out Result
	for i, query := range f.queries {
		if i > 0 {
			sleepCtx(ctx, f.delay)
		}
		started := time.Now()

		qctx, cancel := context.WithTimeout(ctx, f.queryTimeout)
		leads, err := f.fetchQuery(qctx, query)
		cancel()

		if err != nil {
			f.logger.WarnContext(ctx, "search query failed",
				slog.String("query", query), slog.String("error", err.Error()))
		}
		out.Leads = append(out.Leads, leads...)
		out.Diagnostics = append(out.Diagnostics, diagnostic("websearch:"+query, len(leads), started, err))
	}
	return out
}

func (f *WebSearchFetcher) fetchQuery(ctx context.Context, query string) ([]domain.ScoutLead, error) {
	resp, err := f.search.Search(ctx, query, f.perQuery, false)
	if err != nil {
		return nil, err
	}

	var leads []domain.ScoutLead
	for _, hit := range resp.Results {
		title := strings.TrimSpace(hit.Title)
		if title == "" || hit.URL == "" {
			continue
		}
		lead := domain.ScoutLead{
			Title:    title,
			URL:      hit.URL,
			Snippet:  snippet(hit.Content, 200),
			Source:   "websearch",
			Category: f.category,
		}
		if cents, ok := extract.Price(hit.Title + " " + hit.Content); ok {
			lead.PriceFound = &cents
		}
		leads = append(leads, lead)
	}
	return leads, nil
}
