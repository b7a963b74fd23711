package source

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/lukemartin/snipebot/internal/domain"
	"github.com/lukemartin/snipebot/internal/extract"
	"github.com/lukemartin/snipebot/internal/platform/openlibrary"
	"github.com/lukemartin/snipebot/internal/platform/tavily"
)

// BooksFetcher scouts underpriced book listings via web search and anchors
// them against the Open Library catalog. A title that cannot be matched to a
// known work is dropped; rare editions (low edition count) are noted in the
// snippet for the verification stage.
type BooksFetcher struct {
	search   *tavily.Client
	catalog  *openlibrary.Client
	queries  []string
	perQuery int
	delay    time.Duration
	logger   *slog.Logger
}

func NewBooksFetcher(search *tavily.Client, catalog *openlibrary.Client, queries []string, logger *slog.Logger) *BooksFetcher {
	return &BooksFetcher{
		search:   search,
		catalog:  catalog,
		queries:  queries,
		perQuery: 5,
		delay:    500 * time.Millisecond,
		logger:   logger.With(slog.String("component", "source.books")),
	}
}

func (f *BooksFetcher) Name() string { return "books" }

func (f *BooksFetcher) Fetch(ctx context.Context) Result {
	var out Result
	for i, query := range f.queries {
		if i > 0 {
			sleepCtx(ctx, f.delay)
		}
		started := time.Now()
		leads, err := f.fetchQuery(ctx, query)
		if err != nil {
			f.logger.WarnContext(ctx, "book query failed",
				slog.String("query", query), slog.String("error", err.Error()))
		}
		out.Leads = append(out.Leads, leads...)
		out.Diagnostics = append(out.Diagnostics, diagnostic("books:"+query, len(leads), started, err))
	}
	return out
}

func (f *BooksFetcher) fetchQuery(ctx context.Context, query string) ([]domain.ScoutLead, error) {
	resp, err := f.search.Search(ctx, query, f.perQuery, false)
	if err != nil {
		return nil, err
	}

	var leads []domain.ScoutLead
	for _, hit := range resp.Results {
		title := strings.TrimSpace(hit.Title)
		if title == "" {
			continue
		}
		cents, priced := extract.Price(hit.Title + " " + hit.Content)
		if !priced {
			continue
		}

		doc, ok := f.lookupWork(ctx, title)
		if !ok {
			continue
		}

		lead := domain.ScoutLead{
			Title:      doc.Title,
			URL:        hit.URL,
			Snippet:    bookSnippet(doc, hit.Content),
			Source:     "books",
			Category:   "books",
			PriceFound: &cents,
		}
		leads = append(leads, lead)
	}
	return leads, nil
}

// lookupWork matches a listing title against the catalog. The listing title
// is noisy ("RARE 1st ed. Dune Herbert HC/DJ"), so matching is best-effort on
// the stripped title.
func (f *BooksFetcher) lookupWork(ctx context.Context, title string) (openlibrary.Doc, bool) {
	docs, err := f.catalog.Search(ctx, cleanBookTitle(title), 3)
	if err != nil {
		f.logger.DebugContext(ctx, "catalog lookup failed",
			slog.String("title", title), slog.String("error", err.Error()))
		return openlibrary.Doc{}, false
	}
	if len(docs) == 0 {
		return openlibrary.Doc{}, false
	}
	return docs[0], true
}

// bookNoise are listing-title words that confuse catalog search.
var bookNoise = map[string]bool{
	"rare": true, "1st": true, "first": true, "edition": true, "ed": true,
	"ed.": true, "hc": true, "dj": true, "hardcover": true, "paperback": true,
	"signed": true, "vintage": true, "antique": true, "lot": true, "sale": true,
}

func cleanBookTitle(title string) string {
	var kept []string
	for _, word := range strings.Fields(title) {
		if bookNoise[strings.ToLower(strings.Trim(word, ".,!()"))] {
			continue
		}
		kept = append(kept, word)
	}
	return strings.Join(kept, " ")
}

func bookSnippet(doc openlibrary.Doc, content string) string {
	var parts []string
	if len(doc.AuthorNames) > 0 {
		parts = append(parts, "by "+doc.AuthorNames[0])
	}
	if doc.FirstPublishYear > 0 {
		parts = append(parts, "first published "+strconv.Itoa(doc.FirstPublishYear))
	}
	if doc.EditionCount > 0 && doc.EditionCount <= 3 {
		parts = append(parts, "scarce: only "+strconv.Itoa(doc.EditionCount)+" known editions")
	}
	parts = append(parts, snippet(content, 120))
	return strings.Join(parts, "; ")
}
