package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lukemartin/snipebot/internal/domain"
	"github.com/lukemartin/snipebot/internal/extract"
)

const (
	// maxCraigslistFeeds caps the city x category x query cross-product.
	maxCraigslistFeeds = 40
	craigslistBatch    = 5
)

// rssFeed tolerates both RSS 2.0 (items under channel) and the RDF envelope
// Craigslist serves (items under the root).
type rssFeed struct {
	Items   []rssItem `xml:"item"`
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Date        string `xml:"date"`
}

func (f rssFeed) items() []rssItem {
	if len(f.Channel.Items) > 0 {
		return f.Channel.Items
	}
	return f.Items
}

// CraigslistFetcher harvests for-sale listings from city RSS feeds.
type CraigslistFetcher struct {
	httpClient *http.Client
	baseFormat string
	cities     []string
	categories []string
	queries    []string
	delay      time.Duration
	logger     *slog.Logger
}

// NewCraigslistFetcher builds a fetcher over the given city subdomains (e.g.
// "sfbay"), category codes (e.g. "ela" for electronics), and brand queries.
func NewCraigslistFetcher(cities, categories, queries []string, logger *slog.Logger) *CraigslistFetcher {
	return &CraigslistFetcher{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseFormat: "https://%s.craigslist.org/search/%s?format=rss&query=%s",
		cities:     cities,
		categories: categories,
		queries:    queries,
		delay:      time.Second,
		logger:     logger.With(slog.String("component", "source.craigslist")),
	}
}

func (f *CraigslistFetcher) Name() string { return "craigslist" }

// Fetch walks the feed cross-product in batches, pausing between batches to
// stay under Craigslist's informal rate limits. Feed failures become
// diagnostics; one blocked city does not stop the rest.
func (f *CraigslistFetcher) Fetch(ctx context.Context) Result {
	feeds := f.feedURLs()
	var out Result

	for start := 0; start < len(feeds); start += craigslistBatch {
		if start > 0 {
			sleepCtx(ctx, f.delay)
		}
		end := min(start+craigslistBatch, len(feeds))
		for _, feed := range feeds[start:end] {
			started := time.Now()
			leads, blocked, err := f.fetchFeed(ctx, feed.url, feed.city)
			switch {
			case blocked:
				out.Diagnostics = append(out.Diagnostics, blockedDiagnostic(feed.label, started, "craigslist returned 403"))
			default:
				if err != nil {
					f.logger.WarnContext(ctx, "feed fetch failed",
						slog.String("feed", feed.label), slog.String("error", err.Error()))
				}
				out.Leads = append(out.Leads, leads...)
				out.Diagnostics = append(out.Diagnostics, diagnostic(feed.label, len(leads), started, err))
			}
		}
	}
	return out
}

type craigslistFeed struct {
	url   string
	city  string
	label string
}

// feedURLs builds the capped cross-product of cities, categories, and
// queries.
func (f *CraigslistFetcher) feedURLs() []craigslistFeed {
	var feeds []craigslistFeed
	for _, city := range f.cities {
		for _, cat := range f.categories {
			for _, q := range f.queries {
				if len(feeds) >= maxCraigslistFeeds {
					return feeds
				}
				feeds = append(feeds, craigslistFeed{
					url:   fmt.Sprintf(f.baseFormat, city, cat, url.QueryEscape(q)),
					city:  city,
					label: fmt.Sprintf("craigslist:%s/%s/%s", city, cat, q),
				})
			}
		}
	}
	return feeds
}

func (f *CraigslistFetcher) fetchFeed(ctx context.Context, feedURL, city string) ([]domain.ScoutLead, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("source: craigslist: build request: %w", err)
	}
	req.Header.Set("User-Agent", "snipebot/1.0 (arbitrage scout)")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("source: craigslist: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return nil, true, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("source: craigslist: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, false, fmt.Errorf("source: craigslist: read body: %w", err)
	}

	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, false, fmt.Errorf("source: craigslist: parse rss: %w", err)
	}

	var leads []domain.ScoutLead
	for _, item := range feed.items() {
		title := strings.TrimSpace(item.Title)
		if title == "" || item.Link == "" {
			continue
		}
		lead := domain.ScoutLead{
			Title:    stripCraigslistPrice(title),
			URL:      strings.TrimSpace(item.Link),
			Snippet:  snippet(stripHTMLTags(item.Description), 200),
			Source:   "craigslist:" + city,
			Category: "local",
		}
		// Craigslist puts the asking price in the title ("iPad Pro - $400");
		// the description is body text and full of unrelated numbers.
		if cents, ok := extract.Price(title); ok {
			lead.PriceFound = &cents
		}
		leads = append(leads, lead)
	}
	return leads, false, nil
}

// stripCraigslistPrice removes the trailing " - $N" price suffix from a feed
// title.
func stripCraigslistPrice(title string) string {
	if i := strings.LastIndex(title, " - $"); i > 0 {
		return strings.TrimSpace(title[:i])
	}
	return title
}

// stripHTMLTags is a crude tag remover for RSS description snippets.
func stripHTMLTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}
