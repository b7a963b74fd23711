package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/lukemartin/snipebot/internal/domain"
	"github.com/lukemartin/snipebot/internal/extract"
)

// Deal feeds state both sides of the trade in prose ("was $299, now $189"),
// so the extraction cascade below runs pattern by pattern and gives up rather
// than invent a spread. Patterns capture the money expression without its
// dollar sign.
var (
	wasNowPattern = regexp.MustCompile(`(?i)(?:was|reg(?:\.|ular)?|orig(?:\.|inally)?)\s*:?\s*\$(\d[\d,]*(?:\.\d{1,2})?)\D{0,30}?(?:now|sale|today|deal)\s*:?\s*\$(\d[\d,]*(?:\.\d{1,2})?)`)
	nowWasPattern = regexp.MustCompile(`(?i)\$(\d[\d,]*(?:\.\d{1,2})?)\s*\(\s*(?:was|reg(?:\.|ular)?|orig(?:\.|inally)?|list)\s*:?\s*\$(\d[\d,]*(?:\.\d{1,2})?)\s*\)`)
	pctOffPattern = regexp.MustCompile(`(?i)(\d{1,2})\s*%\s*off`)
)

// DealConfig tunes which feeds to poll and the spread gates a deal must pass.
type DealConfig struct {
	FeedURLs         []string
	MinProfitCents   int64
	MinSpreadPercent float64
}

// DealFetcher merges multiple deal-site RSS feeds and emits pre-qualified
// leads: the feed itself supplies both the discounted buy price and the
// regular price used as the sell-side estimate.
type DealFetcher struct {
	httpClient *http.Client
	cfg        DealConfig
	logger     *slog.Logger
}

func NewDealFetcher(cfg DealConfig, logger *slog.Logger) *DealFetcher {
	return &DealFetcher{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "source.deals")),
	}
}

func (f *DealFetcher) Name() string { return "deals" }

func (f *DealFetcher) Fetch(ctx context.Context) Result {
	var out Result
	for _, feedURL := range f.cfg.FeedURLs {
		started := time.Now()
		qualified, err := f.fetchFeed(ctx, feedURL)
		if err != nil {
			f.logger.WarnContext(ctx, "deal feed failed",
				slog.String("feed", feedURL), slog.String("error", err.Error()))
		}
		out.Qualified = append(out.Qualified, qualified...)
		out.Diagnostics = append(out.Diagnostics, diagnostic("deals:"+feedHost(feedURL), len(qualified), started, err))
	}
	return out
}

func (f *DealFetcher) fetchFeed(ctx context.Context, feedURL string) ([]domain.QualifiedLead, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("source: deals: build request: %w", err)
	}
	req.Header.Set("User-Agent", "snipebot/1.0 (arbitrage scout)")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source: deals: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source: deals: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("source: deals: read body: %w", err)
	}

	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("source: deals: parse rss: %w", err)
	}

	var qualified []domain.QualifiedLead
	for _, item := range feed.items() {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}
		text := title + " " + descriptionText(item.Description)

		wasCents, nowCents, ok := ExtractDealPrices(text)
		if !ok {
			continue
		}
		spread := wasCents - nowCents
		pct := float64(spread) / float64(nowCents) * 100
		if spread < f.cfg.MinProfitCents || pct < f.cfg.MinSpreadPercent {
			continue
		}

		ql := domain.QualifiedLead{
			ScoutLead: domain.ScoutLead{
				Title:      title,
				URL:        strings.TrimSpace(item.Link),
				Snippet:    snippet(descriptionText(item.Description), 200),
				Source:     "deals:" + feedHost(feedURL),
				Category:   "deals",
				PriceFound: &nowCents,
			},
			BuyPrice:          nowCents,
			SellPriceEstimate: wasCents,
			SellPriceType:     domain.SellPriceEstimated,
			EstimatedSpread:   spread,
			SpreadPercent:     pct,
			Confidence:        dealConfidence(pct),
		}
		qualified = append(qualified, ql)
	}
	return qualified, nil
}

// ExtractDealPrices runs the was/now cascade over the item text and returns
// (regular, discounted) prices in cents. Cascade order: explicit was/now
// phrasing, "$now (was $X)" phrasing, percent-off plus a single stated price,
// then a last-resort two-price heuristic. No match means skip the item; a
// fabricated spread is worse than a missed deal.
func ExtractDealPrices(text string) (wasCents, nowCents int64, ok bool) {
	if m := wasNowPattern.FindStringSubmatch(text); m != nil {
		return orderedPair(parseDealMoney(m[1]), parseDealMoney(m[2]))
	}
	if m := nowWasPattern.FindStringSubmatch(text); m != nil {
		return orderedPair(parseDealMoney(m[2]), parseDealMoney(m[1]))
	}
	if m := pctOffPattern.FindStringSubmatch(text); m != nil {
		pct, _ := strconv.ParseFloat(m[1], 64)
		// The discount only derives the regular price when exactly one price
		// is stated; with several prices the anchor is ambiguous.
		if prices := extract.AllPrices(text); len(prices) == 1 && pct > 0 && pct < 100 {
			now := prices[0]
			was := int64(math.Round(float64(now) / (1 - pct/100)))
			return orderedPair(was, now)
		}
	}
	// Exactly two distinct prices in the text: read the higher as the regular
	// price. More than two is ambiguous, so skip.
	prices := extract.AllPrices(text)
	if len(prices) == 2 && prices[0] != prices[1] {
		if prices[0] > prices[1] {
			return orderedPair(prices[0], prices[1])
		}
		return orderedPair(prices[1], prices[0])
	}
	return 0, 0, false
}

// orderedPair validates that was > now > 0.
func orderedPair(was, now int64) (int64, int64, bool) {
	if now <= 0 || was <= now {
		return 0, 0, false
	}
	return was, now, true
}

func parseDealMoney(s string) int64 {
	if cents, ok := extract.Price("$" + s); ok {
		return cents
	}
	return 0
}

// dealConfidence grades on discount depth alone; deal feeds carry no listing
// evidence.
func dealConfidence(spreadPercent float64) domain.Confidence {
	switch {
	case spreadPercent >= 50:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

// descriptionText renders the item description HTML to plain text.
func descriptionText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return stripHTMLTags(html)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func feedHost(feedURL string) string {
	s := strings.TrimPrefix(strings.TrimPrefix(feedURL, "https://"), "http://")
	if i := strings.IndexByte(s, '/'); i > 0 {
		s = s[:i]
	}
	return strings.TrimPrefix(s, "www.")
}
