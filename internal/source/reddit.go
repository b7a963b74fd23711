package source

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/lukemartin/snipebot/internal/domain"
	"github.com/lukemartin/snipebot/internal/extract"
)

// maxPostAge is the freshness window for harvested posts. Buy-intent posts
// older than this are almost always already fulfilled.
const maxPostAge = 72 * time.Hour

// redditListing is the subset of the /new.json envelope we read.
type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	Title         string  `json:"title"`
	SelfText      string  `json:"selftext"`
	Permalink     string  `json:"permalink"`
	LinkFlairText string  `json:"link_flair_text"`
	CreatedUTC    float64 `json:"created_utc"`
	Subreddit     string  `json:"subreddit"`
}

// wtbTag matches an explicit want-to-buy tag anywhere in the title.
var wtbTag = regexp.MustCompile(`(?i)\[\s*WTB\s*\]`)

// haveWant matches the swap-subreddit grammar "[H] cash [W] item". The [W]
// side names what the poster wants to buy.
var haveWant = regexp.MustCompile(`(?i)\[H\][^\[]*\[W\]\s*(.+)`)

// RedditFetcher harvests fresh buy-intent posts from a set of subreddits.
type RedditFetcher struct {
	client        *resty.Client
	subreddits    []string
	category      string
	minPriceCents int64
	postLimit     int
	delay         time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

// NewRedditFetcher creates a fetcher over the public JSON endpoints. No OAuth;
// the read-only listing endpoints only require a descriptive user agent.
func NewRedditFetcher(subreddits []string, category string, minPriceCents int64, logger *slog.Logger) *RedditFetcher {
	client := resty.New().
		SetBaseURL("https://www.reddit.com").
		SetTimeout(10 * time.Second).
		SetHeader("User-Agent", "snipebot/1.0 (arbitrage scout)")
	return &RedditFetcher{
		client:        client,
		subreddits:    subreddits,
		category:      category,
		minPriceCents: minPriceCents,
		postLimit:     50,
		delay:         500 * time.Millisecond,
		now:           time.Now,
		logger:        logger.With(slog.String("component", "source.reddit")),
	}
}

func (f *RedditFetcher) Name() string { return "reddit" }

// Fetch walks each subreddit's /new.json and keeps fresh posts with buy
// intent. A failing subreddit is downgraded to a diagnostic and the walk
// continues.
func (f *RedditFetcher) Fetch(ctx context.Context) Result {
	var out Result
	for i, sub := range f.subreddits {
		if i > 0 {
			sleepCtx(ctx, f.delay)
		}
		started := f.now()

		leads, err := f.fetchSubreddit(ctx, sub)
		if err != nil {
			f.logger.WarnContext(ctx, "subreddit fetch failed",
				slog.String("subreddit", sub), slog.String("error", err.Error()))
		}
		out.Leads = append(out.Leads, leads...)
		out.Diagnostics = append(out.Diagnostics, diagnostic("reddit:"+sub, len(leads), started, err))
	}
	return out
}

func (f *RedditFetcher) fetchSubreddit(ctx context.Context, sub string) ([]domain.ScoutLead, error) {
	var listing redditListing
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParam("limit", fmt.Sprintf("%d", f.postLimit)).
		SetResult(&listing).
		Get("/r/" + sub + "/new.json")
	if err != nil {
		return nil, fmt.Errorf("source: reddit %s: %w", sub, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("source: reddit %s: status %d", sub, resp.StatusCode())
	}

	cutoff := f.now().Add(-maxPostAge)
	var leads []domain.ScoutLead
	for _, child := range listing.Data.Children {
		post := child.Data
		if time.Unix(int64(post.CreatedUTC), 0).Before(cutoff) {
			continue
		}
		item, ok := buyIntent(post)
		if !ok {
			continue
		}

		lead := domain.ScoutLead{
			Title:    item,
			URL:      "https://www.reddit.com" + post.Permalink,
			Snippet:  snippet(post.SelfText, 200),
			Source:   "reddit:" + sub,
			Category: f.category,
		}
		if cents, ok := extract.Price(post.Title + " " + post.SelfText); ok {
			// The price floor applies only when the poster stated a price.
			if cents < f.minPriceCents {
				continue
			}
			lead.PriceFound = &cents
		}
		leads = append(leads, lead)
	}
	return leads, nil
}

// buyIntent reports whether the post is looking to buy something and returns
// the wanted-item phrase. Signals, in order of specificity: a WTB flair, an
// explicit [WTB] tag, or the [H]/[W] swap grammar.
func buyIntent(post redditPost) (string, bool) {
	if strings.EqualFold(strings.TrimSpace(post.LinkFlairText), "WTB") {
		return cleanWantedPhrase(post.Title), true
	}
	if wtbTag.MatchString(post.Title) {
		return cleanWantedPhrase(wtbTag.ReplaceAllString(post.Title, "")), true
	}
	if m := haveWant.FindStringSubmatch(post.Title); m != nil {
		return cleanWantedPhrase(m[1]), true
	}
	return "", false
}

var bracketTag = regexp.MustCompile(`\[[^\]]*\]`)

// cleanWantedPhrase strips residual bracket tags and separators from a title
// fragment, leaving the item name.
func cleanWantedPhrase(s string) string {
	s = bracketTag.ReplaceAllString(s, "")
	s = strings.Trim(s, " -:|,")
	return strings.Join(strings.Fields(s), " ")
}

func snippet(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}
