// Package run is the pipeline orchestrator: it selects a per-agent-type
// configuration, sequences the scout, filter, and snipe phases, enforces the
// run timeout and token budget, and emits progress events.
package run

import (
	"fmt"

	"github.com/lukemartin/snipebot/internal/domain"
)

// Overrides are the user-supplied knobs accepted by the trigger endpoints.
// Every field is optional; zero values fall back to the type's defaults.
type Overrides struct {
	MinProfitCents   int64    `json:"minProfitCents,omitempty"`
	MinSpreadPercent float64  `json:"minSpreadPercent,omitempty"`
	Queries          []string `json:"queries,omitempty"`
	Subreddits       []string `json:"subreddits,omitempty"`
	Cities           []string `json:"cities,omitempty"`
	Pairs            []string `json:"pairs,omitempty"`
	FeedURLs         []string `json:"feedUrls,omitempty"`
}

// TypeConfig is the sealed per-agent-type configuration. Each variant carries
// only the fields its pipeline needs; the orchestrator selects behavior with
// an exhaustive type switch.
type TypeConfig interface {
	Type() domain.AgentType
}

// CryptoConfig drives the crypto pipeline: fetch quotes, detect spreads, no
// LLM involvement.
type CryptoConfig struct {
	Pairs            []string
	MinSpreadPercent float64
}

func (CryptoConfig) Type() domain.AgentType { return domain.AgentCrypto }

// ResaleConfig drives the general resale pipeline over Reddit buy-intent
// posts, Craigslist listings, and catch-all web search.
type ResaleConfig struct {
	Subreddits       []string
	Cities           []string
	Categories       []string
	Queries          []string
	MinProfitCents   int64
	MinSpreadPercent float64
	SystemPrompt     string
}

func (ResaleConfig) Type() domain.AgentType { return domain.AgentResale }

// DealsConfig drives the deal-feed pipeline; leads arrive pre-qualified from
// the was/now extraction cascade.
type DealsConfig struct {
	FeedURLs         []string
	MinProfitCents   int64
	MinSpreadPercent float64
	SystemPrompt     string
}

func (DealsConfig) Type() domain.AgentType { return domain.AgentDeals }

// BooksConfig drives the rare-books pipeline: web search anchored against the
// Open Library catalog, then resale qualification.
type BooksConfig struct {
	Queries          []string
	MinProfitCents   int64
	MinSpreadPercent float64
	SystemPrompt     string
}

func (BooksConfig) Type() domain.AgentType { return domain.AgentBooks }

// CollectiblesConfig drives the collectibles pipeline over Discogs market
// data and sneaker market data.
type CollectiblesConfig struct {
	DiscogsQueries   []string
	SneakerQueries   []string
	MinProfitCents   int64
	MinSpreadPercent float64
	SystemPrompt     string
}

func (CollectiblesConfig) Type() domain.AgentType { return domain.AgentCollectibles }

// ConfigFor returns the configuration for an agent type with the user's
// overrides applied. It is a pure function: same inputs, same config.
func ConfigFor(agentType domain.AgentType, ov Overrides) (TypeConfig, error) {
	switch agentType {
	case domain.AgentCrypto:
		cfg := CryptoConfig{
			Pairs:            []string{"BTC/USD", "ETH/USD", "SOL/USD"},
			MinSpreadPercent: 0.5,
		}
		if len(ov.Pairs) > 0 {
			cfg.Pairs = ov.Pairs
		}
		if ov.MinSpreadPercent > 0 {
			cfg.MinSpreadPercent = ov.MinSpreadPercent
		}
		return cfg, nil

	case domain.AgentResale:
		cfg := ResaleConfig{
			Subreddits:       []string{"hardwareswap", "GameSale", "photomarket"},
			Cities:           []string{"sfbay", "newyork", "losangeles"},
			Categories:       []string{"ela", "sga"},
			Queries:          []string{"nintendo switch", "gpu", "iphone"},
			MinProfitCents:   2000,
			MinSpreadPercent: 20,
			SystemPrompt:     resalePrompt,
		}
		applyCommon(&cfg.MinProfitCents, &cfg.MinSpreadPercent, ov)
		if len(ov.Subreddits) > 0 {
			cfg.Subreddits = ov.Subreddits
		}
		if len(ov.Cities) > 0 {
			cfg.Cities = ov.Cities
		}
		if len(ov.Queries) > 0 {
			cfg.Queries = ov.Queries
		}
		return cfg, nil

	case domain.AgentDeals:
		cfg := DealsConfig{
			FeedURLs: []string{
				"https://slickdeals.net/newsearch.php?mode=frontpage&searcharea=deals&rss=1",
				"https://www.dealnews.com/rss/todays-edition.xml",
			},
			MinProfitCents:   1500,
			MinSpreadPercent: 30,
			SystemPrompt:     dealsPrompt,
		}
		applyCommon(&cfg.MinProfitCents, &cfg.MinSpreadPercent, ov)
		if len(ov.FeedURLs) > 0 {
			cfg.FeedURLs = ov.FeedURLs
		}
		return cfg, nil

	case domain.AgentBooks:
		cfg := BooksConfig{
			Queries: []string{
				"first edition book lot for sale",
				"estate sale rare books priced",
				"signed first edition under $50",
			},
			MinProfitCents:   2500,
			MinSpreadPercent: 40,
			SystemPrompt:     booksPrompt,
		}
		applyCommon(&cfg.MinProfitCents, &cfg.MinSpreadPercent, ov)
		if len(ov.Queries) > 0 {
			cfg.Queries = ov.Queries
		}
		return cfg, nil

	case domain.AgentCollectibles:
		cfg := CollectiblesConfig{
			DiscogsQueries:   []string{"Miles Davis Kind of Blue original pressing", "Radiohead OK Computer vinyl"},
			SneakerQueries:   []string{"jordan 1 retro high", "dunk low panda"},
			MinProfitCents:   2500,
			MinSpreadPercent: 25,
			SystemPrompt:     collectiblesPrompt,
		}
		applyCommon(&cfg.MinProfitCents, &cfg.MinSpreadPercent, ov)
		if len(ov.Queries) > 0 {
			cfg.DiscogsQueries = ov.Queries
		}
		return cfg, nil

	default:
		return nil, fmt.Errorf("run: unknown agent type %q", agentType)
	}
}

func applyCommon(minProfit *int64, minSpread *float64, ov Overrides) {
	if ov.MinProfitCents > 0 {
		*minProfit = ov.MinProfitCents
	}
	if ov.MinSpreadPercent > 0 {
		*minSpread = ov.MinSpreadPercent
	}
}

const resalePrompt = `You are a resale arbitrage analyst. You receive pre-qualified leads for physical goods: each has a stated buy price and a programmatically estimated sell price from marketplace listing data. Verify each lead skeptically. Account for platform fees (eBay ~13%, Mercari 10%), shipping, and condition risk. Only confirm opportunities where the net profit after fees is real and the sell-side evidence is credible. Use the sold-price search tool only when the existing evidence is weak.`

const dealsPrompt = `You are a deal-flip analyst. You receive leads from deal aggregator feeds where a discounted price and a regular price were both stated. The regular price is weak sell-side evidence: retail anchor prices are often inflated. Verify what the item actually resells for, account for marketplace fees and shipping, and reject deals where the realistic resale value is near the discounted price.`

const booksPrompt = `You are a rare-book arbitrage analyst. You receive leads for books listed below apparent market value, each anchored to an Open Library catalog entry. Consider edition, printing, condition, and signature claims skeptically; listing titles overstate rarity. Account for sold-comp evidence, marketplace fees, and media-mail shipping.`

const collectiblesPrompt = `You are a collectibles arbitrage analyst covering vinyl records and sneakers. You receive leads backed by live marketplace data (current asks, last sales, condition-graded price suggestions). Verify liquidity: a wide spread on an illiquid item is not an opportunity. Account for marketplace fees, authentication fees, and shipping.`
