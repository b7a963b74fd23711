package source

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lukemartin/snipebot/internal/domain"
)

// ExchangeClient is one exchange's public ticker API.
type ExchangeClient interface {
	Name() string
	Ticker(ctx context.Context, pair string) (domain.ExchangeQuote, error)
}

// CryptoFetcher fans out ticker requests to every exchange for every pair.
// Each exchange/pair fetch succeeds or fails on its own; one exchange being
// down still yields quotes from the others.
type CryptoFetcher struct {
	exchanges []ExchangeClient
	pairs     []string
	logger    *slog.Logger
}

func NewCryptoFetcher(exchanges []ExchangeClient, pairs []string, logger *slog.Logger) *CryptoFetcher {
	return &CryptoFetcher{
		exchanges: exchanges,
		pairs:     pairs,
		logger:    logger.With(slog.String("component", "source.crypto")),
	}
}

func (f *CryptoFetcher) Name() string { return "crypto" }

// Fetch issues all exchange/pair requests concurrently. Public ticker
// endpoints have no meaningful rate limits at this volume, so no throttling.
func (f *CryptoFetcher) Fetch(ctx context.Context) Result {
	type outcome struct {
		exchange string
		quote    domain.ExchangeQuote
		started  time.Time
		err      error
	}

	outcomes := make([]outcome, 0, len(f.exchanges)*len(f.pairs))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, ex := range f.exchanges {
		for _, pair := range f.pairs {
			wg.Add(1)
			go func(ex ExchangeClient, pair string) {
				defer wg.Done()
				started := time.Now()
				quote, err := ex.Ticker(ctx, pair)
				mu.Lock()
				outcomes = append(outcomes, outcome{exchange: ex.Name(), quote: quote, started: started, err: err})
				mu.Unlock()
			}(ex, pair)
		}
	}
	wg.Wait()

	perExchange := make(map[string]struct {
		count   int
		started time.Time
		err     error
	})

	var out Result
	for _, oc := range outcomes {
		agg := perExchange[oc.exchange]
		if agg.started.IsZero() || oc.started.Before(agg.started) {
			agg.started = oc.started
		}
		if oc.err != nil {
			agg.err = oc.err
			f.logger.WarnContext(ctx, "ticker fetch failed",
				slog.String("exchange", oc.exchange), slog.String("error", oc.err.Error()))
		} else {
			agg.count++
			out.Quotes = append(out.Quotes, oc.quote)
		}
		perExchange[oc.exchange] = agg
	}

	for _, ex := range f.exchanges {
		agg := perExchange[ex.Name()]
		if agg.started.IsZero() {
			agg.started = time.Now()
		}
		out.Diagnostics = append(out.Diagnostics, diagnostic("crypto:"+ex.Name(), agg.count, agg.started, agg.err))
	}
	return out
}
