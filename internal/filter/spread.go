package filter

import (
	"sort"

	"github.com/lukemartin/snipebot/internal/domain"
)

// DetectSpreads groups quotes by trading pair and compares every exchange
// combination, retaining spreads at or above minSpreadPercent, sorted
// descending by spread. The comparison is O(n²) per pair; n is the handful of
// configured exchanges.
func DetectSpreads(quotes []domain.ExchangeQuote, minSpreadPercent float64) []domain.CryptoSpread {
	byPair := make(map[string][]domain.ExchangeQuote)
	for _, q := range quotes {
		if q.Price.IsZero() || q.Price.IsNegative() {
			continue
		}
		byPair[q.Pair] = append(byPair[q.Pair], q)
	}

	var spreads []domain.CryptoSpread
	for pair, qs := range byPair {
		for i := 0; i < len(qs); i++ {
			for j := 0; j < len(qs); j++ {
				if i == j {
					continue
				}
				low, high := qs[i], qs[j]
				if !high.Price.GreaterThan(low.Price) {
					continue
				}
				pct, _ := high.Price.Sub(low.Price).
					Div(low.Price).
					Mul(hundred).
					Float64()
				if pct < minSpreadPercent {
					continue
				}
				spreads = append(spreads, domain.CryptoSpread{
					Pair:          pair,
					BuyExchange:   low.Exchange,
					SellExchange:  high.Exchange,
					BuyPrice:      low.Price,
					SellPrice:     high.Price,
					SpreadPercent: pct,
				})
			}
		}
	}

	sort.Slice(spreads, func(i, j int) bool {
		return spreads[i].SpreadPercent > spreads[j].SpreadPercent
	})
	return spreads
}
