package filter

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/lukemartin/snipebot/internal/domain"
)

func quote(exchange, pair string, price int64) domain.ExchangeQuote {
	return domain.ExchangeQuote{
		Exchange: exchange,
		Pair:     pair,
		Price:    decimal.NewFromInt(price),
	}
}

func TestDetectSpreadsSinglePair(t *testing.T) {
	quotes := []domain.ExchangeQuote{
		quote("A", "BTC/USD", 100),
		quote("B", "BTC/USD", 101),
	}

	spreads := DetectSpreads(quotes, 0.5)
	if len(spreads) != 1 {
		t.Fatalf("expected exactly 1 spread, got %d", len(spreads))
	}
	s := spreads[0]
	if s.BuyExchange != "A" || s.SellExchange != "B" {
		t.Fatalf("expected buy=A sell=B, got buy=%s sell=%s", s.BuyExchange, s.SellExchange)
	}
	if s.SpreadPercent < 0.99 || s.SpreadPercent > 1.01 {
		t.Fatalf("expected spread ~1.0%%, got %f", s.SpreadPercent)
	}
}

func TestDetectSpreadsBelowThreshold(t *testing.T) {
	quotes := []domain.ExchangeQuote{
		quote("A", "BTC/USD", 100000),
		quote("B", "BTC/USD", 100100),
	}
	if spreads := DetectSpreads(quotes, 0.5); len(spreads) != 0 {
		t.Fatalf("expected no spreads below threshold, got %d", len(spreads))
	}
}

func TestDetectSpreadsSortedDescending(t *testing.T) {
	quotes := []domain.ExchangeQuote{
		quote("A", "BTC/USD", 100),
		quote("B", "BTC/USD", 102),
		quote("A", "ETH/USD", 100),
		quote("C", "ETH/USD", 105),
	}
	spreads := DetectSpreads(quotes, 0.5)
	if len(spreads) != 2 {
		t.Fatalf("expected 2 spreads, got %d", len(spreads))
	}
	if spreads[0].Pair != "ETH/USD" {
		t.Fatalf("expected largest spread first, got %s", spreads[0].Pair)
	}
	if spreads[0].SpreadPercent < spreads[1].SpreadPercent {
		t.Fatal("spreads not sorted descending")
	}
}

func TestDetectSpreadsIgnoresZeroPrices(t *testing.T) {
	quotes := []domain.ExchangeQuote{
		quote("A", "BTC/USD", 0),
		quote("B", "BTC/USD", 101),
	}
	if spreads := DetectSpreads(quotes, 0.5); len(spreads) != 0 {
		t.Fatalf("expected no spreads from zero-price quote, got %d", len(spreads))
	}
}
