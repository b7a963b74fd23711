package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeQuote is a single spot price observed on one crypto exchange for a
// canonical trading pair (e.g. "BTC/USD").
type ExchangeQuote struct {
	Exchange string          `json:"exchange"`
	Pair     string          `json:"pair"`
	Price    decimal.Decimal `json:"price"`
	At       time.Time       `json:"at"`
}

// CryptoSpread is a detected cross-exchange price gap on one pair. Spreads are
// trusted directly as verified opportunities; no LLM verification applies.
type CryptoSpread struct {
	Pair          string          `json:"pair"`
	BuyExchange   string          `json:"buyExchange"`
	SellExchange  string          `json:"sellExchange"`
	BuyPrice      decimal.Decimal `json:"buyPrice"`
	SellPrice     decimal.Decimal `json:"sellPrice"`
	SpreadPercent float64         `json:"spreadPercent"`
}
