// Package binance fetches ticker data from the public Binance API.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lukemartin/snipebot/internal/domain"
)

const defaultBaseURL = "https://api.binance.com"

// Client is the Binance public REST client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client with a 5-second timeout.
func NewClient() *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// WithBaseURL overrides the API root, used in tests.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

// Name returns the exchange identifier.
func (c *Client) Name() string { return "binance" }

// Ticker returns the current price for a canonical pair like "BTC/USD".
// Binance quotes dollar pairs against USDT; the 1:1 approximation is accepted
// for spread detection purposes.
func (c *Client) Ticker(ctx context.Context, pair string) (domain.ExchangeQuote, error) {
	symbol := strings.ReplaceAll(pair, "/", "")
	if strings.HasSuffix(symbol, "USD") {
		symbol += "T"
	}
	url := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", c.baseURL, symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.ExchangeQuote{}, fmt.Errorf("binance: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ExchangeQuote{}, fmt.Errorf("binance: ticker %s: %w", pair, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.ExchangeQuote{}, fmt.Errorf("binance: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.ExchangeQuote{}, fmt.Errorf("binance: ticker %s: HTTP %d", pair, resp.StatusCode)
	}

	var payload struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.ExchangeQuote{}, fmt.Errorf("binance: decode ticker: %w", err)
	}

	price, err := decimal.NewFromString(payload.Price)
	if err != nil {
		return domain.ExchangeQuote{}, fmt.Errorf("binance: parse price %q: %w", payload.Price, err)
	}

	return domain.ExchangeQuote{
		Exchange: c.Name(),
		Pair:     pair,
		Price:    price,
		At:       time.Now().UTC(),
	}, nil
}
