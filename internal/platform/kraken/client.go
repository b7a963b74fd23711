// Package kraken fetches ticker data from the public Kraken API.
package kraken

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

const defaultBaseURL = "https://api.kraken.com"

// symbolOverrides maps canonical pair names to Kraken's legacy asset codes.
var symbolOverrides = map[string]string{
	"BTC/USD": "XBTUSD",
}

// Client is the Kraken public REST client.
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
func (c *Client) Name() string { return "kraken" }

// Ticker returns the last-trade price for a canonical pair like "ETH/USD".
func (c *Client) Ticker(ctx context.Context, pair string) (domain.ExchangeQuote, error) {
	symbol, ok := symbolOverrides[pair]
	if !ok {
		symbol = strings.ReplaceAll(pair, "/", "")
	}
	url := fmt.Sprintf("%s/0/public/Ticker?pair=%s", c.baseURL, symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.ExchangeQuote{}, fmt.Errorf("kraken: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ExchangeQuote{}, fmt.Errorf("kraken: ticker %s: %w", pair, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.ExchangeQuote{}, fmt.Errorf("kraken: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.ExchangeQuote{}, fmt.Errorf("kraken: ticker %s: HTTP %d", pair, resp.StatusCode)
	}

	var payload struct {
		Error  []string `json:"error"`
		Result map[string]struct {
			// c is [last trade price, lot volume].
			C []string `json:"c"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.ExchangeQuote{}, fmt.Errorf("kraken: decode ticker: %w", err)
	}
	if len(payload.Error) > 0 {
		return domain.ExchangeQuote{}, fmt.Errorf("kraken: ticker %s: %s", pair, strings.Join(payload.Error, "; "))
	}

	// Kraken keys the result by its own pair alias; take the first entry.
	for _, tick := range payload.Result {
		if len(tick.C) == 0 {
			break
		}
		price, err := decimal.NewFromString(tick.C[0])
		if err != nil {
			return domain.ExchangeQuote{}, fmt.Errorf("kraken: parse price %q: %w", tick.C[0], err)
		}
		return domain.ExchangeQuote{
			Exchange: c.Name(),
			Pair:     pair,
			Price:    price,
			At:       time.Now().UTC(),
		}, nil
	}

	return domain.ExchangeQuote{}, fmt.Errorf("kraken: ticker %s: empty result", pair)
}
