// Package coinbase fetches spot prices from the public Coinbase API.
package coinbase

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

const defaultBaseURL = "https://api.coinbase.com"

// Client is the Coinbase public REST client. No credentials are required for
// spot price reads.
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
func (c *Client) Name() string { return "coinbase" }

// Ticker returns the spot price for a canonical pair like "BTC/USD".
func (c *Client) Ticker(ctx context.Context, pair string) (domain.ExchangeQuote, error) {
	symbol := strings.ReplaceAll(pair, "/", "-")
	url := fmt.Sprintf("%s/v2/prices/%s/spot", c.baseURL, symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.ExchangeQuote{}, fmt.Errorf("coinbase: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ExchangeQuote{}, fmt.Errorf("coinbase: ticker %s: %w", pair, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.ExchangeQuote{}, fmt.Errorf("coinbase: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.ExchangeQuote{}, fmt.Errorf("coinbase: ticker %s: HTTP %d", pair, resp.StatusCode)
	}

	var payload struct {
		Data struct {
			Amount   string `json:"amount"`
			Currency string `json:"currency"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.ExchangeQuote{}, fmt.Errorf("coinbase: decode ticker: %w", err)
	}

	price, err := decimal.NewFromString(payload.Data.Amount)
	if err != nil {
		return domain.ExchangeQuote{}, fmt.Errorf("coinbase: parse price %q: %w", payload.Data.Amount, err)
	}

	return domain.ExchangeQuote{
		Exchange: c.Name(),
		Pair:     pair,
		Price:    price,
		At:       time.Now().UTC(),
	}, nil
}
