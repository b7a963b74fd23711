// Package discogs is a REST client for the Discogs database and marketplace
// APIs, used by the collectibles fetcher for release search and sell-side
// price evidence.
package discogs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultBaseURL = "https://api.discogs.com"
	userAgent      = "snipebot/1.0"
)

// Release is one search hit from the database search endpoint.
type Release struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Year  string `json:"year"`
	URI   string `json:"uri"`
	Thumb string `json:"thumb"`
}

// MarketStats summarizes current marketplace activity for a release.
type MarketStats struct {
	NumForSale  int   `json:"num_for_sale"`
	LowestPrice Money `json:"lowest_price"`
	Blocked     bool  `json:"blocked_from_sale"`
}

// PriceSuggestion is the suggested price for one condition grade.
type PriceSuggestion struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

// Money is a marketplace money value.
type Money struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

// Cents converts the value to integer cents.
func (m Money) Cents() int64 {
	return int64(m.Value*100 + 0.5)
}

// Client is the Discogs REST client. A personal access token is required for
// marketplace endpoints.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a Discogs client with a 10-second timeout.
func NewClient(token string) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// WithBaseURL overrides the API root, used in tests.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

// SearchReleases searches the release database for a free-text query.
func (c *Client) SearchReleases(ctx context.Context, query string, limit int) ([]Release, error) {
	if limit <= 0 {
		limit = 10
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "release")
	params.Set("per_page", fmt.Sprint(limit))

	body, err := c.get(ctx, "/database/search?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("discogs: search %q: %w", query, err)
	}

	var resp struct {
		Results []Release `json:"results"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("discogs: decode search: %w", err)
	}
	return resp.Results, nil
}

// GetMarketStats returns live marketplace stats for a release: how many
// copies are for sale and the lowest current ask.
func (c *Client) GetMarketStats(ctx context.Context, releaseID int) (MarketStats, error) {
	body, err := c.get(ctx, fmt.Sprintf("/marketplace/stats/%d?curr_abbr=USD", releaseID))
	if err != nil {
		return MarketStats{}, fmt.Errorf("discogs: stats %d: %w", releaseID, err)
	}

	var stats MarketStats
	if err := json.Unmarshal(body, &stats); err != nil {
		return MarketStats{}, fmt.Errorf("discogs: decode stats: %w", err)
	}
	return stats, nil
}

// GetPriceSuggestions returns suggested prices keyed by condition grade, e.g.
// "Mint (M)" or "Very Good Plus (VG+)".
func (c *Client) GetPriceSuggestions(ctx context.Context, releaseID int) (map[string]PriceSuggestion, error) {
	body, err := c.get(ctx, fmt.Sprintf("/marketplace/price_suggestions/%d", releaseID))
	if err != nil {
		return nil, fmt.Errorf("discogs: price suggestions %d: %w", releaseID, err)
	}

	var out map[string]PriceSuggestion
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("discogs: decode price suggestions: %w", err)
	}
	return out, nil
}

// get performs an authenticated GET and returns the raw body.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Discogs token="+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("rate limited: HTTP 429")
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
