// Package tavily is a REST client for the Tavily web-search API, used both by
// source fetchers and by the snipe engine's sold-price tool.
package tavily

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultBaseURL = "https://api.tavily.com"

// Result is one search hit.
type Result struct {
	URL     string  `json:"url"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Response is the search endpoint response.
type Response struct {
	Answer  string   `json:"answer"`
	Query   string   `json:"query"`
	Results []Result `json:"results"`
}

// searchRequest is the search endpoint request body.
type searchRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
	SearchDepth   string `json:"search_depth"`
}

// Client is the Tavily REST client.
type Client struct {
	apiKey string
	client *resty.Client
}

// NewClient creates a Tavily client with a 10-second per-request timeout.
func NewClient(apiKey string) *Client {
	c := resty.New()
	c.SetBaseURL(defaultBaseURL)
	c.SetTimeout(10 * time.Second)
	c.SetHeader("Content-Type", "application/json")
	return &Client{apiKey: apiKey, client: c}
}

// WithBaseURL overrides the API root, used in tests.
func (c *Client) WithBaseURL(u string) *Client {
	c.client.SetBaseURL(u)
	return c
}

// Search runs one query and returns up to maxResults hits. includeAnswer asks
// the provider for a synthesized answer string alongside the raw results.
func (c *Client) Search(ctx context.Context, query string, maxResults int, includeAnswer bool) (Response, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	var out Response
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(searchRequest{
			APIKey:        c.apiKey,
			Query:         query,
			MaxResults:    maxResults,
			IncludeAnswer: includeAnswer,
			SearchDepth:   "basic",
		}).
		SetResult(&out).
		Post("/search")
	if err != nil {
		return Response{}, fmt.Errorf("tavily: search %q: %w", query, err)
	}
	if resp.IsError() {
		return Response{}, fmt.Errorf("tavily: search %q: HTTP %d", query, resp.StatusCode())
	}

	return out, nil
}
