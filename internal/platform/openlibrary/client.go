// Package openlibrary is a client for the Open Library search API, used by the
// books fetcher to anchor ISBN and edition metadata for book leads.
package openlibrary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://openlibrary.org"

// Doc is one search hit.
type Doc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	AuthorNames      []string `json:"author_name"`
	FirstPublishYear int      `json:"first_publish_year"`
	ISBNs            []string `json:"isbn"`
	EditionCount     int      `json:"edition_count"`
}

// Client is the Open Library REST client. The API is public and unkeyed.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client with a 10-second timeout.
func NewClient() *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// WithBaseURL overrides the API root, used in tests.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

// Search runs a free-text or ISBN search over the book database.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Doc, error) {
	if limit <= 0 {
		limit = 10
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", fmt.Sprint(limit))
	params.Set("fields", "key,title,author_name,first_publish_year,isbn,edition_count")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search.json?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("openlibrary: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openlibrary: search %q: %w", query, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openlibrary: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openlibrary: search %q: HTTP %d", query, resp.StatusCode)
	}

	var payload struct {
		NumFound int   `json:"numFound"`
		Docs     []Doc `json:"docs"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("openlibrary: decode search: %w", err)
	}

	return payload.Docs, nil
}
