package snipe

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lukemartin/snipebot/internal/extract"
	"github.com/lukemartin/snipebot/internal/filter"
	"github.com/lukemartin/snipebot/internal/platform/anthropic"
)

// soldPricesToolName is the single capability exposed to the model.
const soldPricesToolName = "search_sold_prices"

// soldPricesSchema describes the tool input.
var soldPricesSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"product_name": {
			"type": "string",
			"description": "Exact product name to look up recent sold prices for"
		}
	},
	"required": ["product_name"]
}`)

// SoldPricesTool lets the model request sold-price evidence for a named
// product. It reuses the resale lookup mechanism but only trusts prices found
// on genuine listing pages.
type SoldPricesTool struct {
	search     filter.Searcher
	maxResults int
}

// NewSoldPricesTool creates the tool over the given searcher.
func NewSoldPricesTool(search filter.Searcher) *SoldPricesTool {
	return &SoldPricesTool{search: search, maxResults: 5}
}

// Definition returns the tool schema sent to the model.
func (t *SoldPricesTool) Definition() anthropic.Tool {
	return anthropic.Tool{
		Name:        soldPricesToolName,
		Description: "Search recent sold/listed prices for a product across resale marketplaces. Returns prices in integer cents from genuine item listing pages only.",
		InputSchema: soldPricesSchema,
	}
}

// soldPricesInput is the parsed tool input.
type soldPricesInput struct {
	ProductName string `json:"product_name"`
}

// soldPriceHit is one listing-page price returned to the model.
type soldPriceHit struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	PriceCents int64  `json:"priceCents"`
}

// Execute runs the tool and returns a JSON document for the tool_result
// block.
func (t *SoldPricesTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var in soldPricesInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("snipe: bad tool input: %w", err)
	}
	if in.ProductName == "" {
		return "", fmt.Errorf("snipe: tool input missing product_name")
	}

	results, err := t.search.Search(ctx, in.ProductName+" sold price listing", t.maxResults)
	if err != nil {
		return "", fmt.Errorf("snipe: sold price search: %w", err)
	}

	var hits []soldPriceHit
	for _, res := range results {
		if !extract.IsListingURL(res.URL) {
			continue
		}
		prices := extract.AllPrices(res.Title + " " + res.Content)
		if len(prices) == 0 {
			continue
		}
		hits = append(hits, soldPriceHit{URL: res.URL, Title: res.Title, PriceCents: prices[0]})
	}

	payload, err := json.Marshal(map[string]any{
		"product":  in.ProductName,
		"listings": hits,
		"count":    len(hits),
	})
	if err != nil {
		return "", fmt.Errorf("snipe: marshal tool result: %w", err)
	}
	return string(payload), nil
}
