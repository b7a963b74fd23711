package snipe

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/lukemartin/snipebot/internal/domain"
	"github.com/lukemartin/snipebot/internal/filter"
	"github.com/lukemartin/snipebot/internal/platform/anthropic"
)

// fakeModel returns a scripted sequence of responses.
type fakeModel struct {
	responses []anthropic.MessagesResponse
	err       error
	requests  []anthropic.MessagesRequest
}

func (f *fakeModel) CreateMessage(_ context.Context, req anthropic.MessagesRequest) (anthropic.MessagesResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return anthropic.MessagesResponse{}, f.err
	}
	if len(f.responses) == 0 {
		return anthropic.MessagesResponse{}, errors.New("fake model: no scripted response left")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

type fakeToolSearcher struct{}

func (fakeToolSearcher) Search(_ context.Context, _ string, _ int) ([]filter.SearchResult, error) {
	return []filter.SearchResult{
		{URL: "https://www.ebay.com/itm/999", Title: "Nintendo Switch OLED", Content: "sold $185"},
	}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func textResponse(text string, usage anthropic.Usage) anthropic.MessagesResponse {
	return anthropic.MessagesResponse{
		Content:    []anthropic.ContentBlock{{Type: anthropic.BlockText, Text: text}},
		StopReason: anthropic.StopEndTurn,
		Usage:      usage,
	}
}

func toolUseResponse(id string, usage anthropic.Usage) anthropic.MessagesResponse {
	return anthropic.MessagesResponse{
		Content: []anthropic.ContentBlock{
			{Type: anthropic.BlockText, Text: "Let me check sold prices."},
			{
				Type:  anthropic.BlockToolUse,
				ID:    id,
				Name:  soldPricesToolName,
				Input: json.RawMessage(`{"product_name": "Nintendo Switch OLED"}`),
			},
		},
		StopReason: anthropic.StopToolUse,
		Usage:      usage,
	}
}

func testLeads() []domain.QualifiedLead {
	price := int64(10000)
	return []domain.QualifiedLead{{
		ScoutLead: domain.ScoutLead{
			Title:      "Nintendo Switch OLED",
			URL:        "https://sfbay.craigslist.org/sby/ele/d/switch/7712345678.html",
			Source:     "craigslist",
			PriceFound: &price,
		},
		BuyPrice:          10000,
		SellPriceEstimate: 19000,
		SellPriceType:     domain.SellPriceVerified,
		EstimatedSpread:   9000,
		SpreadPercent:     90,
		Confidence:        domain.ConfidenceMedium,
	}}
}

const finalAnswer = "```json\n" + `[{"title": "Nintendo Switch OLED", "buyPrice": 10000, "sellPrice": 19000, "sellPriceType": "verified", "estimatedProfit": 6000, "confidence": 75}]` + "\n```"

func TestVerifyToolRoundTrip(t *testing.T) {
	model := &fakeModel{responses: []anthropic.MessagesResponse{
		toolUseResponse("toolu_1", anthropic.Usage{InputTokens: 100, OutputTokens: 20}),
		textResponse(finalAnswer, anthropic.Usage{InputTokens: 150, OutputTokens: 60}),
	}}
	engine := NewEngine(model, NewSoldPricesTool(fakeToolSearcher{}), Config{Model: "test-model"}, testLogger())

	var recorded []domain.TokenUsage
	var kinds []domain.ProgressKind
	opps, usage, err := engine.Verify(context.Background(), "system prompt", testLeads(),
		func(u domain.TokenUsage) { recorded = append(recorded, u) },
		func(kind domain.ProgressKind, _ string) { kinds = append(kinds, kind) },
	)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(opps) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(opps))
	}
	if opps[0].Title != "Nintendo Switch OLED" {
		t.Fatalf("unexpected opportunity title %q", opps[0].Title)
	}
	if usage.InputTokens != 250 || usage.OutputTokens != 80 || usage.ToolCalls != 1 {
		t.Fatalf("unexpected usage: %+v", usage)
	}
	if len(recorded) != 2 {
		t.Fatalf("expected usage recorded per call, got %d records", len(recorded))
	}

	// The second request must carry the assistant turn and the tool result.
	if len(model.requests) != 2 {
		t.Fatalf("expected 2 model calls, got %d", len(model.requests))
	}
	second := model.requests[1]
	last := second.Messages[len(second.Messages)-1]
	if last.Role != anthropic.RoleUser || last.Content[0].Type != anthropic.BlockToolResult {
		t.Fatalf("expected trailing tool_result turn, got role=%s type=%s", last.Role, last.Content[0].Type)
	}
	if last.Content[0].ToolUseID != "toolu_1" {
		t.Fatalf("tool result not linked to tool use: %q", last.Content[0].ToolUseID)
	}

	sawToolCall := false
	for _, k := range kinds {
		if k == domain.ProgressToolCall {
			sawToolCall = true
		}
	}
	if !sawToolCall {
		t.Fatal("expected a tool_call progress event")
	}
}

func TestVerifyToolCallCeiling(t *testing.T) {
	responses := make([]anthropic.MessagesResponse, 0, maxToolIterations+1)
	for i := 0; i <= maxToolIterations; i++ {
		responses = append(responses, toolUseResponse("toolu_n", anthropic.Usage{InputTokens: 10, OutputTokens: 5}))
	}
	model := &fakeModel{responses: responses}
	engine := NewEngine(model, NewSoldPricesTool(fakeToolSearcher{}), Config{Model: "test-model"}, testLogger())

	var warned bool
	opps, usage, err := engine.Verify(context.Background(), "system", testLeads(), nil,
		func(kind domain.ProgressKind, msg string) {
			if kind == domain.ProgressBudgetWarning && strings.Contains(msg, "tool call ceiling") {
				warned = true
			}
		},
	)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !warned {
		t.Fatal("expected a budget_warning progress event at the ceiling")
	}
	if len(opps) != 0 {
		t.Fatalf("tool-use-only responses should parse to no opportunities, got %d", len(opps))
	}
	if usage.ToolCalls != maxToolIterations {
		t.Fatalf("expected exactly %d tool calls, got %d", maxToolIterations, usage.ToolCalls)
	}
	if len(model.requests) != maxToolIterations+1 {
		t.Fatalf("expected %d model calls, got %d", maxToolIterations+1, len(model.requests))
	}
}

func TestVerifyTokenCeiling(t *testing.T) {
	model := &fakeModel{responses: []anthropic.MessagesResponse{
		toolUseResponse("toolu_1", anthropic.Usage{InputTokens: 400, OutputTokens: 200}),
		toolUseResponse("toolu_2", anthropic.Usage{InputTokens: 500, OutputTokens: 300}),
	}}
	engine := NewEngine(model, NewSoldPricesTool(fakeToolSearcher{}),
		Config{Model: "test-model", MaxRunTokens: 1000}, testLogger())

	_, usage, err := engine.Verify(context.Background(), "system", testLeads(), nil, nil)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if usage.ToolCalls != 1 {
		t.Fatalf("expected the second round trip to be refused, got %d tool calls", usage.ToolCalls)
	}
	if len(model.requests) != 2 {
		t.Fatalf("expected 2 model calls, got %d", len(model.requests))
	}
}

func TestVerifyModelFailure(t *testing.T) {
	model := &fakeModel{err: errors.New("overloaded")}
	engine := NewEngine(model, nil, Config{Model: "test-model"}, testLogger())

	var recorded []domain.TokenUsage
	opps, _, err := engine.Verify(context.Background(), "system", testLeads(),
		func(u domain.TokenUsage) { recorded = append(recorded, u) }, nil)
	if err == nil {
		t.Fatal("expected an error from a failed model call")
	}
	if len(opps) != 0 {
		t.Fatalf("expected no opportunities, got %d", len(opps))
	}
	if len(recorded) != 0 {
		t.Fatalf("failed call must not record usage, got %d records", len(recorded))
	}
}

func TestVerifyMalformedOutputDegrades(t *testing.T) {
	model := &fakeModel{responses: []anthropic.MessagesResponse{
		textResponse("I could not produce structured output, sorry.", anthropic.Usage{InputTokens: 50, OutputTokens: 10}),
	}}
	engine := NewEngine(model, nil, Config{Model: "test-model"}, testLogger())

	opps, usage, err := engine.Verify(context.Background(), "system", testLeads(), nil, nil)
	if err != nil {
		t.Fatalf("malformed output must not error: %v", err)
	}
	if len(opps) != 0 {
		t.Fatalf("expected empty result, got %d", len(opps))
	}
	if usage.InputTokens != 50 {
		t.Fatalf("usage still counted on malformed output, got %+v", usage)
	}
}

func TestVerifyNoToolConfigured(t *testing.T) {
	model := &fakeModel{responses: []anthropic.MessagesResponse{
		textResponse(finalAnswer, anthropic.Usage{InputTokens: 80, OutputTokens: 40}),
	}}
	engine := NewEngine(model, nil, Config{Model: "test-model"}, testLogger())

	opps, _, err := engine.Verify(context.Background(), "system", testLeads(), nil, nil)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(opps) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(opps))
	}
	if len(model.requests) != 1 {
		t.Fatalf("expected a single model call, got %d", len(model.requests))
	}
	if len(model.requests[0].Tools) != 0 {
		t.Fatalf("no tool configured, but %d tools sent", len(model.requests[0].Tools))
	}
}

func TestCompactInputTruncation(t *testing.T) {
	short := json.RawMessage(`{"product":"ps5"}`)
	if got := compactInput(short); got != string(short) {
		t.Errorf("short input altered: %q", got)
	}

	// A multi-byte rune straddling the cut must not be split.
	long := json.RawMessage(strings.Repeat("a", 119) + "é" + strings.Repeat("b", 40))
	got := compactInput(long)
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("long input not truncated: %q", got)
	}
	if !utf8.ValidString(got) {
		t.Errorf("truncated input is not valid UTF-8: %q", got)
	}
	if len(got) > 120+len("...") {
		t.Errorf("truncated input too long: %d bytes", len(got))
	}
}
