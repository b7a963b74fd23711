// Package snipe implements the verification engine: a bounded tool-use
// conversation with an LLM that verifies pre-qualified leads. The state
// machine per run is AWAITING_RESPONSE -> (TOOL_REQUESTED -> TOOL_EXECUTED ->
// AWAITING_RESPONSE)* -> DONE; it terminates when the model stops requesting
// tools or a hard iteration cap is reached.
package snipe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/lukemartin/snipebot/internal/domain"
	"github.com/lukemartin/snipebot/internal/platform/anthropic"
)

// maxToolIterations is the hard cap on tool-use round trips per run.
const maxToolIterations = 5

// Model is the LLM collaborator. Calls are pure RPCs: a failure aborts the
// run, no retries.
type Model interface {
	CreateMessage(ctx context.Context, req anthropic.MessagesRequest) (anthropic.MessagesResponse, error)
}

// UsageRecorder is invoked after every LLM call, not just at run completion,
// so an aborted run still has its partial usage counted.
type UsageRecorder func(usage domain.TokenUsage)

// ProgressFunc receives progress notifications from the engine.
type ProgressFunc func(kind domain.ProgressKind, message string)

// Config holds the engine's model selection and per-run ceilings. Exceeding a
// ceiling terminates the loop early and gracefully, it is not an error.
type Config struct {
	Model            string
	MaxTokensPerCall int
	// MaxRunTokens caps total tokens per run; 0 disables the cap.
	MaxRunTokens int64
	// MaxToolCalls caps tool executions per run; 0 falls back to the hard
	// iteration cap.
	MaxToolCalls int
}

// Engine drives the verification conversation.
type Engine struct {
	model  Model
	tool   *SoldPricesTool
	cfg    Config
	logger *slog.Logger
}

// NewEngine creates an Engine. tool may be nil, in which case no tool schema
// is exposed to the model.
func NewEngine(model Model, tool *SoldPricesTool, cfg Config, logger *slog.Logger) *Engine {
	if cfg.MaxTokensPerCall <= 0 {
		cfg.MaxTokensPerCall = 4096
	}
	if cfg.MaxToolCalls <= 0 || cfg.MaxToolCalls > maxToolIterations {
		cfg.MaxToolCalls = maxToolIterations
	}
	return &Engine{
		model:  model,
		tool:   tool,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "snipe")),
	}
}

// Verify runs the bounded tool-use conversation over the qualified leads and
// returns the opportunities the model confirmed. Malformed model output
// degrades to an empty result; only a failed LLM call is an error. record is
// called after every model call; emit may be nil.
func (e *Engine) Verify(
	ctx context.Context,
	systemPrompt string,
	leads []domain.QualifiedLead,
	record UsageRecorder,
	emit ProgressFunc,
) ([]domain.ParsedOpportunity, domain.TokenUsage, error) {
	if emit == nil {
		emit = func(domain.ProgressKind, string) {}
	}

	leadPayload, err := json.Marshal(leads)
	if err != nil {
		return nil, domain.TokenUsage{}, fmt.Errorf("snipe: marshal leads: %w", err)
	}

	messages := []anthropic.Message{
		anthropic.TextMessage(anthropic.RoleUser, verifyInstructions+string(leadPayload)),
	}

	var tools []anthropic.Tool
	if e.tool != nil {
		tools = []anthropic.Tool{e.tool.Definition()}
	}

	var total domain.TokenUsage
	toolCalls := 0

	for iteration := 0; ; iteration++ {
		emit(domain.ProgressCallingClaude, fmt.Sprintf("verification call %d", iteration+1))

		resp, err := e.model.CreateMessage(ctx, anthropic.MessagesRequest{
			Model:     e.cfg.Model,
			MaxTokens: e.cfg.MaxTokensPerCall,
			System:    systemPrompt,
			Messages:  messages,
			Tools:     tools,
		})
		if err != nil {
			return nil, total, fmt.Errorf("snipe: llm call failed: %w", err)
		}

		callUsage := domain.TokenUsage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		}
		total.Add(callUsage)
		if record != nil {
			record(callUsage)
		}

		toolUses := resp.ToolUses()
		if len(toolUses) == 0 || e.tool == nil {
			return ParseOpportunities(resp.Text()), total, nil
		}

		// Per-run ceilings: exit gracefully with whatever partial result the
		// model has produced so far.
		if warn := e.ceilingReached(toolCalls, total); warn != "" {
			e.logger.WarnContext(ctx, "tool loop terminated early", slog.String("reason", warn))
			emit(domain.ProgressBudgetWarning, warn)
			return ParseOpportunities(resp.Text()), total, nil
		}

		messages = append(messages, anthropic.Message{Role: anthropic.RoleAssistant, Content: resp.Content})

		var resultBlocks []anthropic.ContentBlock
		for _, use := range toolUses {
			emit(domain.ProgressToolCall, fmt.Sprintf("%s(%s)", use.Name, compactInput(use.Input)))
			toolCalls++
			total.ToolCalls++

			result, execErr := e.tool.Execute(ctx, use.Input)
			block := anthropic.ContentBlock{
				Type:      anthropic.BlockToolResult,
				ToolUseID: use.ID,
			}
			if execErr != nil {
				// Tool failures go back to the model as errors; the model
				// decides whether to continue without the data.
				block.Content = execErr.Error()
				block.IsError = true
				emit(domain.ProgressToolResult, "tool failed: "+execErr.Error())
			} else {
				block.Content = result
				emit(domain.ProgressToolResult, "tool returned sold-price data")
			}
			resultBlocks = append(resultBlocks, block)
		}
		messages = append(messages, anthropic.Message{Role: anthropic.RoleUser, Content: resultBlocks})
	}
}

// ceilingReached returns a non-empty warning when a per-run ceiling forbids
// executing another tool round trip. The tool-call ceiling never exceeds the
// hard iteration cap, so the loop is always bounded.
func (e *Engine) ceilingReached(toolCalls int, total domain.TokenUsage) string {
	if toolCalls >= e.cfg.MaxToolCalls {
		return fmt.Sprintf("per-run tool call ceiling (%d) reached", e.cfg.MaxToolCalls)
	}
	if e.cfg.MaxRunTokens > 0 && total.Total() >= e.cfg.MaxRunTokens {
		return fmt.Sprintf("per-run token ceiling (%d) reached", e.cfg.MaxRunTokens)
	}
	return ""
}

// compactInput renders tool input for progress messages, truncating long
// payloads on a rune boundary.
func compactInput(raw json.RawMessage) string {
	const maxLen = 120
	s := string(raw)
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// verifyInstructions precedes the qualified-lead payload in the first user
// turn. The output contract mirrors what ParseOpportunities expects.
const verifyInstructions = `Verify the following pre-qualified arbitrage leads. For each lead decide whether a real, profitable flip exists after platform fees and shipping. Use the search_sold_prices tool sparingly when sell-side evidence is weak. Respond with a fenced json code block containing an array of opportunity objects with fields: title, description, buyPrice, buySource, buyUrl, sellPrice, sellSource, sellUrl, sellPriceType, estimatedProfit, fees {platformFee, shippingCost, other, total}, confidence (0-100), riskNotes, reasoning. All money values are integer cents. Return an empty array if nothing survives verification.

Leads:
`
