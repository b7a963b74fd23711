package run

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lukemartin/snipebot/internal/budget"
	"github.com/lukemartin/snipebot/internal/domain"
	"github.com/lukemartin/snipebot/internal/extract"
	"github.com/lukemartin/snipebot/internal/filter"
	"github.com/lukemartin/snipebot/internal/notify"
	"github.com/lukemartin/snipebot/internal/snipe"
	"github.com/lukemartin/snipebot/internal/source"
)

const (
	// runTimeout bounds one whole pipeline run. The timeout context is
	// threaded through every fetch and LLM call, so expiry cancels in-flight
	// work instead of merely firing an advisory event.
	runTimeout = 3 * time.Minute

	// maxLeadsToVerify caps how many qualified leads reach the snipe engine.
	maxLeadsToVerify = 25

	// maxResearchCandidates caps the fallback pass that forwards priced
	// listing-URL leads when programmatic qualification found nothing.
	maxResearchCandidates = 10

	// AbortBudgetExceeded is the AbortReason for runs rejected by the daily
	// budget pre-check.
	AbortBudgetExceeded = "daily_budget_exceeded"
)

// FetcherFactory builds the source fetchers for one run's configuration.
type FetcherFactory func(cfg TypeConfig) []source.Fetcher

// BudgetKeeper is the slice of the budget ledger the orchestrator needs.
type BudgetKeeper interface {
	CheckBudget() (budget.Status, error)
	RecordUsage(agentType domain.AgentType, usage domain.TokenUsage) error
}

// Emitter receives progress events as a run advances.
type Emitter func(event domain.ProgressEvent)

// Orchestrator sequences scout, filter, and snipe for one run at a time. It
// holds no per-run state; concurrent Execute calls are safe.
type Orchestrator struct {
	fetchers FetcherFactory
	search   filter.Searcher
	engine   *snipe.Engine
	ledger   BudgetKeeper
	notifier *notify.Notifier
	logger   *slog.Logger
	timeout  time.Duration
	now      func() time.Time
}

// NewOrchestrator wires the orchestrator. notifier may be nil.
func NewOrchestrator(
	fetchers FetcherFactory,
	search filter.Searcher,
	engine *snipe.Engine,
	ledger BudgetKeeper,
	notifier *notify.Notifier,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		fetchers: fetchers,
		search:   search,
		engine:   engine,
		ledger:   ledger,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "orchestrator")),
		timeout:  runTimeout,
		now:      time.Now,
	}
}

// WithTimeout overrides the per-run deadline. Non-positive values keep the
// default.
func (o *Orchestrator) WithTimeout(d time.Duration) *Orchestrator {
	if d > 0 {
		o.timeout = d
	}
	return o
}

// Execute runs the full pipeline for one agent type and returns the terminal
// result. Zero opportunities with Success=true is a normal outcome.
func (o *Orchestrator) Execute(ctx context.Context, agentType domain.AgentType, ov Overrides, emit Emitter) domain.RunResult {
	if emit == nil {
		emit = func(domain.ProgressEvent) {}
	}

	res := domain.RunResult{
		RunID:     uuid.NewString(),
		AgentType: agentType,
		StartedAt: o.now(),
	}
	progress := func(kind domain.ProgressKind, message string) {
		emit(domain.ProgressEvent{
			RunID:     res.RunID,
			AgentType: agentType,
			Kind:      kind,
			Message:   message,
			At:        o.now(),
		})
	}
	finish := func() domain.RunResult {
		res.FinishedAt = o.now()
		return res
	}

	cfg, err := ConfigFor(agentType, ov)
	if err != nil {
		res.Error = err.Error()
		return finish()
	}

	// Crypto never calls the LLM, so it skips the budget gate.
	if agentType != domain.AgentCrypto {
		st, err := o.ledger.CheckBudget()
		if err != nil {
			res.Error = fmt.Sprintf("budget check failed: %v", err)
			return finish()
		}
		if !st.Allowed {
			res.AbortReason = AbortBudgetExceeded
			res.Reasoning = fmt.Sprintf("Daily token budget exhausted: %d of %d tokens used.", st.Used, st.Limit)
			o.logger.Warn("run rejected by budget",
				slog.String("agent_type", string(agentType)), slog.Int64("used", st.Used), slog.Int64("limit", st.Limit))
			o.notifyEvent(ctx, notify.EventBudgetExhausted,
				fmt.Sprintf("%s run rejected", agentType), res.Reasoning)
			return finish()
		}
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	progress(domain.ProgressStarted, fmt.Sprintf("scouting %s sources", agentType))

	scouted := o.scout(ctx, cfg)
	res.Diagnostics = scouted.Diagnostics
	res.LeadsFound = len(scouted.Leads) + len(scouted.Qualified) + len(scouted.Quotes)

	// Crypto short-circuits after spread detection: live exchange quotes are
	// trusted directly as verified opportunities.
	if c, ok := cfg.(CryptoConfig); ok {
		spreads := filter.DetectSpreads(scouted.Quotes, c.MinSpreadPercent)
		res.Opportunities = spreadOpportunities(spreads)
		res.Qualified = len(spreads)
		res.Success = true
		res.Reasoning = BuildReasoning(res.LeadsFound, res.Qualified, len(res.Opportunities), res.Diagnostics)
		o.notifyOpportunities(ctx, res)
		return finish()
	}

	minProfit, minSpread, prompt := snipeParams(cfg)

	qualifier := filter.NewQualifier(o.search, filter.Config{
		MinProfitCents:   minProfit,
		MinSpreadPercent: minSpread,
	}, o.logger)
	qualified := qualifier.Qualify(ctx, scouted.Leads)

	// Fallback pass: when programmatic qualification comes up empty but the
	// scout found priced listing pages, forward them as research candidates
	// so the snipe engine can dig with its tool.
	if len(qualified) == 0 {
		qualified = researchCandidates(scouted.Leads)
	}

	qualified = append(qualified, scouted.Qualified...)
	if len(qualified) > maxLeadsToVerify {
		qualified = qualified[:maxLeadsToVerify]
	}
	res.Qualified = len(qualified)

	if len(qualified) == 0 {
		res.Success = true
		res.Reasoning = BuildReasoning(res.LeadsFound, 0, 0, res.Diagnostics)
		return finish()
	}

	record := func(usage domain.TokenUsage) {
		if err := o.ledger.RecordUsage(agentType, usage); err != nil {
			o.logger.Error("usage record failed", slog.String("error", err.Error()))
		}
	}

	opps, usage, err := o.engine.Verify(ctx, prompt, qualified, record, progress)
	res.Usage = usage
	if err != nil {
		res.Error = err.Error()
		res.Reasoning = fmt.Sprintf("Verification failed after %d qualified leads: %v", len(qualified), err)
		o.notifyEvent(ctx, notify.EventRunFailed,
			fmt.Sprintf("%s run failed", agentType), res.Error)
		return finish()
	}

	res.Opportunities = opps
	res.Success = true
	res.Reasoning = BuildReasoning(res.LeadsFound, res.Qualified, len(opps), res.Diagnostics)
	o.notifyOpportunities(ctx, res)
	return finish()
}

// scout runs every configured fetcher concurrently and merges their results.
// Fetchers throttle themselves internally; the fan-out has no ordering
// dependencies.
func (o *Orchestrator) scout(ctx context.Context, cfg TypeConfig) source.Result {
	fetchers := o.fetchers(cfg)

	var mu sync.Mutex
	var merged source.Result
	var wg sync.WaitGroup
	for _, f := range fetchers {
		wg.Add(1)
		go func(f source.Fetcher) {
			defer wg.Done()
			r := f.Fetch(ctx)
			mu.Lock()
			merged.Merge(r)
			mu.Unlock()
		}(f)
	}
	wg.Wait()
	return merged
}

// snipeParams extracts the filter thresholds and system prompt from a
// non-crypto variant.
func snipeParams(cfg TypeConfig) (minProfit int64, minSpread float64, prompt string) {
	switch c := cfg.(type) {
	case ResaleConfig:
		return c.MinProfitCents, c.MinSpreadPercent, c.SystemPrompt
	case DealsConfig:
		return c.MinProfitCents, c.MinSpreadPercent, c.SystemPrompt
	case BooksConfig:
		return c.MinProfitCents, c.MinSpreadPercent, c.SystemPrompt
	case CollectiblesConfig:
		return c.MinProfitCents, c.MinSpreadPercent, c.SystemPrompt
	case CryptoConfig:
		// Handled by the short-circuit before this is called.
		return 0, c.MinSpreadPercent, ""
	default:
		return 0, 0, ""
	}
}

// researchCandidates selects priced listing-URL leads for the snipe engine
// when nothing passed programmatic qualification.
func researchCandidates(leads []domain.ScoutLead) []domain.QualifiedLead {
	var out []domain.QualifiedLead
	for _, lead := range leads {
		price, ok := lead.Price()
		if !ok || !extract.IsListingURL(lead.URL) {
			continue
		}
		out = append(out, domain.QualifiedLead{
			ScoutLead:     lead,
			BuyPrice:      price,
			SellPriceType: domain.SellPriceResearchNeeded,
			Confidence:    domain.ConfidenceLow,
		})
		if len(out) == maxResearchCandidates {
			break
		}
	}
	return out
}

// spreadOpportunities converts detected crypto spreads into opportunities.
// Prices are per-unit cents; no fees are modeled because execution is out of
// scope.
func spreadOpportunities(spreads []domain.CryptoSpread) []domain.ParsedOpportunity {
	hundred := decimal.NewFromInt(100)
	opps := make([]domain.ParsedOpportunity, 0, len(spreads))
	for _, s := range spreads {
		buyCents := s.BuyPrice.Mul(hundred).Round(0).IntPart()
		sellCents := s.SellPrice.Mul(hundred).Round(0).IntPart()
		opps = append(opps, domain.ParsedOpportunity{
			ID:    uuid.NewString(),
			Title: fmt.Sprintf("%s spread: %s vs %s", s.Pair, s.BuyExchange, s.SellExchange),
			Description: fmt.Sprintf("Buy %s on %s at %s, sell on %s at %s (%.2f%% spread)",
				s.Pair, s.BuyExchange, s.BuyPrice.StringFixed(2), s.SellExchange, s.SellPrice.StringFixed(2), s.SpreadPercent),
			BuyPrice:        buyCents,
			BuySource:       s.BuyExchange,
			SellPrice:       sellCents,
			SellSource:      s.SellExchange,
			SellPriceType:   domain.SellPriceVerified,
			EstimatedProfit: sellCents - buyCents,
			Confidence:      90,
			RiskNotes:       []string{"spread may close before both legs execute", "withdrawal and trading fees not modeled"},
			Reasoning:       "Live quotes from both exchanges observed simultaneously.",
		})
	}
	return opps
}

func (o *Orchestrator) notifyOpportunities(ctx context.Context, res domain.RunResult) {
	if len(res.Opportunities) == 0 {
		return
	}
	title := fmt.Sprintf("%d opportunities from %s run", len(res.Opportunities), res.AgentType)
	best := res.Opportunities[0]
	message := fmt.Sprintf("Top: %s, estimated profit $%.2f", best.Title, float64(best.EstimatedProfit)/100)
	o.notifyEvent(ctx, notify.EventOpportunities, title, message)
}

func (o *Orchestrator) notifyEvent(ctx context.Context, event, title, message string) {
	if o.notifier == nil {
		return
	}
	// The run context may already be expired when a failure is reported.
	if err := o.notifier.Notify(context.WithoutCancel(ctx), event, title, message); err != nil {
		o.logger.Warn("notification failed", slog.String("error", err.Error()))
	}
}
