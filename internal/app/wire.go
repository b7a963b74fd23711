package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lukemartin/snipebot/internal/budget"
	"github.com/lukemartin/snipebot/internal/bus"
	"github.com/lukemartin/snipebot/internal/config"
	"github.com/lukemartin/snipebot/internal/domain"
	"github.com/lukemartin/snipebot/internal/notify"
	"github.com/lukemartin/snipebot/internal/platform/anthropic"
	"github.com/lukemartin/snipebot/internal/platform/binance"
	"github.com/lukemartin/snipebot/internal/platform/coinbase"
	"github.com/lukemartin/snipebot/internal/platform/discogs"
	"github.com/lukemartin/snipebot/internal/platform/kraken"
	"github.com/lukemartin/snipebot/internal/platform/openlibrary"
	"github.com/lukemartin/snipebot/internal/platform/tavily"
	"github.com/lukemartin/snipebot/internal/queue"
	"github.com/lukemartin/snipebot/internal/run"
	"github.com/lukemartin/snipebot/internal/snipe"
	"github.com/lukemartin/snipebot/internal/source"
)

// Dependencies bundles everything the server layer needs to operate. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	SignalBus domain.SignalBus
	Ledger    *budget.Ledger
	Queue     *queue.Queue
	Service   *run.Service
	Notifier  *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Signal bus ---
	if cfg.Redis.Enabled {
		redisBus, err := bus.NewRedis(ctx, bus.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis bus: %w", err)
		}
		closers = append(closers, func() { _ = redisBus.Close() })
		deps.SignalBus = redisBus
	} else {
		deps.SignalBus = bus.NewMemory()
	}

	// --- Budget ledger ---
	ledger, err := budget.NewLedger(cfg.Budget.DataDir, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: budget ledger: %w", err)
	}
	if cfg.Budget.DailyTokenLimit > 0 {
		ledger.SetDefaultLimit(cfg.Budget.DailyTokenLimit)
	}
	deps.Ledger = ledger

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- External clients ---
	search := tavily.NewClient(cfg.Tavily.APIKey)
	searcher := run.TavilySearcher{Client: search}

	clients := run.Clients{
		Search:  search,
		Catalog: openlibrary.NewClient(),
		Exchanges: []source.ExchangeClient{
			coinbase.NewClient(),
			kraken.NewClient(),
			binance.NewClient(),
		},
	}
	if cfg.Discogs.Token != "" {
		clients.Discogs = discogs.NewClient(cfg.Discogs.Token)
	}

	// --- Snipe engine ---
	model := anthropic.NewClient(cfg.Anthropic.APIKey)
	engine := snipe.NewEngine(model, snipe.NewSoldPricesTool(searcher), snipe.Config{
		Model:            cfg.Anthropic.Model,
		MaxTokensPerCall: cfg.Anthropic.MaxTokensPerCall,
		MaxRunTokens:     cfg.Anthropic.MaxRunTokens,
		MaxToolCalls:     cfg.Anthropic.MaxToolCalls,
	}, logger)

	// --- Pipeline ---
	orch := run.NewOrchestrator(
		run.NewFetcherFactory(clients, logger),
		searcher,
		engine,
		ledger,
		deps.Notifier,
		logger,
	).WithTimeout(cfg.Runs.Timeout.Duration)

	deps.Queue = queue.New(cfg.Runs.MaxConcurrent, logger)
	deps.Service = run.NewService(orch, deps.Queue, deps.SignalBus, logger)

	return deps, cleanup, nil
}
