// Package budget tracks daily LLM token spend in flat files. The ledger is a
// per-UTC-day running total plus the individual run entries behind it; the
// day rolls over the first time the ledger is touched on a new date.
package budget

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lukemartin/snipebot/internal/domain"
)

const (
	usageFile  = "usage.json"
	configFile = "budget.json"

	// DefaultDailyTokenLimit bounds spend for an unconfigured install.
	DefaultDailyTokenLimit int64 = 500_000
)

// usageDoc is the persisted daily ledger.
type usageDoc struct {
	Date         string             `json:"date"`
	InputTokens  int64              `json:"inputTokens"`
	OutputTokens int64              `json:"outputTokens"`
	TotalTokens  int64              `json:"totalTokens"`
	ToolCalls    int                `json:"toolCalls"`
	Runs         []domain.RunRecord `json:"runs"`
}

// configDoc is the persisted budget configuration.
type configDoc struct {
	DailyTokenLimit int64 `json:"dailyTokenLimit"`
}

// Status is the outcome of a budget check.
type Status struct {
	Allowed   bool  `json:"allowed"`
	Used      int64 `json:"used"`
	Remaining int64 `json:"remaining"`
	Limit     int64 `json:"limit"`
}

// Ledger reads and writes the two budget documents under a data directory.
// Writes are read-modify-write under a process-local mutex; concurrent
// processes would race, but the pipeline runs as a single process.
type Ledger struct {
	mu           sync.Mutex
	dir          string
	defaultLimit int64
	now          func() time.Time
	logger       *slog.Logger
}

// NewLedger creates a ledger rooted at dir, creating it if needed.
func NewLedger(dir string, logger *slog.Logger) (*Ledger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("budget: create data dir: %w", err)
	}
	return &Ledger{
		dir:          dir,
		defaultLimit: DefaultDailyTokenLimit,
		now:          time.Now,
		logger:       logger.With(slog.String("component", "budget")),
	}, nil
}

// SetDefaultLimit changes the ceiling used when no limit has been persisted.
// A limit set through SetDailyLimit still takes precedence.
func (l *Ledger) SetDefaultLimit(limit int64) {
	if limit <= 0 {
		return
	}
	l.mu.Lock()
	l.defaultLimit = limit
	l.mu.Unlock()
}

// CheckBudget reports whether today's recorded total is below the daily
// ceiling. Allowed is false exactly when used >= limit.
func (l *Ledger) CheckBudget() (Status, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.loadUsageLocked()
	if err != nil {
		return Status{}, err
	}
	limit, err := l.loadLimitLocked()
	if err != nil {
		return Status{}, err
	}

	st := Status{
		Used:  doc.TotalTokens,
		Limit: limit,
	}
	if doc.TotalTokens < limit {
		st.Allowed = true
		st.Remaining = limit - doc.TotalTokens
	}
	return st, nil
}

// RecordUsage appends one usage sample to today's ledger. It is called after
// every LLM call so an aborted run still has its partial spend counted.
func (l *Ledger) RecordUsage(agentType domain.AgentType, usage domain.TokenUsage) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.loadUsageLocked()
	if err != nil {
		return err
	}

	doc.InputTokens += usage.InputTokens
	doc.OutputTokens += usage.OutputTokens
	doc.TotalTokens += usage.Total()
	doc.ToolCalls += usage.ToolCalls
	doc.Runs = append(doc.Runs, domain.RunRecord{
		AgentType:    agentType,
		StartedAt:    l.now().UTC(),
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		TotalTokens:  usage.Total(),
		ToolCalls:    usage.ToolCalls,
	})

	return l.saveUsageLocked(doc)
}

// Today returns today's ledger document for reporting.
func (l *Ledger) Today() (domain.TokenUsage, int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.loadUsageLocked()
	if err != nil {
		return domain.TokenUsage{}, 0, err
	}
	return domain.TokenUsage{
		InputTokens:  doc.InputTokens,
		OutputTokens: doc.OutputTokens,
		ToolCalls:    doc.ToolCalls,
	}, len(doc.Runs), nil
}

// SetDailyLimit persists a new daily token ceiling.
func (l *Ledger) SetDailyLimit(limit int64) error {
	if limit <= 0 {
		return fmt.Errorf("budget: daily limit must be positive, got %d", limit)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return writeJSON(filepath.Join(l.dir, configFile), configDoc{DailyTokenLimit: limit})
}

// loadUsageLocked reads today's ledger, resetting it when the stored date is
// not today's UTC date.
func (l *Ledger) loadUsageLocked() (usageDoc, error) {
	today := l.now().UTC().Format(time.DateOnly)
	fresh := usageDoc{Date: today}

	var doc usageDoc
	err := readJSON(filepath.Join(l.dir, usageFile), &doc)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fresh, nil
	case err != nil:
		// A corrupt ledger file starts the day over rather than wedging every
		// run; the old spend is lost, which errs on the side of spending.
		l.logger.Warn("usage ledger unreadable, resetting", slog.String("error", err.Error()))
		return fresh, nil
	case doc.Date != today:
		return fresh, nil
	}
	return doc, nil
}

func (l *Ledger) saveUsageLocked(doc usageDoc) error {
	return writeJSON(filepath.Join(l.dir, usageFile), doc)
}

func (l *Ledger) loadLimitLocked() (int64, error) {
	var cfg configDoc
	err := readJSON(filepath.Join(l.dir, configFile), &cfg)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return l.defaultLimit, nil
	case err != nil:
		return 0, err
	case cfg.DailyTokenLimit <= 0:
		return l.defaultLimit, nil
	}
	return cfg.DailyTokenLimit, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("budget: parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("budget: encode %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("budget: write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("budget: replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
