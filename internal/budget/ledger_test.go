package budget

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/lukemartin/snipebot/internal/domain"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := NewLedger(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	return l
}

func TestCheckBudgetBoundary(t *testing.T) {
	l := newTestLedger(t)
	if err := l.SetDailyLimit(1000); err != nil {
		t.Fatalf("SetDailyLimit: %v", err)
	}

	st, err := l.CheckBudget()
	if err != nil {
		t.Fatalf("CheckBudget: %v", err)
	}
	if !st.Allowed || st.Remaining != 1000 {
		t.Fatalf("fresh ledger: %+v", st)
	}

	if err := l.RecordUsage(domain.AgentResale, domain.TokenUsage{InputTokens: 600, OutputTokens: 399}); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}
	st, _ = l.CheckBudget()
	if !st.Allowed || st.Used != 999 || st.Remaining != 1 {
		t.Fatalf("one token under the ceiling: %+v", st)
	}

	// Allowed flips to false exactly at used >= limit.
	if err := l.RecordUsage(domain.AgentResale, domain.TokenUsage{OutputTokens: 1}); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}
	st, _ = l.CheckBudget()
	if st.Allowed || st.Used != 1000 || st.Remaining != 0 {
		t.Fatalf("at the ceiling: %+v", st)
	}
}

func TestUsagePersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	l1, err := NewLedger(dir, logger)
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	if err := l1.RecordUsage(domain.AgentDeals, domain.TokenUsage{InputTokens: 100, OutputTokens: 50, ToolCalls: 2}); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}

	l2, err := NewLedger(dir, logger)
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	usage, runs, err := l2.Today()
	if err != nil {
		t.Fatalf("Today: %v", err)
	}
	if usage.InputTokens != 100 || usage.OutputTokens != 50 || usage.ToolCalls != 2 {
		t.Fatalf("unexpected usage after reload: %+v", usage)
	}
	if runs != 1 {
		t.Fatalf("expected 1 run record, got %d", runs)
	}
}

func TestUTCDayRollover(t *testing.T) {
	l := newTestLedger(t)

	day1 := time.Date(2026, 8, 25, 23, 50, 0, 0, time.UTC)
	l.now = func() time.Time { return day1 }
	if err := l.RecordUsage(domain.AgentBooks, domain.TokenUsage{InputTokens: 400}); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}

	// Ten minutes later it is a new UTC day and the ledger starts from zero.
	l.now = func() time.Time { return day1.Add(10 * time.Minute) }
	usage, runs, err := l.Today()
	if err != nil {
		t.Fatalf("Today: %v", err)
	}
	if usage.InputTokens != 0 || runs != 0 {
		t.Fatalf("expected reset ledger, got usage=%+v runs=%d", usage, runs)
	}

	if err := l.RecordUsage(domain.AgentBooks, domain.TokenUsage{InputTokens: 10}); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}
	usage, _, _ = l.Today()
	if usage.InputTokens != 10 {
		t.Fatalf("expected only the new day's spend, got %+v", usage)
	}
}

func TestDefaultLimitWithoutConfig(t *testing.T) {
	l := newTestLedger(t)
	st, err := l.CheckBudget()
	if err != nil {
		t.Fatalf("CheckBudget: %v", err)
	}
	if st.Limit != DefaultDailyTokenLimit {
		t.Fatalf("expected default limit %d, got %d", DefaultDailyTokenLimit, st.Limit)
	}
}
