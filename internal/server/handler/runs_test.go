package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lukemartin/snipebot/internal/budget"
	"github.com/lukemartin/snipebot/internal/bus"
	"github.com/lukemartin/snipebot/internal/domain"
	"github.com/lukemartin/snipebot/internal/filter"
	"github.com/lukemartin/snipebot/internal/platform/anthropic"
	"github.com/lukemartin/snipebot/internal/queue"
	"github.com/lukemartin/snipebot/internal/run"
	"github.com/lukemartin/snipebot/internal/snipe"
	"github.com/lukemartin/snipebot/internal/source"
)

// failModel fails on any call; crypto runs must never reach the LLM.
type failModel struct{}

func (failModel) CreateMessage(context.Context, anthropic.MessagesRequest) (anthropic.MessagesResponse, error) {
	return anthropic.MessagesResponse{}, errors.New("model must not be called")
}

type noSearch struct{}

func (noSearch) Search(context.Context, string, int) ([]filter.SearchResult, error) {
	return nil, nil
}

// quoteFetcher emits a fixed pair of exchange quotes with a 2% gap.
type quoteFetcher struct{}

func (quoteFetcher) Name() string { return "exchanges" }

func (quoteFetcher) Fetch(context.Context) source.Result {
	at := time.Now()
	return source.Result{
		Quotes: []domain.ExchangeQuote{
			{Exchange: "coinbase", Pair: "BTC/USD", Price: decimal.NewFromInt(50000), At: at},
			{Exchange: "kraken", Pair: "BTC/USD", Price: decimal.NewFromInt(51000), At: at},
		},
		Diagnostics: []domain.SourceDiagnostic{
			{Source: "exchanges", Status: domain.SourceSuccess, ItemCount: 2},
		},
	}
}

func newTestService(t *testing.T) *run.Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ledger, err := budget.NewLedger(t.TempDir(), logger)
	if err != nil {
		t.Fatal(err)
	}
	engine := snipe.NewEngine(failModel{}, nil, snipe.Config{Model: "test-model"}, logger)
	fetchers := func(run.TypeConfig) []source.Fetcher {
		return []source.Fetcher{quoteFetcher{}}
	}
	orch := run.NewOrchestrator(fetchers, noSearch{}, engine, ledger, nil, logger)
	return run.NewService(orch, queue.New(2, logger), bus.NewMemory(), logger)
}

func newRunHandler(t *testing.T) *RunHandler {
	t.Helper()
	return NewRunHandler(newTestService(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestTriggerRunReturnsResult(t *testing.T) {
	h := newRunHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/runs",
		strings.NewReader(`{"agentType":"crypto"}`))
	rec := httptest.NewRecorder()
	h.TriggerRun(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var res domain.RunResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !res.Success {
		t.Errorf("Success = false, error %q", res.Error)
	}
	if len(res.Opportunities) != 1 {
		t.Fatalf("opportunities = %d, want 1", len(res.Opportunities))
	}
	if got := res.Usage.Total(); got != 0 {
		t.Errorf("crypto run consumed %d tokens", got)
	}
}

func TestTriggerRunRejectsUnknownAgentType(t *testing.T) {
	h := newRunHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/runs",
		strings.NewReader(`{"agentType":"stonks"}`))
	rec := httptest.NewRecorder()
	h.TriggerRun(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestTriggerRunRejectsMalformedBody(t *testing.T) {
	h := newRunHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	h.TriggerRun(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestStreamRunEmitsConnectedThroughDone(t *testing.T) {
	h := newRunHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/runs/stream",
		strings.NewReader(`{"agentType":"crypto"}`))
	rec := httptest.NewRecorder()
	h.StreamRun(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	body := rec.Body.String()
	var names []string
	for _, line := range strings.Split(body, "\n") {
		if after, ok := strings.CutPrefix(line, "event: "); ok {
			names = append(names, after)
		}
	}
	if len(names) < 3 {
		t.Fatalf("too few events: %v\n%s", names, body)
	}
	if names[0] != run.EventConnected {
		t.Errorf("first event = %q, want connected", names[0])
	}
	if names[len(names)-1] != run.EventDone {
		t.Errorf("last event = %q, want done", names[len(names)-1])
	}
	var sawResult bool
	for _, n := range names {
		if n == run.EventResult {
			sawResult = true
		}
		if n == run.EventError {
			t.Errorf("unexpected error event in %v", names)
		}
	}
	if !sawResult {
		t.Errorf("no result event in %v", names)
	}
}

func TestBudgetReportAndUpdate(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger, err := budget.NewLedger(t.TempDir(), logger)
	if err != nil {
		t.Fatal(err)
	}
	h := NewBudgetHandler(ledger, logger)

	rec := httptest.NewRecorder()
	h.GetBudget(rec, httptest.NewRequest(http.MethodGet, "/api/budget", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rec.Code)
	}
	var report map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report["allowed"] != true {
		t.Errorf("allowed = %v, want true", report["allowed"])
	}
	if got := report["limit"].(float64); int64(got) != budget.DefaultDailyTokenLimit {
		t.Errorf("limit = %v, want default", got)
	}

	rec = httptest.NewRecorder()
	h.UpdateBudget(rec, httptest.NewRequest(http.MethodPut, "/api/budget",
		strings.NewReader(`{"dailyTokenLimit":1234}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.GetBudget(rec, httptest.NewRequest(http.MethodGet, "/api/budget", nil))
	report = map[string]any{}
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if got := report["limit"].(float64); got != 1234 {
		t.Errorf("limit after update = %v, want 1234", got)
	}
}

func TestUpdateBudgetRejectsNonPositiveLimit(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger, err := budget.NewLedger(t.TempDir(), logger)
	if err != nil {
		t.Fatal(err)
	}
	h := NewBudgetHandler(ledger, logger)

	rec := httptest.NewRecorder()
	h.UpdateBudget(rec, httptest.NewRequest(http.MethodPut, "/api/budget",
		strings.NewReader(`{"dailyTokenLimit":0}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
