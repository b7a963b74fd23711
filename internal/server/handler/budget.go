package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/lukemartin/snipebot/internal/budget"
)

// BudgetHandler exposes the daily token budget for dashboards.
type BudgetHandler struct {
	ledger *budget.Ledger
	logger *slog.Logger
}

// NewBudgetHandler creates a BudgetHandler.
func NewBudgetHandler(ledger *budget.Ledger, logger *slog.Logger) *BudgetHandler {
	return &BudgetHandler{
		ledger: ledger,
		logger: logger.With(slog.String("handler", "budget")),
	}
}

// GetBudget reports today's spend against the daily ceiling.
// GET /api/budget
func (h *BudgetHandler) GetBudget(w http.ResponseWriter, r *http.Request) {
	st, err := h.ledger.CheckBudget()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	usage, runs, err := h.ledger.Today()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"allowed":      st.Allowed,
		"used":         st.Used,
		"remaining":    st.Remaining,
		"limit":        st.Limit,
		"inputTokens":  usage.InputTokens,
		"outputTokens": usage.OutputTokens,
		"toolCalls":    usage.ToolCalls,
		"runsToday":    runs,
	})
}

// updateBudgetRequest is the body for budget updates.
type updateBudgetRequest struct {
	DailyTokenLimit int64 `json:"dailyTokenLimit"`
}

// UpdateBudget sets a new daily token ceiling.
// PUT /api/budget
func (h *BudgetHandler) UpdateBudget(w http.ResponseWriter, r *http.Request) {
	var req updateBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.ledger.SetDailyLimit(req.DailyTokenLimit); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.Info("daily budget updated", slog.Int64("limit", req.DailyTokenLimit))
	writeJSON(w, http.StatusOK, map[string]any{"dailyTokenLimit": req.DailyTokenLimit})
}
