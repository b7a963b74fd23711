package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/lukemartin/snipebot/internal/domain"
	"github.com/lukemartin/snipebot/internal/run"
)

// RunHandler serves the pipeline trigger endpoints: a synchronous variant
// that blocks until the terminal result and a streaming variant that emits
// server-sent events as the run advances.
type RunHandler struct {
	service *run.Service
	logger  *slog.Logger
}

// NewRunHandler creates a RunHandler.
func NewRunHandler(service *run.Service, logger *slog.Logger) *RunHandler {
	return &RunHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "runs")),
	}
}

// triggerRequest is the body accepted by both trigger endpoints.
type triggerRequest struct {
	AgentType string        `json:"agentType"`
	Config    run.Overrides `json:"config"`
}

func (h *RunHandler) parseTrigger(r *http.Request) (domain.AgentType, run.Overrides, error) {
	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", run.Overrides{}, fmt.Errorf("invalid request body: %w", err)
	}
	agentType, err := domain.ParseAgentType(req.AgentType)
	if err != nil {
		return "", run.Overrides{}, err
	}
	return agentType, req.Config, nil
}

// TriggerRun executes a pipeline run and returns the terminal result.
// POST /api/runs
func (h *RunHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	agentType, overrides, err := h.parseTrigger(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.service.Run(r.Context(), agentType, overrides)
	switch {
	case errors.Is(err, domain.ErrRunConflict):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, domain.ErrQueueEvicted):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// StreamRun executes a pipeline run and streams its lifecycle as server-sent
// events: connected, progress, result, error, done. The stream always ends
// with a done event.
// POST /api/runs/stream
func (h *RunHandler) StreamRun(w http.ResponseWriter, r *http.Request) {
	agentType, overrides, err := h.parseTrigger(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, err := h.service.Stream(r.Context(), agentType, overrides)
	if errors.Is(err, domain.ErrRunConflict) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		if err := writeSSE(w, ev); err != nil {
			// Client went away; the run continues and its result still lands
			// on the signal bus.
			h.logger.Debug("stream client disconnected", slog.String("error", err.Error()))
			return
		}
		flusher.Flush()
	}
}

// writeSSE writes one named server-sent event.
func writeSSE(w http.ResponseWriter, ev run.StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}
