package run

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lukemartin/snipebot/internal/domain"
	"github.com/lukemartin/snipebot/internal/queue"
)

// StreamEvent is one named event on a streaming run: connected, progress,
// result, error, or done. Exactly one payload field is set per type.
type StreamEvent struct {
	Type     string                `json:"type"`
	Progress *domain.ProgressEvent `json:"progress,omitempty"`
	Result   *domain.RunResult     `json:"result,omitempty"`
	Error    string                `json:"error,omitempty"`
}

const (
	EventConnected = "connected"
	EventProgress  = "progress"
	EventResult    = "result"
	EventError     = "error"
	EventDone      = "done"
)

// Service fronts the orchestrator with the concurrency queue and broadcasts
// run lifecycle events on the signal bus.
type Service struct {
	orch   *Orchestrator
	queue  *queue.Queue
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewService wires the run service.
func NewService(orch *Orchestrator, q *queue.Queue, bus domain.SignalBus, logger *slog.Logger) *Service {
	return &Service{
		orch:   orch,
		queue:  q,
		bus:    bus,
		logger: logger.With(slog.String("component", "run.service")),
	}
}

// Run executes a pipeline run through the queue and blocks until the terminal
// result. A conflicting active run returns ErrRunConflict; a queued run that
// gets displaced returns ErrQueueEvicted.
func (s *Service) Run(ctx context.Context, agentType domain.AgentType, ov Overrides) (domain.RunResult, error) {
	results := make(chan domain.RunResult, 1)

	ticket, err := s.queue.Enqueue(ctx, agentType, func(runCtx context.Context) {
		results <- s.execute(runCtx, agentType, ov, nil)
	})
	if err != nil {
		return domain.RunResult{}, err
	}
	if ticket.Position > 0 {
		s.broadcastProgress(ctx, queuedEvent(agentType, ticket.Position))
	}

	if err := <-ticket.Done; err != nil {
		return domain.RunResult{}, err
	}
	return <-results, nil
}

// Stream executes a pipeline run through the queue and returns a channel of
// lifecycle events. The channel always ends with a done event and is then
// closed, whatever happened in between.
func (s *Service) Stream(ctx context.Context, agentType domain.AgentType, ov Overrides) (<-chan StreamEvent, error) {
	events := make(chan StreamEvent, 64)
	emit := func(ev StreamEvent) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	// Queue the connected event before the run can start so it is always
	// first on the channel.
	events <- StreamEvent{Type: EventConnected}

	ticket, err := s.queue.Enqueue(ctx, agentType, func(runCtx context.Context) {
		res := s.execute(runCtx, agentType, ov, func(pe domain.ProgressEvent) {
			emit(StreamEvent{Type: EventProgress, Progress: &pe})
		})
		if res.Error != "" {
			emit(StreamEvent{Type: EventError, Error: res.Error})
		}
		emit(StreamEvent{Type: EventResult, Result: &res})
	})
	if err != nil {
		return nil, err
	}

	go func() {
		defer close(events)
		if ticket.Position > 0 {
			pe := queuedEvent(agentType, ticket.Position)
			s.broadcastProgress(ctx, pe)
			emit(StreamEvent{Type: EventProgress, Progress: &pe})
		}
		if err := <-ticket.Done; err != nil {
			emit(StreamEvent{Type: EventError, Error: err.Error()})
		}
		emit(StreamEvent{Type: EventDone})
	}()

	return events, nil
}

// execute runs the orchestrator, mirroring every progress event and the final
// result onto the signal bus. extraEmit additionally receives progress events
// for the streaming path; it may be nil.
func (s *Service) execute(ctx context.Context, agentType domain.AgentType, ov Overrides, extraEmit Emitter) domain.RunResult {
	emit := func(pe domain.ProgressEvent) {
		s.broadcastProgress(ctx, pe)
		if extraEmit != nil {
			extraEmit(pe)
		}
	}

	res := s.orch.Execute(ctx, agentType, ov, emit)

	if payload, err := json.Marshal(res); err == nil {
		// The run context may already be expired; broadcasting the terminal
		// result must still go out.
		if err := s.bus.Publish(context.WithoutCancel(ctx), domain.ChannelRunResult, payload); err != nil {
			s.logger.Warn("result broadcast failed", slog.String("error", err.Error()))
		}
	}
	return res
}

func (s *Service) broadcastProgress(ctx context.Context, pe domain.ProgressEvent) {
	payload, err := json.Marshal(pe)
	if err != nil {
		return
	}
	if err := s.bus.Publish(context.WithoutCancel(ctx), domain.ChannelRunProgress, payload); err != nil {
		s.logger.Warn("progress broadcast failed", slog.String("error", err.Error()))
	}
}

func queuedEvent(agentType domain.AgentType, position int) domain.ProgressEvent {
	return domain.ProgressEvent{
		AgentType: agentType,
		Kind:      domain.ProgressQueued,
		Message:   fmt.Sprintf("waiting for capacity at position %d", position),
	}
}
