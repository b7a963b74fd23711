// Package queue serializes pipeline executions: a hard cap on simultaneous
// runs, FIFO ordering for the overflow, and at most one queued or active
// entry per agent type. State is in-memory only; a process restart loses the
// queue, which is acceptable for a rarely-restarted service.
package queue

import (
	"context"
	"log/slog"
	"sync"

	"github.com/lukemartin/snipebot/internal/domain"
)

// DefaultMaxConcurrent is the default cap on simultaneously executing runs.
const DefaultMaxConcurrent = 2

// RunFunc is the work executed for one queued run.
type RunFunc func(ctx context.Context)

// Ticket is the caller's handle on an enqueued run. Done yields nil after the
// run function returns, or ErrQueueEvicted if a newer request for the same
// agent type displaced this one before it started.
type Ticket struct {
	// Position at enqueue time: 0 means started immediately.
	Position int
	Done     <-chan error
}

type entry struct {
	agentType domain.AgentType
	ctx       context.Context
	run       RunFunc
	done      chan error
}

// Queue is the process-wide run scheduler.
type Queue struct {
	mu            sync.Mutex
	maxConcurrent int
	active        map[domain.AgentType]*entry
	waiting       []*entry
	logger        *slog.Logger
}

// New creates a Queue. maxConcurrent <= 0 falls back to the default.
func New(maxConcurrent int, logger *slog.Logger) *Queue {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Queue{
		maxConcurrent: maxConcurrent,
		active:        make(map[domain.AgentType]*entry),
		logger:        logger.With(slog.String("component", "queue")),
	}
}

// Enqueue admits a run for the given agent type. It returns immediately: the
// ticket's position is 0 when the run started now, >= 1 when it is waiting
// for capacity. A type that is already actively running is rejected with
// ErrRunConflict; a type that is still waiting is displaced, its ticket
// resolving to ErrQueueEvicted, and the new request takes its turn.
func (q *Queue) Enqueue(ctx context.Context, agentType domain.AgentType, run RunFunc) (*Ticket, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, running := q.active[agentType]; running {
		return nil, domain.ErrRunConflict
	}
	q.evictWaitingLocked(agentType)

	e := &entry{
		agentType: agentType,
		ctx:       ctx,
		run:       run,
		done:      make(chan error, 1),
	}

	if len(q.active) < q.maxConcurrent {
		q.startLocked(e)
		return &Ticket{Position: 0, Done: e.done}, nil
	}

	q.waiting = append(q.waiting, e)
	position := len(q.waiting)
	q.logger.Info("run queued",
		slog.String("agent_type", string(agentType)), slog.Int("position", position))
	return &Ticket{Position: position, Done: e.done}, nil
}

// Active returns the number of currently executing runs.
func (q *Queue) Active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.active)
}

// Waiting returns the number of runs waiting for capacity.
func (q *Queue) Waiting() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

func (q *Queue) evictWaitingLocked(agentType domain.AgentType) {
	for i, e := range q.waiting {
		if e.agentType != agentType {
			continue
		}
		q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
		e.done <- domain.ErrQueueEvicted
		close(e.done)
		q.logger.Info("stale queued run evicted", slog.String("agent_type", string(agentType)))
		return
	}
}

func (q *Queue) startLocked(e *entry) {
	q.active[e.agentType] = e
	go func() {
		e.run(e.ctx)
		q.finish(e)
	}()
}

func (q *Queue) finish(e *entry) {
	e.done <- nil
	close(e.done)

	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.active, e.agentType)
	if len(q.waiting) > 0 && len(q.active) < q.maxConcurrent {
		next := q.waiting[0]
		q.waiting = q.waiting[1:]
		q.startLocked(next)
	}
}
