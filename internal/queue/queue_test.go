package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lukemartin/snipebot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// blockingRun returns a RunFunc that signals when it starts and blocks until
// released.
func blockingRun(started *sync.WaitGroup, release <-chan struct{}) RunFunc {
	return func(ctx context.Context) {
		started.Done()
		<-release
	}
}

func TestConcurrencyCap(t *testing.T) {
	q := New(2, testLogger())
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(2)

	var running atomic.Int32
	run := func(ctx context.Context) {
		running.Add(1)
		defer running.Add(-1)
		started.Done()
		<-release
	}

	t1, err := q.Enqueue(context.Background(), domain.AgentResale, run)
	if err != nil {
		t.Fatalf("enqueue resale: %v", err)
	}
	t2, err := q.Enqueue(context.Background(), domain.AgentDeals, run)
	if err != nil {
		t.Fatalf("enqueue deals: %v", err)
	}
	if t1.Position != 0 || t2.Position != 0 {
		t.Fatalf("expected both to start immediately, positions %d and %d", t1.Position, t2.Position)
	}
	started.Wait()

	t3, err := q.Enqueue(context.Background(), domain.AgentBooks, func(ctx context.Context) {})
	if err != nil {
		t.Fatalf("enqueue books: %v", err)
	}
	if t3.Position != 1 {
		t.Fatalf("expected third run queued at position 1, got %d", t3.Position)
	}
	if got := running.Load(); got != 2 {
		t.Fatalf("expected exactly 2 active runs, got %d", got)
	}

	close(release)
	// The queued run starts once capacity frees up.
	select {
	case err := <-t3.Done:
		if err != nil {
			t.Fatalf("queued run resolved with error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("queued run never advanced")
	}
}

func TestActiveTypeConflict(t *testing.T) {
	q := New(2, testLogger())
	release := make(chan struct{})
	defer close(release)
	var started sync.WaitGroup
	started.Add(1)

	if _, err := q.Enqueue(context.Background(), domain.AgentResale, blockingRun(&started, release)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	started.Wait()

	_, err := q.Enqueue(context.Background(), domain.AgentResale, func(ctx context.Context) {})
	if !errors.Is(err, domain.ErrRunConflict) {
		t.Fatalf("expected ErrRunConflict, got %v", err)
	}
}

func TestQueuedTypeEviction(t *testing.T) {
	q := New(1, testLogger())
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(1)

	if _, err := q.Enqueue(context.Background(), domain.AgentResale, blockingRun(&started, release)); err != nil {
		t.Fatalf("enqueue active: %v", err)
	}
	started.Wait()

	stale, err := q.Enqueue(context.Background(), domain.AgentBooks, func(ctx context.Context) {})
	if err != nil {
		t.Fatalf("enqueue stale: %v", err)
	}
	fresh, err := q.Enqueue(context.Background(), domain.AgentBooks, func(ctx context.Context) {})
	if err != nil {
		t.Fatalf("enqueue fresh: %v", err)
	}

	select {
	case err := <-stale.Done:
		if !errors.Is(err, domain.ErrQueueEvicted) {
			t.Fatalf("expected ErrQueueEvicted, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("stale ticket never resolved")
	}
	if q.Waiting() != 1 {
		t.Fatalf("expected 1 waiting entry, got %d", q.Waiting())
	}

	close(release)
	select {
	case err := <-fresh.Done:
		if err != nil {
			t.Fatalf("fresh run resolved with error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fresh run never started")
	}
}

func TestFIFOOrder(t *testing.T) {
	q := New(1, testLogger())
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(1)

	if _, err := q.Enqueue(context.Background(), domain.AgentResale, blockingRun(&started, release)); err != nil {
		t.Fatalf("enqueue active: %v", err)
	}
	started.Wait()

	var order []domain.AgentType
	var mu sync.Mutex
	record := func(at domain.AgentType) RunFunc {
		return func(ctx context.Context) {
			mu.Lock()
			order = append(order, at)
			mu.Unlock()
		}
	}

	tb, _ := q.Enqueue(context.Background(), domain.AgentBooks, record(domain.AgentBooks))
	td, _ := q.Enqueue(context.Background(), domain.AgentDeals, record(domain.AgentDeals))
	if tb.Position != 1 || td.Position != 2 {
		t.Fatalf("positions = %d, %d; want 1, 2", tb.Position, td.Position)
	}

	close(release)
	for _, ticket := range []*Ticket{tb, td} {
		select {
		case <-ticket.Done:
		case <-time.After(2 * time.Second):
			t.Fatal("queued run never completed")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != domain.AgentBooks || order[1] != domain.AgentDeals {
		t.Fatalf("unexpected execution order: %v", order)
	}
}
