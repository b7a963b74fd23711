// Package bus provides the pub/sub fabric that carries run progress and
// result events from the orchestrator to the HTTP/WebSocket layer. The
// in-memory bus is the default; the Redis bus serves multi-process
// deployments where a dashboard process tails another process's runs.
package bus

import (
	"context"
	"sync"

	"github.com/lukemartin/snipebot/internal/domain"
)

// Memory is a process-local SignalBus. Subscribers that fall behind lose
// messages rather than block publishers.
type Memory struct {
	mu   sync.RWMutex
	subs map[string][]*memorySub
}

type memorySub struct {
	ch   chan []byte
	once sync.Once
}

func (s *memorySub) close() {
	s.once.Do(func() { close(s.ch) })
}

// NewMemory creates an in-memory bus.
func NewMemory() *Memory {
	return &Memory{subs: make(map[string][]*memorySub)}
}

// Publish delivers payload to every current subscriber of channel. Slow
// subscribers are skipped, never waited on.
func (m *Memory) Publish(_ context.Context, channel string, payload []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sub := range m.subs[channel] {
		select {
		case sub.ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel of payloads published to channel. The channel
// closes when ctx is cancelled.
func (m *Memory) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	sub := &memorySub{ch: make(chan []byte, 128)}

	m.mu.Lock()
	m.subs[channel] = append(m.subs[channel], sub)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		subs := m.subs[channel]
		for i, s := range subs {
			if s == sub {
				m.subs[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		m.mu.Unlock()
		sub.close()
	}()

	return sub.ch, nil
}

var _ domain.SignalBus = (*Memory)(nil)
