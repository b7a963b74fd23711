package domain

import "context"

// SignalBus is the process-wide pub/sub fabric for run lifecycle events. The
// default implementation is in-memory; a Redis-backed implementation lets
// multiple replicas share one dashboard feed.
type SignalBus interface {
	// Publish sends a raw payload to a channel. Publishing to a channel with
	// no subscribers is not an error.
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe returns a read-only channel of payloads. The channel is
	// closed when ctx is cancelled.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
