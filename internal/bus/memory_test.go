package bus

import (
	"context"
	"testing"
	"time"
)

func TestMemoryPublishSubscribe(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := m.Subscribe(ctx, "runs:progress")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := m.Publish(context.Background(), "runs:progress", []byte("hello")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-ch:
		if string(got) != "hello" {
			t.Fatalf("payload = %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}
}

func TestMemoryChannelIsolation(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	progress, _ := m.Subscribe(ctx, "runs:progress")
	if err := m.Publish(context.Background(), "runs:result", []byte("other")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-progress:
		t.Fatalf("unexpected cross-channel delivery: %q", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemorySubscribeClosesOnCancel(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())

	ch, _ := m.Subscribe(ctx, "runs:progress")
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel, got message")
		}
	case <-time.After(time.Second):
		t.Fatal("channel never closed after cancel")
	}
}
