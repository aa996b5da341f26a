package eventbus

import (
	"context"
	"testing"
	"time"
)

func TestHubPublishFiltersByUser(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	all := h.Subscribe(ctx, 4)
	alice := h.SubscribeUser(ctx, "alice", 4)

	h.Publish(Event{Type: TypeTaskCompleted, UserID: "bob"})
	h.Publish(Event{Type: TypeTaskCompleted, UserID: "alice"})
	h.Publish(Event{Type: TypeStreaksSwept})

	if got := len(all); got != 3 {
		t.Fatalf("all subscriber got %d events, want 3", got)
	}
	if got := len(alice); got != 2 {
		t.Fatalf("alice subscriber got %d events, want 2", got)
	}
	first := <-alice
	if first.UserID != "alice" || first.Timestamp == 0 {
		t.Fatalf("unexpected event: %+v", first)
	}
}

func TestHubDropsForSlowConsumer(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := h.Subscribe(ctx, 1)
	h.Publish(Event{Type: TypeLevelUp})
	h.Publish(Event{Type: TypeLevelUp})

	if got := len(ch); got != 1 {
		t.Fatalf("buffered=%d, want 1", got)
	}
}

func TestHubUnsubscribeOnCancel(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	ch := h.Subscribe(ctx, 1)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	if n := h.Subscribers(); n != 0 {
		t.Fatalf("subscribers=%d, want 0", n)
	}
}

func TestNilHubPublishIsNoop(t *testing.T) {
	var h *Hub
	h.Publish(Event{Type: TypeLevelUp})
	if h.Subscribers() != 0 {
		t.Fatal("nil hub should report zero subscribers")
	}
}
