package broker

import (
	"context"
	"testing"
	"time"
)

func TestHubDeliversOnlySubscribedTopics(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := hub.Subscribe(ctx, "events.doc_out")

	_ = hub.Publish(ctx, "events.case", []byte("skip"))
	_ = hub.Publish(ctx, "events.doc_out", []byte("keep"))

	select {
	case m := <-ch:
		if m.Topic != "events.doc_out" || string(m.Payload) != "keep" {
			t.Fatalf("unexpected message %+v", m)
		}
	case <-time.After(time.Second):
		t.Fatalf("no message delivered")
	}
	select {
	case m := <-ch:
		t.Fatalf("unexpected extra message %+v", m)
	default:
	}
}

func TestHubClosesOnCancel(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	ch := hub.Subscribe(ctx, "events")
	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatalf("channel not closed")
	}
}

func TestRedisRejectsBadURL(t *testing.T) {
	if _, err := NewRedis("://nope"); err == nil {
		t.Fatalf("expected parse error")
	}
}
