package broker

import (
	"context"
	"sync"
)

// Hub fans messages out to in-process subscribers.
// Slow subscribers drop messages instead of blocking publishers.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]subscription
	next int
}

type subscription struct {
	topics map[string]struct{}
	ch     chan Message
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]subscription)}
}

// Subscribe registers for topics. The channel closes when ctx ends.
func (h *Hub) Subscribe(ctx context.Context, topics ...string) <-chan Message {
	ch := make(chan Message, 64)
	set := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		set[t] = struct{}{}
	}

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = subscription{topics: set, ch: ch}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, id)
		close(ch)
		h.mu.Unlock()
	}()

	return ch
}

func (h *Hub) Publish(_ context.Context, topic string, msg []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		if _, ok := s.topics[topic]; !ok {
			continue
		}
		select {
		case s.ch <- Message{Topic: topic, Payload: msg}:
		default:
		}
	}
	return nil
}
