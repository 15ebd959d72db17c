package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"docflow/internal/broker"
	"docflow/internal/obs"
)

const rootTopic = "events"

// DefaultAudience is used when the caller gives none.
const DefaultAudience = "all"

// Envelope is the JSON body published for every domain event.
type Envelope struct {
	Event     string `json:"event"`
	Payload   any    `json:"payload"`
	Audience  string `json:"audience"`
	Timestamp int64  `json:"timestamp"`
	ActorID   string `json:"actor_id,omitempty"`
}

// Emitter is the publish side used by workflow services.
type Emitter interface {
	Emit(ctx context.Context, event string, payload any, audience, actorID string) bool
}

// Publisher emits best-effort notifications. It never returns an error.
type Publisher struct {
	Broker  broker.Broker
	Enabled bool
	Logger  *slog.Logger
	Now     func() time.Time
}

// Topics returns the hierarchical channels for an event name:
// "doc_out.published" -> events, events.doc_out, events.doc_out.published.
func Topics(event string) []string {
	topics := []string{rootTopic}
	prefix := rootTopic
	for _, part := range strings.Split(event, ".") {
		if part == "" {
			continue
		}
		prefix += "." + part
		topics = append(topics, prefix)
	}
	return topics
}

// Emit publishes the envelope on every topic of event. It reports whether
// at least one publish succeeded; a disabled publisher or nil broker yields false.
func (p Publisher) Emit(ctx context.Context, event string, payload any, audience, actorID string) bool {
	logger := obs.OrDefault(p.Logger)
	if !p.Enabled || p.Broker == nil {
		obs.EventsPublished.WithLabelValues("disabled").Inc()
		return false
	}
	if audience == "" {
		audience = DefaultAudience
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	body, err := json.Marshal(Envelope{
		Event:     event,
		Payload:   payload,
		Audience:  audience,
		Timestamp: now().UnixMilli(),
		ActorID:   actorID,
	})
	if err != nil {
		logger.WarnContext(ctx, "event encode failed", "module", "events", "event", event, "error", err)
		obs.EventsPublished.WithLabelValues("failed").Inc()
		return false
	}
	delivered := false
	for _, topic := range Topics(event) {
		if err := p.Broker.Publish(ctx, topic, body); err != nil {
			logger.WarnContext(ctx, "event publish failed", "module", "events", "event", event, "topic", topic, "error", err)
			continue
		}
		delivered = true
	}
	if delivered {
		obs.EventsPublished.WithLabelValues("published").Inc()
	} else {
		obs.EventsPublished.WithLabelValues("failed").Inc()
	}
	return delivered
}
