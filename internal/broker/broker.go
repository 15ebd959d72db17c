package broker

import "context"

// Broker delivers a message to every subscriber of topic.
type Broker interface {
	Publish(ctx context.Context, topic string, msg []byte) error
}

// Message is a delivered payload.
type Message struct {
	Topic   string
	Payload []byte
}
