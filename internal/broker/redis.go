package broker

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis publishes over Redis pub/sub channels.
type Redis struct {
	Client *redis.Client
}

// NewRedis parses a redis:// URL.
func NewRedis(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Redis{Client: redis.NewClient(opts)}, nil
}

func (r *Redis) Publish(ctx context.Context, topic string, msg []byte) error {
	return r.Client.Publish(ctx, topic, msg).Err()
}

// Subscribe streams messages from channels until ctx ends.
func (r *Redis) Subscribe(ctx context.Context, channels ...string) <-chan Message {
	ps := r.Client.Subscribe(ctx, channels...)
	out := make(chan Message, 64)
	go func() {
		defer close(out)
		defer ps.Close()
		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- Message{Topic: m.Channel, Payload: []byte(m.Payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (r *Redis) Close() error {
	return r.Client.Close()
}
