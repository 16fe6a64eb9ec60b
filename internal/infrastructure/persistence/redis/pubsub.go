package redis

import (
	"context"

	"github.com/pittstate/pittstate-connect/internal/infrastructure/messaging"
)

// PubSub adapts Cache to messaging.RedisClient.
type PubSub struct {
	cache *Cache
}

// NewPubSub creates the adapter.
func NewPubSub(cache *Cache) *PubSub {
	return &PubSub{cache: cache}
}

var _ messaging.RedisClient = (*PubSub)(nil)

// Publish sends a raw message to the channel.
func (p *PubSub) Publish(ctx context.Context, channel string, message string) error {
	return p.cache.client.Publish(ctx, PubSubChannel(channel), message).Err()
}

// Subscribe listens on the channel until ctx is cancelled.
func (p *PubSub) Subscribe(ctx context.Context, channel string) (<-chan messaging.RedisMessage, error) {
	sub := p.cache.client.Subscribe(ctx, PubSubChannel(channel))
	// Wait for the subscription confirmation so early publishes are not lost.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan messaging.RedisMessage)
	go func() {
		defer close(out)
		defer sub.Close()

		in := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- messaging.RedisMessage{Channel: msg.Channel, Payload: msg.Payload}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
