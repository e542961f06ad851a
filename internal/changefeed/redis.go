package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisFeed publishes notices over redis pub/sub so watches on every
// instance see writes made by any of them.
type RedisFeed struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisFeed constructs a feed on an existing client. The client is owned
// by the caller.
func NewRedisFeed(client *redis.Client, logger *zap.Logger) *RedisFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisFeed{client: client, logger: logger}
}

func (f *RedisFeed) Publish(ctx context.Context, n Notice) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	_, err = f.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, topic := range n.Topics() {
			pipe.Publish(ctx, topic, payload)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish change notice: %w", err)
	}
	return nil
}

func (f *RedisFeed) Subscribe(ctx context.Context, topics ...string) (*Subscription, error) {
	ps := f.client.Subscribe(ctx, topics...)
	// Receive blocks until redis confirms, so no notice published after
	// Subscribe returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe change feed: %w", err)
	}

	var once sync.Once
	sub := newSubscription(func() {
		once.Do(func() { _ = ps.Close() })
	})
	context.AfterFunc(ctx, sub.Close)

	go func() {
		defer close(sub.c)
		for msg := range ps.Channel() {
			var n Notice
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				if parsed, ok := parseTopic(msg.Channel); ok {
					n = parsed
				} else {
					f.logger.Warn("discarding malformed change notice", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
			}
			sub.offer(n)
		}
	}()
	return sub, nil
}

// Close is a no-op; the redis client belongs to the caller.
func (f *RedisFeed) Close() error {
	return nil
}
