package changefeed

import (
	"context"
	"sync"
)

// LocalFeed fans notices out inside one process.
type LocalFeed struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	closed bool
}

// NewLocalFeed constructs an in-process feed.
func NewLocalFeed() *LocalFeed {
	return &LocalFeed{subs: make(map[string]map[*Subscription]struct{})}
}

func (f *LocalFeed) Publish(_ context.Context, n Notice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, topic := range n.Topics() {
		for sub := range f.subs[topic] {
			sub.offer(n)
		}
	}
	return nil
}

func (f *LocalFeed) Subscribe(ctx context.Context, topics ...string) (*Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}

	var once sync.Once
	var sub *Subscription
	sub = newSubscription(func() {
		once.Do(func() {
			f.mu.Lock()
			f.removeLocked(sub, topics)
			f.mu.Unlock()
			close(sub.c)
		})
	})
	for _, topic := range topics {
		if f.subs[topic] == nil {
			f.subs[topic] = make(map[*Subscription]struct{})
		}
		f.subs[topic][sub] = struct{}{}
	}
	context.AfterFunc(ctx, sub.Close)
	return sub, nil
}

func (f *LocalFeed) removeLocked(sub *Subscription, topics []string) {
	for _, topic := range topics {
		delete(f.subs[topic], sub)
		if len(f.subs[topic]) == 0 {
			delete(f.subs, topic)
		}
	}
}

// Close rejects new subscriptions. Open ones stay until closed by their owner.
func (f *LocalFeed) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}
