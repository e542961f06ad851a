// Package changefeed carries "document changed" notices between writers and
// live watches, in process or across instances through redis pub/sub.
package changefeed

import (
	"context"
	"strings"
)

// Notice reports that a document was written or deleted.
type Notice struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

// Feed publishes notices and opens subscriptions on topics.
type Feed interface {
	Publish(ctx context.Context, n Notice) error
	Subscribe(ctx context.Context, topics ...string) (*Subscription, error)
	Close() error
}

const topicPrefix = "docs"

// CollectionTopic receives every notice for a collection.
func CollectionTopic(collection string) string {
	return topicPrefix + ":" + collection
}

// DocumentTopic receives notices for a single document.
func DocumentTopic(collection, id string) string {
	return topicPrefix + ":" + collection + ":" + id
}

// Topics lists the topics a notice is published on.
func (n Notice) Topics() []string {
	return []string{CollectionTopic(n.Collection), DocumentTopic(n.Collection, n.ID)}
}

func parseTopic(topic string) (Notice, bool) {
	parts := strings.SplitN(topic, ":", 3)
	if len(parts) != 3 || parts[0] != topicPrefix {
		return Notice{}, false
	}
	return Notice{Collection: parts[1], ID: parts[2]}, true
}

// Subscription delivers notices. Notices coalesce: a slow reader sees at
// least one notice after the latest change, not one per change.
type Subscription struct {
	c      chan Notice
	cancel func()
}

func newSubscription(cancel func()) *Subscription {
	return &Subscription{c: make(chan Notice, 1), cancel: cancel}
}

// C is closed when the subscription ends.
func (s *Subscription) C() <-chan Notice {
	return s.c
}

// Close ends the subscription.
func (s *Subscription) Close() {
	s.cancel()
}

func (s *Subscription) offer(n Notice) {
	select {
	case s.c <- n:
	default:
	}
}
