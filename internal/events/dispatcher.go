package events

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrQueueFull is returned by a queued dispatcher that cannot accept more
// events.
var ErrQueueFull = errors.New("events: queue full")

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher interface allows event publication/subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

type registry struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
	logger    *zap.Logger
}

func (r *registry) Subscribe(eventType EventType, handler EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[eventType] = append(r.listeners[eventType], handler)
}

// deliver runs every handler; a failing handler is logged and does not
// stop the others.
func (r *registry) deliver(ctx context.Context, event Event) {
	r.mu.RLock()
	handlers := append([]EventHandler{}, r.listeners[event.Type]...)
	r.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			r.logger.Warn("event handler failed",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)),
				zap.String("issue_id", event.IssueID),
				zap.Error(err),
			)
		}
	}
}

// inMemoryDispatcher is a simple synchronous dispatcher.
type inMemoryDispatcher struct {
	registry
}

// NewInMemoryDispatcher creates a dispatcher that runs handlers on the
// publishing goroutine.
func NewInMemoryDispatcher(logger *zap.Logger) Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &inMemoryDispatcher{registry{listeners: make(map[EventType][]EventHandler), logger: logger}}
}

// Publish synchronously invokes handlers for the given event.
func (d *inMemoryDispatcher) Publish(ctx context.Context, event Event) error {
	d.deliver(ctx, event)
	return nil
}

// QueuedDispatcher buffers events for background workers started with Run.
// Publish never blocks the caller.
type QueuedDispatcher struct {
	registry
	queue chan Event
	wg    sync.WaitGroup
}

// NewQueuedDispatcher creates a dispatcher with a bounded queue.
func NewQueuedDispatcher(size int, logger *zap.Logger) *QueuedDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if size <= 0 {
		size = 256
	}
	return &QueuedDispatcher{
		registry: registry{listeners: make(map[EventType][]EventHandler), logger: logger},
		queue:    make(chan Event, size),
	}
}

// Publish enqueues the event. The request context is not carried over:
// handlers outlive the request that caused them.
func (d *QueuedDispatcher) Publish(_ context.Context, event Event) error {
	select {
	case d.queue <- event:
		return nil
	default:
		d.logger.Warn("event queue full; dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("issue_id", event.IssueID),
		)
		return ErrQueueFull
	}
}

// Run starts n workers that deliver events until ctx ends, then drains
// what is already queued.
func (d *QueuedDispatcher) Run(ctx context.Context, n int) {
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for {
				select {
				case event := <-d.queue:
					d.deliver(context.WithoutCancel(ctx), event)
				case <-ctx.Done():
					d.drain(context.WithoutCancel(ctx))
					return
				}
			}
		}()
	}
}

func (d *QueuedDispatcher) drain(ctx context.Context) {
	for {
		select {
		case event := <-d.queue:
			d.deliver(ctx, event)
		default:
			return
		}
	}
}

// Wait blocks until every worker has returned.
func (d *QueuedDispatcher) Wait() {
	d.wg.Wait()
}
