package docstore

import (
	"context"
	"sync"
	"sync/atomic"
)

// watch serialises callback delivery for one subscription. Writers push
// closures without blocking; a single goroutine runs them in order.
type watch struct {
	mu      sync.Mutex
	pending []func()
	signal  chan struct{}
	done    chan struct{}
	closed  atomic.Bool
	once    sync.Once
}

// newWatch starts the delivery goroutine. When ctx ends the watch stops
// and onStop runs on that goroutine.
func newWatch(ctx context.Context, onStop func()) *watch {
	if ctx == nil {
		ctx = context.Background()
	}
	w := &watch{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go w.run(ctx, onStop)
	return w
}

func (w *watch) push(fn func()) {
	if w.closed.Load() {
		return
	}
	w.mu.Lock()
	w.pending = append(w.pending, fn)
	w.mu.Unlock()
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

func (w *watch) run(ctx context.Context, onStop func()) {
	for {
		select {
		case <-w.done:
			return
		case <-ctx.Done():
			w.stop()
			if onStop != nil {
				onStop()
			}
			return
		case <-w.signal:
		}
		w.mu.Lock()
		batch := w.pending
		w.pending = nil
		w.mu.Unlock()
		for _, fn := range batch {
			if w.closed.Load() {
				return
			}
			fn()
		}
	}
}

func (w *watch) stop() {
	w.once.Do(func() {
		w.closed.Store(true)
		close(w.done)
	})
}
