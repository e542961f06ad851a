package handlers

import (
	"bufio"
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/spec-kit/issue-service/internal/observability"
)

const keepAliveInterval = 15 * time.Second

// snapshotSource starts a subscription that calls emit with each new
// snapshot and returns its stop func.
type snapshotSource[T any] func(ctx context.Context, emit func(T)) func()

// streamSnapshots serves a subscription as server-sent events. A slow
// client only ever sees the newest snapshot. When last reports true for a
// written snapshot the stream ends.
func streamSnapshots[T any](c *fiber.Ctx, metrics *observability.Metrics, event string, source snapshotSource[T], last func(T) bool) error {
	encode := c.App().Config().JSONEncoder
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx, cancel := context.WithCancel(context.Background())
	latest := make(chan T, 1)
	stop := source(ctx, func(v T) { offerLatest(latest, v) })
	closed := metrics.StreamOpened()

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer closed()
		defer stop()
		defer cancel()

		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case v := <-latest:
				data, err := encode(v)
				if err != nil {
					return
				}
				if err := writeEvent(w, event, data); err != nil {
					return
				}
				if last != nil && last(v) {
					return
				}
			case <-ticker.C:
				if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))
	return nil
}

// offerLatest replaces any undelivered value with v.
func offerLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func writeEvent(w *bufio.Writer, event string, data []byte) error {
	if _, err := w.WriteString("event: " + event + "\ndata: "); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := w.WriteString("\n\n"); err != nil {
		return err
	}
	return w.Flush()
}
