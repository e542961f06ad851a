package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/issues", "GET", 200, 10*time.Millisecond)
	m.RecordRequest("/issues", "GET", 200, 30*time.Millisecond)
	m.RecordError("/issues", "GET", "NOT_FOUND")
	m.RecordNotification("status_update", NotificationSent)
	done := m.StreamOpened()

	snap := m.Snapshot()
	if snap.Requests["/issues|GET|200"] != 2 {
		t.Errorf("requests = %v", snap.Requests)
	}
	if snap.AvgLatencyMs["/issues|GET|200"] != 20 {
		t.Errorf("avg latency = %v", snap.AvgLatencyMs)
	}
	if snap.Errors["/issues|GET|NOT_FOUND"] != 1 {
		t.Errorf("errors = %v", snap.Errors)
	}
	if snap.Notifications["status_update|sent"] != 1 {
		t.Errorf("notifications = %v", snap.Notifications)
	}
	if snap.ActiveStreams != 1 {
		t.Errorf("active streams = %d", snap.ActiveStreams)
	}

	done()
	done()
	if got := m.Snapshot().ActiveStreams; got != 0 {
		t.Errorf("active streams after close = %d", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordError("/", "GET", "X")
	m.RecordNotification("comment", NotificationFailed)
	m.StreamOpened()()
	if snap := m.Snapshot(); snap.Requests != nil {
		t.Errorf("expected empty snapshot, got %+v", snap)
	}
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	metrics := NewMetrics()

	app := fiber.New()
	app.Use(RequestLogger(zap.New(core), metrics))
	app.Get("/issues/:id", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).SendString("missing")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/issues/abc", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	entries := logs.FilterMessage("request").All()
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}
	if entries[0].Level != zap.WarnLevel {
		t.Errorf("level = %s, want warn", entries[0].Level)
	}
	if metrics.Snapshot().Requests["/issues/:id|GET|404"] != 1 {
		t.Errorf("requests = %v", metrics.Snapshot().Requests)
	}
}
