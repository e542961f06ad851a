package http

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/issue-service/internal/observability"
	apperrors "github.com/spec-kit/issue-service/pkg/util/errorutil"
)

type errorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newMiddlewareApp(t *testing.T, timeout time.Duration) (*fiber.App, *observer.ObservedLogs, *observability.Metrics) {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	RegisterMiddlewares(app, zap.New(core), metrics, timeout)
	return app, logs, metrics
}

func readError(t *testing.T, app *fiber.App, path string) (int, errorBody) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", path, nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	var body errorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode, body
}

func TestErrorEnvelope_DomainError(t *testing.T) {
	app, logs, metrics := newMiddlewareApp(t, 0)
	app.Get("/issues/:id", func(c *fiber.Ctx) error {
		return apperrors.NewNotFound("issue", map[string]any{"id": c.Params("id")})
	})

	status, body := readError(t, app, "/issues/i-9")
	if status != fiber.StatusNotFound {
		t.Fatalf("status = %d", status)
	}
	if body.Error.Code == "" || body.Error.Details["id"] != "i-9" {
		t.Errorf("body = %+v", body)
	}
	if logs.FilterMessage("request failed").Len() != 0 {
		t.Error("client errors should not be logged as failures")
	}
	if len(metrics.Snapshot().Errors) != 1 {
		t.Errorf("errors = %v", metrics.Snapshot().Errors)
	}
}

func TestErrorEnvelope_RecoversPanic(t *testing.T) {
	app, logs, _ := newMiddlewareApp(t, 0)
	app.Get("/boom", func(c *fiber.Ctx) error {
		panic("nil issue")
	})

	status, body := readError(t, app, "/boom")
	if status != fiber.StatusInternalServerError {
		t.Fatalf("status = %d", status)
	}
	if body.Error.Code == "" {
		t.Errorf("body = %+v", body)
	}
	if logs.FilterMessage("handler panicked").FilterField(zap.String("route", "GET /boom")).Len() != 1 {
		t.Error("expected panic log with route")
	}
}

func TestDeadlineMiddleware_SetsDeadline(t *testing.T) {
	app, _, _ := newMiddlewareApp(t, time.Second)
	app.Get("/deadline", func(c *fiber.Ctx) error {
		deadline, ok := c.UserContext().Deadline()
		if !ok {
			return apperrors.NewInternalError(nil)
		}
		if time.Until(deadline) > time.Second {
			return apperrors.NewInternalError(nil)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/deadline", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusNoContent {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
