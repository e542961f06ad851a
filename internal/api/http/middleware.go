package http

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-service/internal/observability"
	apperrors "github.com/spec-kit/issue-service/pkg/util/errorutil"
)

// RegisterMiddlewares attaches global middlewares. The request logger
// wraps the error envelope so it records the status actually written.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	if timeout > 0 {
		app.Use(deadlineMiddleware(timeout))
	}
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(errorEnvelopeMiddleware(logger, metrics))
}

// deadlineMiddleware bounds the store calls a handler makes. Stream
// handlers detach from it and live until the client leaves.
func deadlineMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// errorEnvelopeMiddleware turns handler errors and panics into the
// {"error": {...}} body.
func errorEnvelopeMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("handler panicked",
					zap.String("route", c.Method()+" "+c.Path()),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
				err = apperrors.NewInternalError(nil)
			}
			if err == nil {
				return
			}
			err = writeError(c, logger, metrics, apperrors.ToDomainError(err))
		}()
		return c.Next()
	}
}

func writeError(c *fiber.Ctx, logger *zap.Logger, metrics *observability.Metrics, derr *apperrors.DomainError) error {
	metrics.RecordError(c.Path(), c.Method(), derr.Code)
	if derr.HTTPStatus >= fiber.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("route", c.Method()+" "+c.Path()),
			zap.String("code", derr.Code),
			zap.Error(derr),
		)
	}

	body := fiber.Map{"code": derr.Code, "message": derr.Message}
	if len(derr.Details) > 0 {
		body["details"] = derr.Details
	}
	_ = c.Status(derr.HTTPStatus).JSON(fiber.Map{"error": body})
	return nil
}
