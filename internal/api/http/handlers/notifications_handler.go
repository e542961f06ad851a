package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-service/internal/api/dto"
	"github.com/spec-kit/issue-service/internal/auth"
	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/observability"
	"github.com/spec-kit/issue-service/internal/service"
	apperrors "github.com/spec-kit/issue-service/pkg/util/errorutil"
)

// NotificationsHandler serves the caller's notification feed.
type NotificationsHandler struct {
	notifications *service.NotificationService
	metrics       *observability.Metrics
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notifications *service.NotificationService, metrics *observability.Metrics) *NotificationsHandler {
	return &NotificationsHandler{notifications: notifications, metrics: metrics}
}

// List GET /notifications.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	items, err := h.notifications.List(c.UserContext(), principal.UID())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": notificationResponses(items)})
}

// Stream GET /notifications/stream.
func (h *NotificationsHandler) Stream(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	uid := principal.UID()
	source := func(ctx context.Context, emit func([]dto.NotificationResponse)) func() {
		return h.notifications.Subscribe(ctx, uid, func(items []domain.Notification) {
			emit(notificationResponses(items))
		})
	}
	return streamSnapshots(c, h.metrics, "notifications", source, nil)
}
