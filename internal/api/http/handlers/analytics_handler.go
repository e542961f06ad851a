package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-service/internal/service"
)

// AnalyticsHandler serves dashboard charts.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalyticsHandler constructs handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// StatusDistribution GET /analytics/status.
func (h *AnalyticsHandler) StatusDistribution(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.analytics.StatusDistribution(c.UserContext())})
}

// WeeklyTrend GET /analytics/weekly.
func (h *AnalyticsHandler) WeeklyTrend(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.analytics.WeeklyTrend(c.UserContext())})
}
