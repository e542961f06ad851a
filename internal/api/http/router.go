package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-service/internal/api/http/handlers"
	"github.com/spec-kit/issue-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Devices        *handlers.DevicesHandler
	Session        *handlers.SessionHandler
	Issues         *handlers.IssuesHandler
	Notifications  *handlers.NotificationsHandler
	Users          *handlers.UsersHandler
	Analytics      *handlers.AnalyticsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Role checks live here; the services
// trust their callers.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)

	protected := app.Group("", cfg.AuthMiddleware.Handle)
	protected.Post("/auth/logout", cfg.Auth.Logout)
	protected.Patch("/auth/profile", cfg.Auth.UpdateProfile)

	protected.Post("/devices/register", cfg.Devices.Register)

	protected.Get("/session", cfg.Session.Get)
	protected.Get("/session/stream", cfg.Session.Stream)

	issues := protected.Group("/issues")
	issues.Post("/", cfg.Issues.CreateIssue)
	issues.Get("/", cfg.Issues.ListIssues)
	issues.Get("/stream", cfg.Issues.StreamIssues)
	issues.Get("/:id", cfg.Issues.GetIssue)
	issues.Post("/:id/comments", cfg.Issues.AddComment)
	issues.Patch("/:id/status", auth.RequireStaff(), cfg.Issues.UpdateStatus)

	notifications := protected.Group("/notifications")
	notifications.Get("/", cfg.Notifications.List)
	notifications.Get("/stream", cfg.Notifications.Stream)

	users := protected.Group("/users", auth.RequireAdmin())
	users.Get("/", cfg.Users.List)
	users.Patch("/:id/role", cfg.Users.UpdateRole)
	users.Delete("/:id", cfg.Users.Delete)

	analytics := protected.Group("/analytics", auth.RequireStaff())
	analytics.Get("/status", cfg.Analytics.StatusDistribution)
	analytics.Get("/weekly", cfg.Analytics.WeeklyTrend)
}
