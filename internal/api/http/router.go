package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/civicdesk/grievance-service/internal/api/http/handlers"
	"github.com/civicdesk/grievance-service/internal/auth"
	"github.com/civicdesk/grievance-service/internal/domain"
	"github.com/civicdesk/grievance-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Complaints     *handlers.ComplaintsHandler
	Chat           *handlers.ChatHandler
	Officials      *handlers.OfficialsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	complaints := app.Group("/complaints")
	complaints.Post("/", cfg.Complaints.Create)
	complaints.Get("/:ref", cfg.Complaints.Track)
	complaints.Patch("/:ref", cfg.Complaints.Edit)
	complaints.Post("/:ref/authorize", cfg.Complaints.Authorize)
	complaints.Post("/:ref/updates", cfg.Complaints.AppendUpdate)
	complaints.Post("/:ref/withdraw", cfg.Complaints.Withdraw)

	app.Post("/chat/messages", cfg.Chat.Message)

	app.Post("/auth/officials/login", cfg.Officials.Login)

	officials := app.Group("/officials", cfg.AuthMiddleware.Handle, auth.RequireOfficialRole())
	officials.Get("/complaints", cfg.Officials.List)
	officials.Get("/complaints/:ref", cfg.Officials.Get)
	officials.Post("/complaints/:ref/status",
		auth.RequireOfficialRole(domain.OfficialRoleOfficer, domain.OfficialRoleSupervisor, domain.OfficialRoleAdmin),
		cfg.Officials.ChangeStatus)
}
