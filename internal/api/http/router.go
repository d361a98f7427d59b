package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-triage/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Tickets *handlers.TicketsHandler
	Triage  *handlers.TriageHandler
	Metrics *handlers.MetricsHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Snapshot)

	tickets := app.Group("/tickets")
	tickets.Post("/", cfg.Tickets.SubmitTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/export", cfg.Tickets.ExportTickets)
	tickets.Get("/charts", cfg.Tickets.ChartData)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/messages", cfg.Tickets.AddMessage)
	tickets.Post("/:id/escalate", cfg.Tickets.Escalate)
	tickets.Post("/:id/resolve", cfg.Tickets.Resolve)

	app.Post("/triage/follow-up", cfg.Triage.FollowUp)
}
