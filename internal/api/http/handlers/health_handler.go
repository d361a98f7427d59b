package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-triage/internal/persistence"
)

const readinessTimeout = 2 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

type dependency struct {
	name string
	// nil when the dependency is not configured.
	check pinger
}

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName  string
	version      string
	dependencies []dependency
}

// NewHealthHandler returns a handler probing the configured stores. A nil
// or disabled store is reported as "disabled" and does not affect readiness.
func NewHealthHandler(serviceName, version string, postgres *persistence.Postgres, redis *persistence.Redis) *HealthHandler {
	h := &HealthHandler{serviceName: serviceName, version: version}

	pg := dependency{name: "postgres"}
	if postgres.Enabled() {
		pg.check = postgres
	}
	rd := dependency{name: "redis"}
	if redis != nil {
		rd.check = redis
	}
	h.dependencies = []dependency{pg, rd}
	return h
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready pings every configured dependency.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	status := fiber.Map{}
	ready := true
	for _, dep := range h.dependencies {
		if dep.check == nil {
			status[dep.name] = "disabled"
			continue
		}
		if err := dep.check.Ping(ctx); err != nil {
			status[dep.name] = err.Error()
			ready = false
			continue
		}
		status[dep.name] = "ok"
	}

	if !ready {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "DEPENDENCY_UNAVAILABLE",
				"message": "one or more dependencies unavailable",
				"details": status,
			},
		})
	}
	return c.JSON(fiber.Map{
		"status":       "ready",
		"dependencies": status,
	})
}
