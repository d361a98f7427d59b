package observability

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequestIDHeader carries the request identifier in both directions.
const RequestIDHeader = "X-Request-Id"

// RequestLogger assigns a request id, logs each request and records its
// latency. The route pattern is used as the metrics key when available.
func RequestLogger(logger *zap.Logger, metrics *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		rid := c.Get(RequestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Locals(RequestIDHeader, rid)
		c.Set(RequestIDHeader, rid)

		err := c.Next()
		latency := time.Since(start)

		status := c.Response().StatusCode()
		path := c.Route().Path
		if path == "" || path == "/" {
			path = c.Path()
		}

		metrics.RecordRequest(path, c.Method(), status, latency)
		logger.Info("request",
			zap.String("request_id", rid),
			zap.String("method", c.Method()),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", latency),
		)
		return err
	}
}
