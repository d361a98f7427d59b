package http

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-triage/internal/observability"
	apperrors "github.com/spec-kit/helpdesk-triage/pkg/util/errorutil"
)

// RegisterMiddlewares attaches the request deadline, access logging and error
// rendering. The logger runs outside the error renderer so it sees the final
// status.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(errorHandlingMiddleware(logger, metrics))
}

// requestTimeoutMiddleware bounds the context handed to services. Model calls
// and lock waits observe it.
func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					zap.Any("panic", r),
					zap.Any("request_id", c.Locals(observability.RequestIDHeader)),
					zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				err = writeError(c, logger, metrics, toDomainError(err))
			}
		}()
		return c.Next()
	}
}

func writeError(c *fiber.Ctx, logger *zap.Logger, metrics *observability.Metrics, domainErr *apperrors.DomainError) error {
	metrics.RecordError(c.Path(), c.Method(), domainErr.Code)

	body := fiber.Map{
		"code":    domainErr.Code,
		"message": domainErr.Message,
	}
	if len(domainErr.Details) > 0 {
		body["details"] = domainErr.Details
	}

	if domainErr.HTTPStatus >= fiber.StatusInternalServerError {
		logger.Error("request failed",
			zap.Any("request_id", c.Locals(observability.RequestIDHeader)),
			zap.String("code", domainErr.Code),
			zap.Error(domainErr))
	}
	return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"error": body})
}

// toDomainError maps fiber's own errors, such as unmatched routes, and
// expired request deadlines before falling back to the shared mapping.
func toDomainError(err error) *apperrors.DomainError {
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		code := "HTTP_ERROR"
		if fiberErr.Code == fiber.StatusNotFound {
			code = apperrors.CodeNotFound
		}
		return apperrors.NewDomainError(code, fiberErr.Message, fiberErr.Code, nil)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeout(err).(*apperrors.DomainError)
	}
	return apperrors.ToDomainError(err)
}
