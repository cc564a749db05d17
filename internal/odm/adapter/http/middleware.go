package http

import (
	"time"

	"mongodb-orm/internal/shared/logger"
	"mongodb-orm/internal/shared/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware reuses the caller's X-Request-ID or mints one, and puts it
// on the response and the request context.
func RequestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(RequestIDHeader, requestID)
		c.Locals("requestID", requestID)
		c.SetUserContext(utils.WithRequestID(c.UserContext(), requestID))
		return c.Next()
	}
}

// LoggingMiddleware logs one line per request once the handler chain returns.
func LoggingMiddleware(log logger.Logger) fiber.Handler {
	log = logger.OrNop(log).WithComponent("http")
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		fields := map[string]interface{}{
			"method":   c.Method(),
			"path":     c.Path(),
			"status":   c.Response().StatusCode(),
			"duration": time.Since(start).String(),
		}
		entry := log.WithContext(c.UserContext()).WithFields(fields)
		if err != nil {
			entry.WithFields(map[string]interface{}{"error": err.Error()}).Warn("Request failed")
		} else {
			entry.Debug("Request served")
		}
		return err
	}
}
