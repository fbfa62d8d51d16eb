package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"
)

// RequestLogger writes one access log line per request through log.
func RequestLogger(log *logrus.Logger) fiber.Handler {
	return logger.New(logger.Config{
		Output: log.WriterLevel(logrus.InfoLevel),
		Format: "${status} ${method} ${path} ${latency}\n",
	})
}
