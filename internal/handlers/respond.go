package handlers

import (
	"errors"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"storefront/internal/models"
	"storefront/pkg/validator"
)

func ok[T any](c *fiber.Ctx, status int, message string, data T) error {
	return c.Status(status).JSON(models.OK(message, data))
}

func fail(c *fiber.Ctx, status int, message string, err error) error {
	var verr *validator.ValidationError
	if errors.As(err, &verr) {
		return c.Status(status).JSON(models.Response[map[string]string]{
			Success: false,
			Message: message,
			Data:    verr.Fields,
			Error:   err.Error(),
		})
	}
	return c.Status(status).JSON(models.Fail(message, err))
}

// identifierParam returns the unescaped :identifier route parameter.
func identifierParam(c *fiber.Ctx) string {
	raw := c.Params("identifier")
	if id, err := url.PathUnescape(raw); err == nil {
		return id
	}
	return raw
}
