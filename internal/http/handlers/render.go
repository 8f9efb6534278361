package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	applog "leafline/internal/log"
	"leafline/internal/services"
)

// fail maps service errors to JSON responses. Anything unrecognised is
// returned to fiber's ErrorHandler so internals never reach the client.
func fail(c *fiber.Ctx, action string, err error) error {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		applog.Security(c, "validation.fail", map[string]any{"action": action, "fields": verr.Fields})
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "validation failed", "fields": verr.Fields})
	}
	var gerr *services.GeoError
	if errors.As(err, &gerr) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": gerr.Message, "code": gerr.Code})
	}

	status := 0
	switch {
	case errors.Is(err, services.ErrNotFound),
		errors.Is(err, services.ErrProductNotFound),
		errors.Is(err, services.ErrItemNotFound),
		errors.Is(err, services.ErrAddressNotFound),
		errors.Is(err, services.ErrOrderNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrCartEmpty),
		errors.Is(err, services.ErrUnknownTier),
		errors.Is(err, services.ErrNegativeTotal),
		errors.Is(err, services.ErrBadStatus):
		status = fiber.StatusBadRequest
	case errors.Is(err, services.ErrDiscountExhausted),
		errors.Is(err, services.ErrPaymentSubmitted):
		status = fiber.StatusConflict
	case errors.Is(err, services.ErrLoginRequired):
		status = fiber.StatusUnauthorized
	case errors.Is(err, services.ErrPaymentsClosed):
		status = fiber.StatusServiceUnavailable
	}
	if status == 0 {
		return err
	}
	applog.Info(c, action+".fail", map[string]any{"reason": err.Error()})
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func badRequest(c *fiber.Ctx, field, msg string) error {
	applog.Security(c, "validation.fail", map[string]any{"field": field})
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
