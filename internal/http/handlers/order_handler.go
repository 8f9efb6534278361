package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	applog "leafline/internal/log"
	"leafline/internal/services"
	"leafline/internal/validate"
)

type OrderHandler struct {
	Orders   *services.OrderService
	Payments *services.PaymentService
}

func (h *OrderHandler) View(c *fiber.Ctx) error {
	oid, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order not found"})
	}
	o, items, err := h.Orders.Get(c.UserContext(), oid, c.Cookies("sid"), currentUser(c))
	if err != nil {
		if errors.Is(err, services.ErrOrderNotFound) {
			applog.Security(c, "access.denied.order", map[string]any{"order_id": oid})
		}
		return fail(c, "order.view", err)
	}
	return c.JSON(fiber.Map{
		"order":      o,
		"items":      items,
		"upi_link":   h.Payments.Link(o),
		"display_id": services.DisplayID(o),
	})
}

// History lists the caller's orders: the user's when logged in, otherwise
// the session's.
func (h *OrderHandler) History(c *fiber.Ctx) error {
	orders, err := h.Orders.History(c.UserContext(), c.Cookies("sid"), currentUser(c))
	if err != nil {
		applog.Error(c, "orders.history.fail", err, nil)
		return err
	}
	return c.JSON(fiber.Map{"orders": orders})
}

// POST /api/v1/orders/:id/payment/confirm
func (h *OrderHandler) ConfirmPayment(c *fiber.Ctx) error {
	oid, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order not found"})
	}
	o, err := h.Payments.Confirm(c.UserContext(), oid, c.Cookies("sid"), currentUser(c))
	if err != nil {
		return fail(c, "payment.confirm", err)
	}
	applog.Audit(c, "payment.confirm", map[string]any{"order_id": o.ID, "transaction_id": o.TransactionID})
	return c.Status(fiber.StatusAccepted).JSON(paymentView(o.ID, o.TransactionID, string(o.PaymentStatus), o.Status))
}

// GET /api/v1/orders/:id/payment
func (h *OrderHandler) PaymentStatus(c *fiber.Ctx) error {
	oid, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "order not found"})
	}
	o, err := h.Payments.Status(c.UserContext(), oid, c.Cookies("sid"), currentUser(c))
	if err != nil {
		return fail(c, "payment.status", err)
	}
	return c.JSON(paymentView(o.ID, o.TransactionID, string(o.PaymentStatus), o.Status))
}

func paymentView(id, txn, payment, status string) fiber.Map {
	return fiber.Map{"order_id": id, "transaction_id": txn, "payment_status": payment, "status": status}
}
