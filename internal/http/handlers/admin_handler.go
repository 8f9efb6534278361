package handlers

import (
	"github.com/gofiber/fiber/v2"

	"leafline/internal/domain"
	applog "leafline/internal/log"
	"leafline/internal/services"
	"leafline/internal/validate"
)

type AdminHandler struct {
	Orders   *services.OrderService
	Payments *services.PaymentService
}

// GET /admin/orders?payment_status=pending
func (h *AdminHandler) ListOrders(c *fiber.Ctx) error {
	ords, err := h.Orders.ByPaymentStatus(c.UserContext(), domain.PaymentStatus(c.Query("payment_status")))
	if err != nil {
		return fail(c, "admin.orders.list", err)
	}
	return c.JSON(fiber.Map{"orders": ords})
}

type statusRequest struct {
	Status string `json:"status" form:"status"`
}

// POST /admin/orders/:id/status
func (h *AdminHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	var req statusRequest
	if err := c.BodyParser(&req); err != nil || !ok || req.Status == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing id or status"})
	}
	if err := h.Orders.UpdateStatus(c.UserContext(), id, req.Status); err != nil {
		applog.Error(c, "admin.orders.update.fail", err, map[string]any{"order_id": id})
		return fail(c, "admin.orders.update", err)
	}
	applog.Audit(c, "admin.orders.update", map[string]any{"order_id": id, "status": req.Status})
	return c.JSON(fiber.Map{"order_id": id, "status": req.Status})
}

type resolveRequest struct {
	Paid bool `json:"paid"`
}

// POST /admin/orders/:id/payment settles a pending payment by hand.
func (h *AdminHandler) ResolvePayment(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	var req resolveRequest
	if err := c.BodyParser(&req); err != nil || !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing id or body"})
	}
	o, err := h.Payments.Resolve(c.UserContext(), id, req.Paid)
	if err != nil {
		return fail(c, "admin.payment.resolve", err)
	}
	applog.Audit(c, "admin.payment.resolve", map[string]any{"order_id": id, "paid": req.Paid})
	return c.JSON(paymentView(o.ID, o.TransactionID, string(o.PaymentStatus), o.Status))
}
