package handlers

import (
	"leafline/internal/domain"
	"leafline/internal/services"
	"leafline/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type CartHandler struct {
	Cart *services.CartService
}

type lineRequest struct {
	ProductID string `json:"product_id" form:"product_id"`
	VariantID string `json:"variant_id" form:"variant_id"`
	ComboID   string `json:"combo_id" form:"combo_id"`
	Qty       int    `json:"qty" form:"qty"`
}

// key validates the line identifiers. On failure it names the bad field.
func (r lineRequest) key() (domain.LineKey, string, bool) {
	pid, ok := validate.ID(r.ProductID)
	if !ok {
		return domain.LineKey{}, "product_id", false
	}
	vid, ok := validate.OptionalID(r.VariantID)
	if !ok {
		return domain.LineKey{}, "variant_id", false
	}
	cid, ok := validate.OptionalID(r.ComboID)
	if !ok {
		return domain.LineKey{}, "combo_id", false
	}
	return domain.LineKey{ProductID: pid, VariantID: vid, ComboID: cid}, "", true
}

func (h *CartHandler) View(c *fiber.Ctx) error {
	cv, err := h.Cart.View(c.UserContext(), ensureSID(c))
	if err != nil {
		return fail(c, "cart.view", err)
	}
	return c.JSON(cv)
}

func (h *CartHandler) Add(c *fiber.Ctx) error {
	sid := ensureSID(c)
	var req lineRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "body", "invalid request body")
	}
	key, field, ok := req.key()
	if !ok {
		return badRequest(c, field, "invalid "+field)
	}
	qty := validate.ClampQty(req.Qty)
	if qty < 1 {
		qty = 1
	}
	if err := h.Cart.Add(c.UserContext(), sid, key, qty); err != nil {
		return fail(c, "cart.add", err)
	}
	return h.View(c)
}

// Update sets a line's quantity; zero removes the line.
func (h *CartHandler) Update(c *fiber.Ctx) error {
	sid := ensureSID(c)
	var req lineRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "body", "invalid request body")
	}
	key, field, ok := req.key()
	if !ok {
		return badRequest(c, field, "invalid "+field)
	}
	if err := h.Cart.UpdateQty(c.UserContext(), sid, key, validate.ClampQty(req.Qty)); err != nil {
		return fail(c, "cart.update", err)
	}
	return h.View(c)
}

func (h *CartHandler) Remove(c *fiber.Ctx) error {
	sid := ensureSID(c)
	var req lineRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "body", "invalid request body")
	}
	key, field, ok := req.key()
	if !ok {
		return badRequest(c, field, "invalid "+field)
	}
	if err := h.Cart.Remove(c.UserContext(), sid, key); err != nil {
		return fail(c, "cart.remove", err)
	}
	return h.View(c)
}

func (h *CartHandler) Clear(c *fiber.Ctx) error {
	if err := h.Cart.Clear(c.UserContext(), ensureSID(c)); err != nil {
		return fail(c, "cart.clear", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
