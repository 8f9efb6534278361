package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"leafline/internal/domain"
	applog "leafline/internal/log"
	"leafline/internal/services"
	"leafline/internal/validate"
)

type CheckoutHandler struct {
	Checkout *services.CheckoutService
}

func tierParam(s string) domain.ShippingTier {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return domain.ShippingStandard
	}
	return domain.ShippingTier(s)
}

// GET /api/v1/checkout/summary?shipping=express
func (h *CheckoutHandler) Summary(c *fiber.Ctx) error {
	sum, err := h.Checkout.Summary(c.UserContext(), ensureSID(c), currentUserID(c), tierParam(c.Query("shipping")))
	if err != nil {
		return fail(c, "checkout.summary", err)
	}
	return c.JSON(sum)
}

type couponRequest struct {
	Code string `json:"code" form:"code"`
}

func (h *CheckoutHandler) ApplyCoupon(c *fiber.Ctx) error {
	sid := ensureSID(c)
	var req couponRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "body", "invalid request body")
	}
	code, ok := validate.CouponCode(req.Code)
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "code"})
		return c.Status(fiber.StatusUnprocessableEntity).JSON(domain.CouponCheck{Code: req.Code, Reason: services.ReasonInvalidCode})
	}
	chk, err := h.Checkout.ApplyCoupon(c.UserContext(), sid, code)
	if err != nil {
		return fail(c, "checkout.coupon", err)
	}
	if !chk.Valid {
		applog.Info(c, "checkout.coupon.reject", map[string]any{"code": code, "reason": chk.Reason})
		return c.Status(fiber.StatusUnprocessableEntity).JSON(chk)
	}
	applog.Info(c, "checkout.coupon.apply", map[string]any{"code": chk.Code})
	return c.JSON(chk)
}

func (h *CheckoutHandler) RemoveCoupon(c *fiber.Ctx) error {
	if err := h.Checkout.RemoveCoupon(c.UserContext(), ensureSID(c)); err != nil {
		return fail(c, "checkout.coupon", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type placeRequest struct {
	Email        string          `json:"email"`
	ShippingTier string          `json:"shipping_tier"`
	AddressID    string          `json:"address_id"`
	Address      *domain.Address `json:"address"`
	SaveAddress  bool            `json:"save_address"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Place(c *fiber.Ctx) error {
	sid := ensureSID(c)
	var req placeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "body", "invalid request body")
	}
	addrID, ok := validate.OptionalID(req.AddressID)
	if !ok {
		return badRequest(c, "address_id", "invalid address_id")
	}
	u := currentUser(c)
	pr := services.PlaceRequest{
		SessionID:   sid,
		Email:       req.Email,
		Tier:        tierParam(req.ShippingTier),
		AddressID:   addrID,
		Address:     req.Address,
		SaveAddress: req.SaveAddress,
	}
	if u != nil {
		pr.UserID = u.ID
		if strings.TrimSpace(pr.Email) == "" {
			pr.Email = u.Email
		}
	}

	pl, err := h.Checkout.Place(c.UserContext(), pr)
	if err != nil {
		applog.Security(c, "order.place.fail", map[string]any{"sid": sid, "error": err.Error()})
		return fail(c, "order.place", err)
	}
	applog.Audit(c, "order.place", map[string]any{
		"order_id":       pl.Order.ID,
		"transaction_id": pl.Order.TransactionID,
		"total":          pl.Order.Total.StringFixed(2),
		"discount_id":    pl.Order.DiscountID,
	})
	return c.Status(fiber.StatusCreated).JSON(pl)
}
