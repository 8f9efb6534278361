package handlers

import (
	"github.com/gofiber/fiber/v2"

	"leafline/internal/domain"
	applog "leafline/internal/log"
	"leafline/internal/services"
	"leafline/internal/validate"
)

type AddressHandler struct {
	Addresses *services.AddressService
}

// GET /api/v1/pincode/:pincode
//
// The response is the autofilled form. city and state query values are
// echoed back untouched when the pincode is not serviceable.
func (h *AddressHandler) Pincode(c *fiber.Ctx) error {
	pin, ok := validate.Pincode(c.Params("pincode"))
	if !ok {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(services.AddressForm{
			Address: domain.Address{Pincode: c.Params("pincode")},
			Errors:  map[string]string{"pincode": validate.MsgPincodeFormat},
		})
	}
	form := services.AddressForm{Address: domain.Address{
		Pincode: pin,
		City:    c.Query("city"),
		State:   c.Query("state"),
	}}
	if err := h.Addresses.ApplyPincode(c.UserContext(), &form); err != nil {
		return fail(c, "pincode.lookup", err)
	}
	if _, bad := form.Errors["pincode"]; bad {
		applog.Info(c, "pincode.unserviceable", map[string]any{"pincode": pin})
		return c.Status(fiber.StatusNotFound).JSON(form)
	}
	return c.JSON(form)
}

// POST /api/v1/geolocate
func (h *AddressHandler) Geolocate(c *fiber.Ctx) error {
	var req services.GeoRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "body", "invalid request body")
	}
	res, err := h.Addresses.Geolocate(c.UserContext(), req)
	if err != nil {
		applog.Info(c, "geolocate.fail", map[string]any{"code": req.ErrorCode})
		return fail(c, "geolocate", err)
	}
	return c.JSON(res)
}

func (h *AddressHandler) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"addresses": h.Addresses.List(c.UserContext(), currentUserID(c))})
}

type addressRequest struct {
	domain.Address
	MakeDefault bool `json:"make_default"`
}

func (h *AddressHandler) Create(c *fiber.Ctx) error {
	var req addressRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "body", "invalid request body")
	}
	uid := currentUserID(c)
	a, created, err := h.Addresses.Save(c.UserContext(), uid, req.Address, req.MakeDefault)
	if err != nil {
		return fail(c, "address.create", err)
	}
	if !created {
		return c.JSON(fiber.Map{"address": a, "duplicate": true})
	}
	applog.Audit(c, "address.create", map[string]any{"address_id": a.ID, "user_id": uid})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"address": a})
}

func (h *AddressHandler) Update(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "id", "invalid id")
	}
	var a domain.Address
	if err := c.BodyParser(&a); err != nil {
		return badRequest(c, "body", "invalid request body")
	}
	a.ID = id
	out, err := h.Addresses.Update(c.UserContext(), currentUserID(c), a)
	if err != nil {
		return fail(c, "address.update", err)
	}
	return c.JSON(fiber.Map{"address": out})
}

func (h *AddressHandler) Delete(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "id", "invalid id")
	}
	uid := currentUserID(c)
	if err := h.Addresses.Delete(c.UserContext(), uid, id); err != nil {
		return fail(c, "address.delete", err)
	}
	applog.Audit(c, "address.delete", map[string]any{"address_id": id, "user_id": uid})
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AddressHandler) SetDefault(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return badRequest(c, "id", "invalid id")
	}
	uid := currentUserID(c)
	if err := h.Addresses.SetDefault(c.UserContext(), uid, id); err != nil {
		return fail(c, "address.default", err)
	}
	return c.JSON(fiber.Map{"addresses": h.Addresses.List(c.UserContext(), uid)})
}
