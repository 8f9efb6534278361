package handlers_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leafline/internal/http/handlers"
)

// placeOrder puts one robusto box in sid's cart and checks out with SAVE10 and express shipping.
func placeOrder(t *testing.T, a testApp, sid string) string {
	t.Helper()
	resp, _ := a.call(t, http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": "p-robusto", "qty": 1}, sid)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = a.call(t, http.MethodPost, "/api/v1/checkout/coupon", map[string]string{"code": "save10"}, sid)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body := a.call(t, http.MethodPost, "/api/v1/checkout", map[string]any{
		"email":         "asha@leafline.test",
		"shipping_tier": "express",
		"address":       mumbaiAddress(),
	}, sid)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	return body["order"].(map[string]any)["id"].(string)
}

func TestCartEndpoints(t *testing.T) {
	a := newTestApp(t, handlers.Options{})

	resp, body := a.call(t, http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": "p-hookah-classic", "variant_id": "v-hookah-small", "qty": 2}, "sid-cart")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "3998", body["subtotal"])
	assert.EqualValues(t, 2, body["count"])

	resp, body = a.call(t, http.MethodPatch, "/api/v1/cart/items", map[string]any{"product_id": "p-hookah-classic", "variant_id": "v-hookah-small", "qty": 1}, "sid-cart")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1999", body["subtotal"])

	resp, _ = a.call(t, http.MethodPatch, "/api/v1/cart/items", map[string]any{"product_id": "p-lighter", "qty": 1}, "sid-cart")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = a.call(t, http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": "p-robusto", "variant_id": "v-hookah-small"}, "sid-cart")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = a.call(t, http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": "../etc"}, "sid-cart")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = a.call(t, http.MethodDelete, "/api/v1/cart/items", map[string]any{"product_id": "p-hookah-classic", "variant_id": "v-hookah-small"}, "sid-cart")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["items"])

	resp, _ = a.call(t, http.MethodDelete, "/api/v1/cart", nil, "sid-cart")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestCartIssuesSessionCookie(t *testing.T) {
	a := newTestApp(t, handlers.Options{})
	resp, _ := a.call(t, http.MethodGet, "/api/v1/cart", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, cookie(resp, "sid"))
}

func TestCheckoutSummaryAndCoupon(t *testing.T) {
	a := newTestApp(t, handlers.Options{})
	sid := "sid-sum"
	a.call(t, http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": "p-robusto", "qty": 1}, sid)

	resp, body := a.call(t, http.MethodPost, "/api/v1/checkout/coupon", map[string]string{"code": "FIRST100"}, sid)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, "Discount usage limit reached", body["reason"])

	resp, body = a.call(t, http.MethodPost, "/api/v1/checkout/coupon", map[string]string{"code": "save10"}, sid)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "SAVE10", body["code"])
	assert.Equal(t, "100", body["result"].(map[string]any)["discount_amount"])

	resp, body = a.call(t, http.MethodGet, "/api/v1/checkout/summary?shipping=express", nil, sid)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	b := body["breakdown"].(map[string]any)
	assert.Equal(t, "1000", b["subtotal"])
	assert.Equal(t, "150", b["shipping_cost"])
	assert.Equal(t, "0.37", b["lucky_discount"])
	assert.Equal(t, "100", b["coupon_discount"])
	assert.Equal(t, "1049.63", b["total"])
	assert.Equal(t, "SAVE10", body["coupon_code"])

	resp, _ = a.call(t, http.MethodGet, "/api/v1/checkout/summary?shipping=teleport", nil, sid)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = a.call(t, http.MethodDelete, "/api/v1/checkout/coupon", nil, sid)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	_, body = a.call(t, http.MethodGet, "/api/v1/checkout/summary", nil, sid)
	assert.Equal(t, "999.63", body["breakdown"].(map[string]any)["total"])
}

func TestPlaceOrderAndOwnership(t *testing.T) {
	a := newTestApp(t, handlers.Options{})
	logs := captureLogs(t)
	id := placeOrder(t, a, "sid-owner")

	placed, ok := findLog(logs.entries(), "order.place")
	require.True(t, ok)
	assert.Equal(t, "1049.63", placed.Fields["total"])

	resp, body := a.call(t, http.MethodGet, "/api/v1/orders/"+id, nil, "sid-owner")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	o := body["order"].(map[string]any)
	assert.Equal(t, "1049.63", o["total"])
	assert.Equal(t, "idle", o["payment_status"])
	assert.Equal(t, "Mumbai", o["shipping_address"].(map[string]any)["city"])
	link := body["upi_link"].(string)
	assert.True(t, strings.HasPrefix(link, "upi://pay?pa=leafline@upi&pn=Leafline%20Store&am=1049.63&tn=Order%20TXN"), link)
	assert.True(t, strings.HasSuffix(link, "&cu=INR"))
	assert.Regexp(t, `^TXN[0-9]{8}$`, body["display_id"])

	resp, _ = a.call(t, http.MethodGet, "/api/v1/orders/"+id, nil, "sid-stranger")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_, ok = findLog(logs.entries(), "access.denied.order")
	assert.True(t, ok)

	_, body = a.call(t, http.MethodGet, "/api/v1/orders", nil, "sid-owner")
	assert.Len(t, body["orders"], 1)
	_, body = a.call(t, http.MethodGet, "/api/v1/orders", nil, "sid-stranger")
	assert.Empty(t, body["orders"])
}

func TestPlaceOrderValidationErrors(t *testing.T) {
	a := newTestApp(t, handlers.Options{})
	sid := "sid-bad"

	resp, _ := a.call(t, http.MethodPost, "/api/v1/checkout", map[string]any{"email": "asha@leafline.test", "address": mumbaiAddress()}, sid)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "empty cart")

	a.call(t, http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": "p-lighter"}, sid)

	addr := mumbaiAddress()
	addr["pincode"] = "999999"
	addr["phone"] = "12"
	resp, body := a.call(t, http.MethodPost, "/api/v1/checkout", map[string]any{"email": "asha@leafline.test", "address": addr}, sid)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	fields := body["fields"].(map[string]any)
	assert.Contains(t, fields, "phone")

	addr["phone"] = "9876543210"
	resp, body = a.call(t, http.MethodPost, "/api/v1/checkout", map[string]any{"email": "asha@leafline.test", "address": addr}, sid)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "Pincode not serviceable", body["fields"].(map[string]any)["pincode"])

	resp, _ = a.call(t, http.MethodPost, "/api/v1/checkout", map[string]any{"email": "asha@leafline.test", "address_id": "nope"}, sid)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "saved addresses need a login")
}

func TestLoggedInCheckoutUsesSavedAddress(t *testing.T) {
	a := newTestApp(t, handlers.Options{})
	sid := "sid-ravi"
	a.login(t, sid, "ravi@leafline.test")

	resp, body := a.call(t, http.MethodPost, "/api/v1/addresses", mumbaiAddress(), sid)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	addrID := body["address"].(map[string]any)["id"].(string)

	a.call(t, http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": "p-papers-king", "qty": 3}, sid)
	resp, body = a.call(t, http.MethodPost, "/api/v1/checkout", map[string]any{"address_id": addrID}, sid)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	o := body["order"].(map[string]any)
	assert.Equal(t, "ravi@leafline.test", o["customer_email"], "falls back to the account email")
	assert.Equal(t, "standard", o["shipping_tier"])

	_, body = a.call(t, http.MethodGet, "/api/v1/checkout/summary", nil, sid)
	assert.Len(t, body["addresses"], 1)
}

func TestCartRejectsMalformedLineIDs(t *testing.T) {
	a := newTestApp(t, handlers.Options{})
	logs := captureLogs(t)
	sid := "sid-ids"
	a.call(t, http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": "p-robusto"}, sid)

	cases := []struct {
		method string
		body   map[string]any
		field  string
	}{
		{http.MethodPost, map[string]any{"product_id": "p-robusto", "variant_id": "bad id!"}, "variant_id"},
		{http.MethodPost, map[string]any{"product_id": "p-robusto", "combo_id": "../c"}, "combo_id"},
		{http.MethodPatch, map[string]any{"product_id": "", "qty": 2}, "product_id"},
		{http.MethodDelete, map[string]any{"product_id": "../etc"}, "product_id"},
	}
	for _, tc := range cases {
		resp, body := a.call(t, tc.method, "/api/v1/cart/items", tc.body, sid)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "%s %v", tc.method, tc.body)
		assert.Equal(t, "invalid "+tc.field, body["error"])
	}

	var fields []any
	for _, e := range logs.entries() {
		if e.Action == "validation.fail" {
			fields = append(fields, e.Fields["field"])
		}
	}
	assert.Equal(t, []any{"variant_id", "combo_id", "product_id", "product_id"}, fields)

	_, body := a.call(t, http.MethodGet, "/api/v1/cart", nil, sid)
	assert.EqualValues(t, 1, body["count"], "rejected requests leave the cart alone")
}
