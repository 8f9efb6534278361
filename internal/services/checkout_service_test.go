package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leafline/internal/domain"
	"leafline/internal/repos"
	"leafline/internal/services"
)

type checkoutFixture struct {
	db       *sqlx.DB
	cart     *services.CartService
	checkout *services.CheckoutService
	payments *services.PaymentService
	addrs    *services.AddressService
}

func newCheckout(t *testing.T) checkoutFixture {
	t.Helper()
	db, err := repos.OpenDB("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	carts := repos.NewCartRepo(db)
	orders := repos.NewOrderRepo(db)
	prods := repos.NewProductRepo(db)
	cart := services.NewCartService(carts, prods)
	discounts := services.NewDiscountService(repos.NewDiscountRepo(db))
	discounts.Now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	addrs := services.NewAddressService(repos.NewAddressRepo(db), repos.NewPincodeRepo(db))
	payments := services.NewPaymentService(orders, carts, "leafline@upi", "Leafline Store", 0)

	return checkoutFixture{
		db:       db,
		cart:     cart,
		payments: payments,
		addrs:    addrs,
		checkout: &services.CheckoutService{
			Carts:     carts,
			Orders:    orders,
			Cart:      cart,
			Discounts: discounts,
			Addresses: addrs,
			Payments:  payments,
			Pricer:    services.NewPricer(services.DefaultShippingSchedule()),
			Lucky:     func() decimal.Decimal { return dec("0.37") },
		},
	}
}

func mumbai() *domain.Address {
	return &domain.Address{
		FullName:    "Asha Rao",
		Phone:       "98765 43210",
		AddressLine: "12 Marine Drive, Churchgate",
		Pincode:     "400001",
		City:        "Mumbai",
		State:       "Maharashtra",
	}
}

func TestSummaryWorkedExample(t *testing.T) {
	f := newCheckout(t)
	ctx := context.Background()
	require.NoError(t, f.cart.Add(ctx, "sid-1", domain.LineKey{ProductID: "p-robusto"}, 1))

	chk, err := f.checkout.ApplyCoupon(ctx, "sid-1", "save10")
	require.NoError(t, err)
	require.True(t, chk.Valid)
	assert.Equal(t, "SAVE10", chk.Code)

	sum, err := f.checkout.Summary(ctx, "sid-1", "", domain.ShippingExpress)
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", sum.CouponCode)
	assert.Equal(t, "1000.00", sum.Breakdown.Subtotal.StringFixed(2))
	assert.Equal(t, "150.00", sum.Breakdown.Shipping.StringFixed(2))
	assert.Equal(t, "0.37", sum.Breakdown.LuckyDiscount.StringFixed(2))
	assert.Equal(t, "100.00", sum.Breakdown.CouponDiscount.StringFixed(2))
	assert.Equal(t, "1049.63", sum.Breakdown.Total.StringFixed(2))
	assert.Empty(t, sum.Addresses)
	assert.Len(t, sum.Shipping, 3)
}

func TestLuckyDiscountIsDrawnOnce(t *testing.T) {
	f := newCheckout(t)
	ctx := context.Background()
	draws := 0
	f.checkout.Lucky = func() decimal.Decimal {
		draws++
		return decimal.New(int64(draws*10), -2)
	}
	require.NoError(t, f.cart.Add(ctx, "sid-l", domain.LineKey{ProductID: "p-lighter"}, 1))

	first, err := f.checkout.Summary(ctx, "sid-l", "", domain.ShippingStandard)
	require.NoError(t, err)
	second, err := f.checkout.Summary(ctx, "sid-l", "", domain.ShippingOvernight)
	require.NoError(t, err)
	assert.Equal(t, 1, draws)
	assert.True(t, first.Breakdown.LuckyDiscount.Equal(second.Breakdown.LuckyDiscount))
}

func TestSummaryEmptyCartHasNoLucky(t *testing.T) {
	f := newCheckout(t)
	sum, err := f.checkout.Summary(context.Background(), "sid-empty", "", domain.ShippingStandard)
	require.NoError(t, err)
	assert.True(t, sum.Breakdown.LuckyDiscount.IsZero())
	assert.True(t, sum.Breakdown.Total.IsZero())
	assert.Nil(t, sum.Discount)
}

func TestSummaryRejectsUnknownTier(t *testing.T) {
	f := newCheckout(t)
	_, err := f.checkout.Summary(context.Background(), "sid-x", "", "teleport")
	assert.ErrorIs(t, err, services.ErrUnknownTier)
}

func TestApplyCouponRejectedIsNotStored(t *testing.T) {
	f := newCheckout(t)
	ctx := context.Background()
	require.NoError(t, f.cart.Add(ctx, "sid-2", domain.LineKey{ProductID: "p-papers-king"}, 1))

	chk, err := f.checkout.ApplyCoupon(ctx, "sid-2", "WELCOME50")
	require.NoError(t, err)
	assert.False(t, chk.Valid)
	assert.Equal(t, "Minimum cart value of ₹500.00 required", chk.Reason)

	sum, err := f.checkout.Summary(ctx, "sid-2", "", domain.ShippingStandard)
	require.NoError(t, err)
	assert.Empty(t, sum.CouponCode)

	_, err = f.checkout.ApplyCoupon(ctx, "sid-2", "SAVE10")
	require.NoError(t, err)
	require.NoError(t, f.checkout.RemoveCoupon(ctx, "sid-2"))
	sum, err = f.checkout.Summary(ctx, "sid-2", "", domain.ShippingStandard)
	require.NoError(t, err)
	assert.Empty(t, sum.CouponCode)
	assert.True(t, sum.Breakdown.CouponDiscount.IsZero())
}

func TestPlaceOrderRedeemsAndSnapshots(t *testing.T) {
	f := newCheckout(t)
	ctx := context.Background()
	require.NoError(t, f.cart.Add(ctx, "sid-3", domain.LineKey{ProductID: "p-robusto"}, 1))
	_, err := f.checkout.ApplyCoupon(ctx, "sid-3", "SAVE10")
	require.NoError(t, err)

	pl, err := f.checkout.Place(ctx, services.PlaceRequest{
		SessionID: "sid-3",
		Email:     "asha@leafline.test",
		Tier:      domain.ShippingExpress,
		Address:   mumbai(),
	})
	require.NoError(t, err)

	o := pl.Order
	assert.Equal(t, "1049.63", o.Total.StringFixed(2))
	assert.Equal(t, "d-save10", o.DiscountID)
	assert.Equal(t, "SAVE10", o.CouponCode)
	assert.Equal(t, domain.PaymentIdle, o.PaymentStatus)
	assert.Equal(t, domain.OrderPlaced, o.Status)
	assert.Regexp(t, `^TXN[0-9A-Z]{26}$`, o.TransactionID)
	assert.Regexp(t, `^TXN[0-9]{8}$`, pl.DisplayID)
	assert.Equal(t, "upi://pay?pa=leafline@upi&pn=Leafline%20Store&am=1049.63&tn=Order%20"+o.TransactionID+"&cu=INR", pl.UPILink)
	require.Len(t, pl.Items, 1)
	assert.Equal(t, 1, pl.Items[0].LineNo)

	var usage int
	require.NoError(t, f.db.Get(&usage, `SELECT usage_count FROM discounts WHERE id = 'd-save10'`))
	assert.Equal(t, 1, usage)

	stored, items, err := f.checkout.Orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, pl.DisplayID, services.DisplayID(stored), "the receipt id is stable across reads")
	assert.Equal(t, "Mumbai", stored.Address.City)
	assert.Equal(t, "+919876543210", stored.Address.Phone)
	assert.Len(t, items, 1)

	// The cart stays until the payment is confirmed.
	view, err := f.cart.View(ctx, "sid-3")
	require.NoError(t, err)
	assert.Len(t, view.Items, 1)
}

func TestPlaceOrderValidation(t *testing.T) {
	f := newCheckout(t)
	ctx := context.Background()

	_, err := f.checkout.Place(ctx, services.PlaceRequest{SessionID: "sid-4", Email: "asha@leafline.test", Address: mumbai()})
	assert.ErrorIs(t, err, services.ErrCartEmpty)

	require.NoError(t, f.cart.Add(ctx, "sid-4", domain.LineKey{ProductID: "p-lighter"}, 1))

	_, err = f.checkout.Place(ctx, services.PlaceRequest{SessionID: "sid-4", Email: "nope", Address: mumbai()})
	var verr *services.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "email")

	far := mumbai()
	far.Pincode = "999999"
	_, err = f.checkout.Place(ctx, services.PlaceRequest{SessionID: "sid-4", Email: "asha@leafline.test", Address: far})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Pincode not serviceable", verr.Fields["pincode"])

	_, err = f.checkout.Place(ctx, services.PlaceRequest{SessionID: "sid-4", Email: "asha@leafline.test", UserID: "u-asha", AddressID: "missing"})
	assert.ErrorIs(t, err, services.ErrAddressNotFound)
}

func TestPlaceOrderExhaustedDiscount(t *testing.T) {
	f := newCheckout(t)
	ctx := context.Background()
	require.NoError(t, f.cart.Add(ctx, "sid-5", domain.LineKey{ProductID: "p-robusto"}, 1))
	_, err := f.checkout.ApplyCoupon(ctx, "sid-5", "SAVE10")
	require.NoError(t, err)

	// One redemption left.
	_, err = f.db.Exec(`UPDATE discounts SET usage_limit = 1, usage_count = 0 WHERE id = 'd-save10'`)
	require.NoError(t, err)
	_, err = f.checkout.Place(ctx, services.PlaceRequest{SessionID: "sid-5", Email: "asha@leafline.test", Address: mumbai()})
	require.NoError(t, err)

	_, err = f.checkout.Place(ctx, services.PlaceRequest{SessionID: "sid-5", Email: "asha@leafline.test", Address: mumbai()})
	require.NoError(t, err, "exhausted coupon no longer applies, order goes through at full price")

	var n int
	require.NoError(t, f.db.Get(&n, `SELECT COUNT(*) FROM orders WHERE session_id = 'sid-5' AND discount_id = 'd-save10'`))
	assert.Equal(t, 1, n)
}

func TestPlaceOrderSavesAddressForUser(t *testing.T) {
	f := newCheckout(t)
	ctx := context.Background()
	require.NoError(t, f.cart.Add(ctx, "sid-6", domain.LineKey{ProductID: "p-lighter"}, 2))

	pl, err := f.checkout.Place(ctx, services.PlaceRequest{
		SessionID:   "sid-6",
		UserID:      "u-ravi",
		Email:       "ravi@leafline.test",
		Address:     mumbai(),
		SaveAddress: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "u-ravi", pl.Order.UserID)

	saved := f.addrs.List(ctx, "u-ravi")
	require.Len(t, saved, 1)
	assert.True(t, saved[0].IsDefault)

	pl2, err := f.checkout.Place(ctx, services.PlaceRequest{SessionID: "sid-6", UserID: "u-ravi", Email: "ravi@leafline.test", AddressID: saved[0].ID})
	require.NoError(t, err)
	assert.Equal(t, saved[0].AddressLine, pl2.Order.Address.AddressLine)
}
