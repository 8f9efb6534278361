package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"leafline/internal/domain"
	applog "leafline/internal/log"
	"leafline/internal/repos"
)

// NewTransactionID returns "TXN" followed by a ULID.
func NewTransactionID() string {
	return "TXN" + ulid.Make().String()
}

// LegacyDisplayID is the short "TXN" + last 8 timestamp digits form shown on
// receipts. It is not unique and never used as a key.
func LegacyDisplayID(t time.Time) string {
	ms := fmt.Sprintf("%d", t.UnixMilli())
	if len(ms) > 8 {
		ms = ms[len(ms)-8:]
	}
	return "TXN" + ms
}

// DisplayID is the receipt id of a stored order. It is derived from
// created_at, so it reads the same every time the order is shown.
func DisplayID(o domain.Order) string {
	t, err := time.Parse(repos.TimeLayout, o.CreatedAt)
	if err != nil {
		return ""
	}
	return LegacyDisplayID(t)
}

// upiEscape percent-encodes a UPI parameter. Spaces become %20, not '+'.
func upiEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// UPILink builds the upi://pay deep link. The same string is the QR payload.
// The payee address is passed through unescaped so "name@bank" stays intact.
func UPILink(payeeVPA, payeeName string, amount decimal.Decimal, note string) string {
	return "upi://pay?pa=" + payeeVPA +
		"&pn=" + upiEscape(payeeName) +
		"&am=" + amount.StringFixed(2) +
		"&tn=" + upiEscape(note) +
		"&cu=INR"
}

// Verifier checks with the payment provider whether an order was paid.
type Verifier interface {
	Verify(ctx context.Context, o domain.Order) (bool, error)
}

// PendingPublisher hands unverified orders to the async verification queue.
type PendingPublisher interface {
	PublishPending(ctx context.Context, o domain.Order) error
}

// PaymentService drives idle -> processing -> verifying -> {confirmed | pending}.
// Each order is verified once; there is no retry.
type PaymentService struct {
	Orders    *repos.OrderRepo
	Carts     *repos.CartRepo
	PayeeVPA  string
	PayeeName string
	Delay     time.Duration
	Timeout   time.Duration
	Verifier  Verifier         // nil leaves every order pending
	Publisher PendingPublisher // optional

	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
	stop    chan struct{}
}

func NewPaymentService(orders *repos.OrderRepo, carts *repos.CartRepo, vpa, name string, delay time.Duration) *PaymentService {
	return &PaymentService{
		Orders:    orders,
		Carts:     carts,
		PayeeVPA:  vpa,
		PayeeName: name,
		Delay:     delay,
		Timeout:   15 * time.Second,
		stop:      make(chan struct{}),
	}
}

// Link returns the UPI deep link for an order's total.
func (s *PaymentService) Link(o domain.Order) string {
	return UPILink(s.PayeeVPA, s.PayeeName, o.Total, "Order "+o.TransactionID)
}

func owns(o domain.Order, sid string, user *domain.User) bool {
	if user != nil && (user.Role == domain.RoleAdmin || (o.UserID != "" && o.UserID == user.ID)) {
		return true
	}
	return sid != "" && o.SessionID == sid
}

// Status returns the order if the caller may see it.
func (s *PaymentService) Status(ctx context.Context, orderID, sid string, user *domain.User) (domain.Order, error) {
	o, _, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, notFound(err, ErrOrderNotFound)
	}
	if !owns(o, sid, user) {
		return domain.Order{}, ErrOrderNotFound
	}
	return o, nil
}

// Confirm records the customer's "payment done" and starts verification in
// the background. Only an idle order can be confirmed.
func (s *PaymentService) Confirm(ctx context.Context, orderID, sid string, user *domain.User) (domain.Order, error) {
	o, err := s.Status(ctx, orderID, sid, user)
	if err != nil {
		return domain.Order{}, err
	}
	if !s.track() {
		return o, ErrPaymentsClosed
	}
	ok, err := s.Orders.TransitionPayment(ctx, o.ID, domain.PaymentIdle, domain.PaymentProcessing, "")
	if err != nil {
		s.wg.Done()
		return domain.Order{}, err
	}
	if !ok {
		s.wg.Done()
		return o, ErrPaymentSubmitted
	}
	o.PaymentStatus = domain.PaymentProcessing

	go func() {
		defer s.wg.Done()
		s.verify(o)
	}()
	return o, nil
}

// track registers one verification with the wait group unless Shutdown has
// already started.
func (s *PaymentService) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *PaymentService) verify(o domain.Order) {
	ctx := context.Background()
	fields := map[string]any{"order_id": o.ID, "txn": o.TransactionID}

	t := time.NewTimer(s.Delay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-s.stop:
		s.leavePending(ctx, o, domain.PaymentProcessing, fields)
		return
	}

	ok, err := s.Orders.TransitionPayment(ctx, o.ID, domain.PaymentProcessing, domain.PaymentVerifying, "")
	if err != nil || !ok {
		applog.Error(nil, "payment.verifying", err, fields)
		return
	}

	paid := false
	if s.Verifier != nil {
		vctx, cancel := context.WithTimeout(ctx, s.Timeout)
		go func() {
			select {
			case <-s.stop:
				cancel()
			case <-vctx.Done():
			}
		}()
		paid, err = s.Verifier.Verify(vctx, o)
		cancel()
		if err != nil {
			applog.Error(nil, "payment.verify", err, fields)
			paid = false
		}
	}
	if !paid {
		s.leavePending(ctx, o, domain.PaymentVerifying, fields)
		return
	}

	if _, err := s.Orders.TransitionPayment(ctx, o.ID, domain.PaymentVerifying, domain.PaymentConfirmed, domain.OrderPaid); err != nil {
		applog.Error(nil, "payment.confirm", err, fields)
		return
	}
	if err := s.Carts.Clear(ctx, o.SessionID); err != nil {
		applog.Error(nil, "payment.cart_clear", err, fields)
	}
	applog.Audit(nil, "payment.confirmed", fields)
}

func (s *PaymentService) leavePending(ctx context.Context, o domain.Order, from domain.PaymentStatus, fields map[string]any) {
	if _, err := s.Orders.TransitionPayment(ctx, o.ID, from, domain.PaymentPending, ""); err != nil {
		applog.Error(nil, "payment.pending", err, fields)
		return
	}
	o.PaymentStatus = domain.PaymentPending
	applog.Audit(nil, "payment.pending", fields)
	if s.Publisher == nil {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.Publisher.PublishPending(pctx, o); err != nil {
		applog.Error(nil, "payment.publish", err, fields)
	}
}

// Resolve settles a pending order by hand: paid marks it confirmed and PAID,
// otherwise it is canceled.
func (s *PaymentService) Resolve(ctx context.Context, orderID string, paid bool) (domain.Order, error) {
	o, _, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, notFound(err, ErrOrderNotFound)
	}
	to, status := domain.PaymentConfirmed, domain.OrderPaid
	if !paid {
		to, status = domain.PaymentPending, domain.OrderCanceled
	}
	ok, err := s.Orders.TransitionPayment(ctx, o.ID, domain.PaymentPending, to, status)
	if err != nil {
		return domain.Order{}, err
	}
	if !ok {
		return o, ErrPaymentSubmitted
	}
	if paid {
		if err := s.Carts.Clear(ctx, o.SessionID); err != nil {
			applog.Error(nil, "payment.cart_clear", err, map[string]any{"order_id": o.ID})
		}
	}
	o.PaymentStatus, o.Status = to, status
	return o, nil
}

// Shutdown stops waiting verifications, which leave their orders pending,
// and waits for them to finish or for ctx to end.
func (s *PaymentService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		close(s.stop)
	}
	s.mu.Unlock()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
