package services

import (
	"context"

	"leafline/internal/domain"
	"leafline/internal/repos"
)

// OrderService covers order history and the admin back office.
type OrderService struct {
	Orders *repos.OrderRepo
}

func NewOrderService(orders *repos.OrderRepo) *OrderService {
	return &OrderService{Orders: orders}
}

// Get returns an order to its owner (session or user) or to an admin.
func (s *OrderService) Get(ctx context.Context, id, sid string, user *domain.User) (domain.Order, []domain.OrderItem, error) {
	o, items, err := s.Orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, nil, notFound(err, ErrOrderNotFound)
	}
	if !owns(o, sid, user) {
		return domain.Order{}, nil, ErrOrderNotFound
	}
	return o, items, nil
}

// History lists a signed-in user's orders, or the session's orders for guests.
func (s *OrderService) History(ctx context.Context, sid string, user *domain.User) ([]domain.Order, error) {
	if user != nil {
		return s.Orders.ListByUser(ctx, user.ID)
	}
	return s.Orders.ListBySession(ctx, sid)
}

func (s *OrderService) ByPaymentStatus(ctx context.Context, status domain.PaymentStatus) ([]domain.Order, error) {
	switch status {
	case "", domain.PaymentIdle, domain.PaymentProcessing, domain.PaymentVerifying,
		domain.PaymentConfirmed, domain.PaymentPending:
	default:
		return nil, ErrBadStatus
	}
	return s.Orders.ListByPaymentStatus(ctx, status, 200)
}

func (s *OrderService) UpdateStatus(ctx context.Context, id, status string) error {
	switch status {
	case domain.OrderPlaced, domain.OrderPaid, domain.OrderShipped, domain.OrderCanceled:
	default:
		return ErrBadStatus
	}
	ok, err := s.Orders.UpdateStatus(ctx, id, status)
	if err != nil {
		return err
	}
	if !ok {
		return ErrOrderNotFound
	}
	return nil
}
