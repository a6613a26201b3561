// Package checkout связывает корзину, фабрику заказов и счёт в один сценарий оформления.
package checkout

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/invoice"
	"github.com/vladislavdragonenkov/storefront/internal/session"
)

// Cart — операции корзины, нужные оформлению.
type Cart interface {
	Drain(ctx context.Context, fn func(domain.Cart) error) error
}

// OrderCreator создаёт заказ из снимка корзины.
type OrderCreator interface {
	Create(ctx context.Context, cart domain.Cart, customer domain.Customer, shipping domain.Address, paymentMethod string) (domain.Order, error)
}

// Result — заказ и счёт по нему.
type Result struct {
	Order   domain.Order
	Invoice invoice.Document
}

// Service оформляет заказы.
type Service struct {
	cart   Cart
	orders OrderCreator
	logger *log.Entry
}

// NewService создаёт сервис оформления.
func NewService(cart Cart, orders OrderCreator, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "checkout")
	}
	return &Service{cart: cart, orders: orders, logger: logger}
}

// PlaceOrder оформляет заказ из текущей корзины клиента. Корзина заблокирована от
// изменений с момента снятия снимка до сохранения заказа и очищается только после
// успешного сохранения. Если заказ сохранён, а корзину очистить не удалось,
// заказ всё равно возвращается.
func (s *Service) PlaceOrder(ctx context.Context, shipping domain.Address, paymentMethod string) (Result, error) {
	customer, err := session.CustomerFromContext(ctx)
	if err != nil {
		return Result{}, err
	}

	var order domain.Order
	err = s.cart.Drain(ctx, func(c domain.Cart) error {
		created, err := s.orders.Create(ctx, c, customer, shipping, paymentMethod)
		if err != nil {
			return err
		}
		order = created
		return nil
	})
	if err != nil {
		if order.ID == "" {
			return Result{}, err
		}
		if !errors.Is(err, domain.ErrPersistence) {
			return Result{}, err
		}
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id":    order.ID,
			"customer_id": customer.ID,
		}).Error("order placed but cart was not cleared")
	}

	s.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"customer_id": customer.ID,
		"total":       order.Total.StringFixed(2),
	}).Info("checkout completed")

	return Result{Order: order, Invoice: invoice.Render(order)}, nil
}
