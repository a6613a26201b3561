// Package order оформляет заказы из корзины и ведёт их по машине состояний.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/events"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/pricing"
)

const (
	maxCreateAttempts = 5
	maxSaveAttempts   = 3
)

// Factory создаёт заказы и меняет их статусы. Корзину не очищает.
type Factory struct {
	repo      domain.OrderRepository
	timeline  domain.TimelineRepository
	publisher events.Publisher
	metrics   *metrics.StoreMetrics
	ids       *IDGenerator
	logger    *log.Entry
	now       func() time.Time
}

// Option настраивает Factory.
type Option func(*Factory)

// WithTimeline включает запись истории заказа.
func WithTimeline(repo domain.TimelineRepository) Option {
	return func(f *Factory) { f.timeline = repo }
}

// WithPublisher задаёт получателя событий заказа.
func WithPublisher(p events.Publisher) Option {
	return func(f *Factory) {
		if p != nil {
			f.publisher = p
		}
	}
}

// WithMetrics задаёт метрики.
func WithMetrics(m *metrics.StoreMetrics) Option {
	return func(f *Factory) { f.metrics = m }
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithClock подменяет часы фабрики и генератора идентификаторов.
func WithClock(now func() time.Time) Option {
	return func(f *Factory) {
		if now != nil {
			f.now = now
			f.ids = NewIDGenerator(now)
		}
	}
}

// WithIDGenerator задаёт генератор идентификаторов.
func WithIDGenerator(g *IDGenerator) Option {
	return func(f *Factory) {
		if g != nil {
			f.ids = g
		}
	}
}

// NewFactory создаёт фабрику заказов.
func NewFactory(repo domain.OrderRepository, opts ...Option) *Factory {
	f := &Factory{
		repo:      repo,
		publisher: events.Nop{},
		logger:    log.WithField("component", "order-factory"),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.ids == nil {
		f.ids = NewIDGenerator(f.now)
	}
	return f
}

// Create оформляет заказ из снимка корзины. Итоги считаются один раз и дальше
// не пересчитываются; позиции копируются по значению.
func (f *Factory) Create(ctx context.Context, cart domain.Cart, customer domain.Customer, shipping domain.Address, paymentMethod string) (domain.Order, error) {
	customer.ID = strings.TrimSpace(customer.ID)
	if customer.ID == "" {
		return domain.Order{}, domain.ErrNotAuthenticated
	}
	if cart.IsEmpty() {
		return domain.Order{}, domain.ErrEmptyCart
	}
	if err := shipping.Validate(); err != nil {
		return domain.Order{}, err
	}
	paymentMethod = strings.TrimSpace(paymentMethod)
	if paymentMethod == "" {
		return domain.Order{}, domain.ErrPaymentMethodRequired
	}

	pct := pricing.ClampPercentage(customer.DiscountPercentage)
	items := make([]domain.OrderItem, 0, len(cart.Items))
	lines := make([]pricing.Line, 0, len(cart.Items))
	for _, line := range cart.Items {
		items = append(items, domain.OrderItem{
			ProductID:   line.ID,
			Name:        line.Product.Name,
			SKU:         line.Product.SKU,
			CatalogCode: line.Product.CatalogCode,
			UnitPrice:   line.Product.Price,
			Quantity:    line.Quantity,
		})
		lines = append(lines, pricing.Line{Price: line.Product.Price, Quantity: line.Quantity})
	}
	totals := pricing.CartTotals(lines, pct)

	now := f.now()
	order := domain.Order{
		CustomerID:         customer.ID,
		CustomerEmail:      customer.Email,
		CustomerName:       customer.Name,
		Items:              items,
		Subtotal:           totals.Subtotal,
		DiscountAmount:     totals.DiscountAmount,
		DiscountPercentage: totals.DiscountPercentage,
		Total:              totals.Total,
		ShippingAddress:    shipping,
		PaymentMethod:      paymentMethod,
		Status:             domain.OrderStatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, fmt.Errorf("invalid order: %w", errors.Join(errs...))
	}

	if err := f.insert(ctx, &order); err != nil {
		return domain.Order{}, err
	}

	f.appendTimeline(ctx, domain.OrderCreatedEvent(order))
	f.metrics.RecordOrderCreated(order.Total.InexactFloat64())

	payload := map[string]any{
		"order_id":    order.ID,
		"total":       order.Total.StringFixed(2),
		"customer_id": order.CustomerID,
		"item_count":  order.ItemCount(),
	}
	if order.CustomerEmail != "" {
		payload["customer_email"] = order.CustomerEmail
	}
	if order.HasDiscount() {
		payload["discount_percentage"] = order.DiscountPercentage.String()
		payload["discount_amount"] = order.DiscountAmount.StringFixed(2)
	}
	f.publisher.Publish(ctx, events.Event{
		Name:        events.OrderCreated,
		AggregateID: order.ID,
		CustomerID:  order.CustomerID,
		Payload:     payload,
		OccurredAt:  now,
	})

	f.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"customer_id": order.CustomerID,
		"total":       order.Total.StringFixed(2),
	}).Info("order created")

	return order.Clone(), nil
}

// insert сохраняет заказ, перевыпуская идентификатор при коллизии.
func (f *Factory) insert(ctx context.Context, order *domain.Order) error {
	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		order.ID = f.ids.Next()
		err := f.repo.Create(ctx, order.Clone())
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrOrderExists) {
			f.logger.WithField("order_id", order.ID).Warn("order id collision, regenerating")
			continue
		}
		f.logger.WithError(err).WithField("customer_id", order.CustomerID).Error("failed to create order")
		return domain.PersistenceError("create order", err)
	}
	return domain.PersistenceError("create order", fmt.Errorf("%w after %d attempts", domain.ErrOrderExists, maxCreateAttempts))
}

// SetStatus переводит заказ в новый статус. Запрос текущего статуса ничего не меняет.
// При конфликте версий заказ перечитывается и переход проверяется заново.
func (f *Factory) SetStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error) {
	if !status.Valid() {
		return domain.Order{}, fmt.Errorf("%w: %q", domain.ErrUnknownStatus, status)
	}

	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		order, err := f.Get(ctx, orderID)
		if err != nil {
			return domain.Order{}, err
		}
		if order.Status == status {
			return order, nil
		}
		if !order.Status.CanTransitionTo(status) {
			return domain.Order{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, order.Status, status)
		}

		from := order.Status
		order.Status = status
		order.UpdatedAt = f.now()

		err = f.repo.Save(ctx, order)
		if errors.Is(err, domain.ErrOrderVersionConflict) {
			f.logger.WithFields(log.Fields{
				"order_id": orderID,
				"attempt":  attempt,
			}).Warn("order version conflict, reloading")
			continue
		}
		if err != nil {
			f.logger.WithError(err).WithField("order_id", orderID).Error("failed to save order status")
			return domain.Order{}, domain.PersistenceError("save order", err)
		}
		order.Version++

		f.appendTimeline(ctx, domain.StatusChangedEvent(order.ID, from, status, order.UpdatedAt))
		f.metrics.RecordStatusTransition(string(from), string(status))
		f.publisher.Publish(ctx, events.Event{
			Name:        events.OrderStatusChanged,
			AggregateID: order.ID,
			CustomerID:  order.CustomerID,
			Payload: map[string]any{
				"order_id": order.ID,
				"from":     string(from),
				"to":       string(status),
			},
			OccurredAt: order.UpdatedAt,
		})
		return order, nil
	}

	return domain.Order{}, fmt.Errorf("set status of %s: %w", orderID, domain.ErrOrderVersionConflict)
}

// Get возвращает заказ или ErrOrderNotFound.
func (f *Factory) Get(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := f.repo.Get(ctx, strings.TrimSpace(orderID))
	switch {
	case err == nil:
		return order, nil
	case errors.Is(err, domain.ErrOrderNotFound):
		return domain.Order{}, err
	default:
		f.logger.WithError(err).WithField("order_id", orderID).Warn("failed to load order")
		return domain.Order{}, domain.PersistenceError("load order", err)
	}
}

// List возвращает страницу заказов клиента, новые первыми.
func (f *Factory) List(ctx context.Context, query domain.OrderQuery) ([]domain.Order, error) {
	query.CustomerID = strings.TrimSpace(query.CustomerID)
	if query.CustomerID == "" {
		return nil, domain.ErrCustomerRequired
	}
	if query.Status != "" && !query.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownStatus, query.Status)
	}
	orders, err := f.repo.List(ctx, query)
	if err != nil {
		return nil, domain.PersistenceError("list orders", err)
	}
	return orders, nil
}

// History возвращает историю заказа.
func (f *Factory) History(ctx context.Context, orderID string) ([]domain.TimelineEvent, error) {
	if f.timeline == nil {
		return nil, nil
	}
	history, err := f.timeline.List(ctx, orderID)
	if err != nil {
		return nil, domain.PersistenceError("list timeline", err)
	}
	return history, nil
}

// appendTimeline не прерывает операцию: история вторична по отношению к заказу.
func (f *Factory) appendTimeline(ctx context.Context, event domain.TimelineEvent) {
	if f.timeline == nil {
		return
	}
	if err := f.timeline.Append(ctx, event); err != nil {
		f.logger.WithError(err).WithFields(log.Fields{
			"order_id": event.OrderID,
			"event":    event.Type,
		}).Warn("failed to append timeline event")
		return
	}
	f.metrics.RecordTimelineEvent()
}
