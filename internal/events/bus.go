// Package events реализует внутрипроцессную шину уведомлений
// ("cart.changed", "order.created" и т.д.) вместо глобальных сигналов.
package events

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// CartChanged — корзина клиента изменилась.
	CartChanged = "cart.changed"
	// WishlistChanged — избранное клиента изменилось.
	WishlistChanged = "wishlist.changed"
	// OrderCreated — оформлен новый заказ.
	OrderCreated = "order.created"
	// OrderStatusChanged — статус заказа изменён.
	OrderStatusChanged = "order.status_changed"
)

// Event — уведомление, публикуемое ядром.
type Event struct {
	Name        string
	AggregateID string
	CustomerID  string
	Payload     map[string]any
	OccurredAt  time.Time
}

// Handler обрабатывает событие. Ошибка только логируется.
type Handler func(ctx context.Context, event Event) error

// Publisher — fire-and-forget публикация: отправитель не ждёт подтверждения доставки.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Nop игнорирует все события.
type Nop struct{}

// Publish ничего не делает.
func (Nop) Publish(context.Context, Event) {}

type subscription struct {
	id      uint64
	handler Handler
}

// Bus — подписки по имени события. "*" получает все события.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string][]subscription
	logger *log.Entry
}

// NewBus создаёт шину событий.
func NewBus(logger *log.Entry) *Bus {
	if logger == nil {
		logger = log.WithField("component", "event-bus")
	}
	return &Bus{
		subs:   make(map[string][]subscription),
		logger: logger,
	}
}

// Subscribe регистрирует обработчик и возвращает функцию отписки.
func (b *Bus) Subscribe(name string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[name] = append(b.subs[name], subscription{id: id, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.subs[name]
			for i := range subs {
				if subs[i].id == id {
					b.subs[name] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
			if len(b.subs[name]) == 0 {
				delete(b.subs, name)
			}
		})
	}
}

// Publish вызывает обработчики синхронно. Ошибки и паники обработчиков не
// возвращаются отправителю.
func (b *Bus) Publish(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[event.Name])+len(b.subs["*"]))
	for _, s := range b.subs[event.Name] {
		handlers = append(handlers, s.handler)
	}
	for _, s := range b.subs["*"] {
		handlers = append(handlers, s.handler)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(ctx, h, event)
	}
}

func (b *Bus) dispatch(ctx context.Context, h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.WithFields(log.Fields{
				"event": event.Name,
				"panic": r,
			}).Error("event handler panicked")
		}
	}()

	if err := h(ctx, event); err != nil {
		b.logger.WithError(err).WithFields(log.Fields{
			"event":        event.Name,
			"aggregate_id": event.AggregateID,
		}).Warn("event handler failed")
	}
}

var (
	_ Publisher = (*Bus)(nil)
	_ Publisher = Nop{}
)
