package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// OutboxRelay переносит события заказов из шины в outbox, откуда их забирает
// outbox worker. Запись в outbox идёт отдельно от сохранения заказа: если она
// не удалась, заказ остаётся, а уведомление теряется и попадает в лог как ошибка.
type OutboxRelay struct {
	repo   domain.OutboxRepository
	logger *log.Entry
}

// NewOutboxRelay создаёт relay поверх outbox-репозитория.
func NewOutboxRelay(repo domain.OutboxRepository, logger *log.Entry) *OutboxRelay {
	if logger == nil {
		logger = log.WithField("component", "outbox-relay")
	}
	return &OutboxRelay{repo: repo, logger: logger}
}

// Attach подписывает relay на события заказов и возвращает функцию отписки.
func (r *OutboxRelay) Attach(bus *Bus) (detach func()) {
	unsubs := []func(){
		bus.Subscribe(OrderCreated, r.Handle),
		bus.Subscribe(OrderStatusChanged, r.Handle),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Handle сохраняет событие в outbox.
func (r *OutboxRelay) Handle(ctx context.Context, event Event) error {
	payload, err := json.Marshal(struct {
		EventType  string         `json:"event_type"`
		OrderID    string         `json:"order_id"`
		CustomerID string         `json:"customer_id"`
		Timestamp  string         `json:"timestamp"`
		Data       map[string]any `json:"data,omitempty"`
	}{
		EventType:  event.Name,
		OrderID:    event.AggregateID,
		CustomerID: event.CustomerID,
		Timestamp:  event.OccurredAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Data:       event.Payload,
	})
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	msg, err := r.repo.Enqueue(ctx, domain.OutboxMessage{
		ID:            uuid.NewString(),
		AggregateType: "order",
		AggregateID:   event.AggregateID,
		EventType:     event.Name,
		Payload:       payload,
		CreatedAt:     event.OccurredAt,
	})
	if err != nil {
		r.logger.WithError(err).WithFields(log.Fields{
			"event_type": event.Name,
			"order_id":   event.AggregateID,
		}).Error("order notification was not enqueued")
		return fmt.Errorf("enqueue outbox message: %w", err)
	}

	r.logger.WithFields(log.Fields{
		"outbox_id":  msg.ID,
		"event_type": msg.EventType,
		"order_id":   msg.AggregateID,
	}).Debug("event enqueued to outbox")
	return nil
}
