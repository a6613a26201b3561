package domain

import "time"

// TimelineEventType — вид записи в истории заказа.
type TimelineEventType string

const (
	TimelineOrderCreated  TimelineEventType = "order_created"
	TimelineStatusChanged TimelineEventType = "status_changed"
)

// TimelineEvent — запись истории заказа. From пуст у события создания.
type TimelineEvent struct {
	OrderID  string
	Type     TimelineEventType
	From     OrderStatus
	To       OrderStatus
	Note     string
	Occurred time.Time
}

// OrderCreatedEvent открывает историю заказа; в Note попадает итоговая сумма.
func OrderCreatedEvent(order Order) TimelineEvent {
	return TimelineEvent{
		OrderID:  order.ID,
		Type:     TimelineOrderCreated,
		To:       order.Status,
		Note:     "total " + order.Total.StringFixed(2),
		Occurred: order.CreatedAt,
	}
}

// StatusChangedEvent фиксирует переход from -> to.
func StatusChangedEvent(orderID string, from, to OrderStatus, at time.Time) TimelineEvent {
	return TimelineEvent{
		OrderID:  orderID,
		Type:     TimelineStatusChanged,
		From:     from,
		To:       to,
		Occurred: at,
	}
}
