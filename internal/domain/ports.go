package domain

import (
	"context"
	"time"
)

// Catalog — read-only доступ к каталогу товаров.
type Catalog interface {
	// GetProduct возвращает товар или ErrProductNotFound.
	GetProduct(ctx context.Context, id string) (Product, error)
	// ListProducts возвращает товары по фильтру.
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
}

// StateStore — долговременное key-value хранилище в пространстве клиента.
// Отсутствующий ключ возвращает ErrStateNotFound.
type StateStore interface {
	Get(ctx context.Context, customerID, key string) ([]byte, error)
	Set(ctx context.Context, customerID, key string, value []byte) error
	Delete(ctx context.Context, customerID, key string) error
}

// OutboxPublisher публикует события из outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(ctx context.Context, event OutboxMessage) error
}

// OutboxRepository — очередь уведомлений о заказах, ожидающих доставки брокеру.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	// PullPending забирает до limit ожидающих сообщений на OutboxLease, старые первыми.
	// Сообщение, не отмеченное за время аренды, будет выдано повторно.
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	// MarkFailed снимает сообщение с доставки и сохраняет причину.
	MarkFailed(ctx context.Context, id, reason string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	List(ctx context.Context, orderID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}
