package domain

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ErrOrderExists, если запись с таким ID уже существует.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id string) (Order, error)
	// List возвращает заказы клиента по OrderQuery, новые первыми.
	List(ctx context.Context, query OrderQuery) ([]Order, error)
	// Save меняет статус с учётом optimistic locking.
	Save(ctx context.Context, order Order) error
}

// OrderQuery — выборка заказов одного клиента.
type OrderQuery struct {
	CustomerID string
	// Status — пусто означает любой статус.
	Status OrderStatus
	// Limit <= 0 снимает ограничение.
	Limit int
	// After продолжает выдачу со следующего за курсором заказа.
	After *OrderCursor
}

// Matches проверяет фильтры запроса без учёта Limit.
func (q OrderQuery) Matches(o Order) bool {
	if o.CustomerID != q.CustomerID {
		return false
	}
	if q.Status != "" && o.Status != q.Status {
		return false
	}
	return q.After == nil || q.After.Precedes(o)
}

// OrderCursor — позиция в ленте заказов: (CreatedAt, ID) по убыванию.
type OrderCursor struct {
	CreatedAt time.Time
	ID        string
}

// CursorOf возвращает курсор, указывающий на заказ.
func CursorOf(o Order) OrderCursor {
	return OrderCursor{CreatedAt: o.CreatedAt, ID: o.ID}
}

// Precedes сообщает, что заказ идёт в ленте после курсора.
func (c OrderCursor) Precedes(o Order) bool {
	if !o.CreatedAt.Equal(c.CreatedAt) {
		return o.CreatedAt.Before(c.CreatedAt)
	}
	return o.ID < c.ID
}

// Encode упаковывает курсор в непрозрачную строку для клиента.
func (c OrderCursor) Encode() string {
	raw := strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + ":" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// ParseOrderCursor разбирает строку Encode.
func ParseOrderCursor(token string) (OrderCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return OrderCursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	nanos, id, ok := strings.Cut(string(raw), ":")
	if !ok || id == "" {
		return OrderCursor{}, ErrInvalidCursor
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return OrderCursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return OrderCursor{CreatedAt: time.Unix(0, n).UTC(), ID: id}, nil
}
