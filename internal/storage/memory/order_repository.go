package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// OrderRepository хранит заказы в памяти. Для каждого клиента поддерживается
// лента идентификаторов в порядке выдачи, поэтому List не сортирует на чтении.
type OrderRepository struct {
	mu         sync.RWMutex
	orders     map[string]domain.Order
	byCustomer map[string][]string
}

// NewOrderRepository возвращает пустой репозиторий.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders:     make(map[string]domain.Order),
		byCustomer: make(map[string][]string),
	}
}

// Create сохраняет копию заказа.
func (r *OrderRepository) Create(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return domain.ErrOrderExists
	}
	r.orders[order.ID] = order.Clone()

	feed := r.byCustomer[order.CustomerID]
	cursor := domain.CursorOf(order)
	pos, _ := slices.BinarySearchFunc(feed, cursor, func(id string, c domain.OrderCursor) int {
		// лента упорядочена по убыванию (CreatedAt, ID)
		switch stored := r.orders[id]; {
		case c.Precedes(stored):
			return 1
		case domain.CursorOf(stored) == c:
			return 0
		default:
			return -1
		}
	})
	r.byCustomer[order.CustomerID] = slices.Insert(feed, pos, order.ID)
	return nil
}

// Get возвращает копию заказа или ErrOrderNotFound.
func (r *OrderRepository) Get(_ context.Context, id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order.Clone(), nil
}

// List проходит ленту клиента и отбирает заказы по фильтрам запроса.
func (r *OrderRepository) List(_ context.Context, query domain.OrderQuery) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0)
	for _, id := range r.byCustomer[query.CustomerID] {
		if query.Limit > 0 && len(result) == query.Limit {
			break
		}
		order := r.orders[id]
		if query.Matches(order) {
			result = append(result, order.Clone())
		}
	}
	return result, nil
}

// Save меняет статус, если версия совпадает. Позиции и суммы после создания не меняются.
func (r *OrderRepository) Save(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.orders[order.ID]
	switch {
	case !ok:
		return domain.ErrOrderNotFound
	case current.Version != order.Version:
		return domain.ErrOrderVersionConflict
	}

	current.Status = order.Status
	current.UpdatedAt = order.UpdatedAt
	current.Version++
	r.orders[order.ID] = current
	return nil
}

var _ domain.OrderRepository = (*OrderRepository)(nil)
