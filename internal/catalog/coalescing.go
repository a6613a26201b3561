// Package catalog содержит обёртки над каталогом товаров.
package catalog

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Coalescing склеивает одновременные запросы одного и того же товара
// (например, нормализация корзин многих клиентов сразу после релиза).
type Coalescing struct {
	next domain.Catalog
	sfg  singleflight.Group
}

// NewCoalescing оборачивает каталог.
func NewCoalescing(next domain.Catalog) *Coalescing {
	return &Coalescing{next: next}
}

// GetProduct возвращает товар; параллельные вызовы с тем же id делят один запрос.
func (c *Coalescing) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	v, err, _ := c.sfg.Do(id, func() (interface{}, error) {
		return c.next.GetProduct(ctx, id)
	})
	if err != nil {
		return domain.Product{}, err
	}
	return v.(domain.Product), nil
}

// ListProducts проксирует запрос без склейки.
func (c *Coalescing) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	return c.next.ListProducts(ctx, filter)
}

var _ domain.Catalog = (*Coalescing)(nil)
