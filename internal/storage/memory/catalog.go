package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Catalog — in-memory каталог товаров для разработки и тестов.
type Catalog struct {
	mu       sync.RWMutex
	products map[string]domain.Product
}

// NewCatalog создаёт каталог с переданными товарами.
func NewCatalog(products ...domain.Product) *Catalog {
	c := &Catalog{products: make(map[string]domain.Product, len(products))}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

// Put добавляет или заменяет товар.
func (c *Catalog) Put(p domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

// Delete удаляет товар из каталога.
func (c *Catalog) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.products, id)
}

// GetProduct возвращает товар или ErrProductNotFound.
func (c *Catalog) GetProduct(_ context.Context, id string) (domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

// ListProducts фильтрует товары по подстроке имени/SKU, наличию и списку ID.
func (c *Catalog) ListProducts(_ context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var ids map[string]struct{}
	if len(filter.IDs) > 0 {
		ids = make(map[string]struct{}, len(filter.IDs))
		for _, id := range filter.IDs {
			ids[id] = struct{}{}
		}
	}
	query := strings.ToLower(strings.TrimSpace(filter.Query))

	result := make([]domain.Product, 0, len(c.products))
	for _, p := range c.products {
		if ids != nil {
			if _, ok := ids[p.ID]; !ok {
				continue
			}
		}
		if filter.InStockOnly && !p.InStock {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(p.Name), query) &&
			!strings.Contains(strings.ToLower(p.SKU), query) &&
			!strings.Contains(strings.ToLower(p.CatalogCode), query) {
			continue
		}
		result = append(result, p)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// DemoProducts — стартовый ассортимент для локального запуска.
func DemoProducts() []domain.Product {
	mk := func(id, name, sku, code, price string, stock int) domain.Product {
		return domain.Product{
			ID:          id,
			Name:        name,
			SKU:         sku,
			CatalogCode: code,
			Price:       decimal.RequireFromString(price),
			StockQty:    stock,
			InStock:     stock > 0,
		}
	}
	return []domain.Product{
		mk("p-1001", "Deep groove ball bearing 6204-2RS", "BRG-6204", "CAT-BR-01", "45.00", 120),
		mk("p-1002", "V-belt SPZ 1250", "BLT-SPZ1250", "CAT-BT-07", "38.50", 40),
		mk("p-1003", "Hydraulic hose 1/2\" 2SN, 1m", "HOS-2SN-12", "CAT-HY-03", "19.99", 300),
		mk("p-1004", "Pillow block unit UCP205", "BRG-UCP205", "CAT-BR-11", "62.40", 0),
		mk("p-1005", "Roller chain 08B-1, 5m", "CHN-08B1-5", "CAT-CH-02", "112.00", 15),
	}
}

var _ domain.Catalog = (*Catalog)(nil)
