package domain

import "github.com/shopspring/decimal"

// Product — карточка товара из каталога. Корзина и заказы её не изменяют.
type Product struct {
	ID          string
	Name        string
	SKU         string
	CatalogCode string
	Price       decimal.Decimal
	StockQty    int
	InStock     bool
}

// Snapshot фиксирует поля товара, нужные корзине, на момент использования.
func (p Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{
		ID:          p.ID,
		Name:        p.Name,
		SKU:         p.SKU,
		CatalogCode: p.CatalogCode,
		Price:       p.Price,
		InStock:     p.InStock,
	}
}

// ProductSnapshot — копия полей товара внутри строки корзины или избранного.
// Placeholder помечает запись, собранную без каталога (деградированный режим).
type ProductSnapshot struct {
	ID          string
	Name        string
	SKU         string
	CatalogCode string
	Price       decimal.Decimal
	InStock     bool
	Placeholder bool
}

// PlaceholderSnapshot строит снимок для товара, которого нет в каталоге.
func PlaceholderSnapshot(id, name string, price decimal.Decimal) ProductSnapshot {
	if name == "" {
		name = "Unavailable product " + id
	}
	if price.IsNegative() {
		price = decimal.Zero
	}
	return ProductSnapshot{
		ID:          id,
		Name:        name,
		Price:       price,
		Placeholder: true,
	}
}

// ProductFilter задаёт параметры выборки из каталога.
type ProductFilter struct {
	Query       string
	InStockOnly bool
	IDs         []string
	Limit       int
}
