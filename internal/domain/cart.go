package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLineItem — одна позиция корзины. На один товар приходится не более одной строки.
type CartLineItem struct {
	ID        string
	Product   ProductSnapshot
	Quantity  int
	LineTotal decimal.Decimal // кэш для отображения, итоги всегда пересчитываются
	AddedAt   time.Time
}

// Cart — корзина клиента.
type Cart struct {
	CustomerID string
	Items      []CartLineItem
	UpdatedAt  time.Time
}

// Clone возвращает независимую копию корзины.
func (c Cart) Clone() Cart {
	dst := c
	dst.Items = append([]CartLineItem(nil), c.Items...)
	return dst
}

// Find возвращает индекс строки по идентификатору товара или -1.
func (c Cart) Find(productID string) int {
	for i := range c.Items {
		if c.Items[i].ID == productID {
			return i
		}
	}
	return -1
}

// IsEmpty сообщает, что в корзине нет позиций.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// ItemCount возвращает суммарное количество единиц.
func (c Cart) ItemCount() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// WishlistItem — товар в избранном.
type WishlistItem struct {
	ProductID string
	Product   ProductSnapshot
	AddedAt   time.Time
}

// Wishlist — избранное клиента.
type Wishlist struct {
	CustomerID string
	Items      []WishlistItem
	UpdatedAt  time.Time
}

// Clone возвращает независимую копию избранного.
func (w Wishlist) Clone() Wishlist {
	dst := w
	dst.Items = append([]WishlistItem(nil), w.Items...)
	return dst
}

// Contains проверяет наличие товара.
func (w Wishlist) Contains(productID string) bool {
	for _, item := range w.Items {
		if item.ProductID == productID {
			return true
		}
	}
	return false
}
