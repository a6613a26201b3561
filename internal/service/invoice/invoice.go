// Package invoice строит печатный документ по оформленному заказу.
package invoice

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/pricing"
)

// Line — строка счёта.
type Line struct {
	ProductID           string
	Name                string
	SKU                 string
	CatalogCode         string
	Quantity            int
	UnitPrice           decimal.Decimal
	DiscountedUnitPrice decimal.Decimal
	LineTotal           decimal.Decimal
	VAT                 pricing.VATBreakdown
}

// Document — счёт по заказу. НДС по строкам и НДС по заказу считаются независимо
// и могут расходиться на единицу округления.
type Document struct {
	Number             string
	OrderID            string
	IssuedAt           time.Time
	Status             domain.OrderStatus
	CustomerName       string
	CustomerEmail      string
	ShippingAddress    domain.Address
	PaymentMethod      string
	Lines              []Line
	Subtotal           decimal.Decimal
	DiscountPercentage decimal.Decimal
	DiscountAmount     decimal.Decimal
	Total              decimal.Decimal
	VAT                pricing.VATBreakdown
}

// Render строит счёт. Заказ не изменяется.
func Render(order domain.Order) Document {
	doc := Document{
		Number:             Number(order.ID),
		OrderID:            order.ID,
		IssuedAt:           order.CreatedAt,
		Status:             order.Status,
		CustomerName:       order.CustomerName,
		CustomerEmail:      order.CustomerEmail,
		ShippingAddress:    order.ShippingAddress,
		PaymentMethod:      order.PaymentMethod,
		Lines:              make([]Line, 0, len(order.Items)),
		Subtotal:           order.Subtotal,
		DiscountPercentage: order.DiscountPercentage,
		DiscountAmount:     order.DiscountAmount,
		Total:              order.Total,
		VAT:                pricing.SplitVAT(order.Total, pricing.DefaultVATRate),
	}

	for _, item := range order.Items {
		discounted := pricing.DiscountedPrice(item.UnitPrice, order.DiscountPercentage)
		total := pricing.Round2(discounted.Mul(decimal.NewFromInt(int64(item.Quantity))))
		doc.Lines = append(doc.Lines, Line{
			ProductID:           item.ProductID,
			Name:                item.Name,
			SKU:                 item.SKU,
			CatalogCode:         item.CatalogCode,
			Quantity:            item.Quantity,
			UnitPrice:           item.UnitPrice,
			DiscountedUnitPrice: discounted,
			LineTotal:           total,
			VAT:                 pricing.SplitVAT(total, pricing.DefaultVATRate),
		})
	}
	return doc
}

// Number выводит номер счёта из идентификатора заказа.
func Number(orderID string) string {
	return "INV-" + strings.TrimPrefix(orderID, "ORD-")
}
