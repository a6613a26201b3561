package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/pricing"
	"github.com/vladislavdragonenkov/storefront/internal/service/invoice"
)

// Денежные суммы отдаются строками с двумя знаками, чтобы клиент не терял точность.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

type AddItemRequestDTO struct {
	ProductID        string `json:"product_id" validate:"required,max=64"`
	Quantity         int    `json:"quantity" validate:"required,min=1,max=999"`
	AllowPlaceholder bool   `json:"allow_placeholder"`
}

// Quantity < 1 удаляет позицию.
type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity" validate:"required,max=999"`
}

type AddressDTO struct {
	FullName   string `json:"full_name" validate:"required,max=128"`
	Line1      string `json:"line1" validate:"required,max=256"`
	Line2      string `json:"line2,omitempty" validate:"max=256"`
	City       string `json:"city" validate:"required,max=128"`
	PostalCode string `json:"postal_code,omitempty" validate:"max=32"`
	Country    string `json:"country" validate:"required,max=64"`
	Phone      string `json:"phone,omitempty" validate:"omitempty,e164"`
}

type CheckoutRequestDTO struct {
	ShippingAddress AddressDTO `json:"shipping_address"`
	PaymentMethod   string     `json:"payment_method" validate:"required,max=64"`
}

type StatusRequestDTO struct {
	Status string `json:"status" validate:"required"`
}

type PriceInfoDTO struct {
	OriginalPrice      string `json:"original_price"`
	DiscountedPrice    string `json:"discounted_price"`
	HasDiscount        bool   `json:"has_discount"`
	DiscountPercentage string `json:"discount_percentage"`
	DiscountAmount     string `json:"discount_amount"`
	DisplayPrice       string `json:"display_price"`
}

type ProductDTO struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	SKU         string       `json:"sku"`
	CatalogCode string       `json:"catalog_code"`
	Price       string       `json:"price"`
	InStock     bool         `json:"in_stock"`
	StockQty    int          `json:"stock_qty"`
	PriceInfo   PriceInfoDTO `json:"price_info"`
}

type TotalsDTO struct {
	Subtotal           string `json:"subtotal"`
	DiscountAmount     string `json:"discount_amount"`
	DiscountPercentage string `json:"discount_percentage"`
	Total              string `json:"total"`
}

type CartLineDTO struct {
	ProductID   string    `json:"product_id"`
	Name        string    `json:"name"`
	SKU         string    `json:"sku,omitempty"`
	UnitPrice   string    `json:"unit_price"`
	Quantity    int       `json:"quantity"`
	LineTotal   string    `json:"line_total"`
	InStock     bool      `json:"in_stock"`
	Placeholder bool      `json:"placeholder,omitempty"`
	AddedAt     time.Time `json:"added_at"`
}

type CartDTO struct {
	Items     []CartLineDTO `json:"items"`
	ItemCount int           `json:"item_count"`
	Totals    TotalsDTO     `json:"totals"`
}

type WishlistItemDTO struct {
	ProductID   string    `json:"product_id"`
	Name        string    `json:"name"`
	Price       string    `json:"price"`
	InStock     bool      `json:"in_stock"`
	Placeholder bool      `json:"placeholder,omitempty"`
	AddedAt     time.Time `json:"added_at"`
}

type WishlistDTO struct {
	Items []WishlistItemDTO `json:"items"`
	Size  int               `json:"size"`
}

type ToggleResponseDTO struct {
	ProductID string `json:"product_id"`
	Present   bool   `json:"present"`
}

type OrderItemDTO struct {
	ProductID   string `json:"product_id"`
	Name        string `json:"name"`
	SKU         string `json:"sku,omitempty"`
	CatalogCode string `json:"catalog_code,omitempty"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int    `json:"quantity"`
}

type OrderResponseDTO struct {
	ID                 string         `json:"id"`
	Status             string         `json:"status"`
	Items              []OrderItemDTO `json:"items"`
	ItemCount          int            `json:"item_count"`
	Subtotal           string         `json:"subtotal"`
	DiscountPercentage string         `json:"discount_percentage"`
	DiscountAmount     string         `json:"discount_amount"`
	Total              string         `json:"total"`
	ShippingAddress    AddressDTO     `json:"shipping_address"`
	PaymentMethod      string         `json:"payment_method"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

type VATDTO struct {
	Rate string `json:"rate"`
	VAT  string `json:"vat"`
	Base string `json:"base"`
}

type InvoiceLineDTO struct {
	ProductID           string `json:"product_id"`
	Name                string `json:"name"`
	SKU                 string `json:"sku,omitempty"`
	CatalogCode         string `json:"catalog_code,omitempty"`
	Quantity            int    `json:"quantity"`
	UnitPrice           string `json:"unit_price"`
	DiscountedUnitPrice string `json:"discounted_unit_price"`
	LineTotal           string `json:"line_total"`
	VAT                 VATDTO `json:"vat"`
}

type InvoiceDTO struct {
	Number             string           `json:"number"`
	OrderID            string           `json:"order_id"`
	IssuedAt           time.Time        `json:"issued_at"`
	Status             string           `json:"status"`
	CustomerName       string           `json:"customer_name,omitempty"`
	CustomerEmail      string           `json:"customer_email,omitempty"`
	ShippingAddress    AddressDTO       `json:"shipping_address"`
	PaymentMethod      string           `json:"payment_method"`
	Lines              []InvoiceLineDTO `json:"lines"`
	Subtotal           string           `json:"subtotal"`
	DiscountPercentage string           `json:"discount_percentage"`
	DiscountAmount     string           `json:"discount_amount"`
	Total              string           `json:"total"`
	VAT                VATDTO           `json:"vat"`
}

type CheckoutResponseDTO struct {
	Order   OrderResponseDTO `json:"order"`
	Invoice InvoiceDTO       `json:"invoice"`
}

type TimelineEventDTO struct {
	Type       string    `json:"type"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to,omitempty"`
	Note       string    `json:"note,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (a AddressDTO) toDomain() domain.Address {
	return domain.Address{
		FullName:   a.FullName,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Phone:      a.Phone,
	}
}

func convertAddress(a domain.Address) AddressDTO {
	return AddressDTO{
		FullName:   a.FullName,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Phone:      a.Phone,
	}
}

func convertPriceInfo(info pricing.PriceInfo) PriceInfoDTO {
	return PriceInfoDTO{
		OriginalPrice:      money(info.OriginalPrice),
		DiscountedPrice:    money(info.DiscountedPrice),
		HasDiscount:        info.HasDiscount,
		DiscountPercentage: info.DiscountPercentage.String(),
		DiscountAmount:     money(info.DiscountAmount),
		DisplayPrice:       money(info.DisplayPrice),
	}
}

func convertProduct(p domain.Product, pct decimal.Decimal) ProductDTO {
	return ProductDTO{
		ID:          p.ID,
		Name:        p.Name,
		SKU:         p.SKU,
		CatalogCode: p.CatalogCode,
		Price:       money(p.Price),
		InStock:     p.InStock,
		StockQty:    p.StockQty,
		PriceInfo:   convertPriceInfo(pricing.PriceInfoFor(p.Price, pct)),
	}
}

func convertTotals(t pricing.Totals) TotalsDTO {
	return TotalsDTO{
		Subtotal:           money(t.Subtotal),
		DiscountAmount:     money(t.DiscountAmount),
		DiscountPercentage: t.DiscountPercentage.String(),
		Total:              money(t.Total),
	}
}

func convertCart(c domain.Cart, totals pricing.Totals) CartDTO {
	items := make([]CartLineDTO, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, CartLineDTO{
			ProductID:   item.ID,
			Name:        item.Product.Name,
			SKU:         item.Product.SKU,
			UnitPrice:   money(item.Product.Price),
			Quantity:    item.Quantity,
			LineTotal:   money(item.LineTotal),
			InStock:     item.Product.InStock,
			Placeholder: item.Product.Placeholder,
			AddedAt:     item.AddedAt,
		})
	}
	return CartDTO{
		Items:     items,
		ItemCount: c.ItemCount(),
		Totals:    convertTotals(totals),
	}
}

func convertWishlist(w domain.Wishlist) WishlistDTO {
	items := make([]WishlistItemDTO, 0, len(w.Items))
	for _, item := range w.Items {
		items = append(items, WishlistItemDTO{
			ProductID:   item.ProductID,
			Name:        item.Product.Name,
			Price:       money(item.Product.Price),
			InStock:     item.Product.InStock,
			Placeholder: item.Product.Placeholder,
			AddedAt:     item.AddedAt,
		})
	}
	return WishlistDTO{Items: items, Size: len(items)}
}

func convertOrder(o domain.Order) OrderResponseDTO {
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemDTO{
			ProductID:   item.ProductID,
			Name:        item.Name,
			SKU:         item.SKU,
			CatalogCode: item.CatalogCode,
			UnitPrice:   money(item.UnitPrice),
			Quantity:    item.Quantity,
		})
	}
	return OrderResponseDTO{
		ID:                 o.ID,
		Status:             string(o.Status),
		Items:              items,
		ItemCount:          o.ItemCount(),
		Subtotal:           money(o.Subtotal),
		DiscountPercentage: o.DiscountPercentage.String(),
		DiscountAmount:     money(o.DiscountAmount),
		Total:              money(o.Total),
		ShippingAddress:    convertAddress(o.ShippingAddress),
		PaymentMethod:      o.PaymentMethod,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
}

func convertVAT(v pricing.VATBreakdown) VATDTO {
	return VATDTO{Rate: v.Rate.String(), VAT: money(v.VAT), Base: money(v.Base)}
}

func convertInvoice(doc invoice.Document) InvoiceDTO {
	lines := make([]InvoiceLineDTO, 0, len(doc.Lines))
	for _, l := range doc.Lines {
		lines = append(lines, InvoiceLineDTO{
			ProductID:           l.ProductID,
			Name:                l.Name,
			SKU:                 l.SKU,
			CatalogCode:         l.CatalogCode,
			Quantity:            l.Quantity,
			UnitPrice:           money(l.UnitPrice),
			DiscountedUnitPrice: money(l.DiscountedUnitPrice),
			LineTotal:           money(l.LineTotal),
			VAT:                 convertVAT(l.VAT),
		})
	}
	return InvoiceDTO{
		Number:             doc.Number,
		OrderID:            doc.OrderID,
		IssuedAt:           doc.IssuedAt,
		Status:             string(doc.Status),
		CustomerName:       doc.CustomerName,
		CustomerEmail:      doc.CustomerEmail,
		ShippingAddress:    convertAddress(doc.ShippingAddress),
		PaymentMethod:      doc.PaymentMethod,
		Lines:              lines,
		Subtotal:           money(doc.Subtotal),
		DiscountPercentage: doc.DiscountPercentage.String(),
		DiscountAmount:     money(doc.DiscountAmount),
		Total:              money(doc.Total),
		VAT:                convertVAT(doc.VAT),
	}
}

func convertTimeline(events []domain.TimelineEvent) []TimelineEventDTO {
	out := make([]TimelineEventDTO, 0, len(events))
	for _, e := range events {
		out = append(out, TimelineEventDTO{
			Type:       string(e.Type),
			From:       string(e.From),
			To:         string(e.To),
			Note:       e.Note,
			OccurredAt: e.Occurred,
		})
	}
	return out
}
