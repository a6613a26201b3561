package invoice

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleOrder() domain.Order {
	return domain.Order{
		ID:         "ORD-20260301-101500-0001-7F3A9C",
		CustomerID: "c-1",
		Items: []domain.OrderItem{
			{ProductID: "p-1001", Name: "Bearing 6204", UnitPrice: dec("45.00"), Quantity: 2},
			{ProductID: "p-1003", Name: "Hose 2SN", UnitPrice: dec("19.99"), Quantity: 1},
		},
		Subtotal:           dec("109.99"),
		DiscountAmount:     dec("11.00"),
		DiscountPercentage: dec("10"),
		Total:              dec("98.99"),
		PaymentMethod:      "card",
		Status:             domain.OrderStatusPending,
		CreatedAt:          time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC),
	}
}

func TestRenderLines(t *testing.T) {
	doc := Render(sampleOrder())

	assert.Equal(t, "INV-20260301-101500-0001-7F3A9C", doc.Number)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC), doc.IssuedAt)
	require.Len(t, doc.Lines, 2)

	first := doc.Lines[0]
	assert.True(t, first.DiscountedUnitPrice.Equal(dec("40.50")))
	assert.True(t, first.LineTotal.Equal(dec("81.00")))
	assert.True(t, first.VAT.VAT.Equal(dec("13.50")))
	assert.True(t, first.VAT.Base.Equal(dec("67.50")))

	second := doc.Lines[1]
	assert.True(t, second.DiscountedUnitPrice.Equal(dec("17.99")))
	assert.True(t, second.LineTotal.Equal(dec("17.99")))
	assert.True(t, second.VAT.VAT.Equal(dec("3.00")))
}

func TestRenderOrderVATIsIndependent(t *testing.T) {
	doc := Render(sampleOrder())

	assert.True(t, doc.VAT.VAT.Equal(dec("16.50")), doc.VAT.VAT.String())
	assert.True(t, doc.VAT.Base.Equal(dec("82.49")), doc.VAT.Base.String())

	lineVAT := decimal.Zero
	for _, l := range doc.Lines {
		lineVAT = lineVAT.Add(l.VAT.VAT)
	}
	diff := lineVAT.Sub(doc.VAT.VAT).Abs()
	assert.True(t, diff.LessThanOrEqual(dec("0.01").Mul(decimal.NewFromInt(int64(len(doc.Lines))))))
}

func TestRenderDoesNotMutateOrder(t *testing.T) {
	order := sampleOrder()
	before := order.Clone()

	_ = Render(order)

	assert.Equal(t, before, order)
}

func TestRenderWithoutDiscount(t *testing.T) {
	order := sampleOrder()
	order.DiscountPercentage = decimal.Zero
	order.DiscountAmount = decimal.Zero
	order.Total = order.Subtotal

	doc := Render(order)
	assert.True(t, doc.Lines[0].DiscountedUnitPrice.Equal(dec("45.00")))
	assert.True(t, doc.Lines[0].LineTotal.Equal(dec("90.00")))
	assert.True(t, doc.VAT.VAT.Equal(dec("18.33")))
}
