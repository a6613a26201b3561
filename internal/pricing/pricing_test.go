package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, d(want).Equal(got), "want %s, got %s", want, got.StringFixed(2))
}

func TestDiscountedPrice(t *testing.T) {
	tests := []struct {
		name  string
		price string
		pct   string
		want  string
	}{
		{name: "fifteen percent", price: "100.00", pct: "15", want: "85.00"},
		{name: "no discount", price: "100.00", pct: "0", want: "100.00"},
		{name: "negative pct ignored", price: "100.00", pct: "-5", want: "100.00"},
		{name: "rounds half away from zero", price: "10.05", pct: "50", want: "5.03"},
		{name: "full discount", price: "19.99", pct: "100", want: "0.00"},
		{name: "floored at zero above hundred", price: "10.00", pct: "150", want: "0.00"},
		{name: "zero price", price: "0", pct: "10", want: "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertMoney(t, tt.want, DiscountedPrice(d(tt.price), d(tt.pct)))
		})
	}
}

func TestDiscountAmount(t *testing.T) {
	assertMoney(t, "15.00", DiscountAmount(d("100.00"), d("15")))
	assertMoney(t, "0", DiscountAmount(d("0"), d("15")))
	assertMoney(t, "0", DiscountAmount(d("100.00"), d("0")))
	assertMoney(t, "0", DiscountAmount(d("-1.00"), d("10")))
	assertMoney(t, "3.34", DiscountAmount(d("33.35"), d("10")))
}

// Цена со скидкой не превышает исходную и строго меньше при скидке >= 1%
// для цен от 1.00: при меньших ценах скидка может округлиться до нуля.
func TestDiscountedPriceNeverExceedsOriginal(t *testing.T) {
	prices := []string{"0", "0.01", "0.99", "1.00", "1.01", "9.99", "45.00", "38.50", "1234.56"}

	for _, raw := range prices {
		price := d(raw)
		for pct := int64(0); pct <= 100; pct++ {
			got := DiscountedPrice(price, decimal.NewFromInt(pct))
			require.Truef(t, got.LessThanOrEqual(price), "price %s pct %d: %s > original", raw, pct, got)
			require.False(t, got.IsNegative())

			if pct == 0 {
				require.Truef(t, got.Equal(price), "price %s: zero pct must keep price", raw)
				continue
			}
			if price.GreaterThanOrEqual(d("1.00")) {
				require.Truef(t, got.LessThan(price), "price %s pct %d: expected strict decrease", raw, pct)
			}
		}
	}
}

func TestCartTotals(t *testing.T) {
	t.Run("two lines without discount", func(t *testing.T) {
		totals := CartTotals([]Line{
			{Price: d("45.00"), Quantity: 2},
			{Price: d("38.50"), Quantity: 1},
		}, decimal.Zero)

		assertMoney(t, "128.50", totals.Subtotal)
		assertMoney(t, "0.00", totals.DiscountAmount)
		assertMoney(t, "128.50", totals.Total)
	})

	t.Run("discount applied to subtotal", func(t *testing.T) {
		totals := CartTotals([]Line{
			{Price: d("33.33"), Quantity: 3},
		}, d("10"))

		assertMoney(t, "99.99", totals.Subtotal)
		assertMoney(t, "10.00", totals.DiscountAmount)
		assertMoney(t, "89.99", totals.Total)
		assertMoney(t, "10", totals.DiscountPercentage)
	})

	t.Run("empty cart", func(t *testing.T) {
		for _, pct := range []string{"0", "15", "100"} {
			totals := CartTotals(nil, d(pct))
			assert.True(t, totals.Subtotal.IsZero())
			assert.True(t, totals.DiscountAmount.IsZero())
			assert.True(t, totals.Total.IsZero())
			assertMoney(t, pct, totals.DiscountPercentage)
		}
	})

	t.Run("total is subtotal minus discount", func(t *testing.T) {
		totals := CartTotals([]Line{
			{Price: d("0.10"), Quantity: 7},
			{Price: d("19.99"), Quantity: 11},
		}, d("7.5"))
		assert.True(t, totals.Subtotal.Sub(totals.DiscountAmount).Equal(totals.Total))
	})
}

func TestPriceInfoFor(t *testing.T) {
	info := PriceInfoFor(d("100.00"), d("15"))
	assert.True(t, info.HasDiscount)
	assertMoney(t, "85.00", info.DiscountedPrice)
	assertMoney(t, "15.00", info.DiscountAmount)
	assertMoney(t, "85.00", info.DisplayPrice)
	assertMoney(t, "100.00", info.OriginalPrice)

	free := PriceInfoFor(decimal.Zero, d("15"))
	assert.False(t, free.HasDiscount, "zero price product must not report a discount")
	assertMoney(t, "0", free.DisplayPrice)

	none := PriceInfoFor(d("20.00"), decimal.Zero)
	assert.False(t, none.HasDiscount)
	assertMoney(t, "20.00", none.DisplayPrice)
}

func TestSplitVAT(t *testing.T) {
	vat := SplitVAT(d("120.00"), DefaultVATRate)
	assertMoney(t, "20.00", vat.VAT)
	assertMoney(t, "100.00", vat.Base)

	odd := SplitVAT(d("99.99"), DefaultVATRate)
	assertMoney(t, "16.67", odd.VAT)
	assertMoney(t, "83.32", odd.Base)
	assert.True(t, odd.VAT.Add(odd.Base).Equal(d("99.99")))

	zero := SplitVAT(d("50.00"), decimal.Zero)
	assert.True(t, zero.VAT.IsZero())
	assertMoney(t, "50.00", zero.Base)
}

func TestLineTotalAndClamp(t *testing.T) {
	assertMoney(t, "170.00", LineTotal(d("100.00"), d("15"), 2))
	assertMoney(t, "0", ClampPercentage(d("-3")))
	assertMoney(t, "100", ClampPercentage(d("250")))
	assertMoney(t, "12.5", ClampPercentage(d("12.5")))
}
