// Package pricing содержит чистые функции расчёта скидок, итогов корзины и НДС.
//
// Все денежные значения округляются до 2 знаков (half away from zero) один раз
// на каждое производное значение, промежуточная арифметика идёт без округления.
package pricing

import "github.com/shopspring/decimal"

// DefaultVATRate — ставка НДС (в процентах), уже включённая в цену.
var DefaultVATRate = decimal.NewFromInt(20)

var hundred = decimal.NewFromInt(100)

// Line — минимальная форма позиции для расчёта итогов.
type Line struct {
	Price    decimal.Decimal
	Quantity int
}

// Totals — производные итоги корзины, никогда не сохраняются.
type Totals struct {
	Subtotal           decimal.Decimal
	DiscountAmount     decimal.Decimal
	DiscountPercentage decimal.Decimal
	Total              decimal.Decimal
}

// PriceInfo — цена товара с учётом скидки клиента для витрины.
type PriceInfo struct {
	OriginalPrice      decimal.Decimal
	DiscountedPrice    decimal.Decimal
	HasDiscount        bool
	DiscountPercentage decimal.Decimal
	DiscountAmount     decimal.Decimal
	DisplayPrice       decimal.Decimal
}

// VATBreakdown — разложение суммы, включающей НДС.
type VATBreakdown struct {
	Total decimal.Decimal
	Rate  decimal.Decimal
	VAT   decimal.Decimal
	Base  decimal.Decimal
}

// Round2 округляет до копеек.
func Round2(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// ClampPercentage приводит внешнее значение скидки к диапазону [0, 100].
func ClampPercentage(pct decimal.Decimal) decimal.Decimal {
	if pct.IsNegative() {
		return decimal.Zero
	}
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}

// DiscountedPrice возвращает цену единицы после скидки.
// Неположительная скидка оставляет цену без изменений, результат не бывает отрицательным.
func DiscountedPrice(unitPrice, pct decimal.Decimal) decimal.Decimal {
	if !pct.IsPositive() {
		return unitPrice
	}
	price := Round2(unitPrice.Sub(unitPrice.Mul(pct).Div(hundred)))
	if price.IsNegative() {
		return decimal.Zero
	}
	return price
}

// DiscountAmount возвращает размер скидки на единицу товара.
func DiscountAmount(unitPrice, pct decimal.Decimal) decimal.Decimal {
	if !unitPrice.IsPositive() || !pct.IsPositive() {
		return decimal.Zero
	}
	return Round2(unitPrice.Mul(pct).Div(hundred))
}

// LineTotal — стоимость строки по цене со скидкой.
func LineTotal(unitPrice, pct decimal.Decimal, quantity int) decimal.Decimal {
	return Round2(DiscountedPrice(unitPrice, pct).Mul(decimal.NewFromInt(int64(quantity))))
}

// CartTotals считает subtotal по исходным ценам, затем скидку от subtotal.
// Пустой список даёт нулевые итоги, а не ошибку.
func CartTotals(lines []Line, pct decimal.Decimal) Totals {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	subtotal := Round2(sum)

	discount := decimal.Zero
	if pct.IsPositive() {
		discount = Round2(subtotal.Mul(pct).Div(hundred))
	}

	return Totals{
		Subtotal:           subtotal,
		DiscountAmount:     discount,
		DiscountPercentage: pct,
		Total:              subtotal.Sub(discount),
	}
}

// PriceInfoFor собирает витринное представление цены.
// HasDiscount выставляется только если цена со скидкой строго меньше исходной.
func PriceInfoFor(unitPrice, pct decimal.Decimal) PriceInfo {
	discounted := DiscountedPrice(unitPrice, pct)
	info := PriceInfo{
		OriginalPrice:      unitPrice,
		DiscountedPrice:    discounted,
		DiscountPercentage: pct,
		DiscountAmount:     DiscountAmount(unitPrice, pct),
		DisplayPrice:       unitPrice,
	}
	if pct.IsPositive() && discounted.LessThan(unitPrice) {
		info.HasDiscount = true
		info.DisplayPrice = discounted
	}
	return info
}

// SplitVAT выделяет НДС из суммы, которая его уже включает.
// НДС сверху не начисляется: Base + VAT == total.
func SplitVAT(total, rate decimal.Decimal) VATBreakdown {
	vat := decimal.Zero
	if rate.IsPositive() {
		vat = Round2(total.Mul(rate).Div(hundred.Add(rate)))
	}
	return VATBreakdown{
		Total: total,
		Rate:  rate,
		VAT:   vat,
		Base:  total.Sub(vat),
	}
}
