package totals

import (
	"github.com/shopspring/decimal"

	"github.com/henry1266/pharmacy-pos-sub005/internal/domain"
	"github.com/henry1266/pharmacy-pos-sub005/internal/money"
)

// Calculate sums the line subtotals and applies the discount. The discount is
// capped at the gross amount, so the net amount is never negative.
func Calculate(items []domain.LineItem, discountInput any) domain.SaleTotals {
	subtotals := make([]decimal.Decimal, 0, len(items))
	for _, item := range items {
		subtotals = append(subtotals, item.Subtotal)
	}
	return FromSubtotals(subtotals, discountInput)
}

// FromSubtotals is Calculate over bare amounts, used where the lines are
// costs rather than sale items.
func FromSubtotals(subtotals []decimal.Decimal, discountInput any) domain.SaleTotals {
	gross := decimal.Zero
	for _, subtotal := range subtotals {
		gross = gross.Add(subtotal)
	}
	gross = money.Round2(gross)
	if gross.IsNegative() {
		gross = decimal.Zero
	}

	discount := sanitizeDiscount(discountInput)
	if discount.GreaterThan(gross) {
		discount = gross
	}
	discount = money.Round2(discount)

	return domain.SaleTotals{
		GrossAmount:    gross,
		DiscountAmount: discount,
		NetAmount:      money.Round2(gross.Sub(discount)),
	}
}

func sanitizeDiscount(input any) decimal.Decimal {
	discount := money.Coerce(input)
	if !discount.IsPositive() {
		return decimal.Zero
	}
	return discount
}
