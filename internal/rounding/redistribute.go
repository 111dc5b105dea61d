package rounding

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/henry1266/pharmacy-pos-sub005/internal/domain"
	"github.com/henry1266/pharmacy-pos-sub005/internal/money"
)

// Multiplier converts a percentage adjustment into a factor. A missing or
// zero percentage is the identity; the factor never drops below zero.
func Multiplier(percent any) decimal.Decimal {
	p := money.Coerce(percent)
	if p.IsZero() {
		return decimal.NewFromInt(1)
	}
	m := decimal.NewFromInt(1).Add(p.Shift(-2))
	if m.IsNegative() {
		return decimal.Zero
	}
	return m
}

// ApplyMultiplier scales every cost by the multiplier, rounds the batch total
// to a whole currency unit and lands the rounding remainder on the largest
// adjusted cost. The adjusted costs always sum to the rounded total. If the
// remainder would push the largest cost below zero, that cost stops at zero
// and the rest of the remainder moves on to the next largest.
func ApplyMultiplier(items []domain.CostLine, multiplierPercent any) domain.MultiplierResult {
	multiplier := Multiplier(multiplierPercent)
	result := domain.MultiplierResult{
		Multiplier:    multiplier,
		AdjustedItems: make([]domain.CostLine, len(items)),
		RoundedTotal:  decimal.Zero,
	}
	if len(items) == 0 {
		return result
	}

	rawTotal := decimal.Zero
	adjustedSum := decimal.Zero
	for i, item := range items {
		cost := item.Cost
		if cost.IsNegative() {
			cost = decimal.Zero
		}
		rawTotal = rawTotal.Add(cost)

		adjusted := money.Round2(cost.Mul(multiplier))
		adjustedSum = adjustedSum.Add(adjusted)
		result.AdjustedItems[i] = domain.CostLine{ProductID: item.ProductID, Cost: adjusted}
	}

	result.RoundedTotal = money.RoundWhole(rawTotal.Mul(multiplier))
	remainder := result.RoundedTotal.Sub(adjustedSum)
	if remainder.IsZero() {
		return result
	}

	for _, idx := range byCostDescending(result.AdjustedItems) {
		candidate := result.AdjustedItems[idx].Cost.Add(remainder)
		if !candidate.IsNegative() {
			result.AdjustedItems[idx].Cost = candidate
			break
		}
		result.AdjustedItems[idx].Cost = decimal.Zero
		remainder = candidate
	}
	return result
}

func byCostDescending(items []domain.CostLine) []int {
	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return items[order[a]].Cost.GreaterThan(items[order[b]].Cost)
	})
	return order
}
