package totals

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/henry1266/pharmacy-pos-sub005/internal/domain"
	"github.com/henry1266/pharmacy-pos-sub005/internal/money"
)

func lines(subtotals ...string) []domain.LineItem {
	items := make([]domain.LineItem, 0, len(subtotals))
	for _, s := range subtotals {
		items = append(items, domain.LineItem{Subtotal: decimal.RequireFromString(s)})
	}
	return items
}

func assertTotals(t *testing.T, got domain.SaleTotals, gross, discount, net string) {
	t.Helper()
	assert.Equal(t, gross, got.GrossAmount.StringFixed(2), "gross")
	assert.Equal(t, discount, got.DiscountAmount.StringFixed(2), "discount")
	assert.Equal(t, net, got.NetAmount.StringFixed(2), "net")
}

func TestCalculateRoundsHalfAwayFromZero(t *testing.T) {
	// Gross is 29.96, not 30: subtotals are summed exactly and rounded once.
	got := Calculate(lines("19.955", "10.005"), 5.337)
	assertTotals(t, got, "29.96", "5.34", "24.62")
}

func TestCalculateIgnoresNonPositiveDiscount(t *testing.T) {
	for _, discount := range []any{0, -5, "-1.5", "abc", nil, math.NaN(), math.Inf(1)} {
		got := Calculate(lines("100", "20.5"), discount)
		assertTotals(t, got, "120.50", "0.00", "120.50")
	}
}

func TestCalculateCapsDiscountAtGross(t *testing.T) {
	got := Calculate(lines("12.34"), "99")
	assertTotals(t, got, "12.34", "12.34", "0.00")
}

func TestCalculateEmptyItems(t *testing.T) {
	got := Calculate(nil, 10)
	assertTotals(t, got, "0.00", "0.00", "0.00")
}

func TestCalculateNetIsGrossMinusDiscount(t *testing.T) {
	cases := []struct {
		subtotals []string
		discount  any
	}{
		{[]string{"0.1", "0.2"}, 0.05},
		{[]string{"1.005", "2.005", "3.005"}, "1.115"},
		{[]string{"999.999"}, 1000.01},
		{[]string{"-50", "20"}, 1},
	}
	for _, tc := range cases {
		got := Calculate(lines(tc.subtotals...), tc.discount)
		assert.False(t, got.NetAmount.IsNegative())
		assert.True(t, got.NetAmount.Equal(got.GrossAmount.Sub(got.DiscountAmount)), "%v", tc.subtotals)
	}
}

func TestCalculateIsIdempotent(t *testing.T) {
	first := Calculate(lines("19.955", "10.005"), 5.337)

	again := Calculate(lines("19.955", "10.005"), 5.337)
	assertTotals(t, again, first.GrossAmount.StringFixed(2), first.DiscountAmount.StringFixed(2), first.NetAmount.StringFixed(2))

	fedBack := Calculate([]domain.LineItem{{Subtotal: first.NetAmount}}, 0)
	assert.True(t, fedBack.GrossAmount.Equal(first.NetAmount))
	assert.True(t, fedBack.NetAmount.Equal(first.NetAmount))
}

func TestFromSubtotalsMatchesCalculate(t *testing.T) {
	amounts := []decimal.Decimal{decimal.RequireFromString("1100.05"), decimal.RequireFromString("257.95")}
	got := FromSubtotals(amounts, 8)
	assertTotals(t, got, "1358.00", "8.00", "1350.00")
}

func TestCalculateTreatsHugeExponentAsZero(t *testing.T) {
	items := []domain.LineItem{
		{Subtotal: money.Coerce("1e20000000")},
		{Subtotal: money.Coerce("12.5")},
	}
	got := Calculate(items, "1")
	assertTotals(t, got, "12.50", "1.00", "11.50")
}
