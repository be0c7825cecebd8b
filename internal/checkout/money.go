package checkout

import "github.com/shopspring/decimal"

const (
	// DefaultShippingFlatCents is charged once per vendor order when no
	// pricing config is supplied.
	DefaultShippingFlatCents = 1000

	// DefaultTaxRateBasisPts is the fallback tax rate (10%).
	DefaultTaxRateBasisPts = 1000
)

// ComputeTax returns the tax on a subtotal in whole cents, rounded half-up.
// The rate is expressed in basis points (1000 = 10%).
func ComputeTax(subtotalCents, rateBasisPts int) int {
	tax := decimal.NewFromInt(int64(subtotalCents)).
		Mul(decimal.NewFromInt(int64(rateBasisPts))).
		Div(decimal.NewFromInt(10000)).
		Round(0)
	return int(tax.IntPart())
}

// AccumulateRegenScore adds score×qty to a running checkout total,
// keeping the arithmetic in decimal space.
func AccumulateRegenScore(total decimal.Decimal, score float64, qty int) decimal.Decimal {
	return total.Add(decimal.NewFromFloat(score).Mul(decimal.NewFromInt(int64(qty))))
}
