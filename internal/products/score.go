package products

import "github.com/shopspring/decimal"

// ComputeRegenScore derives the listing's regen score from its environmental
// metrics: the mean of co2 reduction, water saving, and energy efficiency,
// rounded half-up to two decimal places.
func ComputeRegenScore(co2Reduction, waterSaving, energyEfficiency float64) float64 {
	sum := decimal.NewFromFloat(co2Reduction).
		Add(decimal.NewFromFloat(waterSaving)).
		Add(decimal.NewFromFloat(energyEfficiency))
	score, _ := sum.Div(decimal.NewFromInt(3)).Round(2).Float64()
	return score
}
