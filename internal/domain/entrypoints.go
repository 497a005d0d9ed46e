package domain

import "github.com/shopspring/decimal"

// EntryPoint is one limit-order slice of a zone's planned capital.
type EntryPoint struct {
	PriceUSD  decimal.Decimal `json:"price_usd"`
	AmountUSD decimal.Decimal `json:"amount_usd"`
}

// SplitEntryPoints divides a computed zone's USD target across evenly
// spaced limit prices inside its range, from the upper edge down. With a
// single part the midpoint of the range is used.
func SplitEntryPoints(z ComputedZone, parts int) []EntryPoint {
	if parts <= 0 || !z.TargetUSD.IsPositive() {
		return nil
	}

	slice := z.TargetUSD.Div(decimal.NewFromInt(int64(parts)))

	if parts == 1 {
		mid := z.Zone.PriceMin.Add(z.Zone.PriceMax).Div(decimal.NewFromInt(2))
		return []EntryPoint{{PriceUSD: mid, AmountUSD: slice}}
	}

	step := z.Zone.PriceMax.Sub(z.Zone.PriceMin).Div(decimal.NewFromInt(int64(parts - 1)))
	points := make([]EntryPoint, 0, parts)
	for i := 0; i < parts; i++ {
		price := z.Zone.PriceMax.Sub(step.Mul(decimal.NewFromInt(int64(i))))
		points = append(points, EntryPoint{PriceUSD: price, AmountUSD: slice})
	}
	return points
}
