package inventory

import "github.com/shopspring/decimal"

// WeightedAverageCost returns Σ(qty*puPrice)/Σqty over the given lots, or zero
// when nothing is on hand.
func WeightedAverageCost(lots []Lot) decimal.Decimal {
	qty := decimal.Zero
	value := decimal.Zero
	for _, l := range lots {
		if !l.Quantity.IsPositive() {
			continue
		}
		qty = qty.Add(l.Quantity)
		value = value.Add(l.Quantity.Mul(l.PuPrice))
	}
	if qty.IsZero() {
		return decimal.Zero
	}
	return value.DivRound(qty, 4)
}
