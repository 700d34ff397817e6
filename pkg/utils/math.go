package utils

// math.go - decimal math helpers used by the path evaluator. Quantities and prices flow through the core as
// decimal.Decimal (see SPEC_FULL.md §11.1); these helpers keep the
// rounding/weighting rules in one place instead of duplicated per caller.

import (
	"github.com/shopspring/decimal"
)

// RoundToTick rounds value down to the nearest multiple of tick, floor
// toward zero (never rounds a quantity up past what is actually available,
// never rounds a price past its tick grid). A non-positive tick is treated
// as "no rounding".
func RoundToTick(value, tick decimal.Decimal) decimal.Decimal {
	if tick.Sign() <= 0 {
		return value
	}
	quotient := value.Div(tick).Truncate(0)
	return quotient.Mul(tick)
}

// WeightedAveragePrice returns the volume-weighted average price across
// executed (price, qty) pairs, i.e. the VWAP realized by a depth walk.
// Returns zero if totalQty is zero.
func WeightedAveragePrice(levels []LevelFill) decimal.Decimal {
	totalNotional := decimal.Zero
	totalQty := decimal.Zero
	for _, lv := range levels {
		totalNotional = totalNotional.Add(lv.Price.Mul(lv.Qty))
		totalQty = totalQty.Add(lv.Qty)
	}
	if totalQty.IsZero() {
		return decimal.Zero
	}
	return totalNotional.Div(totalQty)
}

// LevelFill is one (price, qty) pair consumed while walking a side of an
// order book.
type LevelFill struct {
	Price decimal.Decimal
	Qty   decimal.Decimal
}
