package services

import (
	"github.com/shopspring/decimal"
)

// lineTotal returns price × quantity as a decimal so sums do not drift.
func lineTotal(price float64, quantity int) decimal.Decimal {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(quantity)))
}

func roundAmount(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// amountsEqual compares two currency amounts at two decimal places.
func amountsEqual(a, b float64) bool {
	return decimal.NewFromFloat(a).Round(2).Equal(decimal.NewFromFloat(b).Round(2))
}
