package domain

import "github.com/shopspring/decimal"

// FromMinorUnits converts an integer amount in minor units (paise, cents) to a decimal amount.
func FromMinorUnits(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}

func ToMinorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}
