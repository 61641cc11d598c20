package domain

import "github.com/shopspring/decimal"

// MinorUnitExponent is the number of decimal places of the settlement
// currency. Zero-decimal currencies are not supported.
const MinorUnitExponent = 2

func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(MinorUnitExponent).Round(0).IntPart()
}

func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -MinorUnitExponent)
}
