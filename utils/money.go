package utils

import "github.com/shopspring/decimal"

// MoneyPlaces is the fractional precision used for every stored amount.
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a major-unit amount to the gateway's integer minor unit.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits converts a gateway minor-unit integer back to major units.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -MoneyPlaces)
}

// IsMoneyPrecise reports whether the amount has no more than two fractional digits.
func IsMoneyPrecise(amount decimal.Decimal) bool {
	return amount.Equal(amount.Round(MoneyPlaces))
}

// MaxZero returns d or zero, whichever is larger.
func MaxZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
