package model

import (
	"fmt"
	"math"
)

// MinorUnitScale converts major currency units to the settlement backend's
// minor unit (cents for two-decimal currencies).
const MinorUnitScale = 100

// ToMinorUnits converts a major-unit price to minor units.
// Examples: 1499 → 149900, 0 → 0.
// Saturates instead of overflowing for absurdly large prices.
func ToMinorUnits(major int64) int64 {
	if major > math.MaxInt64/MinorUnitScale {
		return math.MaxInt64
	}
	if major < math.MinInt64/MinorUnitScale {
		return math.MinInt64
	}
	return major * MinorUnitScale
}

// FormatMinorUnits renders a minor-unit amount for humans.
// Examples: (149900, "USDC") → "1499.00 USDC", (5, "") → "0.05".
func FormatMinorUnits(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	s := fmt.Sprintf("%s%d.%02d", sign, minor/MinorUnitScale, minor%MinorUnitScale)
	if currency == "" {
		return s
	}
	return s + " " + currency
}
