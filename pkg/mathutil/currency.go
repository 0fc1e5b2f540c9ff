// Package mathutil provides common mathematical utility functions.
package mathutil

import (
	"math"

	"github.com/iwvelando/reverse-consolidation/pkg/constants"
	"github.com/shopspring/decimal"
)

// Round rounds a value to two decimals, i.e. to represent real currency.
// Halves round away from zero on the shortest decimal representation of val,
// so 1.235 becomes 1.24 even though its binary value sits just below.
func Round(val float64) float64 {
	rounded, _ := decimal.NewFromFloat(val).Round(2).Float64()
	if rounded == 0 {
		// avoid -0 in output
		return 0
	}
	return rounded
}

// IsZero checks if a value is effectively zero (within tolerance)
func IsZero(val float64) bool {
	return math.Abs(val) <= constants.CurrencyTolerance
}

// WithinTolerance checks if two values are within a specified tolerance
func WithinTolerance(val1, val2, tolerance float64) bool {
	return math.Abs(val1-val2) <= tolerance
}

// CeilDiv returns ceil(numerator / denominator) as a day count. A
// non-positive denominator or numerator yields 0.
func CeilDiv(numerator, denominator float64) int {
	if denominator <= 0 || numerator <= 0 {
		return 0
	}
	return int(math.Ceil(numerator / denominator))
}

// CalculatePercentage calculates what percentage value is of total
func CalculatePercentage(value, total float64) float64 {
	if total == 0 {
		return 0
	}
	return (value / total) * constants.PercentageMultiplier
}
