package format

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Currency returns a currency string with a dollar sign and thousands separators (e.g., "-$1,234.56").
func Currency(amount float64) string {
	return withSymbol(amount, 2)
}

// WholeCurrency returns a currency string rounded to whole dollars (e.g., "$55,556"),
// the register used on merchant-facing proposals.
func WholeCurrency(amount float64) string {
	return withSymbol(amount, 0)
}

// Percent renders a percentage value (already scaled to 0-100) with two decimals, e.g. "11.00%".
func Percent(value float64) string {
	return decimal.NewFromFloat(value).StringFixed(2) + "%"
}

// Factor renders a factor rate with three decimals, e.g. "1.499".
func Factor(value float64) string {
	return decimal.NewFromFloat(value).StringFixed(3)
}

func withSymbol(amount float64, places int32) string {
	d := decimal.NewFromFloat(amount).Round(places)
	formatted := group(d.Abs().StringFixed(places))
	if d.IsNegative() {
		return "-$" + formatted
	}
	return "$" + formatted
}

func group(fixed string) string {
	parts := strings.SplitN(fixed, ".", 2)
	intPart := parts[0]

	if len(intPart) > 3 {
		var builder strings.Builder
		for i, digit := range intPart {
			if i > 0 && (len(intPart)-i)%3 == 0 {
				builder.WriteByte(',')
			}
			builder.WriteRune(digit)
		}
		intPart = builder.String()
	}

	if len(parts) == 2 {
		return intPart + "." + parts[1]
	}
	return intPart
}
