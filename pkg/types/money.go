package types

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatBRL renders an amount the way receipts show it: "R$ 1.234,50".
func FormatBRL(amount decimal.Decimal) string {
	neg := amount.IsNegative()
	fixed := amount.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}

	out := "R$ " + grouped.String() + "," + frac
	if neg {
		return "-" + out
	}
	return out
}
