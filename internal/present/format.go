// Package present formats base-unit *big.Int token amounts as
// human-readable decimal strings for CLI output, grounded on the
// shopspring/decimal usage in the example pack's decimal_math.go
// helpers (fixed-point arithmetic via decimal.Decimal rather than
// float64, to avoid the precision loss base-unit amounts would suffer
// going through a float).
package present

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Amount converts a base-unit integer amount into a decimal string
// scaled by 10^-decimals, e.g. Amount(big.NewInt(1_500000), 6) == "1.5".
func Amount(baseUnits *big.Int, decimals int) string {
	if baseUnits == nil {
		return "0"
	}
	d := decimal.NewFromBigInt(baseUnits, 0)
	scale := decimal.NewFromInt(10).Pow(decimal.NewFromInt(int64(decimals)))
	return d.Div(scale).String()
}

// Share formats a [0,1] fraction as a percentage string with two
// decimal places, e.g. Share(0.1234) == "12.34%".
func Share(fraction float64) string {
	d := decimal.NewFromFloat(fraction).Mul(decimal.NewFromInt(100))
	return d.StringFixed(2) + "%"
}
