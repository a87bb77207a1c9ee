package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

const usdPrecision = 7

// Normalize converts a raw token amount (native fixed-point units) to a
// human-scale decimal using the asset's precision.
func Normalize(raw decimal.Decimal, decimals int32) decimal.Decimal {
	return raw.Shift(-decimals)
}

// Denormalize converts a human-scale decimal back to raw token units,
// truncating any fraction below the asset's native precision.
func Denormalize(v decimal.Decimal, decimals int32) decimal.Decimal {
	return v.Shift(decimals).Truncate(0)
}

// ShareBps returns part's share of total expressed in basis points.
// Returns zero when total is zero.
func ShareBps(part, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return part.Div(total).Mul(decimal.NewFromInt(TotalBps))
}

// ApplyBps scales v by bps/10000.
func ApplyBps(v decimal.Decimal, bps int64) decimal.Decimal {
	return v.Mul(decimal.NewFromInt(bps)).Div(decimal.NewFromInt(TotalBps))
}

// FormatUSD rounds to 7 decimal places and strips trailing zeros.
func FormatUSD(d decimal.Decimal) string {
	s := d.Round(usdPrecision).StringFixed(usdPrecision)
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
