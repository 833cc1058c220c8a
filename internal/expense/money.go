package expense

import (
	"strings"

	"github.com/shopspring/decimal"
)

var currencySymbols = map[string]string{
	"GBP": "£",
	"USD": "$",
	"EUR": "€",
	"JPY": "¥",
	"INR": "₹",
	"AUD": "A$",
	"CAD": "C$",
}

// MinorFromMajor rounds to the nearest minor unit, halves away from zero.
func MinorFromMajor(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// fitsMinor reports whether amount converts to a minor unit count that
// MinorFromMajor can return without overflowing int64.
func fitsMinor(amount decimal.Decimal) bool {
	return amount.Shift(2).Round(0).BigInt().IsInt64()
}

func MajorFromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// FormatMinor renders an amount with its currency symbol and two decimals,
// e.g. "£12.50". Unknown currencies fall back to "CHF 12.50".
func FormatMinor(minor int64, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	value := MajorFromMinor(minor)
	sign := ""
	if value.IsNegative() {
		sign = "-"
		value = value.Neg()
	}
	if symbol, ok := currencySymbols[currency]; ok {
		return sign + symbol + value.StringFixed(2)
	}
	if currency == "" {
		return sign + value.StringFixed(2)
	}
	return sign + currency + " " + value.StringFixed(2)
}
