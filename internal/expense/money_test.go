package expense

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestMinorFromMajorRoundsToNearestCent(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{in: "12.34", want: 1234},
		{in: "12.345", want: 1235},
		{in: "12.344", want: 1234},
		{in: "0.1", want: 10},
		{in: "-1.005", want: -101},
	}
	for _, tt := range tests {
		if got := MinorFromMajor(decimal.RequireFromString(tt.in)); got != tt.want {
			t.Fatalf("MinorFromMajor(%s) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFitsMinorAtInt64Bounds(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{in: "92233720368547758.07", want: true},
		{in: "92233720368547758.074", want: true},
		{in: "92233720368547758.08", want: false},
		{in: "184467440737095516.17", want: false},
	}
	for _, tt := range tests {
		if got := fitsMinor(decimal.RequireFromString(tt.in)); got != tt.want {
			t.Fatalf("fitsMinor(%s) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatMinor(t *testing.T) {
	tests := []struct {
		minor    int64
		currency string
		want     string
	}{
		{minor: 1250, currency: "GBP", want: "£12.50"},
		{minor: 5, currency: "usd", want: "$0.05"},
		{minor: 100000, currency: "EUR", want: "€1000.00"},
		{minor: 1999, currency: "CHF", want: "CHF 19.99"},
		{minor: -250, currency: "GBP", want: "-£2.50"},
	}
	for _, tt := range tests {
		if got := FormatMinor(tt.minor, tt.currency); got != tt.want {
			t.Fatalf("FormatMinor(%d, %q) = %q, want %q", tt.minor, tt.currency, got, tt.want)
		}
	}
}

func TestExpenseAmountIsDerivedFromMinorUnits(t *testing.T) {
	e := Expense{AmountMinor: 4599}
	if got := e.Amount().StringFixed(2); got != "45.99" {
		t.Fatalf("Amount() = %s", got)
	}
}
