package anomaly

import (
	"strings"

	"github.com/shopspring/decimal"
)

func strPtr(s string) *string { return &s }

func decimalPtr(d decimal.Decimal) *decimal.Decimal { return &d }

func floatPtr(f float64) *float64 { return &f }

// money renders an amount magnitude with two decimals and an optional
// currency code, e.g. "1000.00 USD".
func money(d decimal.Decimal, currency string) string {
	s := d.Abs().StringFixed(2)
	if c := strings.TrimSpace(currency); c != "" {
		s += " " + strings.ToUpper(c)
	}
	return s
}

// round keeps metadata readable and stable across platforms.
func round(f float64, places int32) float64 {
	return decimal.NewFromFloat(f).Round(places).InexactFloat64()
}

func decimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}
