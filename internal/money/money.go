// Package money derives invoice totals. Arithmetic stays in float64; the
// decimal type is only used at the presentation boundary so that every
// output rounds the same way.
package money

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// VATRate is the flat value-added tax applied when VAT is included.
const VATRate = 0.15

// Line is one priced row.
type Line struct {
	Quantity  float64
	UnitPrice float64
}

// Breakdown carries the derived totals of a set of lines.
type Breakdown struct {
	Subtotal   float64 `json:"subtotal"`
	VAT        float64 `json:"vat"`
	Total      float64 `json:"total"`
	IncludeVAT bool    `json:"includeVAT"`
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// LineTotal returns quantity × unit price, counting non-finite inputs as zero.
func LineTotal(l Line) float64 {
	return finite(l.Quantity) * finite(l.UnitPrice)
}

// Subtotal sums LineTotal over lines in order.
func Subtotal(lines []Line) float64 {
	var sum float64
	for _, l := range lines {
		sum += LineTotal(l)
	}
	return sum
}

// VAT returns the tax owed on subtotal.
func VAT(subtotal float64, includeVAT bool) float64 {
	if !includeVAT {
		return 0
	}
	return subtotal * VATRate
}

// Total adds VAT to the subtotal.
func Total(subtotal, vat float64) float64 {
	return subtotal + vat
}

// Compute derives subtotal, VAT and total in one pass.
func Compute(lines []Line, includeVAT bool) Breakdown {
	subtotal := Subtotal(lines)
	vat := VAT(subtotal, includeVAT)
	return Breakdown{
		Subtotal:   subtotal,
		VAT:        vat,
		Total:      Total(subtotal, vat),
		IncludeVAT: includeVAT,
	}
}

// Format renders amount with exactly two decimals, rounding half-up.
func Format(amount float64) string {
	return decimal.NewFromFloat(finite(amount)).StringFixed(2)
}

// WithSymbol prefixes the formatted amount with the currency symbol.
func WithSymbol(currency string, amount float64) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	switch code {
	case "", "ZAR":
		return "R" + Format(amount)
	default:
		return code + " " + Format(amount)
	}
}

var (
	maxWhole = decimal.NewFromInt(math.MaxInt64)
	minWhole = decimal.NewFromInt(math.MinInt64)
)

// RoundWhole rounds amount to whole currency units, halves away from zero.
// Results outside the int64 range saturate.
func RoundWhole(amount float64) int64 {
	d := decimal.NewFromFloat(finite(amount)).Round(0)
	switch {
	case d.GreaterThanOrEqual(maxWhole):
		return math.MaxInt64
	case d.LessThanOrEqual(minWhole):
		return math.MinInt64
	}
	return d.IntPart()
}
