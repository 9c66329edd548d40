// Package words spells whole currency amounts in English.
package words

import (
	"math"

	"github.com/odyssey-erp/invoicer/internal/money"
)

// TooLarge is returned for amounts of one thousand or more.
const TooLarge = "Amount too large"

var (
	units = [...]string{"Zero", "One", "Two", "Three", "Four", "Five", "Six", "Seven", "Eight", "Nine"}
	teens = [...]string{"Ten", "Eleven", "Twelve", "Thirteen", "Fourteen", "Fifteen", "Sixteen", "Seventeen", "Eighteen", "Nineteen"}
	tens  = [...]string{"", "", "Twenty", "Thirty", "Forty", "Fifty", "Sixty", "Seventy", "Eighty", "Ninety"}
)

// ToWords spells n for 0 through 999. The hundreds form always appends the
// remainder, so 100 reads "One Hundred Zero".
func ToWords(n int) string {
	switch {
	case n <= -1000:
		return TooLarge
	case n < 0:
		return "Minus " + ToWords(-n)
	case n < 100:
		return belowHundred(n)
	case n < 1000:
		return units[n/100] + " Hundred " + belowHundred(n%100)
	default:
		return TooLarge
	}
}

func belowHundred(n int) string {
	switch {
	case n < 10:
		return units[n]
	case n < 20:
		return teens[n-10]
	case n%10 == 0:
		return tens[n/10]
	default:
		return tens[n/10] + "-" + units[n%10]
	}
}

// Amount spells total rounded half-up to whole units; cents are dropped.
func Amount(total float64) string {
	if math.Abs(total) >= 999.5 {
		return TooLarge
	}
	rounded := money.RoundWhole(total)
	if rounded >= 1000 || rounded <= -1000 {
		return TooLarge
	}
	return ToWords(int(rounded))
}

// Phrase is the invoice wording, e.g. "One Hundred Fifteen Rand only".
func Phrase(total float64) string {
	return Amount(total) + " Rand only"
}
