package currency

import (
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimal lists currencies quoted without minor units.
var zeroDecimal = map[string]bool{
	"IDR": true,
	"JPY": true,
	"KRW": true,
	"VND": true,
}

// Format renders amount as "<CODE> <grouped amount>", e.g. "MYR 1,234.50"
// or "IDR 1.735.000".
func Format(amount decimal.Decimal, code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))

	places := int32(2)
	thousands, point := ",", "."
	if zeroDecimal[code] {
		places = 0
		thousands = "."
	}

	negative := amount.IsNegative()
	s := amount.Abs().StringFixed(places)

	intPart, frac, _ := strings.Cut(s, ".")
	formatted := addThousandsSeparator(intPart, thousands)
	if frac != "" {
		formatted += point + frac
	}

	result := code + " " + formatted
	if negative {
		result = "-" + result
	}
	return result
}

func FormatIDR(amount decimal.Decimal) string {
	return Format(amount, "IDR")
}

func addThousandsSeparator(s string, sep string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	numSeps := (n - 1) / 3
	result := make([]byte, n+numSeps)

	j := len(result) - 1
	for i := n - 1; i >= 0; i-- {
		result[j] = s[i]
		j--

		pos := n - i
		if pos%3 == 0 && i > 0 {
			result[j] = sep[0]
			j--
		}
	}

	return string(result)
}
