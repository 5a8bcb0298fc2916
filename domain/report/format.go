package report

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var groupPrinter = message.NewPrinter(language.English)

// FormatIncome renders an amount with thousands separators and the currency,
// e.g. 1500000 -> "1,500,000 FCFA".
func FormatIncome(amount int64) string {
	return groupPrinter.Sprintf("%d", amount) + " FCFA"
}

// FormatPercent renders a fraction as a percentage with the given number of
// decimals: FormatPercent(0.1234, 1) -> "12.3%".
func FormatPercent(fraction float64, decimals int) string {
	return strconv.FormatFloat(fraction*100, 'f', decimals, 64) + "%"
}

// FormatDecimal renders a float the way the report has always printed
// ratios: shortest round-trip digits with a fractional part (0.5 -> "0.5",
// 30 -> "30.0"), switching to exponent form below 1e-4 and from 1e16
// (0.00001 -> "1e-05").
func FormatDecimal(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) || v == 0 {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	e := strconv.FormatFloat(v, 'e', -1, 64)
	exp, err := strconv.Atoi(e[strings.IndexByte(e, 'e')+1:])
	if err == nil && (exp < -4 || exp >= 16) {
		return e
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
