package dashboard

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatCount renders an integer with thousands separators, e.g. 12,345.
func FormatCount(n int) string {
	return printer.Sprintf("%d", n)
}

// FormatCurrency renders a sales amount as $1,234.50.
func FormatCurrency(v float64) string {
	if v < 0 {
		return "-" + printer.Sprintf("$%.2f", -v)
	}
	return printer.Sprintf("$%.2f", v)
}

// FormatCompactCurrency is used on chart axes: $950, $12.5K, $1.2M.
func FormatCompactCurrency(v float64) string {
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	switch {
	case v >= 1e6:
		return sign + printer.Sprintf("$%.1fM", v/1e6)
	case v >= 1e3:
		return sign + printer.Sprintf("$%.1fK", v/1e3)
	default:
		return sign + printer.Sprintf("$%.0f", math.Round(v))
	}
}
