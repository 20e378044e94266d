// Package report renders comparison results as text reports, chat context,
// terminal tables, and exported files. It formats only; every decision is
// made by the compare package.
package report

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Currency formats v as US dollars with thousands separators, e.g. $9,425.00.
func Currency(v float64) string {
	return printer.Sprintf("$%.2f", v)
}

// Percent formats v with one decimal place, e.g. 50.0%.
func Percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

// truncate shortens s to at most width display columns, ending in "…".
func truncate(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

// padRight pads s with spaces to width display columns.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}

// padLeft right-aligns s in width display columns.
func padLeft(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return strings.Repeat(" ", width-sw) + s
}
