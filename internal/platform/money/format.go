// Package money renders integer minor-unit amounts as locale display strings.
package money

import (
	"fmt"
	"math"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Formatter renders minor-unit amounts for one currency and locale.
type Formatter struct {
	unit    currency.Unit
	printer *message.Printer
	scale   int
}

// NewFormatter builds a Formatter from an ISO 4217 code and BCP 47 tag.
func NewFormatter(code, locale string) (*Formatter, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, fmt.Errorf("money: currency %q: %w", code, err)
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("money: locale %q: %w", locale, err)
	}
	scale, _ := currency.Standard.Rounding(unit)
	return &Formatter{unit: unit, printer: message.NewPrinter(tag), scale: scale}, nil
}

// Format renders amount, given in minor units, e.g. 123450 -> "$ 1,234.50".
func (f *Formatter) Format(amount int64) string {
	if f == nil {
		return fmt.Sprintf("%d", amount)
	}
	major := float64(amount) / math.Pow10(f.scale)
	return f.printer.Sprint(currency.Symbol(f.unit.Amount(major)))
}

// Currency returns the ISO code.
func (f *Formatter) Currency() string {
	if f == nil {
		return ""
	}
	return f.unit.String()
}
