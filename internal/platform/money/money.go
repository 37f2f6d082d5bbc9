package money

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Round2 rounds half away from zero to two decimal places.
func Round2(value float64) float64 {
	return decimal.NewFromFloat(value).Round(2).InexactFloat64()
}

// Sum adds the values exactly before converting back to float64.
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total.InexactFloat64()
}

// Percent returns pct percent of amount rounded to two decimal places.
func Percent(amount, pct float64) float64 {
	if pct == 0 || amount == 0 {
		return 0
	}
	return decimal.NewFromFloat(amount).
		Mul(decimal.NewFromFloat(pct)).
		Div(decimal.NewFromInt(100)).
		Round(2).
		InexactFloat64()
}

// Formatter renders amounts for display in a given locale and currency.
type Formatter struct {
	tag  language.Tag
	unit currency.Unit
}

var supportedLocales = []language.Tag{
	language.English,
	language.German,
	language.French,
	language.Arabic,
	language.Japanese,
}

var localeMatcher = language.NewMatcher(supportedLocales)

// NewFormatter negotiates the display locale from an Accept-Language value and
// resolves the ISO 4217 currency code. Unknown codes fall back to USD.
func NewFormatter(acceptLanguage, currencyCode string) Formatter {
	tag := language.English
	if trimmed := strings.TrimSpace(acceptLanguage); trimmed != "" {
		if prefs, _, err := language.ParseAcceptLanguage(trimmed); err == nil && len(prefs) > 0 {
			_, idx, _ := localeMatcher.Match(prefs...)
			tag = supportedLocales[idx]
		}
	}
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(currencyCode)))
	if err != nil {
		unit = currency.USD
	}
	return Formatter{tag: tag, unit: unit}
}

// Locale returns the negotiated locale.
func (f Formatter) Locale() string {
	return f.tag.String()
}

// Currency returns the ISO code used for formatting.
func (f Formatter) Currency() string {
	return f.unit.String()
}

// Format renders the amount rounded to two decimals with the currency symbol.
func (f Formatter) Format(amount float64) string {
	printer := message.NewPrinter(f.tag)
	return printer.Sprint(currency.Symbol(f.unit.Amount(Round2(amount))))
}
