package money

import (
	"sync"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	DefaultLocale   = "en-US"
	DefaultCurrency = "USD"
)

type formatterKey struct {
	locale   string
	currency string
}

type formatter struct {
	printer *message.Printer
	unit    currency.Unit
}

// built once per (locale, currency); FormatMoney runs per table row.
var formatters sync.Map

// FormatMoney renders cents with the currency symbol and number format of locale,
// e.g. FormatMoney(123456, "en-US", "USD") == "$ 1,234.56".
func FormatMoney(cents int64, locale, cur string) string {
	f := formatterFor(locale, cur)
	return f.printer.Sprint(currency.Symbol(f.unit.Amount(CentsToDollars(cents))))
}

func formatterFor(locale, cur string) *formatter {
	key := formatterKey{locale: locale, currency: cur}
	if f, ok := formatters.Load(key); ok {
		return f.(*formatter)
	}

	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.MustParse(DefaultLocale)
	}
	unit, err := currency.ParseISO(cur)
	if err != nil {
		unit = currency.USD
	}
	f, _ := formatters.LoadOrStore(key, &formatter{printer: message.NewPrinter(tag), unit: unit})
	return f.(*formatter)
}
