package services

import (
	"math"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// FormatCurrency renders amount in currencyCode using the number conventions of
// lang, e.g. "$1,234.50" for en/USD or "R$1.234,50" for pt/BRL. Unknown currency
// codes fall back to USD and unknown languages to English.
func FormatCurrency(amount float64, currencyCode, lang string) string {
	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		unit = currency.USD
	}
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}

	p := message.NewPrinter(tag)
	rounded := decimal.NewFromFloat(math.Abs(amount)).Round(2).InexactFloat64()
	symbol := p.Sprint(currency.Symbol(unit))
	number := p.Sprintf("%.2f", rounded)

	if amount < 0 && rounded != 0 {
		return "-" + symbol + number
	}
	return symbol + number
}
