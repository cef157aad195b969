// Package currency holds the static currency catalog and the amount formatter.
package currency

import "strings"

// Currency describes a supported currency and the locale used to format it.
type Currency struct {
	Code   string
	Name   string
	Symbol string
	Locale string
}

// DefaultLocale is used for codes missing from the catalog.
const DefaultLocale = "en-US"

// catalog is in display order.
var catalog = []Currency{
	{Code: "USD", Name: "US Dollar", Symbol: "$", Locale: "en-US"},
	{Code: "EUR", Name: "Euro", Symbol: "€", Locale: "de-DE"},
	{Code: "GBP", Name: "British Pound", Symbol: "£", Locale: "en-GB"},
	{Code: "JPY", Name: "Japanese Yen", Symbol: "¥", Locale: "ja-JP"},
	{Code: "INR", Name: "Indian Rupee", Symbol: "₹", Locale: "en-IN"},
	{Code: "CAD", Name: "Canadian Dollar", Symbol: "C$", Locale: "en-CA"},
	{Code: "AUD", Name: "Australian Dollar", Symbol: "A$", Locale: "en-AU"},
	{Code: "CHF", Name: "Swiss Franc", Symbol: "CHF", Locale: "de-CH"},
	{Code: "CNY", Name: "Chinese Yuan", Symbol: "¥", Locale: "zh-CN"},
	{Code: "SEK", Name: "Swedish Krona", Symbol: "kr", Locale: "sv-SE"},
	{Code: "NZD", Name: "New Zealand Dollar", Symbol: "NZ$", Locale: "en-NZ"},
	{Code: "MXN", Name: "Mexican Peso", Symbol: "$", Locale: "es-MX"},
	{Code: "SGD", Name: "Singapore Dollar", Symbol: "S$", Locale: "en-SG"},
	{Code: "HKD", Name: "Hong Kong Dollar", Symbol: "HK$", Locale: "en-HK"},
	{Code: "NOK", Name: "Norwegian Krone", Symbol: "kr", Locale: "no-NO"},
	{Code: "ZAR", Name: "South African Rand", Symbol: "R", Locale: "en-ZA"},
	{Code: "BRL", Name: "Brazilian Real", Symbol: "R$", Locale: "pt-BR"},
	{Code: "KRW", Name: "South Korean Won", Symbol: "₩", Locale: "ko-KR"},
	{Code: "PLN", Name: "Polish Zloty", Symbol: "zł", Locale: "pl-PL"},
	{Code: "THB", Name: "Thai Baht", Symbol: "฿", Locale: "th-TH"},
}

var byCode = func() map[string]Currency {
	m := make(map[string]Currency, len(catalog))
	for _, c := range catalog {
		m[c.Code] = c
	}
	return m
}()

// Lookup returns the catalog entry for code. Codes are matched case-insensitively.
func Lookup(code string) (Currency, bool) {
	c, ok := byCode[strings.ToUpper(strings.TrimSpace(code))]
	return c, ok
}

// All returns a copy of the catalog in display order.
func All() []Currency {
	out := make([]Currency, len(catalog))
	copy(out, catalog)
	return out
}
