package currency

import (
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	xcurrency "golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Languages whose convention puts the currency symbol after the number.
var symbolAfter = map[string]bool{
	"de": true, "sv": true, "pl": true, "fr": true, "it": true, "es": true,
	"fi": true, "da": true, "cs": true,
}

// Languages that put the symbol first, separated from the number by a space.
var symbolBeforeSpaced = map[string]bool{
	"nb": true, "nn": true, "pt": true,
}

// Regions that override their language's placement and put the symbol first.
var symbolBeforeRegion = map[string]bool{
	"CH": true, "MX": true, "US": true,
}

// Format renders amount in the given currency using the currency's locale:
// locale grouping, exactly two fraction digits, symbol placed per locale
// convention. Codes that are not recognised ISO-4217 currencies fall back to
// the symbol (or the code) followed directly by the number.
func Format(amount decimal.Decimal, code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	tag := localeTag(code)
	symbol := Symbol(code)

	rounded := amount.Round(2)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
	}
	num := formatNumber(tag, rounded.Abs())

	if _, err := xcurrency.ParseISO(code); err != nil {
		return sign + symbol + num
	}

	switch {
	case placeAfter(tag):
		return sign + num + " " + symbol
	case spacedBefore(tag), endsWithLetter(symbol):
		return sign + symbol + " " + num
	default:
		return sign + symbol + num
	}
}

// Symbol returns the catalog symbol for code, or the code itself when unknown.
func Symbol(code string) string {
	if c, ok := Lookup(code); ok {
		return c.Symbol
	}
	return code
}

func localeTag(code string) language.Tag {
	locale := DefaultLocale
	if c, ok := Lookup(code); ok {
		locale = c.Locale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return language.AmericanEnglish
	}
	// x/text keeps no number data under the macrolanguage "no".
	if base, _ := tag.Base(); base.String() == "no" {
		region, _ := tag.Region()
		if nb, err := language.Compose(language.MustParseBase("nb"), region); err == nil {
			tag = nb
		}
	}
	return tag
}

// formatNumber renders a non-negative amount already rounded to cents. The
// integer part goes through x/text as an integer so no digits are lost to
// float conversion.
func formatNumber(tag language.Tag, amount decimal.Decimal) string {
	whole, frac, _ := strings.Cut(amount.StringFixed(2), ".")
	sym := symbolsFor(tag)
	return groupInteger(tag, sym, whole) + sym.decimal + frac
}

func groupInteger(tag language.Tag, sym separators, digits string) string {
	if n, err := strconv.ParseUint(digits, 10, 64); err == nil {
		return message.NewPrinter(tag).Sprint(number.Decimal(n))
	}
	// Beyond uint64: plain groups of three.
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteString(sym.group)
		}
		b.WriteRune(r)
	}
	return b.String()
}

type separators struct {
	decimal string
	group   string
}

var separatorCache sync.Map // language.Tag -> separators

// symbolsFor reads the locale's decimal and group separators off sample
// renderings of 1.5 and 1000.
func symbolsFor(tag language.Tag) separators {
	if v, ok := separatorCache.Load(tag); ok {
		return v.(separators)
	}
	p := message.NewPrinter(tag)
	half := p.Sprint(number.Decimal(1.5, number.Scale(1)))
	thousand := p.Sprint(number.Decimal(uint64(1000)))
	sep := separators{
		decimal: strings.TrimSuffix(strings.TrimPrefix(half, "1"), "5"),
		group:   strings.TrimSuffix(strings.TrimPrefix(thousand, "1"), "000"),
	}
	if sep.decimal == "" {
		sep.decimal = "."
	}
	separatorCache.Store(tag, sep)
	return sep
}

func placeAfter(tag language.Tag) bool {
	base, _ := tag.Base()
	region, _ := tag.Region()
	if symbolBeforeRegion[region.String()] {
		return false
	}
	return symbolAfter[base.String()]
}

func spacedBefore(tag language.Tag) bool {
	base, _ := tag.Base()
	return symbolBeforeSpaced[base.String()]
}

func endsWithLetter(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r != utf8.RuneError && unicode.IsLetter(r)
}
