package currency

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	c, ok := Lookup("EUR")
	require.True(t, ok)
	assert.Equal(t, Currency{Code: "EUR", Name: "Euro", Symbol: "€", Locale: "de-DE"}, c)

	c, ok = Lookup(" thb ")
	require.True(t, ok)
	assert.Equal(t, "฿", c.Symbol)

	_, ok = Lookup("ZZZ")
	assert.False(t, ok)
	_, ok = Lookup("")
	assert.False(t, ok)
}

func TestAll(t *testing.T) {
	all := All()
	require.Len(t, all, 20)
	assert.Equal(t, "USD", all[0].Code)
	assert.Equal(t, "THB", all[19].Code)

	seen := map[string]bool{}
	for _, c := range all {
		assert.False(t, seen[c.Code], "duplicate %s", c.Code)
		seen[c.Code] = true
		assert.NotEmpty(t, c.Name)
		assert.NotEmpty(t, c.Symbol)
		assert.NotEmpty(t, c.Locale)
	}

	all[0].Code = "XXX"
	_, ok := Lookup("USD")
	assert.True(t, ok, "All must return a copy")
}

func TestSymbol(t *testing.T) {
	assert.Equal(t, "$", Symbol("USD"))
	assert.Equal(t, "zł", Symbol("PLN"))
	assert.Equal(t, "ZZZ", Symbol("ZZZ"))
	assert.Equal(t, "ISK", Symbol("ISK"))
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		code   string
		want   string
	}{
		{"usd grouping", "1234.5", "USD", "$1,234.50"},
		{"usd negative", "-5", "USD", "-$5.00"},
		{"usd rounds to cents", "0.005", "USD", "$0.01"},
		{"eur german locale", "1234.5", "EUR", "1.234,50 €"},
		{"gbp", "99.9", "GBP", "£99.90"},
		{"lowercase code", "10", "gbp", "£10.00"},
		{"unknown iso code uses default locale", "1000", "ISK", "ISK 1,000.00"},
		{"invalid code falls back", "100", "ZZZ", "ZZZ100.00"},
		{"invalid negative falls back", "-1234", "ZZZ", "-ZZZ1,234.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Format(decimal.RequireFromString(tt.amount), tt.code)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormat_EveryCatalogCurrency(t *testing.T) {
	const nbsp = "\u00a0"
	want := map[string]string{
		"USD": "$1,234.50",
		"EUR": "1.234,50 €",
		"GBP": "£1,234.50",
		"JPY": "¥1,234.50",
		"INR": "₹1,234.50",
		"CAD": "C$1,234.50",
		"AUD": "A$1,234.50",
		"CHF": "CHF 1’234.50",
		"CNY": "¥1,234.50",
		"SEK": "1" + nbsp + "234,50 kr",
		"NZD": "NZ$1,234.50",
		"MXN": "$1,234.50",
		"SGD": "S$1,234.50",
		"HKD": "HK$1,234.50",
		"NOK": "kr 1" + nbsp + "234,50",
		"ZAR": "R 1" + nbsp + "234,50",
		"BRL": "R$ 1.234,50",
		"KRW": "₩1,234.50",
		"PLN": "1" + nbsp + "234,50 zł",
		"THB": "฿1,234.50",
	}
	all := All()
	require.Len(t, want, len(all))
	for _, c := range all {
		t.Run(c.Code, func(t *testing.T) {
			assert.Equal(t, want[c.Code], Format(decimal.RequireFromString("1234.5"), c.Code))
		})
	}
}

func TestFormat_LocaleGrouping(t *testing.T) {
	const nbsp = "\u00a0"
	tests := []struct {
		name   string
		amount string
		code   string
		want   string
	}{
		{"indian lakh grouping", "1234567.5", "INR", "₹12,34,567.50"},
		{"swiss apostrophe", "-1234567", "CHF", "-CHF 1’234’567.00"},
		{"norwegian negative", "-98765.4", "NOK", "-kr 98" + nbsp + "765,40"},
		{"german millions", "1234567.891", "EUR", "1.234.567,89 €"},
		{"rounds to zero without sign", "-0.001", "USD", "$0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(decimal.RequireFromString(tt.amount), tt.code))
		})
	}
}

func TestFormat_KeepsEveryDigit(t *testing.T) {
	tests := []struct {
		amount string
		code   string
		want   string
	}{
		{"12345678901234567.89", "USD", "$12,345,678,901,234,567.89"},
		{"9007199254740993.01", "EUR", "9.007.199.254.740.993,01 €"},
		{"123456789012345678901.25", "USD", "$123,456,789,012,345,678,901.25"},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(decimal.RequireFromString(tt.amount), tt.code))
		})
	}
}

func TestFormat_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Contains(t, Format(decimal.RequireFromString("1234.5"), "USD"), "1,234.50")
		}()
	}
	wg.Wait()
}
