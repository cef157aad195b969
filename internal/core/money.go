// Package core holds the finance domain: transactions, profiles, and the pure
// aggregation functions computed over them.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-entered decimal string to a positive amount
// rounded half-up to two fraction digits.
//
// Both dot (12.34) and comma (12,34) decimal separators are accepted. Signs,
// thousands separators, and values that round to zero are rejected.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12,34")  -> 12.34
//	ParseAmount("12.345") -> 12.35
//	ParseAmount("12.344") -> 12.34
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, part := range parts {
		for _, r := range part {
			if !unicode.IsDigit(r) {
				return decimal.Zero, ErrInvalidAmount
			}
		}
	}
	if parts[0] == "" {
		s = "0" + s
	}
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseSalary is ParseAmount but allows zero.
func ParseSalary(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if d, err := ParseAmount(s); err == nil {
		return d, nil
	}
	if strings.ContainsRune(s, '0') && strings.Trim(strings.ReplaceAll(s, ",", "."), "0.") == "" && !strings.Contains(s, "-") {
		return decimal.Zero, nil
	}
	return decimal.Zero, ErrInvalidSalary
}
