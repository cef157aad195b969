package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const dateLayout = "2006-01-02"

type (
	TransactionType string

	// Date is a calendar date. The time-of-day part is always midnight UTC.
	Date struct {
		time.Time
	}

	Transaction struct {
		ID        string
		UserID    string
		Type      TransactionType
		Amount    decimal.Decimal
		Category  string
		Date      Date
		Currency  string
		Note      string
		CreatedAt time.Time
		UpdatedAt time.Time
		// Version is set by the store and grows with every saved change.
		Version int64
	}

	Profile struct {
		UserID        string
		MonthlySalary decimal.Decimal
		Currency      string
		UpdatedAt     time.Time
	}

	User struct {
		ID           string
		Email        string
		PasswordHash string
		CreatedAt    time.Time
	}
)

var (
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidCurrency = errors.New("invalid currency code")
	ErrEmptyCategory   = errors.New("empty category")
	ErrCategoryTooLong = errors.New("category too long (max 100 characters)")
	ErrNoteTooLong     = errors.New("note too long (max 500 characters)")
	ErrInvalidSalary   = errors.New("monthly salary cannot be negative")
)

// ExpenseCategories and IncomeCategories are the suggested labels offered to
// clients. Category remains free text; these are not enforced.
var (
	ExpenseCategories = []string{
		"Food & Dining", "Transportation", "Shopping", "Entertainment",
		"Bills & Utilities", "Healthcare", "Education", "Travel", "Other",
	}
	IncomeCategories = []string{
		"Salary", "Freelance", "Investment", "Business", "Gift", "Other",
	}
)

// ParseType accepts "income" or "expense" in any case.
func ParseType(s string) (TransactionType, error) {
	switch TransactionType(strings.ToLower(strings.TrimSpace(s))) {
	case Income:
		return Income, nil
	case Expense:
		return Expense, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidCurrencyCode reports whether code looks like an ISO-4217 code. It does
// not consult the catalog.
func ValidCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// Validate checks a transaction as submitted by a user. The aggregation
// functions never call it and accept whatever they are given.
func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, t.Type)
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	category := strings.TrimSpace(t.Category)
	if category == "" {
		return ErrEmptyCategory
	}
	if len(category) > 100 {
		return ErrCategoryTooLong
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if !ValidCurrencyCode(t.Currency) {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, t.Currency)
	}
	if len(t.Note) > 500 {
		return ErrNoteTooLong
	}
	return nil
}

// DefaultProfile is the profile a user gets before changing anything.
func DefaultProfile(userID, currency string) Profile {
	return Profile{UserID: userID, MonthlySalary: decimal.Zero, Currency: currency}
}
