package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// TrendMonths is how many months MonthlyTrend keeps.
const TrendMonths = 6

const monthLabelLayout = "Jan 2006"

var (
	hundred     = decimal.NewFromInt(100)
	daysInMonth = decimal.NewFromInt(30)
)

// MonthTotals is the income and expense total of one calendar month.
type MonthTotals struct {
	Label         string
	Year          int
	Month         int
	TotalIncome   decimal.Decimal
	TotalExpenses decimal.Decimal
}

// CategoryShare is a category's expense total and its share of all expenses.
type CategoryShare struct {
	Category string
	Amount   decimal.Decimal
	Percent  decimal.Decimal
}

// Insights are the headline ratios shown on the reports page.
type Insights struct {
	AvailableFunds       decimal.Decimal
	TotalIncome          decimal.Decimal
	TotalExpenses        decimal.Decimal
	ExpenseRatio         decimal.Decimal
	SavingsRate          decimal.Decimal
	AverageDailySpending decimal.Decimal
}

// ExpensesByCategory sums expense amounts per category regardless of currency.
func ExpensesByCategory(txs []Transaction) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, tx := range txs {
		if tx.Type != Expense {
			continue
		}
		out[tx.Category] = out[tx.Category].Add(tx.Amount)
	}
	return out
}

// CategoryShares orders category totals by amount, largest first, and attaches
// each one's percentage of the overall expense total.
func CategoryShares(byCategory map[string]decimal.Decimal) []CategoryShare {
	total := decimal.Zero
	for _, amt := range byCategory {
		total = total.Add(amt)
	}
	out := make([]CategoryShare, 0, len(byCategory))
	for cat, amt := range byCategory {
		pct := decimal.Zero
		if total.IsPositive() {
			pct = amt.Div(total).Mul(hundred).Round(1)
		}
		out = append(out, CategoryShare{Category: cat, Amount: amt, Percent: pct})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// MonthlyTrend groups transactions by calendar month, regardless of currency,
// and returns the most recent TrendMonths months in ascending order.
func MonthlyTrend(txs []Transaction) []MonthTotals {
	byMonth := make(map[int]*MonthTotals)
	for _, tx := range txs {
		y, m := tx.Date.Year(), int(tx.Date.Month())
		key := y*12 + m - 1
		mt, ok := byMonth[key]
		if !ok {
			mt = &MonthTotals{
				Label:         time.Date(y, time.Month(m), 1, 0, 0, 0, 0, time.UTC).Format(monthLabelLayout),
				Year:          y,
				Month:         m,
				TotalIncome:   decimal.Zero,
				TotalExpenses: decimal.Zero,
			}
			byMonth[key] = mt
		}
		if tx.Type == Income {
			mt.TotalIncome = mt.TotalIncome.Add(tx.Amount)
		} else {
			mt.TotalExpenses = mt.TotalExpenses.Add(tx.Amount)
		}
	}

	keys := make([]int, 0, len(byMonth))
	for k := range byMonth {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	if len(keys) > TrendMonths {
		keys = keys[len(keys)-TrendMonths:]
	}

	out := make([]MonthTotals, 0, len(keys))
	for _, k := range keys {
		out = append(out, *byMonth[k])
	}
	return out
}

// ComputeInsights derives the reports page ratios from the primary currency's
// transactions and the monthly salary. Percentages are rounded to one decimal
// place and money to two; ratios are zero when no funds are available.
func ComputeInsights(txs []Transaction, primary string, salary decimal.Decimal) Insights {
	income, expenses := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		if tx.Currency != primary {
			continue
		}
		if tx.Type == Income {
			income = income.Add(tx.Amount)
		} else {
			expenses = expenses.Add(tx.Amount)
		}
	}

	available := salary.Add(income)
	in := Insights{
		AvailableFunds:       available.Round(2),
		TotalIncome:          income.Round(2),
		TotalExpenses:        expenses.Round(2),
		ExpenseRatio:         decimal.Zero,
		SavingsRate:          decimal.Zero,
		AverageDailySpending: decimal.Zero,
	}
	if available.IsPositive() {
		in.ExpenseRatio = expenses.Div(available).Mul(hundred).Round(1)
		in.SavingsRate = available.Sub(expenses).Div(available).Mul(hundred).Round(1)
	}
	if !expenses.IsZero() {
		in.AverageDailySpending = expenses.Div(daysInMonth).Round(2)
	}
	return in
}
