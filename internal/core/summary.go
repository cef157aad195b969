package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CurrencySummary holds the per-currency totals derived from a transaction list.
type CurrencySummary struct {
	Currency      string
	TotalIncome   decimal.Decimal
	TotalExpenses decimal.Decimal
	Balance       decimal.Decimal
}

// Summarize groups transactions by currency and computes income, expenses and
// balance for each group. The monthly salary is added to the primary
// currency's balance only, and the primary entry is always present even when
// no transaction uses it.
//
// Input is not validated: negative amounts and unknown codes are summed like
// anything else. Any type other than Income counts as an expense.
func Summarize(txs []Transaction, primary string, salary decimal.Decimal) map[string]CurrencySummary {
	out := make(map[string]CurrencySummary)
	for _, tx := range txs {
		s, ok := out[tx.Currency]
		if !ok {
			s = zeroSummary(tx.Currency)
		}
		if tx.Type == Income {
			s.TotalIncome = s.TotalIncome.Add(tx.Amount)
		} else {
			s.TotalExpenses = s.TotalExpenses.Add(tx.Amount)
		}
		out[tx.Currency] = s
	}

	if _, ok := out[primary]; !ok {
		out[primary] = zeroSummary(primary)
	}

	for code, s := range out {
		s.Balance = s.TotalIncome.Sub(s.TotalExpenses)
		if code == primary {
			s.Balance = s.Balance.Add(salary)
		}
		out[code] = s
	}
	return out
}

func zeroSummary(code string) CurrencySummary {
	return CurrencySummary{
		Currency:      code,
		TotalIncome:   decimal.Zero,
		TotalExpenses: decimal.Zero,
		Balance:       decimal.Zero,
	}
}

// SplitPrimary separates the primary entry from the rest. Secondary entries
// are sorted by currency code.
func SplitPrimary(summaries map[string]CurrencySummary, primary string) (CurrencySummary, []CurrencySummary) {
	p, ok := summaries[primary]
	if !ok {
		p = zeroSummary(primary)
	}
	others := make([]CurrencySummary, 0, len(summaries))
	for code, s := range summaries {
		if code == primary {
			continue
		}
		others = append(others, s)
	}
	sort.Slice(others, func(i, j int) bool { return others[i].Currency < others[j].Currency })
	return p, others
}
