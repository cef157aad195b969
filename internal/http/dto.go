package http

import (
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/currency"
	"fintrack/internal/services"
)

// Requests

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// signinRequest skips the length rules so a bad password is always a 401.
type signinRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type transactionRequest struct {
	Type     string        `json:"type" validate:"required,oneof=income expense"`
	Amount   NumericString `json:"amount" validate:"required"`
	Category string        `json:"category" validate:"required,notblank,max=100"`
	Date     string        `json:"date" validate:"required,datetime=2006-01-02"`
	Currency string        `json:"currency" validate:"omitempty,currency"`
	Note     string        `json:"note" validate:"max=500"`
}

func (r transactionRequest) input() services.TransactionInput {
	return services.TransactionInput{
		Type:     r.Type,
		Amount:   string(r.Amount),
		Category: sanitizeInput(r.Category),
		Date:     r.Date,
		Currency: r.Currency,
		Note:     sanitizeInput(r.Note),
	}
}

type salaryRequest struct {
	MonthlySalary NumericString `json:"monthly_salary" validate:"required"`
}

type currencyRequest struct {
	Currency string `json:"currency" validate:"required,currency"`
}

// Responses

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type sessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      userResponse `json:"user"`
}

type transactionResponse struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Amount    string    `json:"amount"`
	Display   string    `json:"display"`
	Category  string    `json:"category"`
	Date      core.Date `json:"date"`
	Currency  string    `json:"currency"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type profileResponse struct {
	MonthlySalary string     `json:"monthly_salary"`
	Display       string     `json:"display"`
	Currency      string     `json:"currency"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

type currencyResponse struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

type categoriesResponse struct {
	Expense []string `json:"expense"`
	Income  []string `json:"income"`
}

type summaryResponse struct {
	Currency      string         `json:"currency"`
	TotalIncome   string         `json:"total_income"`
	TotalExpenses string         `json:"total_expenses"`
	Balance       string         `json:"balance"`
	Display       summaryDisplay `json:"display"`
}

type summaryDisplay struct {
	Income   string `json:"income"`
	Expenses string `json:"expenses"`
	Balance  string `json:"balance"`
}

type dashboardResponse struct {
	Currency      string                `json:"currency"`
	MonthlySalary string                `json:"monthly_salary"`
	SalaryDisplay string                `json:"salary_display"`
	Primary       summaryResponse       `json:"primary"`
	Others        []summaryResponse     `json:"others"`
	Recent        []transactionResponse `json:"recent"`
	Notices       []string              `json:"notices"`
}

type categoryShareResponse struct {
	Category string `json:"category"`
	Amount   string `json:"amount"`
	Percent  string `json:"percent"`
}

type monthTotalsResponse struct {
	Label         string `json:"label"`
	Year          int    `json:"year"`
	Month         int    `json:"month"`
	TotalIncome   string `json:"total_income"`
	TotalExpenses string `json:"total_expenses"`
}

type insightsResponse struct {
	AvailableFunds       string                 `json:"available_funds"`
	TotalIncome          string                 `json:"total_income"`
	TotalExpenses        string                 `json:"total_expenses"`
	ExpenseRatio         string                 `json:"expense_ratio"`
	SavingsRate          string                 `json:"savings_rate"`
	AverageDailySpending string                 `json:"average_daily_spending"`
	Display              services.ReportDisplay `json:"display"`
}

type reportResponse struct {
	Currency      string                  `json:"currency"`
	MonthlySalary string                  `json:"monthly_salary"`
	ByCategory    []categoryShareResponse `json:"by_category"`
	Trend         []monthTotalsResponse   `json:"trend"`
	Insights      insightsResponse        `json:"insights"`
	Notices       []string                `json:"notices"`
}

type ratesResponse struct {
	Base      string            `json:"base"`
	Rates     map[string]string `json:"rates"`
	FetchedAt time.Time         `json:"fetched_at"`
}

type convertResponse struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Amount  string `json:"amount"`
	Result  string `json:"result"`
	Display string `json:"display"`
}

// Mapping

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func newUserResponse(u core.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}
}

func newSessionResponse(s auth.Session) sessionResponse {
	return sessionResponse{Token: s.Token, ExpiresAt: s.ExpiresAt, User: newUserResponse(s.User)}
}

func newTransactionResponse(tx core.Transaction) transactionResponse {
	return transactionResponse{
		ID:        tx.ID,
		Type:      string(tx.Type),
		Amount:    money(tx.Amount),
		Display:   currency.Format(tx.Amount, tx.Currency),
		Category:  tx.Category,
		Date:      tx.Date,
		Currency:  tx.Currency,
		Note:      tx.Note,
		CreatedAt: tx.CreatedAt,
		UpdatedAt: tx.UpdatedAt,
	}
}

func newTransactionsResponse(txs []core.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, newTransactionResponse(tx))
	}
	return out
}

func newProfileResponse(p core.Profile) profileResponse {
	resp := profileResponse{
		MonthlySalary: money(p.MonthlySalary),
		Display:       currency.Format(p.MonthlySalary, p.Currency),
		Currency:      p.Currency,
	}
	if !p.UpdatedAt.IsZero() {
		t := p.UpdatedAt
		resp.UpdatedAt = &t
	}
	return resp
}

func newSummaryResponse(s core.CurrencySummary, f services.FormattedSummary) summaryResponse {
	return summaryResponse{
		Currency:      s.Currency,
		TotalIncome:   money(s.TotalIncome),
		TotalExpenses: money(s.TotalExpenses),
		Balance:       money(s.Balance),
		Display:       summaryDisplay{Income: f.Income, Expenses: f.Expenses, Balance: f.Balance},
	}
}

func newDashboardResponse(d services.Dashboard) dashboardResponse {
	resp := dashboardResponse{
		Currency:      d.Currency,
		MonthlySalary: money(d.MonthlySalary),
		SalaryDisplay: d.Display.MonthlySalary,
		Primary:       newSummaryResponse(d.Primary, d.Display.Primary),
		Others:        make([]summaryResponse, 0, len(d.Others)),
		Recent:        newTransactionsResponse(d.Recent),
		Notices:       nonNil(d.Notices),
	}
	for i, o := range d.Others {
		resp.Others = append(resp.Others, newSummaryResponse(o, d.Display.Others[i]))
	}
	return resp
}

func newReportResponse(r services.Report) reportResponse {
	resp := reportResponse{
		Currency:      r.Currency,
		MonthlySalary: money(r.MonthlySalary),
		ByCategory:    make([]categoryShareResponse, 0, len(r.ByCategory)),
		Trend:         make([]monthTotalsResponse, 0, len(r.Trend)),
		Insights: insightsResponse{
			AvailableFunds:       money(r.Insights.AvailableFunds),
			TotalIncome:          money(r.Insights.TotalIncome),
			TotalExpenses:        money(r.Insights.TotalExpenses),
			ExpenseRatio:         r.Insights.ExpenseRatio.StringFixed(1),
			SavingsRate:          r.Insights.SavingsRate.StringFixed(1),
			AverageDailySpending: money(r.Insights.AverageDailySpending),
			Display:              r.Display,
		},
		Notices: nonNil(r.Notices),
	}
	for _, c := range r.ByCategory {
		resp.ByCategory = append(resp.ByCategory, categoryShareResponse{
			Category: c.Category,
			Amount:   money(c.Amount),
			Percent:  c.Percent.StringFixed(1),
		})
	}
	for _, m := range r.Trend {
		resp.Trend = append(resp.Trend, monthTotalsResponse{
			Label:         m.Label,
			Year:          m.Year,
			Month:         m.Month,
			TotalIncome:   money(m.TotalIncome),
			TotalExpenses: money(m.TotalExpenses),
		})
	}
	return resp
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
