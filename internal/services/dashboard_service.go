package services

import (
	"context"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
	"fintrack/internal/currency"
	"fintrack/internal/log"
	"fintrack/internal/store"
)

// RecentLimit is how many transactions the dashboard lists.
const RecentLimit = 5

// User-facing notices attached when a fetch fails and defaults are shown.
const (
	NoticeProfileUnavailable      = "Your profile could not be loaded. Showing default salary and currency."
	NoticeTransactionsUnavailable = "Your transactions could not be loaded. Totals may be incomplete."
)

// FormattedSummary is a CurrencySummary rendered for display.
type FormattedSummary struct {
	Currency string
	Income   string
	Expenses string
	Balance  string
}

type Dashboard struct {
	Currency      string
	MonthlySalary decimal.Decimal
	Primary       core.CurrencySummary
	Others        []core.CurrencySummary
	Recent        []core.Transaction
	Display       DashboardDisplay
	Notices       []string
}

type DashboardDisplay struct {
	MonthlySalary string
	Primary       FormattedSummary
	Others        []FormattedSummary
}

type Report struct {
	Currency      string
	MonthlySalary decimal.Decimal
	ByCategory    []core.CategoryShare
	Trend         []core.MonthTotals
	Insights      core.Insights
	Display       ReportDisplay
	Notices       []string
}

type ReportDisplay struct {
	AvailableFunds       string `json:"available_funds"`
	TotalIncome          string `json:"total_income"`
	TotalExpenses        string `json:"total_expenses"`
	AverageDailySpending string `json:"average_daily_spending"`
}

// DashboardService builds the dashboard and reports views from a join of the
// user's profile and transactions.
type DashboardService struct {
	txs             store.TransactionStore
	profiles        store.ProfileStore
	defaultCurrency string
	logger          *log.Logger
}

func NewDashboardService(txs store.TransactionStore, profiles store.ProfileStore, defaultCurrency string, logger *log.Logger) *DashboardService {
	if logger == nil {
		logger = log.Discard()
	}
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}
	return &DashboardService{
		txs:             txs,
		profiles:        profiles,
		defaultCurrency: core.NormalizeCurrency(defaultCurrency),
		logger:          logger.WithComponent(log.ComponentDashboard),
	}
}

type snapshot struct {
	profile core.Profile
	txs     []core.Transaction
	notices []string
}

// load fetches profile and transactions concurrently. A failed fetch is
// logged and replaced by its default; it never cancels the other fetch.
func (s *DashboardService) load(ctx context.Context, userID string) snapshot {
	var (
		profile             core.Profile
		txs                 []core.Transaction
		profileErr, listErr error
	)

	var g errgroup.Group
	g.Go(func() error {
		profile, profileErr = s.profiles.GetProfile(ctx, userID)
		return nil
	})
	g.Go(func() error {
		txs, listErr = s.txs.ListTransactions(ctx, userID)
		return nil
	})
	_ = g.Wait()

	snap := snapshot{profile: profile, txs: txs}
	if profileErr != nil {
		s.logger.ErrorContext(ctx, "Failed to load profile, using defaults",
			log.FieldUserID, userID,
			log.FieldError, profileErr)
		snap.profile = core.DefaultProfile(userID, s.defaultCurrency)
		snap.notices = append(snap.notices, NoticeProfileUnavailable)
	}
	if listErr != nil {
		s.logger.ErrorContext(ctx, "Failed to load transactions, using empty list",
			log.FieldUserID, userID,
			log.FieldError, listErr)
		snap.txs = nil
		snap.notices = append(snap.notices, NoticeTransactionsUnavailable)
	}
	if snap.profile.Currency == "" {
		snap.profile.Currency = s.defaultCurrency
	}
	return snap
}

// Dashboard returns per-currency summaries, the most recent transactions and
// their display strings. It never fails; store errors become notices.
func (s *DashboardService) Dashboard(ctx context.Context, userID string) Dashboard {
	snap := s.load(ctx, userID)
	primaryCode := snap.profile.Currency
	salary := snap.profile.MonthlySalary

	primary, others := core.SplitPrimary(core.Summarize(snap.txs, primaryCode, salary), primaryCode)

	recent := snap.txs
	if len(recent) > RecentLimit {
		recent = recent[:RecentLimit]
	}

	d := Dashboard{
		Currency:      primaryCode,
		MonthlySalary: salary,
		Primary:       primary,
		Others:        others,
		Recent:        append([]core.Transaction{}, recent...),
		Notices:       snap.notices,
		Display: DashboardDisplay{
			MonthlySalary: currency.Format(salary, primaryCode),
			Primary:       formatSummary(primary),
			Others:        make([]FormattedSummary, 0, len(others)),
		},
	}
	for _, o := range others {
		d.Display.Others = append(d.Display.Others, formatSummary(o))
	}
	return d
}

// Report returns expense totals by category, the monthly trend and the
// primary-currency insights.
func (s *DashboardService) Report(ctx context.Context, userID string) Report {
	snap := s.load(ctx, userID)
	primaryCode := snap.profile.Currency
	salary := snap.profile.MonthlySalary

	insights := core.ComputeInsights(snap.txs, primaryCode, salary)
	return Report{
		Currency:      primaryCode,
		MonthlySalary: salary,
		ByCategory:    core.CategoryShares(core.ExpensesByCategory(snap.txs)),
		Trend:         core.MonthlyTrend(snap.txs),
		Insights:      insights,
		Notices:       snap.notices,
		Display: ReportDisplay{
			AvailableFunds:       currency.Format(insights.AvailableFunds, primaryCode),
			TotalIncome:          currency.Format(insights.TotalIncome, primaryCode),
			TotalExpenses:        currency.Format(insights.TotalExpenses, primaryCode),
			AverageDailySpending: currency.Format(insights.AverageDailySpending, primaryCode),
		},
	}
}

func formatSummary(s core.CurrencySummary) FormattedSummary {
	return FormattedSummary{
		Currency: s.Currency,
		Income:   currency.Format(s.TotalIncome, s.Currency),
		Expenses: currency.Format(s.TotalExpenses, s.Currency),
		Balance:  currency.Format(s.Balance, s.Currency),
	}
}
