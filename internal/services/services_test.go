package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/store"
	"fintrack/internal/store/memory"
)

var fixedNow = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

type fakePublisher struct {
	mu     sync.Mutex
	events []amqp.TransactionEvent
	err    error
	closed bool
}

func (p *fakePublisher) Publish(_ context.Context, ev *amqp.TransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, *ev)
	return nil
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

// failingStore wraps the memory store and fails the selected reads.
type failingStore struct {
	*memory.Store
	failList    bool
	failProfile bool
}

var errStoreDown = errors.New("store down")

func (f *failingStore) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	if f.failList {
		return nil, errStoreDown
	}
	return f.Store.ListTransactions(ctx, userID)
}

func (f *failingStore) GetProfile(ctx context.Context, userID string) (core.Profile, error) {
	if f.failProfile {
		return core.Profile{}, errStoreDown
	}
	return f.Store.GetProfile(ctx, userID)
}

func newTxService(t *testing.T, pub Publisher) (*TransactionService, *memory.Store) {
	t.Helper()
	st := memory.New("USD")
	svc := NewTransactionService(st, st, pub, nil)
	n := 0
	svc.now = func() time.Time { return fixedNow }
	svc.newID = func() string {
		n++
		return "tx-" + string(rune('0'+n))
	}
	return svc, st
}

func validInput() TransactionInput {
	return TransactionInput{
		Type:     "expense",
		Amount:   "12,345",
		Category: " Food & Dining ",
		Date:     "2025-03-09",
		Currency: "eur",
		Note:     "lunch",
	}
}

func TestTransactionService_Create(t *testing.T) {
	pub := &fakePublisher{}
	svc, st := newTxService(t, pub)
	ctx := context.Background()

	tx, err := svc.Create(ctx, "u1", validInput())
	require.NoError(t, err)
	assert.Equal(t, "tx-1", tx.ID)
	assert.Equal(t, "u1", tx.UserID)
	assert.Equal(t, core.Expense, tx.Type)
	assert.Equal(t, "12.35", tx.Amount.String())
	assert.Equal(t, "Food & Dining", tx.Category)
	assert.Equal(t, "EUR", tx.Currency)
	assert.True(t, fixedNow.Equal(tx.CreatedAt))
	assert.Equal(t, int64(1), tx.Version)

	stored, err := st.GetTransaction(ctx, "u1", "tx-1")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-09", stored.Date.String())

	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.Equal(t, amqp.KindUpserted, ev.Kind)
	assert.Equal(t, "tx-1", ev.ID)
	assert.Equal(t, "u1", ev.UserID)
	assert.Equal(t, int64(1), ev.Version)
}

func TestTransactionService_CreateDefaultsToProfileCurrency(t *testing.T) {
	svc, st := newTxService(t, nil)
	ctx := context.Background()
	_, err := st.UpdateCurrency(ctx, "u1", "JPY")
	require.NoError(t, err)

	in := validInput()
	in.Currency = "  "
	tx, err := svc.Create(ctx, "u1", in)
	require.NoError(t, err)
	assert.Equal(t, "JPY", tx.Currency)
}

func TestTransactionService_CreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TransactionInput)
		field  string
		target error
	}{
		{"bad type", func(in *TransactionInput) { in.Type = "transfer" }, "type", core.ErrInvalidType},
		{"negative amount", func(in *TransactionInput) { in.Amount = "-5" }, "amount", core.ErrInvalidAmount},
		{"zero amount", func(in *TransactionInput) { in.Amount = "0.001" }, "amount", core.ErrInvalidAmount},
		{"text amount", func(in *TransactionInput) { in.Amount = "ten" }, "amount", core.ErrInvalidAmount},
		{"bad date", func(in *TransactionInput) { in.Date = "2025-13-01" }, "date", core.ErrInvalidDate},
		{"empty category", func(in *TransactionInput) { in.Category = "  " }, "category", core.ErrEmptyCategory},
		{"long category", func(in *TransactionInput) { in.Category = strings.Repeat("c", 101) }, "category", core.ErrCategoryTooLong},
		{"bad currency", func(in *TransactionInput) { in.Currency = "EURO" }, "currency", core.ErrInvalidCurrency},
		{"long note", func(in *TransactionInput) { in.Note = strings.Repeat("n", 501) }, "note", core.ErrNoteTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{}
			svc, st := newTxService(t, pub)
			in := validInput()
			tt.mutate(&in)

			_, err := svc.Create(context.Background(), "u1", in)
			require.Error(t, err)
			assert.True(t, IsValidation(err))
			assert.ErrorIs(t, err, tt.target)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)

			list, err := st.ListTransactions(context.Background(), "u1")
			require.NoError(t, err)
			assert.Empty(t, list)
			assert.Empty(t, pub.events)
		})
	}
}

func TestTransactionService_PublishFailureDoesNotFailRequest(t *testing.T) {
	pub := &fakePublisher{err: amqp.ErrCircuitOpen}
	svc, st := newTxService(t, pub)

	tx, err := svc.Create(context.Background(), "u1", validInput())
	require.NoError(t, err)

	_, err = st.GetTransaction(context.Background(), "u1", tx.ID)
	assert.NoError(t, err)
}

func TestTransactionService_Update(t *testing.T) {
	pub := &fakePublisher{}
	svc, _ := newTxService(t, pub)
	ctx := context.Background()

	created, err := svc.Create(ctx, "u1", validInput())
	require.NoError(t, err)

	later := fixedNow.Add(time.Hour)
	svc.now = func() time.Time { return later }

	in := validInput()
	in.Type = "income"
	in.Amount = "100"
	in.Category = "Salary"
	updated, err := svc.Update(ctx, "u1", created.ID, in)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, core.Income, updated.Type)
	assert.True(t, fixedNow.Equal(updated.CreatedAt))
	assert.True(t, later.Equal(updated.UpdatedAt))
	assert.Equal(t, int64(2), updated.Version)

	require.Len(t, pub.events, 2)
	assert.Equal(t, int64(2), pub.events[1].Version)

	_, err = svc.Update(ctx, "u2", created.ID, in)
	assert.ErrorIs(t, err, store.ErrNotFound)

	in.Amount = "abc"
	_, err = svc.Update(ctx, "u1", created.ID, in)
	assert.True(t, IsValidation(err))
}

func TestTransactionService_Delete(t *testing.T) {
	pub := &fakePublisher{}
	svc, _ := newTxService(t, pub)
	ctx := context.Background()

	created, err := svc.Create(ctx, "u1", validInput())
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, "u2", created.ID), store.ErrNotFound)
	require.NoError(t, svc.Delete(ctx, "u1", created.ID))

	require.Len(t, pub.events, 2)
	assert.Equal(t, amqp.KindDeleted, pub.events[1].Kind)
	assert.Equal(t, created.ID, pub.events[1].ID)

	_, err = svc.Get(ctx, "u1", created.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "u1", created.ID), store.ErrNotFound)
}

func TestTransactionService_List(t *testing.T) {
	svc, _ := newTxService(t, nil)
	ctx := context.Background()

	for _, date := range []string{"2025-01-01", "2025-03-01", "2025-02-01"} {
		in := validInput()
		in.Date = date
		_, err := svc.Create(ctx, "u1", in)
		require.NoError(t, err)
	}
	list, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "2025-03-01", list[0].Date.String())
	assert.Equal(t, "2025-01-01", list[2].Date.String())
}

func TestTransactionService_Close(t *testing.T) {
	t.Run("closes publisher", func(t *testing.T) {
		pub := &fakePublisher{}
		svc, _ := newTxService(t, pub)
		require.NoError(t, svc.Close())
		assert.True(t, pub.closed)
	})

	t.Run("nil publisher", func(t *testing.T) {
		svc, _ := newTxService(t, nil)
		assert.NoError(t, svc.Close())
	})
}

func TestProfileService(t *testing.T) {
	st := memory.New("USD")
	svc := NewProfileService(st, nil)
	ctx := context.Background()

	p, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "USD", p.Currency)
	assert.True(t, p.MonthlySalary.IsZero())

	p, err = svc.UpdateSalary(ctx, "u1", "4200,50")
	require.NoError(t, err)
	assert.Equal(t, "4200.5", p.MonthlySalary.String())

	p, err = svc.UpdateSalary(ctx, "u1", "0")
	require.NoError(t, err)
	assert.True(t, p.MonthlySalary.IsZero())

	_, err = svc.UpdateSalary(ctx, "u1", "-10")
	assert.True(t, IsValidation(err))

	p, err = svc.UpdateCurrency(ctx, "u1", " eur ")
	require.NoError(t, err)
	assert.Equal(t, "EUR", p.Currency)

	_, err = svc.UpdateCurrency(ctx, "u1", "ZZZ")
	assert.True(t, IsValidation(err))
	assert.ErrorIs(t, err, core.ErrInvalidCurrency)
}

func seed(t *testing.T, st store.Store, txs ...core.Transaction) {
	t.Helper()
	for _, tx := range txs {
		_, err := st.CreateTransaction(context.Background(), tx)
		require.NoError(t, err)
	}
}

func mkTx(id string, typ core.TransactionType, amount, code, category string, date core.Date) core.Transaction {
	return core.Transaction{
		ID:        id,
		UserID:    "u1",
		Type:      typ,
		Amount:    decimal.RequireFromString(amount),
		Category:  category,
		Date:      date,
		Currency:  code,
		CreatedAt: fixedNow,
		UpdatedAt: fixedNow,
	}
}

func TestDashboardService_Dashboard(t *testing.T) {
	st := memory.New("USD")
	ctx := context.Background()
	_, err := st.UpdateSalary(ctx, "u1", decimal.NewFromInt(1000))
	require.NoError(t, err)
	seed(t, st,
		mkTx("a", core.Income, "500", "USD", "Freelance", core.NewDate(2025, 3, 1)),
		mkTx("b", core.Expense, "200", "EUR", "Travel", core.NewDate(2025, 3, 2)),
	)

	d := NewDashboardService(st, st, "USD", nil).Dashboard(ctx, "u1")

	assert.Empty(t, d.Notices)
	assert.Equal(t, "USD", d.Currency)
	assert.Equal(t, "500", d.Primary.TotalIncome.String())
	assert.Equal(t, "1500", d.Primary.Balance.String())
	require.Len(t, d.Others, 1)
	assert.Equal(t, "EUR", d.Others[0].Currency)
	assert.Equal(t, "200", d.Others[0].TotalExpenses.String())
	assert.Equal(t, "-200", d.Others[0].Balance.String())

	assert.Equal(t, "$1,000.00", d.Display.MonthlySalary)
	assert.Equal(t, "$1,500.00", d.Display.Primary.Balance)
	require.Len(t, d.Display.Others, 1)
	assert.Equal(t, "-200,00 €", d.Display.Others[0].Balance)

	require.Len(t, d.Recent, 2)
	assert.Equal(t, "b", d.Recent[0].ID)
}

func TestDashboardService_RecentIsLimited(t *testing.T) {
	st := memory.New("USD")
	for day := 1; day <= 8; day++ {
		seed(t, st, mkTx(string(rune('a'+day)), core.Expense, "1", "USD", "Other", core.NewDate(2025, 1, day)))
	}

	d := NewDashboardService(st, st, "USD", nil).Dashboard(context.Background(), "u1")
	require.Len(t, d.Recent, RecentLimit)
	assert.Equal(t, "2025-01-08", d.Recent[0].Date.String())
	assert.Equal(t, "8", d.Primary.TotalExpenses.String())
}

func TestDashboardService_EmptyUser(t *testing.T) {
	st := memory.New("GBP")
	d := NewDashboardService(st, st, "GBP", nil).Dashboard(context.Background(), "nobody")

	assert.Equal(t, "GBP", d.Currency)
	assert.True(t, d.Primary.Balance.IsZero())
	assert.Empty(t, d.Others)
	assert.Empty(t, d.Recent)
	assert.Equal(t, "£0.00", d.Display.Primary.Balance)
}

func TestDashboardService_Degrades(t *testing.T) {
	tests := []struct {
		name        string
		failList    bool
		failProfile bool
		notices     []string
		balance     string
	}{
		{"transactions fail", true, false, []string{NoticeTransactionsUnavailable}, "1000"},
		{"profile fails", false, true, []string{NoticeProfileUnavailable}, "-40"},
		{"both fail", true, true, []string{NoticeProfileUnavailable, NoticeTransactionsUnavailable}, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := memory.New("USD")
			ctx := context.Background()
			_, err := mem.UpdateSalary(ctx, "u1", decimal.NewFromInt(1000))
			require.NoError(t, err)
			seed(t, mem, mkTx("a", core.Expense, "40", "USD", "Food & Dining", core.NewDate(2025, 2, 1)))

			st := &failingStore{Store: mem, failList: tt.failList, failProfile: tt.failProfile}
			svc := NewDashboardService(st, st, "USD", nil)

			d := svc.Dashboard(ctx, "u1")
			assert.Equal(t, tt.notices, d.Notices)
			assert.Equal(t, "USD", d.Currency)
			assert.Equal(t, tt.balance, d.Primary.Balance.String())

			r := svc.Report(ctx, "u1")
			assert.Equal(t, tt.notices, r.Notices)
		})
	}
}

func TestDashboardService_Report(t *testing.T) {
	st := memory.New("USD")
	ctx := context.Background()
	_, err := st.UpdateSalary(ctx, "u1", decimal.NewFromInt(2000))
	require.NoError(t, err)
	seed(t, st,
		mkTx("a", core.Expense, "300", "USD", "Food & Dining", core.NewDate(2025, 1, 5)),
		mkTx("b", core.Expense, "100", "USD", "Transportation", core.NewDate(2025, 2, 5)),
		mkTx("c", core.Income, "500", "USD", "Freelance", core.NewDate(2025, 2, 20)),
		mkTx("d", core.Expense, "50", "EUR", "Travel", core.NewDate(2025, 3, 1)),
	)

	r := NewDashboardService(st, st, "USD", nil).Report(ctx, "u1")

	require.Len(t, r.ByCategory, 3)
	assert.Equal(t, "Food & Dining", r.ByCategory[0].Category)
	assert.Equal(t, "Travel", r.ByCategory[2].Category)

	require.Len(t, r.Trend, 3)
	assert.Equal(t, "Jan 2025", r.Trend[0].Label)
	assert.Equal(t, "Mar 2025", r.Trend[2].Label)

	assert.Equal(t, "2500", r.Insights.AvailableFunds.String())
	assert.Equal(t, "400", r.Insights.TotalExpenses.String())
	assert.Equal(t, "16", r.Insights.ExpenseRatio.String())
	assert.Equal(t, "$2,500.00", r.Display.AvailableFunds)
	assert.Equal(t, "$13.33", r.Display.AverageDailySpending)
}
