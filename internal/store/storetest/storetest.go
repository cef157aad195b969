// Package storetest is a behavioural test suite shared by every store.Store
// implementation.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

// Factory returns a fresh, empty store whose default profile currency is USD.
type Factory func(t *testing.T) store.Store

// Run exercises the full store.Store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("TransactionCRUD", func(t *testing.T) { testTransactionCRUD(t, newStore(t)) })
	t.Run("TransactionOrdering", func(t *testing.T) { testTransactionOrdering(t, newStore(t)) })
	t.Run("TransactionOwnership", func(t *testing.T) { testTransactionOwnership(t, newStore(t)) })
	t.Run("ProfileDefaultsAndUpdates", func(t *testing.T) { testProfile(t, newStore(t)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("SyncTracking", func(t *testing.T) { testSyncTracking(t, newStore(t)) })
}

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// NewTransaction builds a valid transaction for userID.
func NewTransaction(userID string, typ core.TransactionType, amount, currency string, date core.Date, created time.Time) core.Transaction {
	return core.Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      typ,
		Amount:    decimal.RequireFromString(amount),
		Category:  "Other",
		Date:      date,
		Currency:  currency,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func testTransactionCRUD(t *testing.T, s store.Store) {
	ctx := context.Background()
	tx := NewTransaction("u1", core.Expense, "12.34", "EUR", core.NewDate(2025, 3, 2), base)
	tx.Note = "lunch"

	created, err := s.CreateTransaction(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, created.ID)
	assert.Equal(t, int64(1), created.Version)

	_, err = s.CreateTransaction(ctx, tx)
	assert.ErrorIs(t, err, store.ErrConflict)

	got, err := s.GetTransaction(ctx, "u1", tx.ID)
	require.NoError(t, err)
	assert.Equal(t, core.Expense, got.Type)
	assert.True(t, decimal.RequireFromString("12.34").Equal(got.Amount))
	assert.Equal(t, "EUR", got.Currency)
	assert.Equal(t, "lunch", got.Note)
	assert.Equal(t, "2025-03-02", got.Date.String())
	assert.True(t, base.Equal(got.CreatedAt))

	upd := got
	upd.Type = core.Income
	upd.Amount = decimal.RequireFromString("99.99")
	upd.Category = "Gift"
	upd.Note = ""
	upd.UpdatedAt = base.Add(time.Hour)
	upd.CreatedAt = base.Add(48 * time.Hour)
	saved, err := s.UpdateTransaction(ctx, upd)
	require.NoError(t, err)
	assert.True(t, base.Equal(saved.CreatedAt), "created_at must not change")
	assert.Equal(t, int64(2), saved.Version)

	got, err = s.GetTransaction(ctx, "u1", tx.ID)
	require.NoError(t, err)
	assert.Equal(t, core.Income, got.Type)
	assert.Equal(t, "99.99", got.Amount.String())
	assert.Equal(t, "Gift", got.Category)
	assert.Empty(t, got.Note)
	assert.True(t, base.Add(time.Hour).Equal(got.UpdatedAt))
	assert.Equal(t, int64(2), got.Version)

	missing := upd
	missing.ID = uuid.NewString()
	_, err = s.UpdateTransaction(ctx, missing)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.DeleteTransaction(ctx, "u1", tx.ID))
	_, err = s.GetTransaction(ctx, "u1", tx.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteTransaction(ctx, "u1", tx.ID), store.ErrNotFound)
}

func testTransactionOrdering(t *testing.T, s store.Store) {
	ctx := context.Background()
	older := NewTransaction("u1", core.Expense, "1", "USD", core.NewDate(2025, 1, 10), base)
	sameDayEarly := NewTransaction("u1", core.Expense, "2", "USD", core.NewDate(2025, 2, 10), base)
	sameDayLate := NewTransaction("u1", core.Income, "3", "USD", core.NewDate(2025, 2, 10), base.Add(time.Minute))
	newest := NewTransaction("u1", core.Expense, "4", "USD", core.NewDate(2025, 3, 1), base)
	other := NewTransaction("u2", core.Expense, "5", "USD", core.NewDate(2025, 3, 5), base)

	for _, tx := range []core.Transaction{sameDayEarly, older, other, newest, sameDayLate} {
		_, err := s.CreateTransaction(ctx, tx)
		require.NoError(t, err)
	}

	list, err := s.ListTransactions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 4)
	assert.Equal(t, newest.ID, list[0].ID)
	assert.Equal(t, sameDayLate.ID, list[1].ID)
	assert.Equal(t, sameDayEarly.ID, list[2].ID)
	assert.Equal(t, older.ID, list[3].ID)

	empty, err := s.ListTransactions(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testTransactionOwnership(t *testing.T, s store.Store) {
	ctx := context.Background()
	tx := NewTransaction("owner", core.Expense, "10", "USD", core.NewDate(2025, 1, 1), base)
	_, err := s.CreateTransaction(ctx, tx)
	require.NoError(t, err)

	_, err = s.GetTransaction(ctx, "intruder", tx.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	stolen := tx
	stolen.UserID = "intruder"
	_, err = s.UpdateTransaction(ctx, stolen)
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, s.DeleteTransaction(ctx, "intruder", tx.ID), store.ErrNotFound)

	_, err = s.GetTransaction(ctx, "owner", tx.ID)
	assert.NoError(t, err)
}

func testProfile(t *testing.T, s store.Store) {
	ctx := context.Background()

	p, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, "USD", p.Currency)
	assert.True(t, p.MonthlySalary.IsZero())

	p, err = s.UpdateSalary(ctx, "u1", decimal.RequireFromString("4200.50"))
	require.NoError(t, err)
	assert.Equal(t, "4200.5", p.MonthlySalary.String())

	p, err = s.UpdateCurrency(ctx, "u1", "EUR")
	require.NoError(t, err)
	assert.Equal(t, "EUR", p.Currency)
	assert.Equal(t, "4200.5", p.MonthlySalary.String())

	p, err = s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "EUR", p.Currency)
	assert.Equal(t, "4200.5", p.MonthlySalary.String())

	// Updating before any read creates the profile too.
	p, err = s.UpdateCurrency(ctx, "u2", "JPY")
	require.NoError(t, err)
	assert.Equal(t, "JPY", p.Currency)
	assert.True(t, p.MonthlySalary.IsZero())
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := core.User{ID: uuid.NewString(), Email: "Ada@Example.com", PasswordHash: "hash", CreatedAt: base}

	created, err := s.CreateUser(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", created.Email)

	dup := core.User{ID: uuid.NewString(), Email: "ada@example.COM", PasswordHash: "x", CreatedAt: base}
	_, err = s.CreateUser(ctx, dup)
	assert.ErrorIs(t, err, store.ErrConflict)

	got, err := s.GetUserByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	got, err = s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", got.Email)

	_, err = s.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetUserByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testSyncTracking(t *testing.T, s store.Store) {
	ctx := context.Background()
	first := NewTransaction("u1", core.Expense, "1", "USD", core.NewDate(2025, 1, 1), base)
	second := NewTransaction("u1", core.Expense, "2", "USD", core.NewDate(2025, 1, 2), base.Add(time.Second))
	for _, tx := range []core.Transaction{second, first} {
		_, err := s.CreateTransaction(ctx, tx)
		require.NoError(t, err)
	}

	pending, err := s.PendingSync(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, "u1", pending[0].UserID)
	assert.Equal(t, int64(1), pending[0].Version)

	limited, err := s.PendingSync(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NoError(t, s.MarkSynced(ctx, first.ID, 1))
	pending, err = s.PendingSync(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)

	// An edit after export makes it pending again with a new version.
	upd := first
	upd.Amount = decimal.NewFromInt(7)
	_, err = s.UpdateTransaction(ctx, upd)
	require.NoError(t, err)
	pending, err = s.PendingSync(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, int64(2), pending[0].Version)

	// Marking a stale version does not hide the newer edit.
	require.NoError(t, s.MarkSynced(ctx, first.ID, 1))
	pending, err = s.PendingSync(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	// Failed exports are retried.
	require.NoError(t, s.MarkSyncError(ctx, second.ID))
	pending, err = s.PendingSync(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	assert.ErrorIs(t, s.MarkSynced(ctx, "missing", 1), store.ErrNotFound)
	assert.ErrorIs(t, s.MarkSyncError(ctx, "missing"), store.ErrNotFound)

	require.NoError(t, s.Ping(ctx))
}
