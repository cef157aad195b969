package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/store"
)

// timeLayout is fixed width so TEXT columns sort chronologically.
const timeLayout = "2006-01-02 15:04:05.000000000"

type SQLiteRepository struct {
	db              *sql.DB
	queries         *Queries
	logger          *log.Logger
	defaultCurrency string
	now             func() time.Time
}

var _ store.Store = (*SQLiteRepository)(nil)

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// applies migrations. New profiles are created in defaultCurrency.
func NewSQLiteRepository(dbPath, defaultCurrency string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	if logger == nil {
		logger = log.Discard()
	}
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:              db,
		queries:         New(db),
		logger:          logger.WithComponent(log.ComponentStorage),
		defaultCurrency: defaultCurrency,
		now:             time.Now,
	}, nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := toTransaction(row)
		if err != nil {
			return nil, fmt.Errorf("decode transaction %s: %w", row.ID, err)
		}
		out = append(out, tx)
	}
	return out, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return toTransaction(row)
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	err := r.queries.CreateTransaction(ctx, CreateTransactionParams{
		ID:        tx.ID,
		UserID:    tx.UserID,
		Type:      string(tx.Type),
		Amount:    tx.Amount.String(),
		Category:  tx.Category,
		Date:      tx.Date.String(),
		Currency:  tx.Currency,
		Note:      tx.Note,
		CreatedAt: formatTime(tx.CreatedAt),
		UpdatedAt: formatTime(tx.UpdatedAt),
	})
	if isUniqueViolation(err) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", tx.ID, store.ErrConflict)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	r.logger.DebugContext(ctx, "Transaction saved to SQLite",
		log.FieldTxID, tx.ID,
		log.FieldUserID, tx.UserID,
		log.FieldAmount, tx.Amount.String(),
		log.FieldCurrency, tx.Currency)
	tx.Version = 1
	return tx, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	n, err := r.queries.UpdateTransaction(ctx, UpdateTransactionParams{
		ID:        tx.ID,
		UserID:    tx.UserID,
		Type:      string(tx.Type),
		Amount:    tx.Amount.String(),
		Category:  tx.Category,
		Date:      tx.Date.String(),
		Currency:  tx.Currency,
		Note:      tx.Note,
		UpdatedAt: formatTime(tx.UpdatedAt),
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if n == 0 {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", tx.ID, store.ErrNotFound)
	}
	return r.GetTransaction(ctx, tx.UserID, tx.ID)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id string) error {
	n, err := r.queries.DeleteTransaction(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// GetProfile returns the user's profile, inserting the default row first if
// the user has none.
func (r *SQLiteRepository) GetProfile(ctx context.Context, userID string) (core.Profile, error) {
	if err := r.queries.EnsureProfile(ctx, userID, r.defaultCurrency, formatTime(r.now())); err != nil {
		return core.Profile{}, fmt.Errorf("ensure profile: %w", err)
	}
	row, err := r.queries.GetProfile(ctx, userID)
	if err != nil {
		return core.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return toProfile(row)
}

func (r *SQLiteRepository) UpdateSalary(ctx context.Context, userID string, salary decimal.Decimal) (core.Profile, error) {
	now := formatTime(r.now())
	if err := r.queries.EnsureProfile(ctx, userID, r.defaultCurrency, now); err != nil {
		return core.Profile{}, fmt.Errorf("ensure profile: %w", err)
	}
	if err := r.queries.UpdateProfileSalary(ctx, userID, salary.String(), now); err != nil {
		return core.Profile{}, fmt.Errorf("update salary: %w", err)
	}
	return r.GetProfile(ctx, userID)
}

func (r *SQLiteRepository) UpdateCurrency(ctx context.Context, userID, currency string) (core.Profile, error) {
	now := formatTime(r.now())
	if err := r.queries.EnsureProfile(ctx, userID, r.defaultCurrency, now); err != nil {
		return core.Profile{}, fmt.Errorf("ensure profile: %w", err)
	}
	if err := r.queries.UpdateProfileCurrency(ctx, userID, currency, now); err != nil {
		return core.Profile{}, fmt.Errorf("update currency: %w", err)
	}
	return r.GetProfile(ctx, userID)
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	err := r.queries.CreateUser(ctx, UserRow{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    formatTime(u.CreatedAt),
	})
	if isUniqueViolation(err) {
		return core.User{}, fmt.Errorf("user %s: %w", u.Email, store.ErrConflict)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id string) (core.User, error) {
	row, err := r.queries.GetUser(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return toUser(row)
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	row, err := r.queries.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %s: %w", email, store.ErrNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return toUser(row)
}

// PendingSync returns transactions that still need to be exported.
func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]store.PendingSync, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.queries.GetPendingSyncTransactions(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending sync transactions: %w", err)
	}
	out := make([]store.PendingSync, len(rows))
	for i, row := range rows {
		out[i] = store.PendingSync{ID: row.ID, UserID: row.UserID, Version: row.Version}
	}
	return out, nil
}

// MarkSynced marks a transaction as exported. A newer version stays pending.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, version int64) error {
	exists, err := r.queries.TransactionExists(ctx, id)
	if err != nil {
		return fmt.Errorf("check transaction: %w", err)
	}
	if !exists {
		return fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	if err := r.queries.MarkTransactionSynced(ctx, id, version); err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	r.logger.DebugContext(ctx, "Transaction marked as synced", log.FieldTxID, id, "version", version)
	return nil
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	n, err := r.queries.MarkTransactionSyncError(ctx, id)
	if err != nil {
		return fmt.Errorf("mark transaction sync error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	r.logger.WarnContext(ctx, "Transaction marked with sync error", log.FieldTxID, id)
	return nil
}

func toTransaction(row TransactionRow) (core.Transaction, error) {
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount %q: %w", row.Amount, err)
	}
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	created, err := parseTime(row.CreatedAt)
	if err != nil {
		return core.Transaction{}, err
	}
	updated, err := parseTime(row.UpdatedAt)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		ID:        row.ID,
		UserID:    row.UserID,
		Type:      core.TransactionType(row.Type),
		Amount:    amount,
		Category:  row.Category,
		Date:      date,
		Currency:  row.Currency,
		Note:      row.Note,
		CreatedAt: created,
		UpdatedAt: updated,
		Version:   row.Version,
	}, nil
}

func toProfile(row ProfileRow) (core.Profile, error) {
	salary, err := decimal.NewFromString(row.MonthlySalary)
	if err != nil {
		return core.Profile{}, fmt.Errorf("monthly salary %q: %w", row.MonthlySalary, err)
	}
	updated, err := parseTime(row.UpdatedAt)
	if err != nil {
		return core.Profile{}, err
	}
	return core.Profile{
		UserID:        row.UserID,
		MonthlySalary: salary,
		Currency:      row.Currency,
		UpdatedAt:     updated,
	}, nil
}

func toUser(row UserRow) (core.User, error) {
	created, err := parseTime(row.CreatedAt)
	if err != nil {
		return core.User{}, err
	}
	return core.User{
		ID:           row.ID,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		CreatedAt:    created,
	}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
