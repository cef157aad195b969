package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the SQL used by SQLiteRepository. Rows use the column
// encodings of the schema: decimals and timestamps as TEXT.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type TransactionRow struct {
	ID         string
	UserID     string
	Type       string
	Amount     string
	Category   string
	Date       string
	Currency   string
	Note       string
	CreatedAt  string
	UpdatedAt  string
	Version    int64
	SyncStatus string
}

const transactionColumns = `id, user_id, type, amount, category, date, currency, note, created_at, updated_at, version, sync_status`

func scanTransaction(row interface{ Scan(...any) error }) (TransactionRow, error) {
	var t TransactionRow
	err := row.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Category, &t.Date,
		&t.Currency, &t.Note, &t.CreatedAt, &t.UpdatedAt, &t.Version, &t.SyncStatus)
	return t, err
}

const listTransactionsByUser = `SELECT ` + transactionColumns + `
FROM transactions
WHERE user_id = ?
ORDER BY date DESC, created_at DESC, id DESC`

func (q *Queries) ListTransactionsByUser(ctx context.Context, userID string) ([]TransactionRow, error) {
	rows, err := q.db.QueryContext(ctx, listTransactionsByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TransactionRow
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const getTransaction = `SELECT ` + transactionColumns + `
FROM transactions
WHERE id = ? AND user_id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id, userID string) (TransactionRow, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransaction, id, userID))
}

const createTransaction = `INSERT INTO transactions (
    id, user_id, type, amount, category, date, currency, note, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

type CreateTransactionParams struct {
	ID        string
	UserID    string
	Type      string
	Amount    string
	Category  string
	Date      string
	Currency  string
	Note      string
	CreatedAt string
	UpdatedAt string
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) error {
	_, err := q.db.ExecContext(ctx, createTransaction,
		arg.ID, arg.UserID, arg.Type, arg.Amount, arg.Category, arg.Date,
		arg.Currency, arg.Note, arg.CreatedAt, arg.UpdatedAt)
	return err
}

const updateTransaction = `UPDATE transactions
SET type = ?, amount = ?, category = ?, date = ?, currency = ?, note = ?, updated_at = ?,
    version = version + 1, sync_status = 'pending'
WHERE id = ? AND user_id = ?`

type UpdateTransactionParams struct {
	ID        string
	UserID    string
	Type      string
	Amount    string
	Category  string
	Date      string
	Currency  string
	Note      string
	UpdatedAt string
}

func (q *Queries) UpdateTransaction(ctx context.Context, arg UpdateTransactionParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateTransaction,
		arg.Type, arg.Amount, arg.Category, arg.Date, arg.Currency, arg.Note, arg.UpdatedAt,
		arg.ID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteTransaction = `DELETE FROM transactions WHERE id = ? AND user_id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, id, userID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTransaction, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getPendingSyncTransactions = `SELECT id, user_id, version
FROM transactions
WHERE sync_status IN ('pending', 'error')
ORDER BY created_at ASC, id ASC
LIMIT ?`

type PendingSyncRow struct {
	ID      string
	UserID  string
	Version int64
}

func (q *Queries) GetPendingSyncTransactions(ctx context.Context, limit int64) ([]PendingSyncRow, error) {
	rows, err := q.db.QueryContext(ctx, getPendingSyncTransactions, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PendingSyncRow
	for rows.Next() {
		var p PendingSyncRow
		if err := rows.Scan(&p.ID, &p.UserID, &p.Version); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const transactionExists = `SELECT COUNT(1) FROM transactions WHERE id = ?`

func (q *Queries) TransactionExists(ctx context.Context, id string) (bool, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, transactionExists, id).Scan(&n)
	return n > 0, err
}

const markTransactionSynced = `UPDATE transactions SET sync_status = 'synced' WHERE id = ? AND version = ?`

func (q *Queries) MarkTransactionSynced(ctx context.Context, id string, version int64) error {
	_, err := q.db.ExecContext(ctx, markTransactionSynced, id, version)
	return err
}

const markTransactionSyncError = `UPDATE transactions SET sync_status = 'error' WHERE id = ?`

func (q *Queries) MarkTransactionSyncError(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, markTransactionSyncError, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type ProfileRow struct {
	UserID        string
	MonthlySalary string
	Currency      string
	UpdatedAt     string
}

const ensureProfile = `INSERT INTO profiles (user_id, monthly_salary, currency, updated_at)
VALUES (?, '0', ?, ?)
ON CONFLICT (user_id) DO NOTHING`

func (q *Queries) EnsureProfile(ctx context.Context, userID, currency, now string) error {
	_, err := q.db.ExecContext(ctx, ensureProfile, userID, currency, now)
	return err
}

const getProfile = `SELECT user_id, monthly_salary, currency, updated_at FROM profiles WHERE user_id = ?`

func (q *Queries) GetProfile(ctx context.Context, userID string) (ProfileRow, error) {
	var p ProfileRow
	err := q.db.QueryRowContext(ctx, getProfile, userID).Scan(&p.UserID, &p.MonthlySalary, &p.Currency, &p.UpdatedAt)
	return p, err
}

const updateProfileSalary = `UPDATE profiles SET monthly_salary = ?, updated_at = ? WHERE user_id = ?`

func (q *Queries) UpdateProfileSalary(ctx context.Context, userID, salary, now string) error {
	_, err := q.db.ExecContext(ctx, updateProfileSalary, salary, now, userID)
	return err
}

const updateProfileCurrency = `UPDATE profiles SET currency = ?, updated_at = ? WHERE user_id = ?`

func (q *Queries) UpdateProfileCurrency(ctx context.Context, userID, currency, now string) error {
	_, err := q.db.ExecContext(ctx, updateProfileCurrency, currency, now, userID)
	return err
}

type UserRow struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    string
}

const createUser = `INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`

func (q *Queries) CreateUser(ctx context.Context, u UserRow) error {
	_, err := q.db.ExecContext(ctx, createUser, u.ID, u.Email, u.PasswordHash, u.CreatedAt)
	return err
}

const getUser = `SELECT id, email, password_hash, created_at FROM users WHERE id = ?`

func (q *Queries) GetUser(ctx context.Context, id string) (UserRow, error) {
	var u UserRow
	err := q.db.QueryRowContext(ctx, getUser, id).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

const getUserByEmail = `SELECT id, email, password_hash, created_at FROM users WHERE email = ?`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (UserRow, error) {
	var u UserRow
	err := q.db.QueryRowContext(ctx, getUserByEmail, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	return u, err
}
