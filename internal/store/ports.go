// Package store defines the record store ports the services depend on.
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

var (
	// ErrNotFound is returned when a record does not exist or is owned by
	// another user.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned for duplicate ids or emails.
	ErrConflict = errors.New("record already exists")
)

// Ports implemented by the memory and SQLite stores.
type (
	// TransactionStore persists transactions. Lists are ordered by date
	// descending, then by creation time descending.
	TransactionStore interface {
		ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error)
		GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error)
		CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, userID, id string) error
	}

	// ProfileStore persists one profile per user. GetProfile creates the
	// default profile on first read.
	ProfileStore interface {
		GetProfile(ctx context.Context, userID string) (core.Profile, error)
		UpdateSalary(ctx context.Context, userID string, salary decimal.Decimal) (core.Profile, error)
		UpdateCurrency(ctx context.Context, userID, currency string) (core.Profile, error)
	}

	UserStore interface {
		CreateUser(ctx context.Context, u core.User) (core.User, error)
		GetUser(ctx context.Context, id string) (core.User, error)
		GetUserByEmail(ctx context.Context, email string) (core.User, error)
	}

	// SyncTracker records which transactions still need exporting. Every
	// create or update bumps a transaction's version and marks it pending.
	SyncTracker interface {
		PendingSync(ctx context.Context, limit int) ([]PendingSync, error)
		MarkSynced(ctx context.Context, id string, version int64) error
		MarkSyncError(ctx context.Context, id string) error
	}

	// Store is everything a backend provides.
	Store interface {
		TransactionStore
		ProfileStore
		UserStore
		SyncTracker
		Ping(ctx context.Context) error
		Close() error
	}
)

// PendingSync identifies one transaction version awaiting export.
type PendingSync struct {
	ID      string
	UserID  string
	Version int64
}
