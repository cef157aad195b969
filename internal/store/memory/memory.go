// Package memory is a mutex-guarded in-process implementation of store.Store,
// used for local development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/store"
)

const (
	syncPending = "pending"
	syncDone    = "synced"
	syncError   = "error"
)

type txRecord struct {
	tx         core.Transaction
	version    int64
	syncStatus string
}

type Store struct {
	mu              sync.RWMutex
	defaultCurrency string
	now             func() time.Time
	txs             map[string]*txRecord
	profiles        map[string]core.Profile
	users           map[string]core.User
	emails          map[string]string
}

var _ store.Store = (*Store)(nil)

// New creates an empty store. Profiles are created lazily in defaultCurrency.
func New(defaultCurrency string) *Store {
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}
	return &Store{
		defaultCurrency: defaultCurrency,
		now:             time.Now,
		txs:             make(map[string]*txRecord),
		profiles:        make(map[string]core.Profile),
		users:           make(map[string]core.User),
		emails:          make(map[string]string),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// ListTransactions returns the user's transactions, newest date first.
func (s *Store) ListTransactions(_ context.Context, userID string) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Transaction, 0)
	for _, rec := range s.txs {
		if rec.tx.UserID == userID {
			out = append(out, rec.tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date.Time) {
			return a.Date.After(b.Date.Time)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, userID, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.txs[id]
	if !ok || rec.tx.UserID != userID {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	return rec.tx, nil
}

func (s *Store) CreateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.txs[tx.ID]; exists {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", tx.ID, store.ErrConflict)
	}
	tx.Version = 1
	s.txs[tx.ID] = &txRecord{tx: tx, version: 1, syncStatus: syncPending}
	return tx, nil
}

// UpdateTransaction replaces the mutable fields of an existing transaction.
// CreatedAt is preserved.
func (s *Store) UpdateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.txs[tx.ID]
	if !ok || rec.tx.UserID != tx.UserID {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", tx.ID, store.ErrNotFound)
	}
	tx.CreatedAt = rec.tx.CreatedAt
	rec.version++
	tx.Version = rec.version
	rec.tx = tx
	rec.syncStatus = syncPending
	return tx, nil
}

func (s *Store) DeleteTransaction(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.txs[id]
	if !ok || rec.tx.UserID != userID {
		return fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	delete(s.txs, id)
	return nil
}

// GetProfile returns the user's profile, creating the default one if needed.
func (s *Store) GetProfile(_ context.Context, userID string) (core.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profileLocked(userID), nil
}

func (s *Store) UpdateSalary(_ context.Context, userID string, salary decimal.Decimal) (core.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.profileLocked(userID)
	p.MonthlySalary = salary
	p.UpdatedAt = s.now()
	s.profiles[userID] = p
	return p, nil
}

func (s *Store) UpdateCurrency(_ context.Context, userID, currency string) (core.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.profileLocked(userID)
	p.Currency = currency
	p.UpdatedAt = s.now()
	s.profiles[userID] = p
	return p, nil
}

func (s *Store) profileLocked(userID string) core.Profile {
	p, ok := s.profiles[userID]
	if !ok {
		p = core.DefaultProfile(userID, s.defaultCurrency)
		p.UpdatedAt = s.now()
		s.profiles[userID] = p
	}
	return p
}

func (s *Store) CreateUser(_ context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(u.Email))
	if _, taken := s.emails[email]; taken {
		return core.User{}, fmt.Errorf("user %s: %w", email, store.ErrConflict)
	}
	if _, taken := s.users[u.ID]; taken {
		return core.User{}, fmt.Errorf("user %s: %w", u.ID, store.ErrConflict)
	}
	u.Email = email
	s.users[u.ID] = u
	s.emails[email] = u.ID
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return core.User{}, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return core.User{}, fmt.Errorf("user %s: %w", email, store.ErrNotFound)
	}
	return s.users[id], nil
}

// PendingSync returns up to limit transactions not yet exported (including
// failed ones), oldest first.
func (s *Store) PendingSync(_ context.Context, limit int) ([]store.PendingSync, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var recs []*txRecord
	for _, rec := range s.txs {
		if rec.syncStatus != syncDone {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].tx.CreatedAt.Equal(recs[j].tx.CreatedAt) {
			return recs[i].tx.CreatedAt.Before(recs[j].tx.CreatedAt)
		}
		return recs[i].tx.ID < recs[j].tx.ID
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}

	out := make([]store.PendingSync, len(recs))
	for i, rec := range recs {
		out[i] = store.PendingSync{ID: rec.tx.ID, UserID: rec.tx.UserID, Version: rec.version}
	}
	return out, nil
}

// MarkSynced marks the transaction exported, unless it changed since version.
func (s *Store) MarkSynced(_ context.Context, id string, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.txs[id]
	if !ok {
		return fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	if rec.version == version {
		rec.syncStatus = syncDone
	}
	return nil
}

func (s *Store) MarkSyncError(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.txs[id]
	if !ok {
		return fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	rec.syncStatus = syncError
	return nil
}
