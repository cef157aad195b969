package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/store"
)

// Publisher sends transaction change events. *amqp.Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, ev *amqp.TransactionEvent) error
}

// TransactionInput is a transaction as submitted by a user, before parsing.
// An empty Currency falls back to the user's profile currency.
type TransactionInput struct {
	Type     string
	Amount   string
	Category string
	Date     string
	Currency string
	Note     string
}

// TransactionService orchestrates transaction writes across the store and the
// event publisher.
type TransactionService struct {
	txs       store.TransactionStore
	profiles  store.ProfileStore
	publisher Publisher
	logger    *log.Logger
	audit     *log.StructuredLogger

	now   func() time.Time
	newID func() string
}

// NewTransactionService creates the service. publisher may be nil, in which
// case no events are sent.
func NewTransactionService(txs store.TransactionStore, profiles store.ProfileStore, publisher Publisher, logger *log.Logger) *TransactionService {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentTransaction)
	return &TransactionService{
		txs:       txs,
		profiles:  profiles,
		publisher: publisher,
		logger:    logger,
		audit:     log.NewStructuredLogger(logger),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

func (s *TransactionService) List(ctx context.Context, userID string) ([]core.Transaction, error) {
	txs, err := s.txs.ListTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (s *TransactionService) Get(ctx context.Context, userID, id string) (core.Transaction, error) {
	return s.txs.GetTransaction(ctx, userID, id)
}

// Create validates in, saves it locally and publishes an upsert event.
func (s *TransactionService) Create(ctx context.Context, userID string, in TransactionInput) (core.Transaction, error) {
	tx, err := s.build(ctx, userID, in)
	if err != nil {
		return core.Transaction{}, err
	}
	now := s.now()
	tx.ID = s.newID()
	tx.CreatedAt = now
	tx.UpdatedAt = now

	saved, err := s.txs.CreateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	s.audit.LogTransactionSaved(ctx, log.OpCreate, userID, saved.ID, string(saved.Type),
		saved.Amount.String(), saved.Currency, saved.Category)
	s.publish(ctx, amqp.KindUpserted, saved)
	return saved, nil
}

// Update replaces the user-editable fields of an existing transaction.
func (s *TransactionService) Update(ctx context.Context, userID, id string, in TransactionInput) (core.Transaction, error) {
	existing, err := s.txs.GetTransaction(ctx, userID, id)
	if err != nil {
		return core.Transaction{}, err
	}
	tx, err := s.build(ctx, userID, in)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.ID = existing.ID
	tx.CreatedAt = existing.CreatedAt
	tx.UpdatedAt = s.now()

	saved, err := s.txs.UpdateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	s.audit.LogTransactionSaved(ctx, log.OpUpdate, userID, saved.ID, string(saved.Type),
		saved.Amount.String(), saved.Currency, saved.Category)
	s.publish(ctx, amqp.KindUpserted, saved)
	return saved, nil
}

// Delete removes the transaction locally and publishes a delete event.
func (s *TransactionService) Delete(ctx context.Context, userID, id string) error {
	if err := s.txs.DeleteTransaction(ctx, userID, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Transaction deleted",
		log.FieldUserID, userID,
		log.FieldTxID, id)
	s.publish(ctx, amqp.KindDeleted, core.Transaction{ID: id, UserID: userID})
	return nil
}

// build parses and validates in. Every failure is a *ValidationError.
func (s *TransactionService) build(ctx context.Context, userID string, in TransactionInput) (core.Transaction, error) {
	typ, err := core.ParseType(in.Type)
	if err != nil {
		return core.Transaction{}, invalid("type", err)
	}
	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return core.Transaction{}, invalid("amount", err)
	}
	date, err := core.ParseDate(in.Date)
	if err != nil {
		return core.Transaction{}, invalid("date", err)
	}

	code := core.NormalizeCurrency(in.Currency)
	if code == "" {
		code, err = s.profileCurrency(ctx, userID)
		if err != nil {
			return core.Transaction{}, err
		}
	}

	tx := core.Transaction{
		UserID:   userID,
		Type:     typ,
		Amount:   amount,
		Category: strings.TrimSpace(in.Category),
		Date:     date,
		Currency: code,
		Note:     strings.TrimSpace(in.Note),
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, invalid(fieldFor(err), err)
	}
	return tx, nil
}

func (s *TransactionService) profileCurrency(ctx context.Context, userID string) (string, error) {
	if s.profiles == nil {
		return "", invalid("currency", core.ErrInvalidCurrency)
	}
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load profile: %w", err)
	}
	return p.Currency, nil
}

func fieldFor(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidType):
		return "type"
	case errors.Is(err, core.ErrInvalidAmount):
		return "amount"
	case errors.Is(err, core.ErrInvalidDate):
		return "date"
	case errors.Is(err, core.ErrInvalidCurrency):
		return "currency"
	case errors.Is(err, core.ErrEmptyCategory), errors.Is(err, core.ErrCategoryTooLong):
		return "category"
	case errors.Is(err, core.ErrNoteTooLong):
		return "note"
	default:
		return "transaction"
	}
}

// publish sends an event for tx. Failures are logged and never returned:
// the transaction is already saved and the export sweep will pick it up.
func (s *TransactionService) publish(ctx context.Context, kind amqp.EventKind, tx core.Transaction) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "No publisher configured, skipping event",
			log.FieldEventKind, kind,
			log.FieldTxID, tx.ID)
		return
	}
	ev := amqp.NewTransactionEvent(kind, tx.ID, tx.UserID)
	ev.Version = tx.Version
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish transaction event",
			log.FieldEventKind, kind,
			log.FieldTxID, tx.ID,
			log.FieldError, err)
	}
}

// Close closes the publisher when it holds resources.
func (s *TransactionService) Close() error {
	var errs []error
	if c, ok := s.publisher.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close transaction service: %w", errors.Join(errs...))
	}
	return nil
}
