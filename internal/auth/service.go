package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email")
)

// Session is the result of a successful sign-up or sign-in.
type Session struct {
	User      core.User
	Token     string
	ExpiresAt time.Time
}

// Service registers and authenticates users.
type Service struct {
	users  store.UserStore
	tokens *TokenService
	logger *log.Logger
	now    func() time.Time
}

func NewService(users store.UserStore, tokens *TokenService, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Discard()
	}
	return &Service{
		users:  users,
		tokens: tokens,
		logger: logger.WithComponent(log.ComponentAuth),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp creates an account and returns a session for it.
func (s *Service) SignUp(ctx context.Context, email, password string) (Session, error) {
	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return Session{}, ErrInvalidEmail
	}
	hash, err := HashPassword(password)
	if err != nil {
		return Session{}, err
	}

	u, err := s.users.CreateUser(ctx, core.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	})
	if errors.Is(err, store.ErrConflict) {
		return Session{}, ErrEmailTaken
	}
	if err != nil {
		return Session{}, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "User signed up", log.FieldUserID, u.ID)
	return s.session(u)
}

// SignIn checks the credentials and returns a new session. Unknown emails
// and wrong passwords yield the same error.
func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	u, err := s.users.GetUserByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("find user: %w", err)
	}
	if !ComparePasswords(u.PasswordHash, password) {
		s.logger.WarnContext(ctx, "Failed sign-in attempt", log.FieldUserID, u.ID)
		return Session{}, ErrInvalidCredentials
	}

	s.logger.InfoContext(ctx, "User signed in", log.FieldUserID, u.ID)
	return s.session(u)
}

// User returns the account for id.
func (s *Service) User(ctx context.Context, id string) (core.User, error) {
	return s.users.GetUser(ctx, id)
}

func (s *Service) session(u core.User) (Session, error) {
	token, expires, err := s.tokens.GenerateToken(u.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{User: u, Token: token, ExpiresAt: expires}, nil
}
