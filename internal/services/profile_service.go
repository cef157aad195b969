package services

import (
	"context"
	"fmt"

	"fintrack/internal/core"
	"fintrack/internal/currency"
	"fintrack/internal/log"
	"fintrack/internal/store"
)

// ProfileService reads and updates a user's salary and primary currency.
type ProfileService struct {
	profiles store.ProfileStore
	logger   *log.Logger
}

func NewProfileService(profiles store.ProfileStore, logger *log.Logger) *ProfileService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ProfileService{profiles: profiles, logger: logger.WithComponent(log.ComponentProfile)}
}

// Get returns the profile, creating the default one on first access.
func (s *ProfileService) Get(ctx context.Context, userID string) (core.Profile, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return core.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// UpdateSalary parses raw and stores it as the monthly salary. Zero is allowed.
func (s *ProfileService) UpdateSalary(ctx context.Context, userID, raw string) (core.Profile, error) {
	salary, err := core.ParseSalary(raw)
	if err != nil {
		return core.Profile{}, invalid("monthly_salary", err)
	}
	p, err := s.profiles.UpdateSalary(ctx, userID, salary)
	if err != nil {
		return core.Profile{}, fmt.Errorf("update salary: %w", err)
	}
	s.logger.InfoContext(ctx, "Monthly salary updated", log.FieldUserID, userID)
	return p, nil
}

// UpdateCurrency sets the primary currency. Only catalog codes are accepted.
func (s *ProfileService) UpdateCurrency(ctx context.Context, userID, code string) (core.Profile, error) {
	c, ok := currency.Lookup(code)
	if !ok {
		return core.Profile{}, invalid("currency", fmt.Errorf("%w: %q", core.ErrInvalidCurrency, code))
	}
	p, err := s.profiles.UpdateCurrency(ctx, userID, c.Code)
	if err != nil {
		return core.Profile{}, fmt.Errorf("update currency: %w", err)
	}
	s.logger.InfoContext(ctx, "Primary currency updated",
		log.FieldUserID, userID,
		log.FieldCurrency, c.Code)
	return p, nil
}
