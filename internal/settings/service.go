package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gottabike.org/internal/auth"
	"gottabike.org/internal/verification"
)

// Store persists raw setting values.
type Store interface {
	ListSettings(ctx context.Context) (map[string]string, error)
	PutSetting(ctx context.Context, key, value, updatedBy string, at time.Time) error
}

// Service reads and edits runtime settings.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store, now func() time.Time) (*Service, error) {
	if store == nil {
		return nil, errors.New("settings: store is required")
	}
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, now: now}, nil
}

// Snapshot loads every setting.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	stored, err := s.store.ListSettings(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list settings: %w", err)
	}
	return NewSnapshot(stored), nil
}

// Update validates and stores one setting, returning the canonical value.
func (s *Service) Update(ctx context.Context, key, value, updatedBy string) (string, error) {
	d, ok := Lookup(key)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	v, err := d.Normalize(value)
	if err != nil {
		return "", err
	}
	if err := s.store.PutSetting(ctx, d.Key, v, updatedBy, s.now().UTC()); err != nil {
		return "", err
	}
	return v, nil
}

// RoleGrants implements auth.GrantsSource.
func (s *Service) RoleGrants(ctx context.Context) (auth.RoleGrants, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.RoleGrants(), nil
}

// VerificationPolicy implements verification.Policy.
func (s *Service) VerificationPolicy(ctx context.Context) (verification.Windows, verification.RequirementMap, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	return snap.Windows(), snap.Requirements(), nil
}

var (
	_ auth.GrantsSource   = (*Service)(nil)
	_ verification.Policy = (*Service)(nil)
)
