package guild

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gottabike.org/internal/auth"
)

// Store persists the guild mirror.
type Store interface {
	ListMembers(ctx context.Context) ([]Member, error)
	ApplyMemberPlan(ctx context.Context, plan MemberPlan) error
	ListRoles(ctx context.Context) ([]Role, error)
	ApplyRolePlan(ctx context.Context, plan RolePlan) error
}

// AccountLister lists local accounts for member linking.
type AccountLister interface {
	ListAccounts(ctx context.Context) ([]auth.Account, error)
}

// Service applies bot sync payloads.
type Service struct {
	store    Store
	accounts AccountLister
	log      *zap.Logger
	now      func() time.Time
}

func NewService(store Store, accounts AccountLister, log *zap.Logger, now func() time.Time) (*Service, error) {
	if store == nil || accounts == nil {
		return nil, errors.New("guild: store and accounts are required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, accounts: accounts, log: log, now: now}, nil
}

// SyncMembers replaces the member mirror with received. A payload without a
// single valid Discord id is rejected since it would mark every member as left.
func (s *Service) SyncMembers(ctx context.Context, received []Member) (MemberCounts, error) {
	if len(received) == 0 {
		return MemberCounts{}, fmt.Errorf("%w: empty member list", ErrInvalidInput)
	}
	existing, err := s.store.ListMembers(ctx)
	if err != nil {
		return MemberCounts{}, fmt.Errorf("list members: %w", err)
	}
	accts, err := s.accounts.ListAccounts(ctx)
	if err != nil {
		return MemberCounts{}, fmt.Errorf("list accounts: %w", err)
	}
	byDiscord := make(map[string]string, len(accts))
	for _, a := range accts {
		if a.DiscordID != "" {
			byDiscord[a.DiscordID] = a.ID
		}
	}
	plan := PlanMembers(existing, received, byDiscord, s.now().UTC())
	if plan.Counts.Skipped == plan.Counts.Received {
		c := MemberCounts{Received: plan.Counts.Received, Skipped: plan.Counts.Skipped}
		return c, fmt.Errorf("%w: no valid discord ids among %d members", ErrInvalidInput, plan.Counts.Received)
	}
	if err := s.store.ApplyMemberPlan(ctx, plan); err != nil {
		return MemberCounts{}, fmt.Errorf("apply member plan: %w", err)
	}
	c := plan.Counts
	s.log.Info("guild_members_synced",
		zap.Int("received", c.Received),
		zap.Int("created", c.Created),
		zap.Int("updated", c.Updated),
		zap.Int("rejoined", c.Rejoined),
		zap.Int("left", c.Left),
		zap.Int("linked", c.Linked),
		zap.Int("skipped", c.Skipped),
	)
	return c, nil
}

// RoleCounts summarizes a role sync.
type RoleCounts struct {
	Upserted int `json:"upserted"`
	Deleted  int `json:"deleted"`
}

// SyncRoles replaces the role mirror with received.
func (s *Service) SyncRoles(ctx context.Context, received []Role) (RoleCounts, error) {
	existing, err := s.store.ListRoles(ctx)
	if err != nil {
		return RoleCounts{}, fmt.Errorf("list roles: %w", err)
	}
	plan := PlanRoles(existing, received)
	if err := s.store.ApplyRolePlan(ctx, plan); err != nil {
		return RoleCounts{}, fmt.Errorf("apply role plan: %w", err)
	}
	counts := RoleCounts{Upserted: len(plan.Upsert), Deleted: len(plan.Delete)}
	s.log.Info("guild_roles_synced", zap.Int("upserted", counts.Upserted), zap.Int("deleted", counts.Deleted))
	return counts, nil
}

// Roles lists mirrored roles.
func (s *Service) Roles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

// Members lists mirrored members.
func (s *Service) Members(ctx context.Context) ([]Member, error) {
	return s.store.ListMembers(ctx)
}

// RoleNames returns role names keyed by id.
func (s *Service) RoleNames(ctx context.Context) (map[string]string, error) {
	roles, err := s.store.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	return RoleNames(roles), nil
}
