package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gottabike.org/internal/ids"
)

const unknownRoleFormat = "Unknown Role (%s)"

// Service owns account lifecycle and permission resolution.
type Service struct {
	store  AccountStore
	grants GrantsSource
	now    func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the service clock.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires an account store with a grants source.
func NewService(store AccountStore, grants GrantsSource, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: account store is required")
	}
	if grants == nil {
		grants = StaticGrants{}
	}
	s := &Service{
		store:  store,
		grants: grants,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Resolver builds a resolver over the current role grants.
func (s *Service) Resolver(ctx context.Context) (*Resolver, error) {
	grants, err := s.grants.RoleGrants(ctx)
	if err != nil {
		return nil, fmt.Errorf("load role grants: %w", err)
	}
	return NewResolver(grants), nil
}

// Principal loads an account and resolves its capabilities.
func (s *Service) Principal(ctx context.Context, accountID string) (Principal, error) {
	acct, err := s.Account(ctx, accountID)
	if err != nil {
		return Principal{}, err
	}
	r, err := s.Resolver(ctx)
	if err != nil {
		return Principal{}, err
	}
	return NewPrincipal(acct, r), nil
}

// HasPermission resolves a single capability for a stored account.
func (s *Service) HasPermission(ctx context.Context, accountID string, c Capability) (bool, error) {
	acct, err := s.Account(ctx, accountID)
	if err != nil {
		return false, err
	}
	r, err := s.Resolver(ctx)
	if err != nil {
		return false, err
	}
	return r.Resolve(acct, c)
}

func (s *Service) Account(ctx context.Context, id string) (Account, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Account{}, fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	return s.store.GetAccount(ctx, id)
}

func (s *Service) AccountByDiscordID(ctx context.Context, discordID string) (Account, error) {
	discordID = strings.TrimSpace(discordID)
	if !IsSnowflake(discordID) {
		return Account{}, fmt.Errorf("%w: discord_id must be numeric", ErrInvalidInput)
	}
	return s.store.GetAccountByDiscordID(ctx, discordID)
}

func (s *Service) ListAccounts(ctx context.Context) ([]Account, error) {
	return s.store.ListAccounts(ctx)
}

// Login creates the account on first sight of a Discord identity and refreshes
// the Discord fields on every later login. created reports the first case.
func (s *Service) Login(ctx context.Context, identity DiscordIdentity) (acct Account, created bool, err error) {
	identity, err = identity.normalize()
	if err != nil {
		return Account{}, false, err
	}
	existing, err := s.store.GetAccountByDiscordID(ctx, identity.DiscordID)
	switch {
	case err == nil:
		acct, err = s.store.UpdateDiscordIdentity(ctx, existing.ID, identity)
		return acct, false, err
	case !errors.Is(err, ErrNotFound):
		return Account{}, false, err
	}
	now := s.now()
	acct, err = s.store.CreateAccount(ctx, Account{
		ID:              ids.NewAt(now),
		Username:        "discord_" + identity.DiscordID,
		DiscordID:       identity.DiscordID,
		DiscordUsername: identity.Username,
		DiscordNickname: identity.Nickname,
		DiscordAvatar:   identity.Avatar,
		DiscordRoles:    map[string]string{},
		Overrides:       map[Capability]bool{},
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if errors.Is(err, ErrConflict) {
		// Lost a race with a concurrent first login.
		acct, err = s.store.GetAccountByDiscordID(ctx, identity.DiscordID)
		return acct, false, err
	}
	return acct, err == nil, err
}

// UpdateProfile validates and applies profile edits.
func (s *Service) UpdateProfile(ctx context.Context, accountID string, upd ProfileUpdate) (Account, error) {
	if upd.Gender != nil {
		g := strings.ToLower(strings.TrimSpace(*upd.Gender))
		switch g {
		case GenderMale, GenderFemale, GenderOther, "":
		default:
			return Account{}, fmt.Errorf("%w: unsupported gender %q", ErrInvalidInput, *upd.Gender)
		}
		upd.Gender = &g
	}
	if upd.BirthYear != nil && *upd.BirthYear != 0 {
		year := s.now().Year()
		if *upd.BirthYear < 1900 || *upd.BirthYear > year {
			return Account{}, fmt.Errorf("%w: birth_year out of range", ErrInvalidInput)
		}
	}
	if upd.Zwid != nil && *upd.Zwid < 0 {
		return Account{}, fmt.Errorf("%w: zwid must be positive", ErrInvalidInput)
	}
	for _, f := range []*string{upd.FirstName, upd.LastName, upd.Country, upd.Timezone} {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}
	return s.store.UpdateProfile(ctx, strings.TrimSpace(accountID), upd)
}

// SyncUserRoles replaces the synced Discord roles of the account owning
// discordID. Names come from known guild roles; unknown ids get a placeholder.
func (s *Service) SyncUserRoles(ctx context.Context, discordID string, roleIDs []string, known map[string]string) (Account, error) {
	acct, err := s.AccountByDiscordID(ctx, discordID)
	if err != nil {
		return Account{}, err
	}
	roles := make(map[string]string, len(roleIDs))
	for _, id := range dedupeStrings(roleIDs) {
		if !IsSnowflake(id) {
			return Account{}, fmt.Errorf("%w: role id %q must be numeric", ErrInvalidInput, id)
		}
		name, ok := known[id]
		if !ok || name == "" {
			name = fmt.Sprintf(unknownRoleFormat, id)
		}
		roles[id] = name
	}
	return s.store.SetDiscordRoles(ctx, acct.ID, roles)
}

// SetOverride sets or, with a nil value, clears one permission override.
func (s *Service) SetOverride(ctx context.Context, accountID string, c Capability, value *bool) (Account, error) {
	if !c.Valid() {
		return Account{}, fmt.Errorf("%w: %q", ErrUnknownCapability, string(c))
	}
	acct, err := s.Account(ctx, accountID)
	if err != nil {
		return Account{}, err
	}
	overrides := make(map[Capability]bool, len(acct.Overrides)+1)
	for k, v := range acct.Overrides {
		overrides[k] = v
	}
	if value == nil {
		delete(overrides, c)
	} else {
		overrides[c] = *value
	}
	return s.store.SetOverrides(ctx, acct.ID, overrides)
}

// SetRoles replaces the legacy static roles.
func (s *Service) SetRoles(ctx context.Context, accountID string, roles []string) (Account, error) {
	roles = dedupeStrings(roles)
	for _, r := range roles {
		if !validLegacyRole(r) {
			return Account{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, r)
		}
	}
	if roles == nil {
		roles = []string{}
	}
	acct, err := s.Account(ctx, accountID)
	if err != nil {
		return Account{}, err
	}
	return s.store.SetRoles(ctx, acct.ID, roles)
}

// Authenticate checks a local username and password.
func (s *Service) Authenticate(ctx context.Context, username, password string) (Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Account{}, ErrUnauthorized
	}
	acct, err := s.store.GetAccountByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Account{}, ErrUnauthorized
		}
		return Account{}, err
	}
	if acct.PasswordHash == "" {
		return Account{}, ErrUnauthorized
	}
	if err := VerifyPassword(acct.PasswordHash, password); err != nil {
		return Account{}, ErrUnauthorized
	}
	return acct, nil
}

// EnsureSuperuser creates a local superuser or resets its password.
func (s *Service) EnsureSuperuser(ctx context.Context, username, password string) (Account, bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return Account{}, false, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if len(password) < 8 {
		return Account{}, false, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return Account{}, false, err
	}
	existing, err := s.store.GetAccountByUsername(ctx, username)
	switch {
	case err == nil:
		acct, err := s.store.SetPassword(ctx, existing.ID, hash, true)
		return acct, false, err
	case !errors.Is(err, ErrNotFound):
		return Account{}, false, err
	}
	now := s.now()
	acct, err := s.store.CreateAccount(ctx, Account{
		ID:           ids.NewAt(now),
		Username:     username,
		IsSuperuser:  true,
		PasswordHash: hash,
		DiscordRoles: map[string]string{},
		Overrides:    map[Capability]bool{},
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return Account{}, false, err
	}
	return acct, true, nil
}
