package auth

import "context"

// AccountStore persists accounts.
type AccountStore interface {
	GetAccount(ctx context.Context, id string) (Account, error)
	GetAccountByDiscordID(ctx context.Context, discordID string) (Account, error)
	GetAccountByUsername(ctx context.Context, username string) (Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	CreateAccount(ctx context.Context, acct Account) (Account, error)
	UpdateDiscordIdentity(ctx context.Context, id string, identity DiscordIdentity) (Account, error)
	UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (Account, error)
	SetDiscordRoles(ctx context.Context, id string, roles map[string]string) (Account, error)
	SetOverrides(ctx context.Context, id string, overrides map[Capability]bool) (Account, error)
	SetRoles(ctx context.Context, id string, roles []string) (Account, error)
	SetPassword(ctx context.Context, id, passwordHash string, superuser bool) (Account, error)
}

// GrantsSource supplies the current Discord role grants.
type GrantsSource interface {
	RoleGrants(ctx context.Context) (RoleGrants, error)
}

// StaticGrants is a fixed GrantsSource.
type StaticGrants RoleGrants

func (g StaticGrants) RoleGrants(context.Context) (RoleGrants, error) { return RoleGrants(g), nil }
