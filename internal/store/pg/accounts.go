package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"gottabike.org/internal/auth"
)

const accountColumns = `id, username, password_hash, is_superuser, discord_id, discord_username,
	discord_nickname, discord_avatar, discord_roles, roles, permission_overrides, zwid, zwid_verified,
	first_name, last_name, birth_year, gender, country, timezone, created_at, updated_at`

func scanAccount(row rowScanner) (auth.Account, error) {
	var (
		acct                       auth.Account
		discordID                  sql.NullString
		zwid                       sql.NullInt64
		rawRoles, rawLegacy, rawOv []byte
	)
	err := row.Scan(&acct.ID, &acct.Username, &acct.PasswordHash, &acct.IsSuperuser, &discordID,
		&acct.DiscordUsername, &acct.DiscordNickname, &acct.DiscordAvatar, &rawRoles, &rawLegacy, &rawOv,
		&zwid, &acct.ZwidVerified, &acct.FirstName, &acct.LastName, &acct.BirthYear, &acct.Gender,
		&acct.Country, &acct.Timezone, &acct.CreatedAt, &acct.UpdatedAt)
	if err != nil {
		return auth.Account{}, mapError(err, auth.ErrNotFound, auth.ErrConflict)
	}
	acct.DiscordID = discordID.String
	acct.Zwid = zwid.Int64
	acct.DiscordRoles = map[string]string{}
	acct.Roles = []string{}
	acct.Overrides = map[auth.Capability]bool{}
	if err := decodeJSON(rawRoles, &acct.DiscordRoles); err != nil {
		return auth.Account{}, fmt.Errorf("decode discord_roles: %w", err)
	}
	if err := decodeJSON(rawLegacy, &acct.Roles); err != nil {
		return auth.Account{}, fmt.Errorf("decode roles: %w", err)
	}
	if err := decodeJSON(rawOv, &acct.Overrides); err != nil {
		return auth.Account{}, fmt.Errorf("decode permission_overrides: %w", err)
	}
	return acct, nil
}

func decodeJSON(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func encodeJSON(v any, empty string) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return []byte(empty), nil
	}
	return data, nil
}

func (s *Store) accountBy(ctx context.Context, column, value string) (auth.Account, error) {
	if s.db == nil {
		return auth.Account{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `select `+accountColumns+` from accounts where `+column+` = $1`, value)
	return scanAccount(row)
}

func (s *Store) GetAccount(ctx context.Context, id string) (auth.Account, error) {
	return s.accountBy(ctx, "id", id)
}

func (s *Store) GetAccountByDiscordID(ctx context.Context, discordID string) (auth.Account, error) {
	return s.accountBy(ctx, "discord_id", discordID)
}

func (s *Store) GetAccountByUsername(ctx context.Context, username string) (auth.Account, error) {
	return s.accountBy(ctx, "username", username)
}

func (s *Store) ListAccounts(ctx context.Context) ([]auth.Account, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `select `+accountColumns+` from accounts order by created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []auth.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acct)
	}
	return out, rows.Err()
}

func (s *Store) CreateAccount(ctx context.Context, acct auth.Account) (auth.Account, error) {
	if s.db == nil {
		return auth.Account{}, errNoDB
	}
	discordRoles, err := encodeJSON(acct.DiscordRoles, "{}")
	if err != nil {
		return auth.Account{}, err
	}
	roles, err := encodeJSON(acct.Roles, "[]")
	if err != nil {
		return auth.Account{}, err
	}
	overrides, err := encodeJSON(acct.Overrides, "{}")
	if err != nil {
		return auth.Account{}, err
	}
	var zwid sql.NullInt64
	if acct.Zwid > 0 {
		zwid = sql.NullInt64{Int64: acct.Zwid, Valid: true}
	}
	row := s.db.QueryRowContext(ctx, `
		insert into accounts (id, username, password_hash, is_superuser, discord_id, discord_username,
			discord_nickname, discord_avatar, discord_roles, roles, permission_overrides, zwid,
			created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		returning `+accountColumns,
		acct.ID, acct.Username, acct.PasswordHash, acct.IsSuperuser, nullIfEmpty(acct.DiscordID),
		acct.DiscordUsername, acct.DiscordNickname, acct.DiscordAvatar, discordRoles, roles, overrides,
		zwid, acct.CreatedAt, acct.UpdatedAt)
	return scanAccount(row)
}

func (s *Store) UpdateDiscordIdentity(ctx context.Context, id string, identity auth.DiscordIdentity) (auth.Account, error) {
	if s.db == nil {
		return auth.Account{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		update accounts
		set discord_username = $2, discord_nickname = $3, discord_avatar = $4, updated_at = now()
		where id = $1
		returning `+accountColumns,
		id, identity.Username, identity.Nickname, identity.Avatar)
	return scanAccount(row)
}

// UpdateProfile applies the non-nil fields. Changing the rider id clears its
// verified flag; a zero rider id unsets it.
func (s *Store) UpdateProfile(ctx context.Context, id string, upd auth.ProfileUpdate) (auth.Account, error) {
	if s.db == nil {
		return auth.Account{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		update accounts set
			first_name = coalesce($2, first_name),
			last_name = coalesce($3, last_name),
			birth_year = coalesce($4, birth_year),
			gender = coalesce($5, gender),
			country = coalesce($6, country),
			timezone = coalesce($7, timezone),
			zwid_verified = case
				when $8::bigint is not null and $8::bigint is distinct from zwid then false
				else zwid_verified end,
			zwid = case
				when $8::bigint is null then zwid
				when $8::bigint = 0 then null
				else $8::bigint end,
			updated_at = now()
		where id = $1
		returning `+accountColumns,
		id, upd.FirstName, upd.LastName, upd.BirthYear, upd.Gender, upd.Country, upd.Timezone, upd.Zwid)
	return scanAccount(row)
}

func (s *Store) setJSONColumn(ctx context.Context, id, column string, v any, empty string) (auth.Account, error) {
	if s.db == nil {
		return auth.Account{}, errNoDB
	}
	data, err := encodeJSON(v, empty)
	if err != nil {
		return auth.Account{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		update accounts set `+column+` = $2, updated_at = now()
		where id = $1
		returning `+accountColumns, id, data)
	return scanAccount(row)
}

func (s *Store) SetDiscordRoles(ctx context.Context, id string, roles map[string]string) (auth.Account, error) {
	return s.setJSONColumn(ctx, id, "discord_roles", roles, "{}")
}

func (s *Store) SetOverrides(ctx context.Context, id string, overrides map[auth.Capability]bool) (auth.Account, error) {
	return s.setJSONColumn(ctx, id, "permission_overrides", overrides, "{}")
}

func (s *Store) SetRoles(ctx context.Context, id string, roles []string) (auth.Account, error) {
	return s.setJSONColumn(ctx, id, "roles", roles, "[]")
}

func (s *Store) SetPassword(ctx context.Context, id, passwordHash string, superuser bool) (auth.Account, error) {
	if s.db == nil {
		return auth.Account{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		update accounts set password_hash = $2, is_superuser = $3, updated_at = now()
		where id = $1
		returning `+accountColumns, id, passwordHash, superuser)
	return scanAccount(row)
}
