package pg

import (
	"context"
	"database/sql"
	"fmt"

	"gottabike.org/internal/guild"
)

func (s *Store) ListMembers(ctx context.Context) ([]guild.Member, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select discord_id, username, display_name, nickname, avatar, roles, joined_at, is_bot,
			account_id, left_at, updated_at
		from guild_members
		order by discord_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []guild.Member
	for rows.Next() {
		var (
			m         guild.Member
			rawRoles  []byte
			joined    sql.NullTime
			accountID sql.NullString
			left      sql.NullTime
		)
		if err := rows.Scan(&m.DiscordID, &m.Username, &m.DisplayName, &m.Nickname, &m.Avatar, &rawRoles,
			&joined, &m.IsBot, &accountID, &left, &m.UpdatedAt); err != nil {
			return nil, err
		}
		m.Roles = []string{}
		if err := decodeJSON(rawRoles, &m.Roles); err != nil {
			return nil, fmt.Errorf("decode roles of %s: %w", m.DiscordID, err)
		}
		m.JoinedAt = timePtr(joined)
		m.AccountID = accountID.String
		m.LeftAt = timePtr(left)
		out = append(out, m)
	}
	return out, rows.Err()
}

// ApplyMemberPlan writes a member plan atomically.
func (s *Store) ApplyMemberPlan(ctx context.Context, plan guild.MemberPlan) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		upsert, err := tx.PrepareContext(ctx, `
			insert into guild_members (discord_id, username, display_name, nickname, avatar, roles,
				joined_at, is_bot, account_id, left_at, updated_at)
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9, null, $10)
			on conflict (discord_id) do update set
				username = excluded.username, display_name = excluded.display_name,
				nickname = excluded.nickname, avatar = excluded.avatar, roles = excluded.roles,
				joined_at = coalesce(excluded.joined_at, guild_members.joined_at),
				is_bot = excluded.is_bot, account_id = excluded.account_id,
				left_at = null, updated_at = excluded.updated_at`)
		if err != nil {
			return err
		}
		defer upsert.Close()
		members := append(append([]guild.Member{}, plan.Create...), plan.Update...)
		for _, m := range members {
			roles, err := encodeJSON(m.Roles, "[]")
			if err != nil {
				return err
			}
			if _, err := upsert.ExecContext(ctx, m.DiscordID, m.Username, m.DisplayName, m.Nickname,
				m.Avatar, roles, nullTime(m.JoinedAt), m.IsBot, nullIfEmpty(m.AccountID), m.UpdatedAt); err != nil {
				return fmt.Errorf("upsert member %s: %w", m.DiscordID, err)
			}
		}
		for _, id := range plan.Left {
			if _, err := tx.ExecContext(ctx, `
				update guild_members set left_at = $2, updated_at = $2
				where discord_id = $1 and left_at is null`, id, plan.At); err != nil {
				return fmt.Errorf("mark member %s left: %w", id, err)
			}
		}
		return nil
	})
}

func (s *Store) ListRoles(ctx context.Context) ([]guild.Role, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, name, color, position, managed
		from discord_roles
		order by position desc, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []guild.Role
	for rows.Next() {
		var r guild.Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Color, &r.Position, &r.Managed); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ApplyRolePlan writes a role plan atomically.
func (s *Store) ApplyRolePlan(ctx context.Context, plan guild.RolePlan) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range plan.Upsert {
			if _, err := tx.ExecContext(ctx, `
				insert into discord_roles (id, name, color, position, managed, updated_at)
				values ($1, $2, $3, $4, $5, now())
				on conflict (id) do update set
					name = excluded.name, color = excluded.color, position = excluded.position,
					managed = excluded.managed, updated_at = now()`,
				r.ID, r.Name, r.Color, r.Position, r.Managed); err != nil {
				return fmt.Errorf("upsert role %s: %w", r.ID, err)
			}
		}
		for _, id := range plan.Delete {
			if _, err := tx.ExecContext(ctx, `delete from discord_roles where id = $1`, id); err != nil {
				return fmt.Errorf("delete role %s: %w", id, err)
			}
		}
		return nil
	})
}
