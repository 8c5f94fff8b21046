package pg

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"gottabike.org/internal/team"
)

const applicationColumns = `id, discord_id, discord_username, server_nickname, avatar_url, guild_avatar_url,
	discord_user_data, discord_member_data, modal_form_data, first_name, last_name, agree_privacy,
	agree_tos, applicant_notes, admin_notes, status, modified_by, created_at, updated_at`

func scanApplication(row rowScanner) (team.Application, error) {
	var (
		a          team.Application
		rawID      string
		userData   []byte
		memberData []byte
		formData   []byte
		modifiedBy sql.NullString
	)
	err := row.Scan(&rawID, &a.DiscordID, &a.DiscordUsername, &a.ServerNickname, &a.AvatarURL,
		&a.GuildAvatarURL, &userData, &memberData, &formData, &a.FirstName, &a.LastName,
		&a.AgreePrivacy, &a.AgreeTOS, &a.ApplicantNotes, &a.AdminNotes, &a.Status, &modifiedBy,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return team.Application{}, mapError(err, team.ErrNotFound, team.ErrConflict)
	}
	if a.ID, err = uuid.Parse(rawID); err != nil {
		return team.Application{}, fmt.Errorf("decode application id: %w", err)
	}
	for _, col := range []struct {
		raw []byte
		dst *map[string]any
	}{{userData, &a.DiscordUserData}, {memberData, &a.DiscordMemberData}, {formData, &a.ModalFormData}} {
		if err := decodeJSON(col.raw, col.dst); err != nil {
			return team.Application{}, fmt.Errorf("decode application data: %w", err)
		}
	}
	a.ModifiedBy = modifiedBy.String
	return a, nil
}

func (s *Store) CreateApplication(ctx context.Context, a team.Application) (team.Application, error) {
	if s.db == nil {
		return team.Application{}, errNoDB
	}
	userData, err := encodeJSON(a.DiscordUserData, "{}")
	if err != nil {
		return team.Application{}, err
	}
	memberData, err := encodeJSON(a.DiscordMemberData, "{}")
	if err != nil {
		return team.Application{}, err
	}
	formData, err := encodeJSON(a.ModalFormData, "{}")
	if err != nil {
		return team.Application{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		insert into membership_applications (id, discord_id, discord_username, server_nickname,
			avatar_url, guild_avatar_url, discord_user_data, discord_member_data, modal_form_data,
			first_name, last_name, applicant_notes, status, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		returning `+applicationColumns,
		a.ID.String(), a.DiscordID, a.DiscordUsername, a.ServerNickname, a.AvatarURL, a.GuildAvatarURL,
		userData, memberData, formData, a.FirstName, a.LastName, a.ApplicantNotes, string(a.Status),
		a.CreatedAt, a.UpdatedAt)
	return scanApplication(row)
}

func (s *Store) GetApplication(ctx context.Context, id uuid.UUID) (team.Application, error) {
	if s.db == nil {
		return team.Application{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `select `+applicationColumns+` from membership_applications where id = $1`, id.String())
	return scanApplication(row)
}

func (s *Store) ApplicationByDiscordID(ctx context.Context, discordID string) (team.Application, error) {
	if s.db == nil {
		return team.Application{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `select `+applicationColumns+` from membership_applications where discord_id = $1`, discordID)
	return scanApplication(row)
}

func (s *Store) ListApplications(ctx context.Context, status team.ApplicationStatus) ([]team.Application, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+applicationColumns+`
		from membership_applications
		where $1 = '' or status = $1
		order by created_at desc`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []team.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateApplication writes the columns editable by applicants and admins.
func (s *Store) UpdateApplication(ctx context.Context, a team.Application) (team.Application, error) {
	if s.db == nil {
		return team.Application{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		update membership_applications
		set first_name = $2, last_name = $3, agree_privacy = $4, agree_tos = $5, applicant_notes = $6,
			status = $7, admin_notes = $8, modified_by = $9, updated_at = $10
		where id = $1
		returning `+applicationColumns,
		a.ID.String(), a.FirstName, a.LastName, a.AgreePrivacy, a.AgreeTOS, a.ApplicantNotes,
		string(a.Status), a.AdminNotes, nullIfEmpty(a.ModifiedBy), a.UpdatedAt)
	return scanApplication(row)
}

const linkColumns = `id, title, description, url, link_types, active, date_open, date_closed, created_at, updated_at`

func scanLink(row rowScanner) (team.Link, error) {
	var (
		l        team.Link
		rawTypes []byte
		openAt   sql.NullTime
		closeAt  sql.NullTime
	)
	err := row.Scan(&l.ID, &l.Title, &l.Description, &l.URL, &rawTypes, &l.Active, &openAt, &closeAt,
		&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return team.Link{}, mapError(err, team.ErrNotFound, team.ErrConflict)
	}
	if err := decodeJSON(rawTypes, &l.Types); err != nil {
		return team.Link{}, fmt.Errorf("decode link_types: %w", err)
	}
	l.OpenAt = timePtr(openAt)
	l.CloseAt = timePtr(closeAt)
	return l, nil
}

func (s *Store) CreateLink(ctx context.Context, l team.Link) (team.Link, error) {
	if s.db == nil {
		return team.Link{}, errNoDB
	}
	types, err := encodeJSON(l.Types, "[]")
	if err != nil {
		return team.Link{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		insert into team_links (id, title, description, url, link_types, active, date_open, date_closed,
			created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		returning `+linkColumns,
		l.ID, l.Title, l.Description, l.URL, types, l.Active, nullTime(l.OpenAt), nullTime(l.CloseAt),
		l.CreatedAt, l.UpdatedAt)
	return scanLink(row)
}

func (s *Store) GetLink(ctx context.Context, id string) (team.Link, error) {
	if s.db == nil {
		return team.Link{}, errNoDB
	}
	return scanLink(s.db.QueryRowContext(ctx, `select `+linkColumns+` from team_links where id = $1`, id))
}

func (s *Store) UpdateLink(ctx context.Context, l team.Link) (team.Link, error) {
	if s.db == nil {
		return team.Link{}, errNoDB
	}
	types, err := encodeJSON(l.Types, "[]")
	if err != nil {
		return team.Link{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		update team_links
		set title = $2, description = $3, url = $4, link_types = $5, active = $6,
			date_open = $7, date_closed = $8, updated_at = $9
		where id = $1
		returning `+linkColumns,
		l.ID, l.Title, l.Description, l.URL, types, l.Active, nullTime(l.OpenAt), nullTime(l.CloseAt),
		l.UpdatedAt)
	return scanLink(row)
}

func (s *Store) DeleteLink(ctx context.Context, id string) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `delete from team_links where id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return team.ErrNotFound
	}
	return nil
}

func (s *Store) ListLinks(ctx context.Context) ([]team.Link, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `select `+linkColumns+` from team_links order by title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []team.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
