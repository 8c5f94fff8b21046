package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gottabike.org/internal/roster"
)

func (s *Store) CreateChannelFilter(ctx context.Context, f roster.ChannelFilter) error {
	if s.db == nil {
		return errNoDB
	}
	ids, err := encodeJSON(f.DiscordIDs, "[]")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into roster_filters (id, discord_ids, channel_name, created_by, created_at, expires_at)
		values ($1, $2, $3, $4, $5, $6)`,
		f.ID.String(), ids, f.ChannelName, f.CreatedBy, f.CreatedAt, f.ExpiresAt)
	return mapError(err, roster.ErrNotFound, roster.ErrInvalidInput)
}

func (s *Store) GetChannelFilter(ctx context.Context, id uuid.UUID) (roster.ChannelFilter, error) {
	if s.db == nil {
		return roster.ChannelFilter{}, errNoDB
	}
	var (
		f      roster.ChannelFilter
		rawID  string
		rawIDs []byte
	)
	err := s.db.QueryRowContext(ctx, `
		select id, discord_ids, channel_name, created_by, created_at, expires_at
		from roster_filters
		where id = $1`, id.String()).
		Scan(&rawID, &rawIDs, &f.ChannelName, &f.CreatedBy, &f.CreatedAt, &f.ExpiresAt)
	if err != nil {
		return roster.ChannelFilter{}, mapError(err, roster.ErrNotFound, roster.ErrInvalidInput)
	}
	if f.ID, err = uuid.Parse(rawID); err != nil {
		return roster.ChannelFilter{}, fmt.Errorf("decode filter id: %w", err)
	}
	if err := decodeJSON(rawIDs, &f.DiscordIDs); err != nil {
		return roster.ChannelFilter{}, fmt.Errorf("decode discord_ids: %w", err)
	}
	return f, nil
}

func (s *Store) DeleteExpiredFilters(ctx context.Context, before time.Time) (int64, error) {
	if s.db == nil {
		return 0, errNoDB
	}
	res, err := s.db.ExecContext(ctx, `delete from roster_filters where expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
