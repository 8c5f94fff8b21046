package pg

import (
	"context"
	"time"
)

func (s *Store) ListSettings(ctx context.Context) (map[string]string, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `select key, value from settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// PutSetting upserts a value; the last writer wins.
func (s *Store) PutSetting(ctx context.Context, key, value, updatedBy string, at time.Time) error {
	if s.db == nil {
		return errNoDB
	}
	_, err := s.db.ExecContext(ctx, `
		insert into settings (key, value, updated_by, updated_at)
		values ($1, $2, $3, $4)
		on conflict (key) do update set
			value = excluded.value, updated_by = excluded.updated_by, updated_at = excluded.updated_at`,
		key, value, updatedBy, at)
	return err
}
