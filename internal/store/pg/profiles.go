package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gottabike.org/internal/roster"
)

func (s *Store) ListLeaderboardProfiles(ctx context.Context) ([]roster.LeaderboardProfile, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select zwid, name, flag, age, div, divw, rank, ftp, weight_kg, wkg_20m, skill_race, date_left, synced_at
		from leaderboard_profiles`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []roster.LeaderboardProfile
	for rows.Next() {
		var (
			p    roster.LeaderboardProfile
			zwid int64
			left sql.NullTime
		)
		if err := rows.Scan(&zwid, &p.Name, &p.Flag, &p.Age, &p.Div, &p.DivW, &p.Rank, &p.FTP,
			&p.WeightKg, &p.Wkg20m, &p.SkillRace, &left, &p.SyncedAt); err != nil {
			return nil, err
		}
		p.RiderID = strconv.FormatInt(zwid, 10)
		p.DateLeft = timePtr(left)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ListRatingProfiles(ctx context.Context) ([]roster.RatingProfile, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select zwid, name, gender, country, category, category_num, rating, max_rating_90, finishes,
			wins, podiums, compound_score, phenotype, date_left, synced_at
		from rating_profiles`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []roster.RatingProfile
	for rows.Next() {
		var (
			p    roster.RatingProfile
			zwid int64
			left sql.NullTime
		)
		if err := rows.Scan(&zwid, &p.Name, &p.Gender, &p.Country, &p.Category, &p.CategoryNum,
			&p.Rating, &p.MaxRating90, &p.Finishes, &p.Wins, &p.Podiums, &p.CompoundScore,
			&p.Phenotype, &left, &p.SyncedAt); err != nil {
			return nil, err
		}
		p.RiderID = strconv.FormatInt(zwid, 10)
		p.DateLeft = timePtr(left)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ResultCounts(ctx context.Context) (map[int64]int, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `select zwid, count(*) from race_results group by zwid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[int64]int{}
	for rows.Next() {
		var (
			zwid int64
			n    int
		)
		if err := rows.Scan(&zwid, &n); err != nil {
			return nil, err
		}
		out[zwid] = n
	}
	return out, rows.Err()
}

func (s *Store) UpsertLeaderboardProfiles(ctx context.Context, profiles []roster.LeaderboardProfile) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			insert into leaderboard_profiles (zwid, name, flag, age, div, divw, rank, ftp, weight_kg,
				wkg_20m, skill_race, date_left, synced_at)
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, null, $12)
			on conflict (zwid) do update set
				name = excluded.name, flag = excluded.flag, age = excluded.age, div = excluded.div,
				divw = excluded.divw, rank = excluded.rank, ftp = excluded.ftp,
				weight_kg = excluded.weight_kg, wkg_20m = excluded.wkg_20m,
				skill_race = excluded.skill_race, date_left = null, synced_at = excluded.synced_at`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, p := range profiles {
			zwid, err := roster.ParseRiderID(p.RiderID)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, zwid, p.Name, p.Flag, p.Age, p.Div, p.DivW, p.Rank, p.FTP,
				p.WeightKg, p.Wkg20m, p.SkillRace, p.SyncedAt); err != nil {
				return fmt.Errorf("upsert rider %d: %w", zwid, err)
			}
		}
		return nil
	})
}

func (s *Store) UpsertRatingProfiles(ctx context.Context, profiles []roster.RatingProfile) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			insert into rating_profiles (zwid, name, gender, country, category, category_num, rating,
				max_rating_90, finishes, wins, podiums, compound_score, phenotype, date_left, synced_at)
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, null, $14)
			on conflict (zwid) do update set
				name = excluded.name, gender = excluded.gender, country = excluded.country,
				category = excluded.category, category_num = excluded.category_num,
				rating = excluded.rating, max_rating_90 = excluded.max_rating_90,
				finishes = excluded.finishes, wins = excluded.wins, podiums = excluded.podiums,
				compound_score = excluded.compound_score, phenotype = excluded.phenotype,
				date_left = null, synced_at = excluded.synced_at`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, p := range profiles {
			zwid, err := roster.ParseRiderID(p.RiderID)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, zwid, p.Name, p.Gender, p.Country, p.Category,
				p.CategoryNum, p.Rating, p.MaxRating90, p.Finishes, p.Wins, p.Podiums,
				p.CompoundScore, p.Phenotype, p.SyncedAt); err != nil {
				return fmt.Errorf("upsert rider %d: %w", zwid, err)
			}
		}
		return nil
	})
}

func (s *Store) UpsertRaceResults(ctx context.Context, results []roster.RaceResult) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			insert into race_results (zwid, event_id, event_date, position)
			values ($1, $2, $3, $4)
			on conflict (zwid, event_id) do update set
				event_date = excluded.event_date, position = excluded.position`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range results {
			zwid, err := roster.ParseRiderID(r.RiderID)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, zwid, r.EventID, nullIfEmpty(r.EventDate), r.Position); err != nil {
				return fmt.Errorf("upsert result %d/%s: %w", zwid, r.EventID, err)
			}
		}
		return nil
	})
}

var profileTables = map[string]string{
	roster.SourceLeaderboard: "leaderboard_profiles",
	roster.SourceRating:      "rating_profiles",
}

// MarkLeft stamps date_left on active riders of source missing from present.
func (s *Store) MarkLeft(ctx context.Context, source string, present []string, at time.Time) (int64, error) {
	if s.db == nil {
		return 0, errNoDB
	}
	table, ok := profileTables[source]
	if !ok {
		return 0, fmt.Errorf("unknown profile source %q", source)
	}
	ids := make([]int64, 0, len(present))
	for _, raw := range present {
		id, err := roster.ParseRiderID(raw)
		if err != nil {
			return 0, err
		}
		ids = append(ids, id)
	}
	keep, err := json.Marshal(ids)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `
		update `+table+` set date_left = $1
		where date_left is null
			and zwid not in (select jsonb_array_elements_text($2::jsonb)::bigint)`, at, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if s.db == nil {
		return errNoDB
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
