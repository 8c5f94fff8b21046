package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gottabike.org/internal/verification"
)

const recordColumns = `id, account_id, verify_type, media_type, url, weight_kg, height_cm, ftp, notes,
	same_gender, status, evidence_date, reviewed_by, reviewed_at, rejection_reason, created_at`

func scanRecord(row rowScanner) (verification.Record, error) {
	var (
		rec        verification.Record
		reviewedBy sql.NullString
		reviewedAt sql.NullTime
	)
	err := row.Scan(&rec.ID, &rec.AccountID, &rec.Type, &rec.MediaType, &rec.URL, &rec.WeightKg,
		&rec.HeightCm, &rec.FTP, &rec.Notes, &rec.SameGender, &rec.Status, &rec.EvidenceDate,
		&reviewedBy, &reviewedAt, &rec.RejectionReason, &rec.CreatedAt)
	if err != nil {
		return verification.Record{}, mapError(err, verification.ErrNotFound, verification.ErrConflict)
	}
	rec.ReviewedBy = reviewedBy.String
	rec.ReviewedAt = timePtr(reviewedAt)
	rec.EvidenceDate = rec.EvidenceDate.UTC()
	return rec, nil
}

func (s *Store) CreateRecord(ctx context.Context, rec verification.Record) (verification.Record, error) {
	if s.db == nil {
		return verification.Record{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		insert into verification_records (id, account_id, verify_type, media_type, url, weight_kg,
			height_cm, ftp, notes, same_gender, status, evidence_date, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		returning `+recordColumns,
		rec.ID, rec.AccountID, string(rec.Type), string(rec.MediaType), rec.URL, rec.WeightKg,
		rec.HeightCm, rec.FTP, rec.Notes, rec.SameGender, string(rec.Status), rec.EvidenceDate, rec.CreatedAt)
	return scanRecord(row)
}

func (s *Store) GetRecord(ctx context.Context, id string) (verification.Record, error) {
	if s.db == nil {
		return verification.Record{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `select `+recordColumns+` from verification_records where id = $1`, id)
	return scanRecord(row)
}

func (s *Store) ListRecords(ctx context.Context, accountID string) ([]verification.Record, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+recordColumns+`
		from verification_records
		where account_id = $1
		order by created_at desc, id desc`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []verification.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) ListVerifiedRecords(ctx context.Context) (map[string][]verification.Record, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+recordColumns+`
		from verification_records
		where status = 'verified'
		order by account_id, evidence_date desc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string][]verification.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out[rec.AccountID] = append(out[rec.AccountID], rec)
	}
	return out, rows.Err()
}

// ReviewRecord only touches pending rows, so concurrent reviews cannot both win.
func (s *Store) ReviewRecord(ctx context.Context, id string, status verification.Status, reviewer string, reviewedAt time.Time, reason string) (verification.Record, error) {
	if s.db == nil {
		return verification.Record{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		update verification_records
		set status = $2, reviewed_by = $3, reviewed_at = $4, rejection_reason = $5
		where id = $1 and status = 'pending'
		returning `+recordColumns,
		id, string(status), nullIfEmpty(reviewer), reviewedAt, reason)
	rec, err := scanRecord(row)
	if errors.Is(err, verification.ErrNotFound) {
		if _, getErr := s.GetRecord(ctx, id); getErr == nil {
			return verification.Record{}, verification.ErrConflict
		}
	}
	return rec, err
}
