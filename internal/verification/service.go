package verification

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gottabike.org/internal/ids"
)

// SubmitRequest is what an account holder provides as evidence.
type SubmitRequest struct {
	Type         string     `json:"verify_type"`
	MediaType    string     `json:"media_type"`
	URL          string     `json:"url"`
	WeightKg     float64    `json:"weight"`
	HeightCm     int        `json:"height"`
	FTP          int        `json:"ftp"`
	Notes        string     `json:"notes"`
	SameGender   bool       `json:"same_gender"`
	EvidenceDate *time.Time `json:"evidence_date"`
}

// Decision is a reviewer verdict.
type Decision struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
}

// Service implements submission, review and readiness queries.
type Service struct {
	store  Store
	policy Policy
	now    func() time.Time
}

// NewService wires a store and a policy source.
func NewService(store Store, policy Policy, now func() time.Time) (*Service, error) {
	if store == nil {
		return nil, errors.New("verification: store is required")
	}
	if policy == nil {
		policy = StaticPolicy{}
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{store: store, policy: policy, now: now}, nil
}

// Submit validates and stores a pending record for accountID.
func (s *Service) Submit(ctx context.Context, accountID string, req SubmitRequest) (Record, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return Record{}, fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	t, err := ParseType(req.Type)
	if err != nil {
		return Record{}, err
	}
	media, err := parseMediaType(req.MediaType)
	if err != nil {
		return Record{}, err
	}
	link := strings.TrimSpace(req.URL)
	if link == "" {
		return Record{}, fmt.Errorf("%w: evidence url is required", ErrInvalidInput)
	}
	if u, err := url.Parse(link); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Record{}, fmt.Errorf("%w: evidence url must be an http(s) link", ErrInvalidInput)
	}
	if len(link) > 500 {
		return Record{}, fmt.Errorf("%w: evidence url is too long", ErrInvalidInput)
	}
	switch t {
	case TypeWeightFull, TypeWeightLight:
		if req.WeightKg <= 0 || req.WeightKg >= 1000 {
			return Record{}, fmt.Errorf("%w: weight in kg is required", ErrInvalidInput)
		}
	case TypeHeight:
		if req.HeightCm <= 0 || req.HeightCm > 300 {
			return Record{}, fmt.Errorf("%w: height in cm is required", ErrInvalidInput)
		}
	case TypePower:
		if req.FTP <= 0 || req.FTP > 2500 {
			return Record{}, fmt.Errorf("%w: ftp in watts is required", ErrInvalidInput)
		}
	}

	now := s.now()
	evidence := now
	if req.EvidenceDate != nil {
		evidence = req.EvidenceDate.UTC()
		if day(evidence).After(day(now)) {
			return Record{}, fmt.Errorf("%w: evidence date is in the future", ErrInvalidInput)
		}
	}
	rec := Record{
		ID:           ids.NewAt(now),
		AccountID:    accountID,
		Type:         t,
		MediaType:    media,
		URL:          link,
		WeightKg:     req.WeightKg,
		HeightCm:     req.HeightCm,
		FTP:          req.FTP,
		Notes:        strings.TrimSpace(req.Notes),
		SameGender:   req.SameGender,
		Status:       StatusPending,
		EvidenceDate: evidence,
		CreatedAt:    now,
	}
	return s.store.CreateRecord(ctx, rec)
}

// Review records a reviewer verdict on a pending record. Callers must have
// checked the reviewer's approve_verification capability.
func (s *Service) Review(ctx context.Context, reviewerID, recordID string, d Decision) (Record, error) {
	reviewerID = strings.TrimSpace(reviewerID)
	recordID = strings.TrimSpace(recordID)
	if reviewerID == "" || recordID == "" {
		return Record{}, fmt.Errorf("%w: reviewer and record id are required", ErrInvalidInput)
	}
	rec, err := s.store.GetRecord(ctx, recordID)
	if err != nil {
		return Record{}, err
	}
	if rec.Status != StatusPending {
		return Record{}, fmt.Errorf("%w: record is already %s", ErrConflict, rec.Status)
	}
	status := StatusVerified
	reason := strings.TrimSpace(d.Reason)
	if !d.Approve {
		status = StatusRejected
		if reason == "" {
			return Record{}, fmt.Errorf("%w: rejection reason is required", ErrInvalidInput)
		}
	}
	return s.store.ReviewRecord(ctx, rec.ID, status, reviewerID, s.now(), reason)
}

func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	return s.store.GetRecord(ctx, strings.TrimSpace(id))
}

func (s *Service) List(ctx context.Context, accountID string) ([]Record, error) {
	return s.store.ListRecords(ctx, strings.TrimSpace(accountID))
}

// Readiness is the race-ready view of one account.
type Readiness struct {
	RaceReady bool                `json:"is_race_ready"`
	Division  string              `json:"division"`
	Required  []Type              `json:"required"`
	Missing   []Type              `json:"missing"`
	Types     map[Type]TypeStatus `json:"verification"`
}

// Readiness evaluates accountID against the requirements of division.
func (s *Service) Readiness(ctx context.Context, accountID, division string) (Readiness, error) {
	records, err := s.store.ListRecords(ctx, strings.TrimSpace(accountID))
	if err != nil {
		return Readiness{}, err
	}
	windows, reqs, err := s.policy.VerificationPolicy(ctx)
	if err != nil {
		return Readiness{}, err
	}
	asOf := s.now()
	required := reqs.Required(division)
	missing := Missing(records, required, windows, asOf)
	return Readiness{
		RaceReady: len(missing) == 0,
		Division:  division,
		Required:  required,
		Missing:   missing,
		Types:     Summarize(records, windows, asOf),
	}, nil
}

// Evaluator answers race-ready questions for many accounts from one snapshot.
type Evaluator struct {
	records map[string][]Record
	windows Windows
	reqs    RequirementMap
	asOf    time.Time
}

// Evaluator loads every verified record once.
func (s *Service) Evaluator(ctx context.Context) (*Evaluator, error) {
	records, err := s.store.ListVerifiedRecords(ctx)
	if err != nil {
		return nil, err
	}
	windows, reqs, err := s.policy.VerificationPolicy(ctx)
	if err != nil {
		return nil, err
	}
	return &Evaluator{records: records, windows: windows, reqs: reqs, asOf: s.now()}, nil
}

// RaceReady reports readiness of accountID for division.
func (e *Evaluator) RaceReady(accountID, division string) bool {
	if accountID == "" {
		return false
	}
	return RaceReady(e.records[accountID], division, e.reqs, e.windows, e.asOf)
}
