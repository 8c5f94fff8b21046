package roster

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service builds roster views from stored accounts and profiles.
type Service struct {
	accounts  AccountLister
	profiles  ProfileStore
	filters   FilterStore
	readiness ReadinessSource
	log       *zap.Logger
	filterTTL time.Duration
	onAnomaly func(source string)
	now       func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

func WithServiceLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithFilterTTL(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.filterTTL = d
		}
	}
}

// WithAnomalyHook is called once per skipped source record.
func WithAnomalyHook(fn func(source string)) ServiceOption {
	return func(s *Service) { s.onAnomaly = fn }
}

func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService wires a roster service. readiness may be nil, in which case no
// rider is reported race ready.
func NewService(accounts AccountLister, profiles ProfileStore, filters FilterStore, readiness ReadinessSource, opts ...ServiceOption) (*Service, error) {
	if accounts == nil || profiles == nil || filters == nil {
		return nil, errors.New("roster: accounts, profiles and filters are required")
	}
	s := &Service{
		accounts:  accounts,
		profiles:  profiles,
		filters:   filters,
		readiness: readiness,
		log:       zap.NewNop(),
		filterTTL: DefaultFilterTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Query selects and orders roster rows.
type Query struct {
	Filter Filter
	Sort   SortKey
	Desc   bool
}

// View is a filtered, sorted roster.
type View struct {
	Rows      []Row     `json:"rows"`
	Total     int       `json:"total"`
	Facets    Facets    `json:"facets"`
	Anomalies []Anomaly `json:"anomalies,omitempty"`
}

// Build aggregates all sources without filtering.
func (s *Service) Build(ctx context.Context) (Result, error) {
	accts, err := s.accounts.ListAccounts(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list accounts: %w", err)
	}
	records := make([]AccountRecord, 0, len(accts))
	for _, a := range accts {
		if rec, ok := AccountRecordFrom(a); ok {
			records = append(records, rec)
		}
	}
	lb, err := s.profiles.ListLeaderboardProfiles(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list leaderboard profiles: %w", err)
	}
	ratings, err := s.profiles.ListRatingProfiles(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list rating profiles: %w", err)
	}
	counts, err := s.profiles.ResultCounts(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("result counts: %w", err)
	}
	opts := []Option{WithLogger(s.log), WithResultCounts(counts)}
	if s.readiness != nil {
		ready, err := s.readiness.ReadinessFunc(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("readiness: %w", err)
		}
		opts = append(opts, WithReadiness(ready))
	}
	res := Aggregate(records, lb, ratings, opts...)
	s.report(res.Anomalies)
	return res, nil
}

// Roster returns the filtered and sorted roster.
func (s *Service) Roster(ctx context.Context, q Query) (View, error) {
	if q.Sort == "" {
		q.Sort = SortResults
		q.Desc = true
	}
	res, err := s.Build(ctx)
	if err != nil {
		return View{}, err
	}
	rows := q.Filter.Apply(res.Rows)
	if err := Sort(rows, q.Sort, q.Desc); err != nil {
		return View{}, err
	}
	return View{
		Rows:      rows,
		Total:     len(res.Rows),
		Facets:    FacetsOf(res.Rows),
		Anomalies: res.Anomalies,
	}, nil
}

// Rider returns the single row for a rider id.
func (s *Service) Rider(ctx context.Context, rawID string) (Row, error) {
	id, err := ParseRiderID(rawID)
	if err != nil {
		return Row{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	res, err := s.Build(ctx)
	if err != nil {
		return Row{}, err
	}
	for _, r := range res.Rows {
		if r.RiderID == id {
			return r, nil
		}
	}
	return Row{}, ErrNotFound
}

// IngestReport summarizes one profile batch.
type IngestReport struct {
	Source    string    `json:"source"`
	Received  int       `json:"received"`
	Stored    int       `json:"stored"`
	Left      int64     `json:"left"`
	Anomalies []Anomaly `json:"anomalies,omitempty"`
}

// IngestLeaderboard stores a leaderboard batch. With full set, riders absent
// from the batch are marked as having left the team.
func (s *Service) IngestLeaderboard(ctx context.Context, profiles []LeaderboardProfile, full bool) (IngestReport, error) {
	now := s.now().UTC()
	rep := IngestReport{Source: SourceLeaderboard, Received: len(profiles)}
	var res Result
	valid := index(SourceLeaderboard, profiles, func(p LeaderboardProfile) (string, int64, error) {
		id, err := ParseRiderID(p.RiderID)
		return p.RiderID, id, err
	}, func(p LeaderboardProfile) int64 { return p.SyncedAt.UnixNano() }, &res, s.log)
	batch := make([]LeaderboardProfile, 0, len(valid))
	for id, p := range valid {
		p.RiderID = strconv.FormatInt(id, 10)
		p.DateLeft = nil
		if p.SyncedAt.IsZero() {
			p.SyncedAt = now
		}
		batch = append(batch, p)
	}
	rep.Anomalies = res.Anomalies
	s.report(res.Anomalies)
	if full && len(batch) == 0 {
		return rep, fmt.Errorf("%w: full batch has no valid riders", ErrInvalidInput)
	}
	if err := s.profiles.UpsertLeaderboardProfiles(ctx, batch); err != nil {
		return rep, fmt.Errorf("upsert leaderboard: %w", err)
	}
	rep.Stored = len(batch)
	if full {
		n, err := s.profiles.MarkLeft(ctx, SourceLeaderboard, presentIDs(valid), now)
		if err != nil {
			return rep, fmt.Errorf("mark left: %w", err)
		}
		rep.Left = n
	}
	s.log.Info("roster_ingest",
		zap.String("source", rep.Source),
		zap.Int("received", rep.Received),
		zap.Int("stored", rep.Stored),
		zap.Int64("left", rep.Left),
	)
	return rep, nil
}

// IngestRatings stores a rating batch, with the same semantics as IngestLeaderboard.
func (s *Service) IngestRatings(ctx context.Context, profiles []RatingProfile, full bool) (IngestReport, error) {
	now := s.now().UTC()
	rep := IngestReport{Source: SourceRating, Received: len(profiles)}
	var res Result
	valid := index(SourceRating, profiles, func(p RatingProfile) (string, int64, error) {
		id, err := ParseRiderID(p.RiderID)
		return p.RiderID, id, err
	}, func(p RatingProfile) int64 { return p.SyncedAt.UnixNano() }, &res, s.log)
	batch := make([]RatingProfile, 0, len(valid))
	for id, p := range valid {
		p.RiderID = strconv.FormatInt(id, 10)
		p.DateLeft = nil
		if p.SyncedAt.IsZero() {
			p.SyncedAt = now
		}
		batch = append(batch, p)
	}
	rep.Anomalies = res.Anomalies
	s.report(res.Anomalies)
	if full && len(batch) == 0 {
		return rep, fmt.Errorf("%w: full batch has no valid riders", ErrInvalidInput)
	}
	if err := s.profiles.UpsertRatingProfiles(ctx, batch); err != nil {
		return rep, fmt.Errorf("upsert ratings: %w", err)
	}
	rep.Stored = len(batch)
	if full {
		n, err := s.profiles.MarkLeft(ctx, SourceRating, presentIDs(valid), now)
		if err != nil {
			return rep, fmt.Errorf("mark left: %w", err)
		}
		rep.Left = n
	}
	s.log.Info("roster_ingest",
		zap.String("source", rep.Source),
		zap.Int("received", rep.Received),
		zap.Int("stored", rep.Stored),
		zap.Int64("left", rep.Left),
	)
	return rep, nil
}

func presentIDs[T any](m map[int64]T) []string {
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, strconv.FormatInt(id, 10))
	}
	return out
}

// CreateChannelFilter stores a filter for the members of a Discord channel.
func (s *Service) CreateChannelFilter(ctx context.Context, discordIDs []string, channelName, createdBy string) (ChannelFilter, error) {
	f, err := NewChannelFilter(discordIDs, channelName, createdBy, s.now().UTC(), s.filterTTL)
	if err != nil {
		return ChannelFilter{}, err
	}
	if err := s.filters.CreateChannelFilter(ctx, f); err != nil {
		return ChannelFilter{}, err
	}
	return f, nil
}

// ChannelFilter loads a filter, failing with ErrFilterExpired past its expiry.
func (s *Service) ChannelFilter(ctx context.Context, rawID string) (ChannelFilter, error) {
	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		return ChannelFilter{}, fmt.Errorf("%w: filter id", ErrInvalidInput)
	}
	f, err := s.filters.GetChannelFilter(ctx, id)
	if err != nil {
		return ChannelFilter{}, err
	}
	if f.Expired(s.now()) {
		return f, ErrFilterExpired
	}
	return f, nil
}

// ChannelRoster returns the roster restricted to a channel filter. Rows are
// ordered by name unless q says otherwise.
func (s *Service) ChannelRoster(ctx context.Context, filterID string, q Query) (View, ChannelFilter, error) {
	f, err := s.ChannelFilter(ctx, filterID)
	if err != nil {
		return View{}, f, err
	}
	q.Filter.DiscordIDs = f.Filter().DiscordIDs
	if q.Sort == "" {
		q.Sort = SortName
	}
	v, err := s.Roster(ctx, q)
	return v, f, err
}

// PurgeExpiredFilters deletes filters that expired before now.
func (s *Service) PurgeExpiredFilters(ctx context.Context) (int64, error) {
	return s.filters.DeleteExpiredFilters(ctx, s.now().UTC())
}

func (s *Service) report(anoms []Anomaly) {
	if s.onAnomaly == nil {
		return
	}
	for _, a := range anoms {
		s.onAnomaly(a.Source)
	}
}
