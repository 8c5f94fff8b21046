package roster

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"gottabike.org/internal/auth"
)

type stubAccounts struct {
	accounts []auth.Account
	err      error
}

func (s stubAccounts) ListAccounts(context.Context) ([]auth.Account, error) {
	return s.accounts, s.err
}

type memoryProfiles struct {
	leaderboard map[string]LeaderboardProfile
	ratings     map[string]RatingProfile
	counts      map[int64]int
	results     []RaceResult
}

func newMemoryProfiles() *memoryProfiles {
	return &memoryProfiles{
		leaderboard: map[string]LeaderboardProfile{},
		ratings:     map[string]RatingProfile{},
	}
}

func (m *memoryProfiles) ListLeaderboardProfiles(context.Context) ([]LeaderboardProfile, error) {
	out := make([]LeaderboardProfile, 0, len(m.leaderboard))
	for _, p := range m.leaderboard {
		out = append(out, p)
	}
	return out, nil
}

func (m *memoryProfiles) ListRatingProfiles(context.Context) ([]RatingProfile, error) {
	out := make([]RatingProfile, 0, len(m.ratings))
	for _, p := range m.ratings {
		out = append(out, p)
	}
	return out, nil
}

func (m *memoryProfiles) ResultCounts(context.Context) (map[int64]int, error) {
	return m.counts, nil
}

func (m *memoryProfiles) UpsertLeaderboardProfiles(_ context.Context, profiles []LeaderboardProfile) error {
	for _, p := range profiles {
		m.leaderboard[p.RiderID] = p
	}
	return nil
}

func (m *memoryProfiles) UpsertRatingProfiles(_ context.Context, profiles []RatingProfile) error {
	for _, p := range profiles {
		m.ratings[p.RiderID] = p
	}
	return nil
}

func (m *memoryProfiles) UpsertRaceResults(_ context.Context, results []RaceResult) error {
	m.results = append(m.results, results...)
	return nil
}

func (m *memoryProfiles) MarkLeft(_ context.Context, source string, present []string, at time.Time) (int64, error) {
	keep := map[string]bool{}
	for _, id := range present {
		keep[id] = true
	}
	var n int64
	switch source {
	case SourceLeaderboard:
		for id, p := range m.leaderboard {
			if !keep[id] && p.DateLeft == nil {
				p.DateLeft = &at
				m.leaderboard[id] = p
				n++
			}
		}
	case SourceRating:
		for id, p := range m.ratings {
			if !keep[id] && p.DateLeft == nil {
				p.DateLeft = &at
				m.ratings[id] = p
				n++
			}
		}
	}
	return n, nil
}

type memoryFilters struct {
	filters map[uuid.UUID]ChannelFilter
}

func (m *memoryFilters) CreateChannelFilter(_ context.Context, f ChannelFilter) error {
	if m.filters == nil {
		m.filters = map[uuid.UUID]ChannelFilter{}
	}
	m.filters[f.ID] = f
	return nil
}

func (m *memoryFilters) GetChannelFilter(_ context.Context, id uuid.UUID) (ChannelFilter, error) {
	f, ok := m.filters[id]
	if !ok {
		return ChannelFilter{}, ErrNotFound
	}
	return f, nil
}

func (m *memoryFilters) DeleteExpiredFilters(_ context.Context, before time.Time) (int64, error) {
	var n int64
	for id, f := range m.filters {
		if f.ExpiresAt.Before(before) {
			delete(m.filters, id)
			n++
		}
	}
	return n, nil
}

type fixture struct {
	svc      *Service
	profiles *memoryProfiles
	filters  *memoryFilters
	now      *time.Time
	anoms    []string
}

func newFixture(t *testing.T, accounts []auth.Account) *fixture {
	t.Helper()
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	f := &fixture{profiles: newMemoryProfiles(), filters: &memoryFilters{}, now: &now}
	ready := ReadinessFunc(func(context.Context) (func(string, string) bool, error) {
		return func(accountID, _ string) bool { return accountID == "acc-1" }, nil
	})
	svc, err := NewService(stubAccounts{accounts: accounts}, f.profiles, f.filters, ready,
		WithServiceClock(func() time.Time { return *f.now }),
		WithAnomalyHook(func(source string) { f.anoms = append(f.anoms, source) }),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	f.svc = svc
	return f
}

func TestServiceIngestAndRoster(t *testing.T) {
	accounts := []auth.Account{
		{ID: "acc-1", Username: "discord_1", DiscordID: "1", DiscordNickname: "Nick", Zwid: 101},
		{ID: "acc-2", Username: "discord_2", DiscordID: "2"},
	}
	fx := newFixture(t, accounts)
	ctx := context.Background()

	rep, err := fx.svc.IngestLeaderboard(ctx, []LeaderboardProfile{
		{RiderID: "101", Name: "ZP Nick", Div: 10},
		{RiderID: "102", Name: "Other", Div: 30},
		{RiderID: "bad"},
	}, true)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if rep.Received != 3 || rep.Stored != 2 || len(rep.Anomalies) != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if diff := cmp.Diff([]string{SourceLeaderboard}, fx.anoms); diff != "" {
		t.Fatalf("anomaly hook mismatch (-want +got):\n%s", diff)
	}

	view, err := fx.svc.Roster(ctx, Query{})
	if err != nil {
		t.Fatalf("roster: %v", err)
	}
	if view.Total != 2 || len(view.Rows) != 2 {
		t.Fatalf("expected 2 rows, got total=%d rows=%d", view.Total, len(view.Rows))
	}
	row, err := fx.svc.Rider(ctx, "101")
	if err != nil {
		t.Fatalf("rider: %v", err)
	}
	if row.DisplayName() != "Nick" || !row.RaceReady() || row.Category() != "A" {
		t.Fatalf("unexpected row: name=%q ready=%v cat=%q", row.DisplayName(), row.RaceReady(), row.Category())
	}

	// A second full batch without 102 marks it as left.
	rep, err = fx.svc.IngestLeaderboard(ctx, []LeaderboardProfile{{RiderID: "101", Name: "ZP Nick", Div: 10}}, true)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if rep.Left != 1 {
		t.Fatalf("expected one rider marked left, got %d", rep.Left)
	}
	view, err = fx.svc.Roster(ctx, Query{Filter: Filter{HideLeft: true}})
	if err != nil {
		t.Fatalf("roster: %v", err)
	}
	if diff := cmp.Diff([]int64{101}, riderIDs(view.Rows)); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}

	// Returning riders have date_left cleared.
	if _, err := fx.svc.IngestLeaderboard(ctx, []LeaderboardProfile{{RiderID: "102", Div: 30}}, false); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if fx.profiles.leaderboard["102"].DateLeft != nil {
		t.Fatalf("expected date_left cleared for returning rider")
	}

	if _, err := fx.svc.Rider(ctx, "999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := fx.svc.Rider(ctx, "x"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestServiceIngestRatings(t *testing.T) {
	fx := newFixture(t, nil)
	rep, err := fx.svc.IngestRatings(context.Background(), []RatingProfile{
		{RiderID: "5", Category: "Ruby"},
		{RiderID: "0"},
	}, false)
	if err != nil {
		t.Fatalf("ingest ratings: %v", err)
	}
	if rep.Stored != 1 || len(rep.Anomalies) != 1 || rep.Left != 0 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if got := fx.profiles.ratings["5"].SyncedAt; !got.Equal(*fx.now) {
		t.Fatalf("expected synced_at stamped, got %v", got)
	}
}

func TestServiceIngestResults(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	var batch []RaceResult
	err := json.Unmarshal([]byte(`[
		{"zwid": 101, "event_id": "e1", "event_date": "2024-05-01", "position": 4},
		{"zwid": "101", "event_id": "e1", "event_date": "2024-05-01", "position": 2},
		{"zwid": "202", "event_id": " e2 ", "position": 7},
		{"zwid": "abc", "event_id": "e1"},
		{"zwid": 303},
		{"zwid": 404, "event_id": "e3", "event_date": "May 1"},
		{"zwid": 505, "event_id": "e3", "position": -1}
	]`), &batch)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	rep, err := fx.svc.IngestResults(ctx, batch)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if rep.Source != SourceResults || rep.Received != 7 || rep.Stored != 2 || len(rep.Anomalies) != 4 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	want := []RaceResult{
		{RiderID: "101", EventID: "e1", EventDate: "2024-05-01", Position: 2},
		{RiderID: "202", EventID: "e2", Position: 7},
	}
	if diff := cmp.Diff(want, fx.profiles.results); diff != "" {
		t.Fatalf("stored results mismatch (-want +got):\n%s", diff)
	}
	if len(fx.anoms) != 4 || fx.anoms[0] != SourceResults {
		t.Fatalf("expected four results anomalies, got %v", fx.anoms)
	}
}

func TestServiceIngestResultsRejectsBatchWithoutValidRecords(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	if _, err := fx.svc.IngestResults(ctx, nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty batch, got %v", err)
	}
	rep, err := fx.svc.IngestResults(ctx, []RaceResult{{RiderID: "x", EventID: "e1"}, {RiderID: "5"}})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if rep.Stored != 0 || len(rep.Anomalies) != 2 || len(fx.profiles.results) != 0 {
		t.Fatalf("unexpected report: %+v", rep)
	}
}

func TestServiceChannelRoster(t *testing.T) {
	accounts := []auth.Account{
		{ID: "acc-1", Username: "zed", DiscordID: "1", Zwid: 11},
		{ID: "acc-2", Username: "amy", DiscordID: "2", Zwid: 12},
		{ID: "acc-3", Username: "bea", DiscordID: "3", Zwid: 13},
	}
	fx := newFixture(t, accounts)
	ctx := context.Background()

	f, err := fx.svc.CreateChannelFilter(ctx, []string{"1", "2"}, "general", "3")
	if err != nil {
		t.Fatalf("create filter: %v", err)
	}
	view, got, err := fx.svc.ChannelRoster(ctx, f.ID.String(), Query{})
	if err != nil {
		t.Fatalf("channel roster: %v", err)
	}
	if got.ChannelName != "general" {
		t.Fatalf("unexpected filter: %+v", got)
	}
	names := make([]string, 0, len(view.Rows))
	for _, r := range view.Rows {
		names = append(names, r.DisplayName())
	}
	if diff := cmp.Diff([]string{"amy", "zed"}, names); diff != "" {
		t.Fatalf("channel roster mismatch (-want +got):\n%s", diff)
	}

	*fx.now = fx.now.Add(DefaultFilterTTL + time.Second)
	if _, _, err := fx.svc.ChannelRoster(ctx, f.ID.String(), Query{}); !errors.Is(err, ErrFilterExpired) {
		t.Fatalf("expected ErrFilterExpired, got %v", err)
	}
	n, err := fx.svc.PurgeExpiredFilters(ctx)
	if err != nil || n != 1 {
		t.Fatalf("purge: n=%d err=%v", n, err)
	}
	if _, err := fx.svc.ChannelFilter(ctx, f.ID.String()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after purge, got %v", err)
	}
	if _, err := fx.svc.ChannelFilter(ctx, "not-a-uuid"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestServiceBuildPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	svc, err := NewService(stubAccounts{err: boom}, newMemoryProfiles(), &memoryFilters{}, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := svc.Roster(context.Background(), Query{}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if _, err := NewService(nil, nil, nil, nil); err == nil {
		t.Fatalf("expected error for missing dependencies")
	}
}

func TestAccountRecordFrom(t *testing.T) {
	if _, ok := AccountRecordFrom(auth.Account{ID: "x"}); ok {
		t.Fatalf("account without zwid should be skipped")
	}
	rec, ok := AccountRecordFrom(auth.Account{ID: "x", Username: "u", Zwid: 77, Gender: "male"})
	if !ok || rec.RiderID != "77" || rec.AccountID != "x" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}
