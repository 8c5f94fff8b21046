package roster

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func riderIDs(rows []Row) []int64 {
	out := make([]int64, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.RiderID)
	}
	return out
}

func TestAggregateUnionOneRowPerRider(t *testing.T) {
	accounts := []AccountRecord{{RiderID: "300", AccountID: "a1", DisplayName: "Ann"}}
	lb := []LeaderboardProfile{{RiderID: "100", Name: "Bob", Div: 20}, {RiderID: "300", Name: "Ann ZP", Div: 10}}
	ratings := []RatingProfile{{RiderID: "200", Name: "Cid", Category: "Diamond"}, {RiderID: "300", Category: "Ruby"}}

	res := Aggregate(accounts, lb, ratings)
	if diff := cmp.Diff([]int64{100, 200, 300}, riderIDs(res.Rows)); diff != "" {
		t.Fatalf("rider ids mismatch (-want +got):\n%s", diff)
	}
	if len(res.Anomalies) != 0 {
		t.Fatalf("unexpected anomalies: %+v", res.Anomalies)
	}

	bob := res.Rows[0]
	if bob.Account != nil || bob.Rating != nil || bob.Leaderboard == nil {
		t.Fatalf("rider 100 should only have a leaderboard part: %+v", bob)
	}
	cid := res.Rows[1]
	if cid.Account != nil || cid.Leaderboard != nil || cid.Rating == nil {
		t.Fatalf("rider 200 should only have a rating part: %+v", cid)
	}
	ann := res.Rows[2]
	if ann.Account == nil || ann.Leaderboard == nil || ann.Rating == nil {
		t.Fatalf("rider 300 should have all parts: %+v", ann)
	}
	if ann.DisplayName() != "Ann" {
		t.Fatalf("account name should win, got %q", ann.DisplayName())
	}
	if ann.Category() != "A" || ann.Rating.Category != "Ruby" {
		t.Fatalf("performance fields must come from their own source: %q %q", ann.Category(), ann.Rating.Category)
	}
}

func TestAggregateSkipsMalformedIDs(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	lb := []LeaderboardProfile{
		{RiderID: "abc"},
		{RiderID: "-5"},
		{RiderID: "0"},
		{RiderID: ""},
		{RiderID: " 42 "},
	}
	res := Aggregate(nil, lb, nil, WithLogger(zap.New(core)))
	if diff := cmp.Diff([]int64{42}, riderIDs(res.Rows)); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
	if len(res.Anomalies) != 4 {
		t.Fatalf("expected 4 anomalies, got %d", len(res.Anomalies))
	}
	for _, a := range res.Anomalies {
		if a.Source != SourceLeaderboard || a.Reason == "" {
			t.Fatalf("unexpected anomaly: %+v", a)
		}
	}
	if got := logs.FilterMessage("roster_anomaly").Len(); got != 4 {
		t.Fatalf("expected 4 anomaly log entries, got %d", got)
	}
}

func TestAggregateDuplicatesKeepLatest(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	lb := []LeaderboardProfile{
		{RiderID: "7", Name: "new", SyncedAt: t0.Add(time.Hour)},
		{RiderID: "7", Name: "old", SyncedAt: t0},
	}
	ratings := []RatingProfile{
		{RiderID: "7", Name: "first", SyncedAt: t0},
		{RiderID: "7", Name: "second", SyncedAt: t0},
	}
	res := Aggregate(nil, lb, ratings)
	if len(res.Rows) != 1 {
		t.Fatalf("expected one row, got %d", len(res.Rows))
	}
	if res.Rows[0].Leaderboard.Name != "new" {
		t.Fatalf("expected most recent leaderboard record, got %q", res.Rows[0].Leaderboard.Name)
	}
	if res.Rows[0].Rating.Name != "second" {
		t.Fatalf("tie should go to later input, got %q", res.Rows[0].Rating.Name)
	}
}

func TestAggregateEmpty(t *testing.T) {
	res := Aggregate(nil, nil, nil)
	if len(res.Rows) != 0 || len(res.Anomalies) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestAggregateOptions(t *testing.T) {
	accounts := []AccountRecord{{RiderID: "9", AccountID: "acc-9"}}
	lb := []LeaderboardProfile{{RiderID: "9", Div: 30}}
	var gotDivision string
	res := Aggregate(accounts, lb, nil,
		WithResultCounts(map[int64]int{9: 12}),
		WithReadiness(func(accountID, division string) bool {
			gotDivision = division
			return accountID == "acc-9"
		}),
	)
	row := res.Rows[0]
	if row.ResultCount != 12 {
		t.Fatalf("expected 12 results, got %d", row.ResultCount)
	}
	if !row.RaceReady() || gotDivision != "C" {
		t.Fatalf("readiness not applied: ready=%v division=%q", row.RaceReady(), gotDivision)
	}
}

func TestParseRiderID(t *testing.T) {
	if id, err := ParseRiderID("123"); err != nil || id != 123 {
		t.Fatalf("ParseRiderID(123) = %d, %v", id, err)
	}
	for _, raw := range []string{"", "x1", "1.5", "-1", "0", "99999999999999999999"} {
		if _, err := ParseRiderID(raw); !errors.Is(err, ErrInvalidRiderID) {
			t.Fatalf("ParseRiderID(%q): expected ErrInvalidRiderID, got %v", raw, err)
		}
	}
}

func TestProfileZwidNumberOrString(t *testing.T) {
	var lb []LeaderboardProfile
	body := `[{"zwid":101,"name":"a","div":10},{"zwid":"202","name":"b"},{"zwid":"x9"},{"zwid":true},{"name":"no id"}]`
	if err := json.Unmarshal([]byte(body), &lb); err != nil {
		t.Fatalf("unmarshal leaderboard: %v", err)
	}
	got := make([]string, 0, len(lb))
	for _, p := range lb {
		got = append(got, p.RiderID)
	}
	if diff := cmp.Diff([]string{"101", "202", "x9", "true", ""}, got); diff != "" {
		t.Fatalf("rider ids (-want +got):\n%s", diff)
	}
	if lb[0].Name != "a" || lb[0].Div != 10 {
		t.Fatalf("other fields lost: %+v", lb[0])
	}

	var zr RatingProfile
	if err := json.Unmarshal([]byte(`{"zwid":303,"race_current_category":"B"}`), &zr); err != nil {
		t.Fatalf("unmarshal rating: %v", err)
	}
	if zr.RiderID != "303" || zr.Category != "B" {
		t.Fatalf("unexpected rating profile: %+v", zr)
	}

	res := Aggregate(nil, lb, nil)
	if diff := cmp.Diff([]int64{101, 202}, riderIDs(res.Rows)); diff != "" {
		t.Fatalf("rows (-want +got):\n%s", diff)
	}
	if len(res.Anomalies) != 3 {
		t.Fatalf("expected 3 anomalies, got %+v", res.Anomalies)
	}
}

func TestRowDerivedFields(t *testing.T) {
	left := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name       string
		row        Row
		wantName   string
		wantGender string
		wantStatus string
	}{
		{
			name:       "account only",
			row:        Row{RiderID: 1, Account: &AccountRecord{Username: "discord_1", Gender: "female"}},
			wantName:   "discord_1",
			wantGender: "F",
			wantStatus: MembershipNone,
		},
		{
			name:       "both sources active",
			row:        Row{RiderID: 2, Leaderboard: &LeaderboardProfile{Name: "Zed", DivW: 20}, Rating: &RatingProfile{}},
			wantName:   "Zed",
			wantGender: "F",
			wantStatus: MembershipBoth,
		},
		{
			name:       "left leaderboard only",
			row:        Row{RiderID: 3, Leaderboard: &LeaderboardProfile{DateLeft: &left}},
			wantName:   "Rider 3",
			wantGender: "M",
			wantStatus: MembershipLeft,
		},
		{
			name:       "rating only",
			row:        Row{RiderID: 4, Rating: &RatingProfile{Name: "Ria", Gender: "F"}},
			wantName:   "Ria",
			wantGender: "F",
			wantStatus: MembershipZROnly,
		},
		{
			name:       "left rating still on leaderboard",
			row:        Row{RiderID: 5, Leaderboard: &LeaderboardProfile{}, Rating: &RatingProfile{DateLeft: &left}},
			wantName:   "Rider 5",
			wantGender: "M",
			wantStatus: MembershipZPOnly,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.row.DisplayName(); got != tc.wantName {
				t.Fatalf("DisplayName = %q, want %q", got, tc.wantName)
			}
			if got := tc.row.Gender(); got != tc.wantGender {
				t.Fatalf("Gender = %q, want %q", got, tc.wantGender)
			}
			if got := tc.row.MembershipStatus(); got != tc.wantStatus {
				t.Fatalf("MembershipStatus = %q, want %q", got, tc.wantStatus)
			}
		})
	}
}
