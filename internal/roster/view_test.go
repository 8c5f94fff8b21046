package roster

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func sampleRows() []Row {
	left := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []Row{
		{RiderID: 10, Account: &AccountRecord{DisplayName: "carol", DiscordID: "111", RaceReady: true}, Leaderboard: &LeaderboardProfile{Div: 20, FTP: 250}, ResultCount: 5},
		{RiderID: 20, Leaderboard: &LeaderboardProfile{Name: "Alice", Div: 10, DivW: 10, FTP: 300}, Rating: &RatingProfile{Category: "Ruby"}, ResultCount: 9},
		{RiderID: 30, Rating: &RatingProfile{Name: "bob", Category: "Amethyst", DateLeft: &left}, ResultCount: 5},
		{RiderID: 40, Leaderboard: &LeaderboardProfile{Name: "Dave", Div: 20, DateLeft: &left}},
	}
}

func TestSortKeys(t *testing.T) {
	cases := []struct {
		key  SortKey
		desc bool
		want []int64
	}{
		{SortName, false, []int64{20, 30, 10, 40}},
		{SortZwid, true, []int64{40, 30, 20, 10}},
		{SortResults, true, []int64{20, 10, 30, 40}},
		{SortCategory, false, []int64{30, 20, 10, 40}},
		{SortFTP, true, []int64{20, 10, 30, 40}},
		{SortRaceReady, true, []int64{10, 20, 30, 40}},
		{SortAccount, true, []int64{10, 20, 30, 40}},
		{SortRating, false, []int64{10, 40, 30, 20}},
	}
	for _, tc := range cases {
		t.Run(string(tc.key), func(t *testing.T) {
			rows := sampleRows()
			if err := Sort(rows, tc.key, tc.desc); err != nil {
				t.Fatalf("sort: %v", err)
			}
			if diff := cmp.Diff(tc.want, riderIDs(rows)); diff != "" {
				t.Fatalf("order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseSortKey(t *testing.T) {
	k, err := ParseSortKey("", SortResults)
	if err != nil || k != SortResults {
		t.Fatalf("default sort: %q %v", k, err)
	}
	if k, err := ParseSortKey(" WKG ", SortResults); err != nil || k != SortWkg {
		t.Fatalf("ParseSortKey(WKG) = %q, %v", k, err)
	}
	if _, err := ParseSortKey("salary", SortResults); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := Sort(sampleRows(), SortKey("salary"), false); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput from Sort, got %v", err)
	}
}

func TestFilterApply(t *testing.T) {
	yes, no := true, false
	cases := []struct {
		name   string
		filter Filter
		want   []int64
	}{
		{"empty", Filter{}, []int64{10, 20, 30, 40}},
		{"query name", Filter{Query: "ALI"}, []int64{20}},
		{"query id", Filter{Query: "3"}, []int64{30}},
		{"division", Filter{Division: 20}, []int64{10, 40}},
		{"rating category", Filter{RatingCat: "Ruby"}, []int64{20}},
		{"gender", Filter{Gender: "f"}, []int64{20}},
		{"race ready", Filter{RaceReady: &yes}, []int64{10}},
		{"not race ready", Filter{RaceReady: &no}, []int64{20, 30, 40}},
		{"hide left", Filter{HideLeft: true}, []int64{10, 20}},
		{"discord ids", Filter{DiscordIDs: map[string]struct{}{"111": {}}}, []int64{10}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := riderIDs(tc.filter.Apply(sampleRows()))
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("filter mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFacetsOf(t *testing.T) {
	got := FacetsOf(sampleRows())
	want := Facets{Divisions: []int{10, 20}, RatingCategories: []string{"Amethyst", "Ruby"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("facets mismatch (-want +got):\n%s", diff)
	}
}
