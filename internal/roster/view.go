package roster

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SortKey names a roster column.
type SortKey string

const (
	SortName      SortKey = "name"
	SortZwid      SortKey = "zwid"
	SortGender    SortKey = "gender"
	SortAccount   SortKey = "account"
	SortVerified  SortKey = "verified"
	SortRaceReady SortKey = "race_ready"
	SortCategory  SortKey = "category"
	SortCategoryW SortKey = "catw"
	SortRating    SortKey = "rating"
	SortResults   SortKey = "results"
	SortRank      SortKey = "rank"
	SortFTP       SortKey = "ftp"
	SortWkg       SortKey = "wkg"
)

var sortLess = map[SortKey]func(a, b Row) bool{
	SortName: func(a, b Row) bool {
		return strings.ToLower(a.DisplayName()) < strings.ToLower(b.DisplayName())
	},
	SortZwid:      func(a, b Row) bool { return a.RiderID < b.RiderID },
	SortGender:    func(a, b Row) bool { return a.Gender() < b.Gender() },
	SortAccount:   func(a, b Row) bool { return !(a.Account != nil) && b.Account != nil },
	SortVerified:  func(a, b Row) bool { return !zwidVerified(a) && zwidVerified(b) },
	SortRaceReady: func(a, b Row) bool { return !a.RaceReady() && b.RaceReady() },
	SortCategory:  func(a, b Row) bool { return div(a) < div(b) },
	SortCategoryW: func(a, b Row) bool { return divW(a) < divW(b) },
	SortRating:    func(a, b Row) bool { return ratingCategory(a) < ratingCategory(b) },
	SortResults:   func(a, b Row) bool { return a.ResultCount < b.ResultCount },
	SortRank: func(a, b Row) bool {
		return leaderboardFloat(a, func(p *LeaderboardProfile) float64 { return p.Rank }) <
			leaderboardFloat(b, func(p *LeaderboardProfile) float64 { return p.Rank })
	},
	SortFTP: func(a, b Row) bool {
		return leaderboardFloat(a, func(p *LeaderboardProfile) float64 { return float64(p.FTP) }) <
			leaderboardFloat(b, func(p *LeaderboardProfile) float64 { return float64(p.FTP) })
	},
	SortWkg: func(a, b Row) bool {
		return leaderboardFloat(a, func(p *LeaderboardProfile) float64 { return p.Wkg20m }) <
			leaderboardFloat(b, func(p *LeaderboardProfile) float64 { return p.Wkg20m })
	},
}

func zwidVerified(r Row) bool { return r.Account != nil && r.Account.ZwidVerified }

func div(r Row) int {
	if r.Leaderboard == nil {
		return 0
	}
	return r.Leaderboard.Div
}

func divW(r Row) int {
	if r.Leaderboard == nil {
		return 0
	}
	return r.Leaderboard.DivW
}

func ratingCategory(r Row) string {
	if r.Rating == nil {
		return ""
	}
	return r.Rating.Category
}

func leaderboardFloat(r Row, field func(*LeaderboardProfile) float64) float64 {
	if r.Leaderboard == nil {
		return 0
	}
	return field(r.Leaderboard)
}

// ParseSortKey validates a sort column; empty selects def.
func ParseSortKey(raw string, def SortKey) (SortKey, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return def, nil
	}
	k := SortKey(raw)
	if _, ok := sortLess[k]; !ok {
		return "", fmt.Errorf("%w: unknown sort key %q", ErrInvalidInput, raw)
	}
	return k, nil
}

// Sort orders rows in place. Ties keep their current relative order.
func Sort(rows []Row, key SortKey, desc bool) error {
	less, ok := sortLess[key]
	if !ok {
		return fmt.Errorf("%w: unknown sort key %q", ErrInvalidInput, key)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if desc {
			return less(rows[j], rows[i])
		}
		return less(rows[i], rows[j])
	})
	return nil
}

// Filter narrows a roster. Zero values match everything.
type Filter struct {
	Query      string
	Division   int
	RatingCat  string
	Gender     string
	RaceReady  *bool
	HideLeft   bool
	DiscordIDs map[string]struct{}
}

// Match reports whether r passes every set criterion.
func (f Filter) Match(r Row) bool {
	if q := strings.TrimSpace(f.Query); q != "" {
		if !strings.Contains(strings.ToLower(r.DisplayName()), strings.ToLower(q)) &&
			!strings.Contains(strconv.FormatInt(r.RiderID, 10), q) {
			return false
		}
	}
	if f.Division != 0 && (r.Leaderboard == nil || r.Leaderboard.Div != f.Division) {
		return false
	}
	if f.RatingCat != "" && (r.Rating == nil || r.Rating.Category != f.RatingCat) {
		return false
	}
	if f.Gender != "" && r.Gender() != strings.ToUpper(f.Gender) {
		return false
	}
	if f.RaceReady != nil && r.RaceReady() != *f.RaceReady {
		return false
	}
	if f.HideLeft && r.MembershipStatus() == MembershipLeft {
		return false
	}
	if f.DiscordIDs != nil {
		if r.Account == nil {
			return false
		}
		if _, ok := f.DiscordIDs[r.Account.DiscordID]; !ok {
			return false
		}
	}
	return true
}

// Apply returns the rows matching f, preserving order.
func (f Filter) Apply(rows []Row) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Facets lists the divisions and rating categories present, for filter menus.
type Facets struct {
	Divisions        []int    `json:"zp_divisions"`
	RatingCategories []string `json:"zr_categories"`
}

func FacetsOf(rows []Row) Facets {
	divs := map[int]struct{}{}
	cats := map[string]struct{}{}
	for _, r := range rows {
		if r.Leaderboard != nil && r.Leaderboard.Div != 0 {
			divs[r.Leaderboard.Div] = struct{}{}
		}
		if r.Rating != nil && r.Rating.Category != "" {
			cats[r.Rating.Category] = struct{}{}
		}
	}
	f := Facets{Divisions: []int{}, RatingCategories: []string{}}
	for d := range divs {
		f.Divisions = append(f.Divisions, d)
	}
	for c := range cats {
		f.RatingCategories = append(f.RatingCategories, c)
	}
	sort.Ints(f.Divisions)
	sort.Strings(f.RatingCategories)
	return f
}
