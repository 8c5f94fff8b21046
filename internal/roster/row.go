package roster

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Membership states reported for a row.
const (
	MembershipBoth   = "both"
	MembershipZPOnly = "zp_only"
	MembershipZROnly = "zr_only"
	MembershipLeft   = "left"
	MembershipNone   = "none"
)

// Row is one rider in the unified roster. A nil part means the source had no
// record for the rider.
type Row struct {
	RiderID     int64
	Account     *AccountRecord
	Leaderboard *LeaderboardProfile
	Rating      *RatingProfile
	ResultCount int
}

// DisplayName prefers the account's own name over names guessed by the
// external profiles.
func (r Row) DisplayName() string {
	switch {
	case r.Account != nil && r.Account.DisplayName != "":
		return r.Account.DisplayName
	case r.Leaderboard != nil && r.Leaderboard.Name != "":
		return r.Leaderboard.Name
	case r.Rating != nil && r.Rating.Name != "":
		return r.Rating.Name
	case r.Account != nil && r.Account.Username != "":
		return r.Account.Username
	default:
		return "Rider " + strconv.FormatInt(r.RiderID, 10)
	}
}

// Gender returns M, F or O. The account profile wins; otherwise a women's
// division on the leaderboard implies F, then the rating profile is used.
func (r Row) Gender() string {
	if r.Account != nil {
		if g := normalizeGender(r.Account.Gender); g != "" {
			return g
		}
	}
	if r.Leaderboard != nil {
		if r.Leaderboard.DivW > 0 {
			return "F"
		}
		return "M"
	}
	if r.Rating != nil {
		return normalizeGender(r.Rating.Gender)
	}
	return ""
}

func normalizeGender(g string) string {
	switch strings.ToLower(strings.TrimSpace(g)) {
	case "m", "male":
		return "M"
	case "f", "female":
		return "F"
	case "o", "other":
		return "O"
	default:
		return ""
	}
}

// Category is the leaderboard category letter of the rider's division.
func (r Row) Category() string {
	if r.Leaderboard == nil {
		return ""
	}
	return CategoryForDivision(r.Leaderboard.Div)
}

// CategoryW is the women's category letter.
func (r Row) CategoryW() string {
	if r.Leaderboard == nil {
		return ""
	}
	return CategoryForDivision(r.Leaderboard.DivW)
}

// Division is the key used to look up verification requirements.
func (r Row) Division() string {
	return r.Category()
}

func (r Row) RaceReady() bool {
	return r.Account != nil && r.Account.RaceReady
}

func (r Row) leaderboardActive() bool {
	return r.Leaderboard != nil && r.Leaderboard.DateLeft == nil
}

func (r Row) ratingActive() bool {
	return r.Rating != nil && r.Rating.DateLeft == nil
}

// Active reports whether the rider is current in at least one external source.
func (r Row) Active() bool {
	return r.leaderboardActive() || r.ratingActive()
}

// MembershipStatus summarizes external team membership.
func (r Row) MembershipStatus() string {
	switch {
	case r.leaderboardActive() && r.ratingActive():
		return MembershipBoth
	case r.leaderboardActive():
		return MembershipZPOnly
	case r.ratingActive():
		return MembershipZROnly
	case r.Leaderboard != nil || r.Rating != nil:
		return MembershipLeft
	default:
		return MembershipNone
	}
}

type rowJSON struct {
	RiderID          int64               `json:"zwid"`
	DisplayName      string              `json:"display_name"`
	Gender           string              `json:"gender"`
	Category         string              `json:"zp_category"`
	CategoryW        string              `json:"zp_category_w"`
	MembershipStatus string              `json:"membership_status"`
	HasAccount       bool                `json:"has_account"`
	RaceReady        bool                `json:"is_race_ready"`
	ResultCount      int                 `json:"result_count"`
	Account          *AccountRecord      `json:"account"`
	Leaderboard      *LeaderboardProfile `json:"zwiftpower"`
	Rating           *RatingProfile      `json:"zwiftracing"`
}

func (r Row) MarshalJSON() ([]byte, error) {
	return json.Marshal(rowJSON{
		RiderID:          r.RiderID,
		DisplayName:      r.DisplayName(),
		Gender:           r.Gender(),
		Category:         r.Category(),
		CategoryW:        r.CategoryW(),
		MembershipStatus: r.MembershipStatus(),
		HasAccount:       r.Account != nil,
		RaceReady:        r.RaceReady(),
		ResultCount:      r.ResultCount,
		Account:          r.Account,
		Leaderboard:      r.Leaderboard,
		Rating:           r.Rating,
	})
}

func (r *Row) UnmarshalJSON(data []byte) error {
	var v rowJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = Row{
		RiderID:     v.RiderID,
		Account:     v.Account,
		Leaderboard: v.Leaderboard,
		Rating:      v.Rating,
		ResultCount: v.ResultCount,
	}
	if r.Account != nil {
		r.Account.RaceReady = v.RaceReady
	}
	return nil
}
