package roster

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Source names used in anomaly reports and metrics.
const (
	SourceAccounts    = "accounts"
	SourceLeaderboard = "leaderboard"
	SourceRating      = "rating"
)

// divisionCategory maps ZwiftPower division numbers to category letters.
var divisionCategory = map[int]string{
	5:  "A+",
	10: "A",
	20: "B",
	30: "C",
	40: "D",
	50: "E",
}

// CategoryForDivision returns the category letter of a ZwiftPower division.
func CategoryForDivision(div int) string {
	return divisionCategory[div]
}

// ParseRiderID parses a rider identifier. Only positive base-10 integers are accepted.
func ParseRiderID(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidRiderID)
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not numeric", ErrInvalidRiderID, raw)
	}
	if id <= 0 {
		return 0, fmt.Errorf("%w: %d is not positive", ErrInvalidRiderID, id)
	}
	return id, nil
}

// rawRiderID turns a feed's zwid value into text for ParseRiderID. Feeds send
// the id as a JSON number or string; anything else is kept verbatim so the
// record is reported as an anomaly instead of failing the whole batch.
func rawRiderID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if raw[0] == '"' && json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

// AccountRecord is the roster-relevant slice of a local account.
type AccountRecord struct {
	RiderID         string    `json:"-"`
	AccountID       string    `json:"account_id"`
	Username        string    `json:"username"`
	DisplayName     string    `json:"display_name,omitempty"`
	DiscordID       string    `json:"discord_id,omitempty"`
	DiscordUsername string    `json:"discord_username,omitempty"`
	Gender          string    `json:"gender,omitempty"`
	ZwidVerified    bool      `json:"zwid_verified"`
	RaceReady       bool      `json:"is_race_ready"`
	SyncedAt        time.Time `json:"-"`
}

// LeaderboardProfile is a rider snapshot from the ZwiftPower team list.
type LeaderboardProfile struct {
	RiderID   string     `json:"zwid"`
	Name      string     `json:"name"`
	Flag      string     `json:"flag,omitempty"`
	Age       string     `json:"age,omitempty"`
	Div       int        `json:"div"`
	DivW      int        `json:"divw"`
	Rank      float64    `json:"rank,omitempty"`
	FTP       int        `json:"ftp,omitempty"`
	WeightKg  float64    `json:"weight,omitempty"`
	Wkg20m    float64    `json:"h_1200_wkg,omitempty"`
	SkillRace int        `json:"skill_race,omitempty"`
	DateLeft  *time.Time `json:"date_left,omitempty"`
	SyncedAt  time.Time  `json:"synced_at"`
}

// RatingProfile is a rider snapshot from Zwift Racing.
type RatingProfile struct {
	RiderID       string     `json:"zwid"`
	Name          string     `json:"name"`
	Gender        string     `json:"gender,omitempty"`
	Country       string     `json:"country,omitempty"`
	Category      string     `json:"race_current_category,omitempty"`
	CategoryNum   int        `json:"race_current_category_num,omitempty"`
	Rating        float64    `json:"race_current_rating,omitempty"`
	MaxRating90   float64    `json:"race_max90_rating,omitempty"`
	Finishes      int        `json:"race_finishes,omitempty"`
	Wins          int        `json:"race_wins,omitempty"`
	Podiums       int        `json:"race_podiums,omitempty"`
	CompoundScore float64    `json:"power_compound_score,omitempty"`
	Phenotype     string     `json:"phenotype_value,omitempty"`
	DateLeft      *time.Time `json:"date_left,omitempty"`
	SyncedAt      time.Time  `json:"synced_at"`
}

func (p *LeaderboardProfile) UnmarshalJSON(data []byte) error {
	type plain LeaderboardProfile
	aux := struct {
		*plain
		RiderID json.RawMessage `json:"zwid"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.RiderID = rawRiderID(aux.RiderID)
	return nil
}

func (p *RatingProfile) UnmarshalJSON(data []byte) error {
	type plain RatingProfile
	aux := struct {
		*plain
		RiderID json.RawMessage `json:"zwid"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.RiderID = rawRiderID(aux.RiderID)
	return nil
}
