package auth

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Legacy static roles. New grants should use Discord role mappings.
const (
	RoleAppAdmin        = "app_admin"
	RoleLinkAdmin       = "link_admin"
	RoleMembershipAdmin = "membership_admin"
	RoleRacingAdmin     = "racing_admin"
	RoleTeamCaptain     = "team_captain"
	RoleTeamViceCaptain = "team_vice_captain"
	RoleTeamMember      = "team_member"
)

// LegacyRoles lists the accepted static role names.
var LegacyRoles = []string{
	RoleAppAdmin,
	RoleLinkAdmin,
	RoleMembershipAdmin,
	RoleRacingAdmin,
	RoleTeamCaptain,
	RoleTeamViceCaptain,
	RoleTeamMember,
}

// Genders accepted on profiles.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

// Account is the identity record of a club member.
type Account struct {
	ID              string              `json:"id"`
	Username        string              `json:"username"`
	DiscordID       string              `json:"discord_id,omitempty"`
	DiscordUsername string              `json:"discord_username,omitempty"`
	DiscordNickname string              `json:"discord_nickname,omitempty"`
	DiscordAvatar   string              `json:"discord_avatar,omitempty"`
	DiscordRoles    map[string]string   `json:"discord_roles"`
	Zwid            int64               `json:"zwid,omitempty"`
	ZwidVerified    bool                `json:"zwid_verified"`
	FirstName       string              `json:"first_name,omitempty"`
	LastName        string              `json:"last_name,omitempty"`
	BirthYear       int                 `json:"birth_year,omitempty"`
	Gender          string              `json:"gender,omitempty"`
	Country         string              `json:"country,omitempty"`
	Timezone        string              `json:"timezone,omitempty"`
	IsSuperuser     bool                `json:"is_superuser"`
	Roles           []string            `json:"roles"`
	Overrides       map[Capability]bool `json:"permission_overrides"`
	PasswordHash    string              `json:"-"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// DisplayName prefers the guild nickname, then the Discord username.
func (a Account) DisplayName() string {
	switch {
	case a.DiscordNickname != "":
		return a.DiscordNickname
	case a.DiscordUsername != "":
		return a.DiscordUsername
	case strings.TrimSpace(a.FirstName+" "+a.LastName) != "":
		return strings.TrimSpace(a.FirstName + " " + a.LastName)
	default:
		return a.Username
	}
}

// HasRole reports whether the legacy role list contains role.
func (a Account) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// DiscordRoleIDs returns the synced role ids in ascending order.
func (a Account) DiscordRoleIDs() []string {
	out := make([]string, 0, len(a.DiscordRoles))
	for id := range a.DiscordRoles {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ZwidString renders the rider id, empty when unset.
func (a Account) ZwidString() string {
	if a.Zwid <= 0 {
		return ""
	}
	return strconv.FormatInt(a.Zwid, 10)
}

// ProfileComplete reports whether the fields needed for team membership are filled.
func (a Account) ProfileComplete() bool {
	return a.FirstName != "" && a.LastName != "" && a.BirthYear > 0 &&
		a.Gender != "" && a.Country != "" && a.Zwid > 0
}

// DiscordIdentity is what an external login or the bot knows about a Discord user.
type DiscordIdentity struct {
	DiscordID string `json:"discord_id"`
	Username  string `json:"username"`
	Nickname  string `json:"nickname"`
	Avatar    string `json:"avatar"`
}

func (d DiscordIdentity) normalize() (DiscordIdentity, error) {
	d.DiscordID = strings.TrimSpace(d.DiscordID)
	d.Username = strings.TrimSpace(d.Username)
	d.Nickname = strings.TrimSpace(d.Nickname)
	d.Avatar = strings.TrimSpace(d.Avatar)
	if !IsSnowflake(d.DiscordID) {
		return DiscordIdentity{}, fmt.Errorf("%w: discord_id must be numeric", ErrInvalidInput)
	}
	if d.Username == "" {
		return DiscordIdentity{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	return d, nil
}

// ProfileUpdate carries editable profile fields. Nil fields are left untouched.
type ProfileUpdate struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	BirthYear *int    `json:"birth_year"`
	Gender    *string `json:"gender"`
	Country   *string `json:"country"`
	Timezone  *string `json:"timezone"`
	Zwid      *int64  `json:"zwid"`
}

// IsSnowflake reports whether s looks like a Discord snowflake id.
func IsSnowflake(s string) bool {
	if s == "" || len(s) > 20 {
		return false
	}
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}

func validLegacyRole(role string) bool {
	for _, r := range LegacyRoles {
		if r == role {
			return true
		}
	}
	return false
}

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
