package auth

import (
	"fmt"
	"strings"
)

// Capability is a named permission gate checked before an action or view.
type Capability string

const (
	CapAppAdmin            Capability = "app_admin"
	CapTeamCaptain         Capability = "team_captain"
	CapViceCaptain         Capability = "vice_captain"
	CapLinkAdmin           Capability = "link_admin"
	CapMembershipAdmin     Capability = "membership_admin"
	CapRacingAdmin         Capability = "racing_admin"
	CapTeamMember          Capability = "team_member"
	CapRaceReady           Capability = "race_ready"
	CapApproveVerification Capability = "approve_verification"
	CapDataConnection      Capability = "data_connection"
)

// CapabilityInfo describes a capability for admin tooling.
type CapabilityInfo struct {
	Capability  Capability `json:"capability"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Views       []string   `json:"views"`
}

// Registry lists every known capability in display order.
var Registry = []CapabilityInfo{
	{
		Capability:  CapAppAdmin,
		Name:        "App Admin",
		Description: "Full application administration access",
		Views: []string{
			"/v1/settings - Runtime settings",
			"/v1/accounts/{id}/overrides - Permission overrides",
			"/v1/accounts/{id}/roles - Legacy roles",
			"/v1/capabilities - Capability registry",
		},
	},
	{
		Capability:  CapTeamCaptain,
		Name:        "Team Captain",
		Description: "Team captain leadership role",
	},
	{
		Capability:  CapViceCaptain,
		Name:        "Vice Captain",
		Description: "Vice captain leadership role",
	},
	{
		Capability:  CapLinkAdmin,
		Name:        "Link Admin",
		Description: "Manage team links",
		Views: []string{
			"/v1/links - Create, edit and delete team links",
		},
	},
	{
		Capability:  CapMembershipAdmin,
		Name:        "Membership Admin",
		Description: "Review and manage membership applications",
		Views: []string{
			"/v1/applications - Membership applications",
			"/v1/applications/{id} - Review an application",
		},
	},
	{
		Capability:  CapRacingAdmin,
		Name:        "Racing Admin",
		Description: "Manage racing-related data",
		Views: []string{
			"/v1/sync/leaderboard - Leaderboard profile ingestion",
			"/v1/sync/ratings - Rating profile ingestion",
			"/v1/sync/results - Race result ingestion",
		},
	},
	{
		Capability:  CapTeamMember,
		Name:        "Team Member",
		Description: "Basic team access",
		Views: []string{
			"/v1/roster - Team roster",
			"/v1/roster/riders/{zwid} - Rider detail",
			"/v1/verification - Verification records",
			"/v1/links - Team links",
		},
	},
	{
		Capability:  CapRaceReady,
		Name:        "Race Ready",
		Description: "Eligible to participate in official races",
	},
	{
		Capability:  CapApproveVerification,
		Name:        "Approve Verification",
		Description: "Can approve or reject verification records",
		Views: []string{
			"/v1/verification/{id}/review - Approve or reject submissions",
		},
	},
	{
		Capability:  CapDataConnection,
		Name:        "Data Connection",
		Description: "Access data exports",
	},
}

var capabilityIndex = func() map[Capability]int {
	idx := make(map[Capability]int, len(Registry))
	for i, info := range Registry {
		idx[info.Capability] = i
	}
	return idx
}()

// Capabilities returns every known capability in registry order.
func Capabilities() []Capability {
	out := make([]Capability, len(Registry))
	for i, info := range Registry {
		out[i] = info.Capability
	}
	return out
}

// Valid reports whether c is part of the fixed capability set.
func (c Capability) Valid() bool {
	_, ok := capabilityIndex[c]
	return ok
}

// Info returns registry metadata for c.
func (c Capability) Info() (CapabilityInfo, bool) {
	i, ok := capabilityIndex[c]
	if !ok {
		return CapabilityInfo{}, false
	}
	return Registry[i], true
}

// SettingKey is the runtime setting that stores the Discord role ids granting c.
func (c Capability) SettingKey() string {
	return "PERM_" + strings.ToUpper(string(c)) + "_ROLES"
}

// ParseCapability validates a capability name.
func ParseCapability(name string) (Capability, error) {
	c := Capability(strings.ToLower(strings.TrimSpace(name)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCapability, name)
	}
	return c, nil
}

// CapabilityFromSettingKey maps PERM_<CAP>_ROLES back to its capability.
func CapabilityFromSettingKey(key string) (Capability, bool) {
	if !strings.HasPrefix(key, "PERM_") || !strings.HasSuffix(key, "_ROLES") || len(key) <= len("PERM__ROLES") {
		return "", false
	}
	c := Capability(strings.ToLower(key[len("PERM_") : len(key)-len("_ROLES")]))
	return c, c.Valid()
}
