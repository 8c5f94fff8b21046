package settings

import (
	"strconv"

	"gottabike.org/internal/auth"
	"gottabike.org/internal/verification"
)

// Snapshot is a read-only view of every setting at one point in time.
// Stored values that no longer validate fall back to their defaults.
type Snapshot struct {
	values map[string]string
}

// NewSnapshot resolves stored against the known definitions.
func NewSnapshot(stored map[string]string) Snapshot {
	values := make(map[string]string, len(definitions))
	for key, d := range definitions {
		values[key] = d.Default
		raw, ok := stored[key]
		if !ok {
			continue
		}
		if v, err := d.Normalize(raw); err == nil {
			values[key] = v
		}
	}
	return Snapshot{values: values}
}

// Get returns the effective value of key.
func (s Snapshot) Get(key string) (string, bool) {
	d, ok := Lookup(key)
	if !ok {
		return "", false
	}
	return s.values[d.Key], true
}

// Values returns a copy of every effective value.
func (s Snapshot) Values() map[string]string {
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

func (s Snapshot) GuildID() string          { return s.values[KeyGuildID] }
func (s Snapshot) TeamMemberRoleID() string { return s.values[KeyTeamMemberRoleID] }
func (s Snapshot) RaceReadyRoleID() string  { return s.values[KeyRaceReadyRoleID] }

// RoleGrants decodes every PERM_*_ROLES setting.
func (s Snapshot) RoleGrants() auth.RoleGrants {
	grants := make(auth.RoleGrants)
	for _, c := range auth.Capabilities() {
		if ids := auth.ParseRoleIDs(s.values[c.SettingKey()]); len(ids) > 0 {
			grants[c] = ids
		}
	}
	return grants
}

// Windows decodes the validity windows.
func (s Snapshot) Windows() verification.Windows {
	w := verification.DefaultWindows()
	for key, t := range windowKeys {
		if n, err := strconv.Atoi(s.values[key]); err == nil {
			w[t] = n
		}
	}
	return w
}

// Requirements decodes the per-division requirements.
func (s Snapshot) Requirements() verification.RequirementMap {
	reqs, err := verification.ParseRequirements(s.values[KeyCategoryRequirements])
	if err != nil {
		return verification.RequirementMap{}
	}
	return reqs
}
