package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gottabike.org/internal/auth"
	"gottabike.org/internal/verification"
)

var (
	ErrUnknownKey   = errors.New("settings: unknown key")
	ErrInvalidValue = errors.New("settings: invalid value")
)

// Kind determines how a value is validated and decoded.
type Kind string

const (
	KindRoleList     Kind = "role_list"
	KindDays         Kind = "days"
	KindRequirements Kind = "requirements"
	KindSnowflake    Kind = "snowflake"
)

const (
	KeyGuildID              = "GUILD_ID"
	KeyTeamMemberRoleID     = "TEAM_MEMBER_ROLE_ID"
	KeyRaceReadyRoleID      = "RACE_READY_ROLE_ID"
	KeyWeightFullDays       = "WEIGHT_FULL_DAYS"
	KeyWeightLightDays      = "WEIGHT_LIGHT_DAYS"
	KeyHeightDays           = "HEIGHT_VERIFICATION_DAYS"
	KeyPowerDays            = "POWER_VERIFICATION_DAYS"
	KeyCategoryRequirements = "CATEGORY_REQUIREMENTS"
)

// Definition describes one runtime setting.
type Definition struct {
	Key         string `json:"key"`
	Kind        Kind   `json:"kind"`
	Default     string `json:"default"`
	Description string `json:"description"`
}

var windowKeys = map[string]verification.Type{
	KeyWeightFullDays:  verification.TypeWeightFull,
	KeyWeightLightDays: verification.TypeWeightLight,
	KeyHeightDays:      verification.TypeHeight,
	KeyPowerDays:       verification.TypePower,
}

var definitions = buildDefinitions()

func buildDefinitions() map[string]Definition {
	defs := map[string]Definition{
		KeyGuildID:          {Key: KeyGuildID, Kind: KindSnowflake, Description: "Discord guild the bot serves"},
		KeyTeamMemberRoleID: {Key: KeyTeamMemberRoleID, Kind: KindSnowflake, Description: "Discord role held by team members"},
		KeyRaceReadyRoleID:  {Key: KeyRaceReadyRoleID, Kind: KindSnowflake, Description: "Discord role assigned to race ready riders"},
		KeyCategoryRequirements: {
			Key:         KeyCategoryRequirements,
			Kind:        KindRequirements,
			Default:     "{}",
			Description: "Verification types required per division, e.g. {\"A\": [\"weight_full\", \"height\", \"power\"]}",
		},
	}
	windows := verification.DefaultWindows()
	for key, t := range windowKeys {
		defs[key] = Definition{
			Key:         key,
			Kind:        KindDays,
			Default:     strconv.Itoa(windows[t]),
			Description: fmt.Sprintf("Days a %s verification stays valid, 0 for never", t),
		}
	}
	for _, c := range auth.Capabilities() {
		key := c.SettingKey()
		info, _ := c.Info()
		defs[key] = Definition{
			Key:         key,
			Kind:        KindRoleList,
			Default:     "[]",
			Description: fmt.Sprintf("Discord role ids granting %s", info.Name),
		}
	}
	return defs
}

// Definitions lists every known setting ordered by key.
func Definitions() []Definition {
	out := make([]Definition, 0, len(definitions))
	for _, d := range definitions {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Lookup returns the definition for key.
func Lookup(key string) (Definition, bool) {
	d, ok := definitions[strings.ToUpper(strings.TrimSpace(key))]
	return d, ok
}

// Normalize validates raw for the setting and returns its canonical form.
func (d Definition) Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	switch d.Kind {
	case KindSnowflake:
		if raw != "" && !auth.IsSnowflake(raw) {
			return "", fmt.Errorf("%w: %s must be a Discord id", ErrInvalidValue, d.Key)
		}
		return raw, nil
	case KindDays:
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return "", fmt.Errorf("%w: %s must be a non-negative number of days", ErrInvalidValue, d.Key)
		}
		return strconv.Itoa(n), nil
	case KindRoleList:
		ids, err := parseRoleList(raw)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrInvalidValue, d.Key, err)
		}
		return auth.FormatRoleIDs(ids), nil
	case KindRequirements:
		reqs, err := verification.ParseRequirements(raw)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrInvalidValue, d.Key, err)
		}
		data, err := json.Marshal(reqs)
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, d.Key)
	}
}

// parseRoleList accepts a JSON array or a comma separated list of role ids.
func parseRoleList(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var items []string
	if strings.HasPrefix(raw, "[") {
		items = auth.ParseRoleIDs(raw)
		if items == nil {
			var probe []json.RawMessage
			if err := json.Unmarshal([]byte(raw), &probe); err != nil || len(probe) > 0 {
				return nil, errors.New("malformed role id list")
			}
		}
	} else {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
	}
	for _, id := range items {
		if !auth.IsSnowflake(id) {
			return nil, fmt.Errorf("%q is not a Discord role id", id)
		}
	}
	return items, nil
}
