package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"gottabike.org/internal/auth"
	"gottabike.org/internal/verification"
)

type memoryStore struct {
	values map[string]string
	by     map[string]string
	err    error
}

func (m *memoryStore) ListSettings(context.Context) (map[string]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}

func (m *memoryStore) PutSetting(_ context.Context, key, value, updatedBy string, _ time.Time) error {
	if m.values == nil {
		m.values = map[string]string{}
		m.by = map[string]string{}
	}
	m.values[key] = value
	m.by[key] = updatedBy
	return nil
}

func TestDefinitionsCoverCapabilities(t *testing.T) {
	for _, c := range auth.Capabilities() {
		d, ok := Lookup(c.SettingKey())
		if !ok {
			t.Fatalf("missing setting for %s", c)
		}
		if d.Kind != KindRoleList || d.Default != "[]" {
			t.Fatalf("unexpected definition for %s: %+v", c, d)
		}
	}
	if _, ok := Lookup("weight_full_days"); !ok {
		t.Fatalf("lookup should be case insensitive")
	}
	defs := Definitions()
	for i := 1; i < len(defs); i++ {
		if defs[i-1].Key >= defs[i].Key {
			t.Fatalf("definitions not sorted at %d", i)
		}
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		key     string
		raw     string
		want    string
		wantErr bool
	}{
		{KeyGuildID, " 123456789012345678 ", "123456789012345678", false},
		{KeyGuildID, "", "", false},
		{KeyGuildID, "guild", "", true},
		{KeyWeightFullDays, "90", "90", false},
		{KeyHeightDays, "0", "0", false},
		{KeyPowerDays, "-1", "", true},
		{KeyPowerDays, "ten", "", true},
		{"PERM_TEAM_CAPTAIN_ROLES", `["2", 1, "2"]`, `["2","1"]`, false},
		{"PERM_TEAM_CAPTAIN_ROLES", "[]", "[]", false},
		{"PERM_TEAM_CAPTAIN_ROLES", "3, 4", `["3","4"]`, false},
		{"PERM_TEAM_CAPTAIN_ROLES", "", "[]", false},
		{"PERM_TEAM_CAPTAIN_ROLES", `["abc"]`, "", true},
		{"PERM_TEAM_CAPTAIN_ROLES", `[`, "", true},
		{KeyCategoryRequirements, `{"a": ["power"]}`, `{"A":["power"]}`, false},
		{KeyCategoryRequirements, `{"A": ["ftp"]}`, "", true},
	}
	for _, tc := range cases {
		d, ok := Lookup(tc.key)
		if !ok {
			t.Fatalf("unknown key %s", tc.key)
		}
		got, err := d.Normalize(tc.raw)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidValue) {
				t.Fatalf("%s=%q: expected ErrInvalidValue, got %v", tc.key, tc.raw, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s=%q: %v", tc.key, tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("%s=%q: got %q want %q", tc.key, tc.raw, got, tc.want)
		}
	}
}

func TestSnapshotFallsBackOnMalformedValues(t *testing.T) {
	snap := NewSnapshot(map[string]string{
		KeyWeightLightDays:        "soon",
		KeyPowerDays:              "400",
		KeyCategoryRequirements:   "not json",
		"PERM_LINK_ADMIN_ROLES":   `["10","11"]`,
		"PERM_RACING_ADMIN_ROLES": "{broken",
		"UNRELATED":               "x",
	})
	w := snap.Windows()
	if w[verification.TypeWeightLight] != 30 || w[verification.TypePower] != 400 {
		t.Fatalf("unexpected windows: %+v", w)
	}
	if len(snap.Requirements()) != 0 {
		t.Fatalf("malformed requirements should fall back to empty map")
	}
	want := auth.RoleGrants{auth.CapLinkAdmin: {"10", "11"}}
	if diff := cmp.Diff(want, snap.RoleGrants()); diff != "" {
		t.Fatalf("grants mismatch (-want +got):\n%s", diff)
	}
	if _, ok := snap.Get("UNRELATED"); ok {
		t.Fatalf("unknown keys must not be exposed")
	}
	if _, ok := snap.Values()["UNRELATED"]; ok {
		t.Fatalf("unknown keys must not be exposed in values")
	}
}

func TestServiceUpdateAndPolicy(t *testing.T) {
	store := &memoryStore{}
	svc, err := NewService(store, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()

	if _, err := svc.Update(ctx, "NOPE", "1", "admin"); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
	if _, err := svc.Update(ctx, KeyHeightDays, "-3", "admin"); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
	if v, err := svc.Update(ctx, "perm_team_member_roles", "55", "admin"); err != nil || v != `["55"]` {
		t.Fatalf("update role list: %q %v", v, err)
	}
	if store.by["PERM_TEAM_MEMBER_ROLES"] != "admin" {
		t.Fatalf("expected canonical key stored with author, got %+v", store.by)
	}
	if _, err := svc.Update(ctx, KeyCategoryRequirements, `{"B": []}`, "admin"); err != nil {
		t.Fatalf("update requirements: %v", err)
	}

	grants, err := svc.RoleGrants(ctx)
	if err != nil {
		t.Fatalf("role grants: %v", err)
	}
	if diff := cmp.Diff([]string{"55"}, grants[auth.CapTeamMember]); diff != "" {
		t.Fatalf("grants mismatch (-want +got):\n%s", diff)
	}
	windows, reqs, err := svc.VerificationPolicy(ctx)
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	if windows[verification.TypeWeightFull] != 180 {
		t.Fatalf("expected default weight window, got %d", windows[verification.TypeWeightFull])
	}
	if got := reqs.Required("B"); len(got) != 0 {
		t.Fatalf("division B should need nothing, got %v", got)
	}

	store.err = errors.New("db down")
	if _, err := svc.Snapshot(ctx); !errors.Is(err, store.err) {
		t.Fatalf("expected store error, got %v", err)
	}
}
