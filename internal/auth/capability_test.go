package auth

import (
	"errors"
	"testing"
)

func TestParseCapability(t *testing.T) {
	c, err := ParseCapability("  Team_Captain ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c != CapTeamCaptain {
		t.Fatalf("unexpected capability %q", c)
	}
	if _, err := ParseCapability("captain"); !errors.Is(err, ErrUnknownCapability) {
		t.Fatalf("expected ErrUnknownCapability, got %v", err)
	}
}

func TestSettingKeyRoundTrip(t *testing.T) {
	for _, c := range Capabilities() {
		got, ok := CapabilityFromSettingKey(c.SettingKey())
		if !ok || got != c {
			t.Fatalf("round trip failed for %s: %q %v", c, got, ok)
		}
	}
	if CapApproveVerification.SettingKey() != "PERM_APPROVE_VERIFICATION_ROLES" {
		t.Fatalf("unexpected key %s", CapApproveVerification.SettingKey())
	}
	for _, key := range []string{"PERM__ROLES", "PERM_NOPE_ROLES", "WEIGHT_FULL_DAYS"} {
		if _, ok := CapabilityFromSettingKey(key); ok {
			t.Fatalf("expected %s to be rejected", key)
		}
	}
}

func TestRegistryCoversEveryCapability(t *testing.T) {
	if len(Registry) != 10 {
		t.Fatalf("expected 10 capabilities, got %d", len(Registry))
	}
	for _, c := range Capabilities() {
		info, ok := c.Info()
		if !ok || info.Name == "" || info.Description == "" {
			t.Fatalf("missing registry metadata for %s", c)
		}
	}
}
