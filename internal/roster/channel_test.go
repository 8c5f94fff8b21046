package roster

import (
	"errors"
	"testing"
	"time"
)

func TestNewChannelFilter(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f, err := NewChannelFilter([]string{"1", " 2 ", "1", ""}, "race-chat", "9", now, 0)
	if err != nil {
		t.Fatalf("new filter: %v", err)
	}
	if len(f.DiscordIDs) != 2 {
		t.Fatalf("expected deduplicated ids, got %v", f.DiscordIDs)
	}
	if !f.ExpiresAt.Equal(now.Add(DefaultFilterTTL)) {
		t.Fatalf("unexpected expiry %v", f.ExpiresAt)
	}
	if f.Expired(now.Add(DefaultFilterTTL)) {
		t.Fatalf("filter should still be valid at its expiry instant")
	}
	if !f.Expired(now.Add(DefaultFilterTTL + time.Second)) {
		t.Fatalf("filter should be expired after ttl")
	}
	if _, ok := f.Filter().DiscordIDs["2"]; !ok {
		t.Fatalf("roster filter missing id 2")
	}

	if _, err := NewChannelFilter([]string{" "}, "x", "9", now, time.Minute); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
