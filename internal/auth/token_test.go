package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer("test-secret")
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	token, err := issuer.IssueAccess("acct-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := issuer.Parse(token, TokenTypeAccess)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "acct-1" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if _, err := issuer.Parse(token, TokenTypeMagic); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access token accepted as magic link: %v", err)
	}
}

func TestTokenIssuerRejectsExpiredAndForeign(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	issuer, _ := NewTokenIssuer("secret-a", WithTokenClock(clock), WithMagicTTL(time.Minute))
	token, err := issuer.IssueMagic("acct-2")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := issuer.Parse(token, TokenTypeMagic); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}

	other, _ := NewTokenIssuer("secret-b", WithTokenClock(clock))
	fresh, _ := other.IssueMagic("acct-2")
	if _, err := issuer.Parse(fresh, TokenTypeMagic); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected foreign signature to fail, got %v", err)
	}
}

func TestNewTokenIssuerRequiresSecret(t *testing.T) {
	if _, err := NewTokenIssuer("   "); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestReplayGuardRedeemsOnce(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	g := NewReplayGuard(func() time.Time { return now })
	exp := now.Add(5 * time.Minute)
	if !g.Redeem("jti-1", exp) {
		t.Fatalf("first redeem should succeed")
	}
	if g.Redeem("jti-1", exp) {
		t.Fatalf("second redeem should fail")
	}
	now = now.Add(10 * time.Minute)
	if !g.Redeem("jti-1", now.Add(time.Minute)) {
		t.Fatalf("expired entries should be forgotten")
	}
}
