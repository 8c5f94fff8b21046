package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultIssuer    = "gottabike"
	defaultAccessTTL = 12 * time.Hour
	defaultMagicTTL  = 5 * time.Minute

	TokenTypeAccess = "access"
	TokenTypeMagic  = "magic"
)

// ErrInvalidToken indicates the token failed validation.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the JWT claims issued by the service. Subject is the account id.
type Claims struct {
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 tokens.
type TokenIssuer struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
	magicTTL  time.Duration
	now       func() time.Time
}

// TokenOption configures a TokenIssuer.
type TokenOption func(*TokenIssuer)

// WithAccessTTL overrides the access token lifetime.
func WithAccessTTL(d time.Duration) TokenOption {
	return func(t *TokenIssuer) {
		if d > 0 {
			t.accessTTL = d
		}
	}
}

// WithMagicTTL overrides the magic link lifetime.
func WithMagicTTL(d time.Duration) TokenOption {
	return func(t *TokenIssuer) {
		if d > 0 {
			t.magicTTL = d
		}
	}
}

// WithTokenClock overrides the clock used for issuing and validating.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(t *TokenIssuer) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTokenIssuer requires a non-empty secret.
func NewTokenIssuer(secret string, opts ...TokenOption) (*TokenIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth secret is not configured")
	}
	t := &TokenIssuer{
		secret:    []byte(secret),
		issuer:    defaultIssuer,
		accessTTL: defaultAccessTTL,
		magicTTL:  defaultMagicTTL,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// AccessTTL returns the configured access token lifetime.
func (t *TokenIssuer) AccessTTL() time.Duration { return t.accessTTL }

// MagicTTL returns the configured magic link lifetime.
func (t *TokenIssuer) MagicTTL() time.Duration { return t.magicTTL }

// IssueAccess signs a session token for accountID.
func (t *TokenIssuer) IssueAccess(accountID string) (string, error) {
	return t.issue(accountID, TokenTypeAccess, t.accessTTL)
}

// IssueMagic signs a short-lived login link token for accountID.
func (t *TokenIssuer) IssueMagic(accountID string) (string, error) {
	return t.issue(accountID, TokenTypeMagic, t.magicTTL)
}

func (t *TokenIssuer) issue(accountID, typ string, ttl time.Duration) (string, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return "", errors.New("account id is required")
	}
	now := t.now()
	claims := Claims{
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature, issuer, expiry and token type.
func (t *TokenIssuer) Parse(token, wantType string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return t.secret, nil
	},
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.TokenType != wantType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
