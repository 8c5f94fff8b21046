package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"gottabike.org/internal/audit"
	"gottabike.org/internal/auth"
	"gottabike.org/internal/roster"
	"gottabike.org/internal/verification"
)

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type magicRequest struct {
	Token string `json:"token"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	AccountID string    `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type meResponse struct {
	Account      auth.Account      `json:"account"`
	Capabilities []auth.Capability `json:"capabilities"`
	verification.Readiness
}

func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "username and password are required")
		return
	}
	acct, err := a.accounts.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			_ = audit.LogEvent(r.Context(), "auth.token.denied", map[string]any{"username": req.Username})
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		a.handleError(w, r, err)
		return
	}
	a.issueSession(w, r, acct, "password")
}

// handleMagicExchange trades a one-time bot link token for a session.
func (a *API) handleMagicExchange(w http.ResponseWriter, r *http.Request) {
	var req magicRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	claims, err := a.tokens.Parse(req.Token, auth.TokenTypeMagic)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid or expired link")
		return
	}
	if claims.ExpiresAt == nil || !a.magicSpent.Redeem(claims.ID, claims.ExpiresAt.Time) {
		writeError(w, r, http.StatusUnauthorized, "link already used")
		return
	}
	acct, err := a.accounts.Account(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, r, http.StatusUnauthorized, "invalid or expired link")
			return
		}
		a.handleError(w, r, err)
		return
	}
	a.issueSession(w, r, acct, "magic_link")
}

func (a *API) issueSession(w http.ResponseWriter, r *http.Request, acct auth.Account, method string) {
	token, err := a.tokens.IssueAccess(acct.ID)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	expiresAt := a.now().UTC().Add(a.tokens.AccessTTL())
	ctx := audit.WithActor(r.Context(), "account:"+acct.ID)
	_ = audit.LogEvent(ctx, "auth.token.issued", map[string]any{
		"method":     method,
		"expires_at": expiresAt.Format(time.RFC3339),
	})
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		AccountID: acct.ID,
		ExpiresAt: expiresAt,
	})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	ready, err := a.readinessFor(r.Context(), principal.Account)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		Account:      principal.Account,
		Capabilities: principal.List(),
		Readiness:    ready,
	})
}

// readinessFor evaluates acct against the division of its roster row. Accounts
// without a rider id are evaluated against the default requirements.
func (a *API) readinessFor(ctx context.Context, acct auth.Account) (verification.Readiness, error) {
	division := ""
	if zwid := acct.ZwidString(); zwid != "" {
		row, err := a.roster.Rider(ctx, zwid)
		switch {
		case err == nil:
			division = row.Division()
		case !errors.Is(err, roster.ErrNotFound):
			return verification.Readiness{}, err
		}
	}
	return a.verification.Readiness(ctx, acct.ID, division)
}
