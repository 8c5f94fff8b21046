package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"gottabike.org/internal/audit"
	"gottabike.org/internal/auth"
	"gottabike.org/internal/obs"
)

const (
	authHeader     = "Authorization"
	bearer         = "Bearer "
	botKeyHeader   = "X-API-Key"
	botGuildHeader = "X-Guild-Id"
	botUserHeader  = "X-Discord-User-Id"
)

type botUserKey struct{}

func botUserFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(botUserKey{}).(string)
	return id, ok && id != ""
}

// authed authenticates the bearer token and, when c is set, requires the
// capability.
func (a *API) authed(c auth.Capability, next http.HandlerFunc) http.Handler {
	return a.withAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c != "" && !a.ensurePermission(w, r, c) {
			return
		}
		next(w, r)
	}))
}

func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="gottabike"`)
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}
		claims, err := a.tokens.Parse(token, auth.TokenTypeAccess)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="gottabike", error="invalid_token"`)
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}
		principal, err := a.accounts.Principal(r.Context(), claims.Subject)
		if err != nil {
			if errors.Is(err, auth.ErrNotFound) {
				writeError(w, r, http.StatusUnauthorized, "account no longer exists")
				return
			}
			a.handleError(w, r, err)
			return
		}

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithToken(ctx, token)
		ctx = audit.WithActor(ctx, "account:"+principal.Account.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ensurePermission writes 403 and returns false when the caller lacks c.
func (a *API) ensurePermission(w http.ResponseWriter, r *http.Request, c auth.Capability) bool {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return false
	}
	granted := principal.HasPermission(c)
	obs.PermissionCheck(string(c), granted)
	if !granted {
		writeError(w, r, http.StatusForbidden, "missing capability "+string(c))
		return false
	}
	return true
}

// bot authenticates the Discord bot by shared key and guild id. The calling
// Discord user is taken from X-Discord-User-Id.
func (a *API) bot(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.botKey == "" {
			writeError(w, r, http.StatusServiceUnavailable, "bot api disabled")
			return
		}
		key := r.Header.Get(botKeyHeader)
		if subtle.ConstantTimeCompare([]byte(key), []byte(a.botKey)) != 1 {
			writeError(w, r, http.StatusUnauthorized, "invalid api key")
			return
		}
		snap, err := a.settings.Snapshot(r.Context())
		if err != nil {
			a.handleError(w, r, err)
			return
		}
		guildID := strings.TrimSpace(r.Header.Get(botGuildHeader))
		if snap.GuildID() == "" || guildID != snap.GuildID() {
			writeError(w, r, http.StatusForbidden, "guild id mismatch")
			return
		}
		userID := strings.TrimSpace(r.Header.Get(botUserHeader))
		if !auth.IsSnowflake(userID) {
			writeError(w, r, http.StatusBadRequest, botUserHeader+" must be a discord id")
			return
		}
		ctx := context.WithValue(r.Context(), botUserKey{}, userID)
		ctx = audit.WithActor(ctx, "discord:"+userID)
		next(w, r.WithContext(ctx))
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
