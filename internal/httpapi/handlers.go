// Package httpapi exposes the team platform over JSON/HTTP.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"gottabike.org/internal/auth"
	"gottabike.org/internal/guild"
	"gottabike.org/internal/obs"
	"gottabike.org/internal/roster"
	"gottabike.org/internal/settings"
	"gottabike.org/internal/tasks"
	"gottabike.org/internal/team"
	"gottabike.org/internal/verification"
)

const maxBodyBytes = 4 << 20

// ReadyProbe reports whether storage is reachable.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Services are the domain services behind the API.
type Services struct {
	Accounts     *auth.Service
	Tokens       *auth.TokenIssuer
	Verification *verification.Service
	Roster       *roster.Service
	Guild        *guild.Service
	Settings     *settings.Service
	Team         *team.Service
	Tasks        tasks.Publisher
}

// API is the HTTP layer.
type API struct {
	mux          *http.ServeMux
	readyProbe   ReadyProbe
	version      string
	log          *zap.Logger
	accounts     *auth.Service
	tokens       *auth.TokenIssuer
	magicSpent   *auth.ReplayGuard
	verification *verification.Service
	roster       *roster.Service
	guild        *guild.Service
	settings     *settings.Service
	team         *team.Service
	tasks        tasks.Publisher
	botKey       string
	publicURL    string
	corsOrigins  []string
	rateBurst    int
	ratePerSec   float64
	now          func() time.Time
}

type Option func(*API)

func WithLogger(l *zap.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.log = l
		}
	}
}

// WithBotAPIKey enables the /v1/dbot endpoints.
func WithBotAPIKey(key string) Option {
	return func(a *API) { a.botKey = key }
}

// WithPublicURL is the base used for links handed to the bot.
func WithPublicURL(u string) Option {
	return func(a *API) { a.publicURL = u }
}

func WithCORSOrigins(origins []string) Option {
	return func(a *API) { a.corsOrigins = origins }
}

func WithRateLimit(burst int, perSecond float64) Option {
	return func(a *API) {
		a.rateBurst = burst
		a.ratePerSec = perSecond
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *API) {
		if now != nil {
			a.now = now
		}
	}
}

func New(rp ReadyProbe, version string, svc Services, opts ...Option) (*API, error) {
	switch {
	case svc.Accounts == nil, svc.Tokens == nil:
		return nil, errors.New("httpapi: accounts and tokens are required")
	case svc.Verification == nil, svc.Roster == nil:
		return nil, errors.New("httpapi: verification and roster are required")
	case svc.Guild == nil, svc.Settings == nil:
		return nil, errors.New("httpapi: guild and settings are required")
	case svc.Team == nil:
		return nil, errors.New("httpapi: team is required")
	}
	a := &API{
		mux:          http.NewServeMux(),
		readyProbe:   rp,
		version:      version,
		log:          obs.Logger(),
		accounts:     svc.Accounts,
		tokens:       svc.Tokens,
		verification: svc.Verification,
		roster:       svc.Roster,
		guild:        svc.Guild,
		settings:     svc.Settings,
		team:         svc.Team,
		tasks:        svc.Tasks,
		publicURL:    "http://localhost:8080",
		rateBurst:    20,
		ratePerSec:   10,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.tasks == nil {
		a.tasks = tasks.NewLogPublisher(a.log)
	}
	a.magicSpent = auth.NewReplayGuard(a.now)
	a.routes()
	return a, nil
}

func (a *API) routes() {
	// health/ready/info
	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.HandleFunc("GET /v1/info", a.Info)
	a.mux.Handle("GET /metrics", obs.Handler())

	a.mux.HandleFunc("POST /v1/auth/token", a.handleAuthToken)
	a.mux.HandleFunc("POST /v1/auth/magic", a.handleMagicExchange)
	a.mux.HandleFunc("GET /v1/roster/filters/{id}", a.handleChannelRoster)
	a.mux.HandleFunc("GET /v1/applications/{id}", a.handlePublicApplication)
	a.mux.HandleFunc("PUT /v1/applications/{id}/applicant", a.handleUpdateApplicant)

	a.mux.Handle("GET /v1/me", a.authed("", a.handleMe))
	a.mux.Handle("GET /v1/roster", a.authed(auth.CapTeamMember, a.handleRoster))
	a.mux.Handle("GET /v1/roster/riders/{zwid}", a.authed(auth.CapTeamMember, a.handleRider))
	a.mux.Handle("POST /v1/verification", a.authed(auth.CapTeamMember, a.handleSubmitVerification))
	a.mux.Handle("GET /v1/verification", a.authed("", a.handleListVerification))
	a.mux.Handle("POST /v1/verification/{id}/review", a.authed(auth.CapApproveVerification, a.handleReviewVerification))
	a.mux.Handle("PUT /v1/accounts/{id}/overrides", a.authed(auth.CapAppAdmin, a.handleSetOverride))
	a.mux.Handle("PUT /v1/accounts/{id}/roles", a.authed(auth.CapAppAdmin, a.handleSetRoles))
	a.mux.Handle("GET /v1/capabilities", a.authed(auth.CapAppAdmin, a.handleCapabilities))
	a.mux.Handle("GET /v1/settings", a.authed(auth.CapAppAdmin, a.handleListSettings))
	a.mux.Handle("PUT /v1/settings/{key}", a.authed(auth.CapAppAdmin, a.handleUpdateSetting))
	a.mux.Handle("POST /v1/sync/leaderboard", a.authed(auth.CapRacingAdmin, a.handleSyncLeaderboard))
	a.mux.Handle("POST /v1/sync/ratings", a.authed(auth.CapRacingAdmin, a.handleSyncRatings))
	a.mux.Handle("POST /v1/sync/results", a.authed(auth.CapRacingAdmin, a.handleSyncResults))
	a.mux.Handle("GET /v1/applications", a.authed(auth.CapMembershipAdmin, a.handleListApplications))
	a.mux.Handle("PUT /v1/applications/{id}", a.authed(auth.CapMembershipAdmin, a.handleReviewApplication))
	a.mux.Handle("GET /v1/links", a.authed(auth.CapTeamMember, a.handleLinks))
	a.mux.Handle("POST /v1/links", a.authed(auth.CapLinkAdmin, a.handleCreateLink))
	a.mux.Handle("PUT /v1/links/{id}", a.authed(auth.CapLinkAdmin, a.handleUpdateLink))
	a.mux.Handle("DELETE /v1/links/{id}", a.authed(auth.CapLinkAdmin, a.handleDeleteLink))

	a.mux.Handle("GET /v1/dbot/bot_config", a.bot(a.handleBotConfig))
	a.mux.Handle("POST /v1/dbot/sync_guild_roles", a.bot(a.handleSyncGuildRoles))
	a.mux.Handle("POST /v1/dbot/sync_user_roles/{discord_id}", a.bot(a.handleSyncUserRoles))
	a.mux.Handle("POST /v1/dbot/sync_guild_members", a.bot(a.handleSyncGuildMembers))
	a.mux.Handle("POST /v1/dbot/roster_filter", a.bot(a.handleCreateRosterFilter))
	a.mux.Handle("POST /v1/dbot/magic_link", a.bot(a.handleMagicLink))
	a.mux.Handle("POST /v1/dbot/update_zp_team", a.bot(a.enqueueHandler(tasks.UpdateTeamRiders)))
	a.mux.Handle("POST /v1/dbot/update_zp_results", a.bot(a.enqueueHandler(tasks.UpdateTeamResults)))
	a.mux.Handle("POST /v1/dbot/update_zr_riders", a.bot(a.enqueueHandler(tasks.SyncRatingRiders)))
	a.mux.Handle("GET /v1/dbot/my_profile", a.bot(a.handleMyProfile))
	a.mux.Handle("POST /v1/dbot/membership_application", a.bot(a.handleCreateApplication))
	a.mux.Handle("GET /v1/dbot/membership_application/{discord_id}", a.bot(a.handleBotApplication))
	a.mux.Handle("GET /v1/dbot/search_teammates", a.bot(a.handleSearchTeammates))
	a.mux.Handle("GET /v1/dbot/teammate_profile/{zwid}", a.bot(a.handleTeammateProfile))
	a.mux.Handle("GET /v1/dbot/zwiftpower_profile/{zwid}", a.bot(a.handleZwiftPowerProfile))
}

// Handler wraps the mux with the middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, maxBodyBytes)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(a.corsOrigins)(h)
	h = SecurityHeaders(h)
	h = obs.Instrument(h)
	h = LoggingJSON(h)
	return RequestID(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "gottabike-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "gottabike-api",
		"time":    a.now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
