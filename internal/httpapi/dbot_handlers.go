package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"gottabike.org/internal/audit"
	"gottabike.org/internal/auth"
	"gottabike.org/internal/guild"
	"gottabike.org/internal/roster"
	"gottabike.org/internal/verification"
)

type syncGuildRolesRequest struct {
	Roles []guild.Role `json:"roles"`
}

type syncUserRolesRequest struct {
	RoleIDs []string `json:"role_ids"`
}

type syncGuildMembersRequest struct {
	Members []guild.Member `json:"members"`
}

type rosterFilterRequest struct {
	DiscordIDs  []string `json:"discord_ids"`
	ChannelName string   `json:"channel_name"`
}

type botProfileResponse struct {
	Zwid            int64                                         `json:"zwid"`
	DiscordUsername string                                        `json:"discord_username"`
	ZwidVerified    bool                                          `json:"zwid_verified"`
	Verification    map[verification.Type]verification.TypeStatus `json:"verification"`
	RaceReady       bool                                          `json:"is_race_ready"`
	RaceReadyRoleID *string                                       `json:"race_ready_role_id"`
	Leaderboard     *roster.LeaderboardProfile                    `json:"zwiftpower"`
	Rating          *roster.RatingProfile                         `json:"zwiftracing"`
}

type teammateHit struct {
	Zwid int64  `json:"zwid"`
	Name string `json:"name"`
	Flag string `json:"flag"`
}

type teammateAccount struct {
	DiscordUsername string `json:"discord_username"`
	DisplayName     string `json:"display_name"`
	ZwidVerified    bool   `json:"zwid_verified"`
}

type teammateProfileResponse struct {
	Zwid         int64                                         `json:"zwid"`
	Account      *teammateAccount                              `json:"account"`
	Verification map[verification.Type]verification.TypeStatus `json:"verification"`
	RaceReady    bool                                          `json:"is_race_ready"`
	Leaderboard  *roster.LeaderboardProfile                    `json:"zwiftpower"`
	Rating       *roster.RatingProfile                         `json:"zwiftracing"`
}

// maxTeammateHits matches Discord's autocomplete limit.
const maxTeammateHits = 25

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (a *API) handleBotConfig(w http.ResponseWriter, r *http.Request) {
	snap, err := a.settings.Snapshot(r.Context())
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"guild_id":            snap.GuildID(),
		"team_member_role_id": optional(snap.TeamMemberRoleID()),
		"race_ready_role_id":  optional(snap.RaceReadyRoleID()),
	})
}

func (a *API) handleSyncGuildRoles(w http.ResponseWriter, r *http.Request) {
	var req syncGuildRolesRequest
	if err := decodeLenient(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	counts, err := a.guild.SyncRoles(r.Context(), req.Roles)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "guild.roles.synced", map[string]any{
		"upserted": counts.Upserted,
		"deleted":  counts.Deleted,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"upserted": counts.Upserted,
		"deleted":  counts.Deleted,
		"total":    len(req.Roles),
	})
}

func (a *API) handleSyncUserRoles(w http.ResponseWriter, r *http.Request) {
	var req syncUserRolesRequest
	if err := decodeLenient(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ctx := r.Context()
	known, err := a.guild.RoleNames(ctx)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	discordID := r.PathValue("discord_id")
	acct, err := a.accounts.SyncUserRoles(ctx, discordID, req.RoleIDs, known)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	ready, err := a.readinessFor(ctx, acct)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	snap, err := a.settings.Snapshot(ctx)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"discord_id":         discordID,
		"roles_synced":       len(acct.DiscordRoles),
		"roles":              acct.DiscordRoles,
		"is_race_ready":      ready.RaceReady,
		"race_ready_role_id": optional(snap.RaceReadyRoleID()),
	})
}

func (a *API) handleSyncGuildMembers(w http.ResponseWriter, r *http.Request) {
	var req syncGuildMembersRequest
	if err := decodeLenient(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	counts, err := a.guild.SyncMembers(r.Context(), req.Members)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "guild.members.synced", map[string]any{
		"received": counts.Received,
		"left":     counts.Left,
	})
	writeJSON(w, http.StatusOK, counts)
}

func (a *API) handleCreateRosterFilter(w http.ResponseWriter, r *http.Request) {
	var req rosterFilterRequest
	if err := decodeLenient(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	createdBy, _ := botUserFromContext(r.Context())
	f, err := a.roster.CreateChannelFilter(r.Context(), req.DiscordIDs, req.ChannelName, createdBy)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"filter_id":          f.ID.String(),
		"url":                a.link("/v1/roster/filters/" + f.ID.String()),
		"expires_in_seconds": int(f.ExpiresAt.Sub(f.CreatedAt).Seconds()),
		"member_count":       len(f.DiscordIDs),
		"channel_name":       f.ChannelName,
	})
}

// handleMagicLink issues a one-time login link for the calling Discord user.
func (a *API) handleMagicLink(w http.ResponseWriter, r *http.Request) {
	discordID, _ := botUserFromContext(r.Context())
	acct, err := a.accounts.AccountByDiscordID(r.Context(), discordID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "no account found for this discord user")
			return
		}
		a.handleError(w, r, err)
		return
	}
	token, err := a.tokens.IssueMagic(acct.ID)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.magic_link.issued", map[string]any{"account": acct.ID})
	writeJSON(w, http.StatusOK, map[string]any{
		"magic_link_url":     a.link("/auth/magic?token=" + url.QueryEscape(token)),
		"expires_in_seconds": int(a.tokens.MagicTTL().Seconds()),
	})
}

func (a *API) enqueueHandler(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestedBy, _ := botUserFromContext(r.Context())
		t, err := a.enqueue(r.Context(), name, nil, "discord:"+requestedBy)
		if err != nil {
			a.handleError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "tasks.enqueued", map[string]any{"task": t.Name, "task_id": t.ID})
		writeJSON(w, http.StatusAccepted, map[string]any{
			"status":  "queued",
			"task":    t.Name,
			"task_id": t.ID,
		})
	}
}

// handleMyProfile combines the leaderboard and rating profiles of the caller.
func (a *API) handleMyProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	discordID, _ := botUserFromContext(ctx)
	acct, err := a.accounts.AccountByDiscordID(ctx, discordID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "no account found for this discord user")
			return
		}
		a.handleError(w, r, err)
		return
	}
	if acct.Zwid <= 0 {
		writeError(w, r, http.StatusNotFound, "zwift id not linked")
		return
	}
	row, err := a.roster.Rider(ctx, acct.ZwidString())
	if err != nil && !errors.Is(err, roster.ErrNotFound) {
		a.handleError(w, r, err)
		return
	}
	if row.Leaderboard == nil && row.Rating == nil {
		writeError(w, r, http.StatusNotFound, fmt.Sprintf("no profile data found for zwift id %d", acct.Zwid))
		return
	}
	ready, err := a.verification.Readiness(ctx, acct.ID, row.Division())
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	snap, err := a.settings.Snapshot(ctx)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, botProfileResponse{
		Zwid:            acct.Zwid,
		DiscordUsername: acct.DiscordUsername,
		ZwidVerified:    acct.ZwidVerified,
		Verification:    ready.Types,
		RaceReady:       ready.RaceReady,
		RaceReadyRoleID: optional(snap.RaceReadyRoleID()),
		Leaderboard:     row.Leaderboard,
		Rating:          row.Rating,
	})
}

// handleSearchTeammates backs the bot's name autocomplete. Only current
// leaderboard riders match and queries shorter than two characters match nothing.
func (a *API) handleSearchTeammates(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	hits := []teammateHit{}
	if len([]rune(q)) < 2 {
		writeJSON(w, http.StatusOK, map[string]any{"results": hits})
		return
	}
	view, err := a.roster.Roster(r.Context(), roster.Query{
		Filter: roster.Filter{Query: q, HideLeft: true},
		Sort:   roster.SortName,
	})
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	for _, row := range view.Rows {
		if row.Leaderboard == nil || row.Leaderboard.DateLeft != nil {
			continue
		}
		hits = append(hits, teammateHit{Zwid: row.RiderID, Name: row.Leaderboard.Name, Flag: row.Leaderboard.Flag})
		if len(hits) == maxTeammateHits {
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": hits})
}

// handleTeammateProfile combines everything known about a rider by Zwift id.
func (a *API) handleTeammateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	row, err := a.roster.Rider(ctx, r.PathValue("zwid"))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	resp := teammateProfileResponse{
		Zwid:        row.RiderID,
		Leaderboard: row.Leaderboard,
		Rating:      row.Rating,
	}
	if acct := row.Account; acct != nil {
		resp.Account = &teammateAccount{
			DiscordUsername: acct.DiscordUsername,
			DisplayName:     row.DisplayName(),
			ZwidVerified:    acct.ZwidVerified,
		}
		ready, err := a.verification.Readiness(ctx, acct.AccountID, row.Division())
		if err != nil {
			a.handleError(w, r, err)
			return
		}
		resp.Verification = ready.Types
		resp.RaceReady = ready.RaceReady
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleZwiftPowerProfile(w http.ResponseWriter, r *http.Request) {
	row, err := a.roster.Rider(r.Context(), r.PathValue("zwid"))
	if err != nil && !errors.Is(err, roster.ErrNotFound) {
		a.handleError(w, r, err)
		return
	}
	if row.Leaderboard == nil {
		writeError(w, r, http.StatusNotFound, "no zwiftpower profile for zwift id "+r.PathValue("zwid"))
		return
	}
	writeJSON(w, http.StatusOK, row.Leaderboard)
}

func (a *API) link(path string) string {
	return strings.TrimRight(a.publicURL, "/") + path
}
