package httpapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"gottabike.org/internal/audit"
	"gottabike.org/internal/roster"
)

type syncLeaderboardRequest struct {
	Profiles []roster.LeaderboardProfile `json:"profiles"`
	Full     bool                        `json:"full"`
}

type syncRatingsRequest struct {
	Profiles []roster.RatingProfile `json:"profiles"`
	Full     bool                   `json:"full"`
}

type syncResultsRequest struct {
	Results []roster.RaceResult `json:"results"`
}

type channelRosterResponse struct {
	Filter roster.ChannelFilter `json:"filter"`
	roster.View
}

// parseRosterQuery reads filter and sort parameters:
// q, division, category, gender, race_ready, hide_left, sort, order.
func parseRosterQuery(v url.Values, defSort roster.SortKey) (roster.Query, error) {
	var q roster.Query
	q.Filter.Query = strings.TrimSpace(v.Get("q"))
	if raw := strings.TrimSpace(v.Get("division")); raw != "" {
		div, err := strconv.Atoi(raw)
		if err != nil || div < 0 {
			return q, fmt.Errorf("%w: division must be a non-negative integer", roster.ErrInvalidInput)
		}
		q.Filter.Division = div
	}
	q.Filter.RatingCat = strings.TrimSpace(v.Get("category"))
	q.Filter.Gender = strings.ToUpper(strings.TrimSpace(v.Get("gender")))
	if raw := strings.TrimSpace(v.Get("race_ready")); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return q, fmt.Errorf("%w: race_ready must be a boolean", roster.ErrInvalidInput)
		}
		q.Filter.RaceReady = &b
	}
	if raw := strings.TrimSpace(v.Get("hide_left")); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return q, fmt.Errorf("%w: hide_left must be a boolean", roster.ErrInvalidInput)
		}
		q.Filter.HideLeft = b
	}
	key, err := roster.ParseSortKey(v.Get("sort"), defSort)
	if err != nil {
		return q, err
	}
	q.Sort = key
	switch strings.ToLower(strings.TrimSpace(v.Get("order"))) {
	case "", "asc":
	case "desc":
		q.Desc = true
	default:
		return q, fmt.Errorf("%w: order must be asc or desc", roster.ErrInvalidInput)
	}
	if key == roster.SortResults && v.Get("order") == "" {
		q.Desc = true
	}
	return q, nil
}

func (a *API) handleRoster(w http.ResponseWriter, r *http.Request) {
	q, err := parseRosterQuery(r.URL.Query(), roster.SortResults)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	view, err := a.roster.Roster(r.Context(), q)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleRider(w http.ResponseWriter, r *http.Request) {
	row, err := a.roster.Rider(r.Context(), r.PathValue("zwid"))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// handleChannelRoster serves a bot-created channel link. The filter id is the
// only credential, so it expires quickly.
func (a *API) handleChannelRoster(w http.ResponseWriter, r *http.Request) {
	q, err := parseRosterQuery(r.URL.Query(), roster.SortName)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	view, f, err := a.roster.ChannelRoster(r.Context(), r.PathValue("id"), q)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, channelRosterResponse{Filter: f, View: view})
}

func (a *API) handleSyncLeaderboard(w http.ResponseWriter, r *http.Request) {
	var req syncLeaderboardRequest
	if err := decodeLenient(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rep, err := a.roster.IngestLeaderboard(r.Context(), req.Profiles, req.Full)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	a.auditIngest(r, rep, req.Full)
	writeJSON(w, http.StatusOK, rep)
}

func (a *API) handleSyncRatings(w http.ResponseWriter, r *http.Request) {
	var req syncRatingsRequest
	if err := decodeLenient(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rep, err := a.roster.IngestRatings(r.Context(), req.Profiles, req.Full)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	a.auditIngest(r, rep, req.Full)
	writeJSON(w, http.StatusOK, rep)
}

func (a *API) handleSyncResults(w http.ResponseWriter, r *http.Request) {
	var req syncResultsRequest
	if err := decodeLenient(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rep, err := a.roster.IngestResults(r.Context(), req.Results)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	a.auditIngest(r, rep, false)
	writeJSON(w, http.StatusOK, rep)
}

func (a *API) auditIngest(r *http.Request, rep roster.IngestReport, full bool) {
	_ = audit.LogEvent(r.Context(), "roster.sync", map[string]any{
		"source":    rep.Source,
		"full":      full,
		"received":  rep.Received,
		"stored":    rep.Stored,
		"left":      rep.Left,
		"anomalies": len(rep.Anomalies),
	})
}
