package httpapi

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"gottabike.org/internal/audit"
	"gottabike.org/internal/auth"
	"gottabike.org/internal/tasks"
	"gottabike.org/internal/team"
)

type applicationResponse struct {
	team.Application
	StatusDisplay  string `json:"status_display"`
	ApplicationURL string `json:"application_url"`
	Complete       bool   `json:"is_complete"`
	Editable       bool   `json:"is_editable"`
	AlreadyExists  *bool  `json:"already_exists,omitempty"`
}

type applicationUpdatePayload struct {
	ApplicationID  string `json:"application_id"`
	DiscordID      string `json:"discord_id"`
	UpdateType     string `json:"update_type"`
	OldStatus      string `json:"old_status,omitempty"`
	NewStatus      string `json:"new_status,omitempty"`
	ApplicationURL string `json:"application_url"`
}

type linksResponse struct {
	Links []team.Link `json:"links"`
}

func (a *API) applicationView(app team.Application) applicationResponse {
	return applicationResponse{
		Application:    app,
		StatusDisplay:  app.Status.Label(),
		ApplicationURL: a.link("/v1/applications/" + app.ID.String()),
		Complete:       app.Complete(),
		Editable:       app.Editable(),
	}
}

// handleCreateApplication opens a membership application from the bot's join
// form. Repeated submits return the stored application.
func (a *API) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	var req team.ApplicationRequest
	if err := decodeLenient(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	app, created, err := a.team.Apply(r.Context(), req)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
		_ = audit.LogEvent(r.Context(), "membership.application.created", map[string]any{
			"application_id": app.ID.String(),
			"discord_id":     app.DiscordID,
		})
	}
	view := a.applicationView(app)
	exists := !created
	view.AlreadyExists = &exists
	writeJSON(w, status, view)
}

func (a *API) handleBotApplication(w http.ResponseWriter, r *http.Request) {
	app, err := a.team.ApplicationFor(r.Context(), r.PathValue("discord_id"))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.applicationView(app))
}

// publicApplicationView is what the applicant sees through their link.
func (a *API) publicApplicationView(app team.Application) applicationResponse {
	app.AdminNotes = ""
	app.ModifiedBy = ""
	app.DiscordUserData = nil
	app.DiscordMemberData = nil
	return a.applicationView(app)
}

// handlePublicApplication serves the applicant's link. The application id is
// the only credential.
func (a *API) handlePublicApplication(w http.ResponseWriter, r *http.Request) {
	app, err := a.team.Application(r.Context(), r.PathValue("id"))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.publicApplicationView(app))
}

func (a *API) handleUpdateApplicant(w http.ResponseWriter, r *http.Request) {
	var upd team.ApplicantUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ctx := r.Context()
	app, err := a.team.UpdateApplicant(ctx, r.PathValue("id"), upd)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	payload := applicationUpdatePayload{
		ApplicationID:  app.ID.String(),
		DiscordID:      app.DiscordID,
		UpdateType:     "applicant_updated",
		ApplicationURL: a.link("/v1/applications/" + app.ID.String()),
	}
	if _, err := a.enqueue(ctx, tasks.ApplicationUpdated, payload, "discord:"+app.DiscordID); err != nil {
		a.log.Warn("application_notify_failed", zap.String("application_id", payload.ApplicationID), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, a.publicApplicationView(app))
}

func (a *API) handleListApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := a.team.Applications(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	out := make([]applicationResponse, 0, len(apps))
	for _, app := range apps {
		out = append(out, a.applicationView(app))
	}
	writeJSON(w, http.StatusOK, map[string]any{"applications": out})
}

func (a *API) handleReviewApplication(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	var rev team.ApplicationReview
	if err := decodeJSON(w, r, &rev); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ctx := r.Context()
	before, err := a.team.Application(ctx, r.PathValue("id"))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	app, changed, err := a.team.ReviewApplication(ctx, before.ID.String(), rev, principal.Account.ID)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(ctx, "membership.application.reviewed", map[string]any{
		"application_id": app.ID.String(),
		"old_status":     before.Status,
		"new_status":     app.Status,
	})
	payload := applicationUpdatePayload{
		ApplicationID:  app.ID.String(),
		DiscordID:      app.DiscordID,
		ApplicationURL: a.link("/v1/applications/" + app.ID.String()),
	}
	switch {
	case changed:
		payload.UpdateType = "status_changed"
		payload.OldStatus = string(before.Status)
		payload.NewStatus = string(app.Status)
	case before.AdminNotes != app.AdminNotes:
		payload.UpdateType = "admin_notes"
	}
	if payload.UpdateType != "" {
		if _, err := a.enqueue(ctx, tasks.ApplicationUpdated, payload, principal.Account.ID); err != nil {
			a.log.Warn("application_notify_failed", zap.String("application_id", payload.ApplicationID), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, a.applicationView(app))
}

// handleLinks lists links visible now. Link admins may pass all=true to
// include hidden and scheduled links.
func (a *API) handleLinks(w http.ResponseWriter, r *http.Request) {
	all := false
	if raw := r.URL.Query().Get("all"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "all must be a boolean")
			return
		}
		all = b
	}
	if all && !a.ensurePermission(w, r, auth.CapLinkAdmin) {
		return
	}
	links, err := a.team.Links(r.Context(), r.URL.Query().Get("type"), all)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, linksResponse{Links: links})
}

func (a *API) handleCreateLink(w http.ResponseWriter, r *http.Request) {
	var req team.LinkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	l, err := a.team.CreateLink(r.Context(), req)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "team.link.created", map[string]any{"link_id": l.ID, "title": l.Title})
	writeJSON(w, http.StatusCreated, l)
}

func (a *API) handleUpdateLink(w http.ResponseWriter, r *http.Request) {
	var req team.LinkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	l, err := a.team.UpdateLink(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "team.link.updated", map[string]any{"link_id": l.ID, "active": l.Active})
	writeJSON(w, http.StatusOK, l)
}

func (a *API) handleDeleteLink(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.team.DeleteLink(r.Context(), id); err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "team.link.deleted", map[string]any{"link_id": id})
	w.WriteHeader(http.StatusNoContent)
}
