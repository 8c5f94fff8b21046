package httpapi

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"gottabike.org/internal/audit"
	"gottabike.org/internal/auth"
	"gottabike.org/internal/obs"
	"gottabike.org/internal/tasks"
	"gottabike.org/internal/verification"
)

type verificationListResponse struct {
	Records   []verification.Record  `json:"records"`
	Readiness verification.Readiness `json:"readiness"`
}

type raceReadyPayload struct {
	AccountID       string `json:"account_id"`
	DiscordID       string `json:"discord_id,omitempty"`
	RaceReady       bool   `json:"is_race_ready"`
	RaceReadyRoleID string `json:"race_ready_role_id,omitempty"`
}

func (a *API) handleSubmitVerification(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	var req verification.SubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := a.verification.Submit(r.Context(), principal.Account.ID, req)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "verification.submitted", map[string]any{
		"record_id":   rec.ID,
		"verify_type": rec.Type,
	})
	w.Header().Set("Location", "/v1/verification/"+rec.ID)
	writeJSON(w, http.StatusCreated, rec)
}

func (a *API) handleListVerification(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	recs, err := a.verification.List(r.Context(), principal.Account.ID)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	ready, err := a.readinessFor(r.Context(), principal.Account)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	if recs == nil {
		recs = []verification.Record{}
	}
	writeJSON(w, http.StatusOK, verificationListResponse{Records: recs, Readiness: ready})
}

func (a *API) handleReviewVerification(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	var d verification.Decision
	if err := decodeJSON(w, r, &d); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ctx := r.Context()
	rec, err := a.verification.Get(ctx, r.PathValue("id"))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	owner, err := a.accounts.Account(ctx, rec.AccountID)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	before, err := a.readinessFor(ctx, owner)
	if err != nil {
		a.handleError(w, r, err)
		return
	}

	rec, err = a.verification.Review(ctx, principal.Account.ID, rec.ID, d)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	obs.VerificationReviewed(string(rec.Status))
	_ = audit.LogEvent(ctx, "verification.reviewed", map[string]any{
		"record_id":   rec.ID,
		"owner_id":    rec.AccountID,
		"verify_type": rec.Type,
		"status":      rec.Status,
		"reason":      rec.RejectionReason,
	})

	after, err := a.readinessFor(ctx, owner)
	if err != nil {
		a.log.Warn("readiness_recheck_failed", zap.String("account_id", owner.ID), zap.Error(err))
	} else if after.RaceReady != before.RaceReady {
		a.notifyRaceReady(ctx, owner, after.RaceReady, principal.Account.ID)
	}
	writeJSON(w, http.StatusOK, rec)
}

// notifyRaceReady asks the bot worker to reconcile the race ready role.
func (a *API) notifyRaceReady(ctx context.Context, acct auth.Account, ready bool, requestedBy string) {
	payload := raceReadyPayload{AccountID: acct.ID, DiscordID: acct.DiscordID, RaceReady: ready}
	if snap, err := a.settings.Snapshot(ctx); err == nil {
		payload.RaceReadyRoleID = snap.RaceReadyRoleID()
	}
	if _, err := a.enqueue(ctx, tasks.RaceReadyChanged, payload, requestedBy); err != nil {
		a.log.Warn("race_ready_notify_failed", zap.String("account_id", acct.ID), zap.Error(err))
	}
}

func (a *API) enqueue(ctx context.Context, name string, payload any, requestedBy string) (tasks.Task, error) {
	t, err := tasks.New(name, payload, requestedBy, a.now())
	if err != nil {
		return tasks.Task{}, err
	}
	err = a.tasks.Enqueue(ctx, t)
	obs.TaskEnqueued(name, err)
	return t, err
}
