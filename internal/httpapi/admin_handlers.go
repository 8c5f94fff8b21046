package httpapi

import (
	"net/http"
	"strings"

	"gottabike.org/internal/audit"
	"gottabike.org/internal/auth"
	"gottabike.org/internal/settings"
)

// setOverrideRequest with a null value clears the override.
type setOverrideRequest struct {
	Capability string `json:"capability"`
	Value      *bool  `json:"value"`
}

type setRolesRequest struct {
	Roles []string `json:"roles"`
}

type updateSettingRequest struct {
	Value string `json:"value"`
}

type capabilityView struct {
	auth.CapabilityInfo
	SettingKey string   `json:"setting_key"`
	RoleIDs    []string `json:"role_ids"`
}

type settingView struct {
	settings.Definition
	Value string `json:"value"`
}

func (a *API) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	var req setOverrideRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	c, err := auth.ParseCapability(req.Capability)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	acct, err := a.accounts.SetOverride(r.Context(), r.PathValue("id"), c, req.Value)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	fields := map[string]any{"account": acct.ID, "capability": c, "value": nil}
	if req.Value != nil {
		fields["value"] = *req.Value
	}
	_ = audit.LogEvent(r.Context(), "accounts.override.set", fields)
	writeJSON(w, http.StatusOK, acct)
}

func (a *API) handleSetRoles(w http.ResponseWriter, r *http.Request) {
	var req setRolesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	acct, err := a.accounts.SetRoles(r.Context(), r.PathValue("id"), req.Roles)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "accounts.roles.set", map[string]any{
		"account": acct.ID,
		"roles":   acct.Roles,
	})
	writeJSON(w, http.StatusOK, acct)
}

func (a *API) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	snap, err := a.settings.Snapshot(r.Context())
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	grants := snap.RoleGrants()
	out := make([]capabilityView, 0, len(auth.Registry))
	for _, info := range auth.Registry {
		ids := grants[info.Capability]
		if ids == nil {
			ids = []string{}
		}
		out = append(out, capabilityView{
			CapabilityInfo: info,
			SettingKey:     info.Capability.SettingKey(),
			RoleIDs:        ids,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"capabilities": out})
}

func (a *API) handleListSettings(w http.ResponseWriter, r *http.Request) {
	snap, err := a.settings.Snapshot(r.Context())
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	defs := settings.Definitions()
	out := make([]settingView, 0, len(defs))
	for _, d := range defs {
		v, _ := snap.Get(d.Key)
		out = append(out, settingView{Definition: d, Value: v})
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": out})
}

func (a *API) handleUpdateSetting(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	var req updateSettingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	key := strings.ToUpper(strings.TrimSpace(r.PathValue("key")))
	value, err := a.settings.Update(r.Context(), key, req.Value, principal.Account.ID)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "settings.updated", map[string]any{
		"key":   key,
		"value": value,
	})
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": value})
}
