package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"gottabike.org/internal/auth"
	"gottabike.org/internal/guild"
	"gottabike.org/internal/roster"
	"gottabike.org/internal/settings"
	"gottabike.org/internal/tasks"
	"gottabike.org/internal/team"
	"gottabike.org/internal/verification"
)

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// decodeLenient accepts unknown fields; bot payloads carry more than we store.
func decodeLenient(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer reader.Close()
	if err := json.NewDecoder(reader).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	return nil
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

// handleError maps domain errors of every package to a status code.
func (a *API) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, auth.ErrUnknownCapability),
		errors.Is(err, verification.ErrInvalidInput),
		errors.Is(err, roster.ErrInvalidInput),
		errors.Is(err, roster.ErrInvalidRiderID),
		errors.Is(err, guild.ErrInvalidInput),
		errors.Is(err, settings.ErrUnknownKey),
		errors.Is(err, settings.ErrInvalidValue),
		errors.Is(err, tasks.ErrUnknownTask),
		errors.Is(err, team.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, auth.ErrForbidden),
		errors.Is(err, verification.ErrForbidden),
		errors.Is(err, guild.ErrGuildMismatch):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, auth.ErrNotFound),
		errors.Is(err, verification.ErrNotFound),
		errors.Is(err, roster.ErrNotFound),
		errors.Is(err, team.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrConflict),
		errors.Is(err, verification.ErrConflict),
		errors.Is(err, team.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, roster.ErrFilterExpired):
		writeError(w, r, http.StatusGone, err.Error())
	default:
		a.log.Error("request_failed",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
