package audit

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"gottabike.org/internal/auth"
	"gottabike.org/internal/obs"
)

type ctxKey string

const (
	requestIDKey ctxKey = "audit_request_id"
	actorKey     ctxKey = "audit_actor"
)

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithActor names the caller when no account is authenticated, e.g. the
// Discord user behind a bot request.
func WithActor(ctx context.Context, actor string) context.Context {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey, actor)
}

func stringFromContext(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit log entry enriched with request and account context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	return LogEventTo(ctx, obs.Logger(), event, fields)
}

// LogEventTo is LogEvent with an explicit logger.
func LogEventTo(ctx context.Context, log *zap.Logger, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	entry := []zap.Field{
		zap.String("type", "audit"),
		zap.String("event", event),
	}
	if rid := stringFromContext(ctx, requestIDKey); rid != "" {
		entry = append(entry, zap.String("request_id", rid))
	}
	if accountID, ok := auth.AccountIDFromContext(ctx); ok {
		entry = append(entry, zap.String("account_id", accountID))
	}
	if actor := stringFromContext(ctx, actorKey); actor != "" {
		entry = append(entry, zap.String("actor", actor))
	}
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	entry = append(entry, zap.Any("fields", copied))
	log.Info("audit", entry...)
	return nil
}
