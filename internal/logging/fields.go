package logging

import (
	"context"
	"log/slog"
)

// Structured field keys shared by every ignite component.
const (
	FieldComponent = "component"
	FieldStep      = "step"
	FieldAttemptID = "attempt_id"
	FieldTrigger   = "trigger"
	FieldSessionID = "session_id"
	// FieldEventType names the event for machine consumers.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to do next.
	FieldErrorHint = "error_hint"
	// FieldImpact states what the failure costs the user.
	FieldImpact = "impact"
)

type contextKey string

// attemptKeys lists the context-carried fields in output order.
var attemptKeys = [...]contextKey{FieldStep, FieldAttemptID, FieldTrigger}

// WithStep tags ctx with the bootstrap step being run.
func WithStep(ctx context.Context, step string) context.Context {
	return withField(ctx, FieldStep, step)
}

// WithAttemptID tags ctx with the attempt it belongs to.
func WithAttemptID(ctx context.Context, id string) context.Context {
	return withField(ctx, FieldAttemptID, id)
}

// WithTrigger tags ctx with what started the attempt (initialize, retry,
// force).
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return withField(ctx, FieldTrigger, trigger)
}

// TriggerFromContext returns the trigger set by WithTrigger.
func TriggerFromContext(ctx context.Context) (string, bool) {
	v := field(ctx, FieldTrigger)
	return v, v != ""
}

func withField(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func field(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

// contextAttrs returns the attempt fields carried by ctx.
func contextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	for _, key := range attemptKeys {
		if v := field(ctx, key); v != "" {
			attrs = append(attrs, slog.String(string(key), v))
		}
	}
	return attrs
}

// WithContext binds the attempt fields carried by ctx to logger. A nil
// logger yields a no-op logger.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	attrs := contextAttrs(ctx)
	if len(attrs) == 0 {
		return logger
	}
	return logger.With(Args(attrs...)...)
}
