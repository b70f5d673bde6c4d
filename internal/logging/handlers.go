package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

// attemptHandler stamps records with the session ID and with the attempt
// fields carried on the record's context. Fields the logger already bound
// through WithContext are not repeated.
type attemptHandler struct {
	next      slog.Handler
	sessionID string
	bound     map[string]bool
}

func newAttemptHandler(next slog.Handler, sessionID string) slog.Handler {
	return &attemptHandler{next: next, sessionID: sessionID}
}

func (h *attemptHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *attemptHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, attr := range contextAttrs(ctx) {
		if !h.bound[attr.Key] {
			record.AddAttrs(attr)
		}
	}
	if h.sessionID != "" {
		record.AddAttrs(slog.String(FieldSessionID, h.sessionID))
	}
	return h.next.Handle(ctx, record)
}

func (h *attemptHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := make(map[string]bool, len(h.bound)+len(attrs))
	for key := range h.bound {
		bound[key] = true
	}
	for _, attr := range attrs {
		bound[attr.Key] = true
	}
	return &attemptHandler{next: h.next.WithAttrs(attrs), sessionID: h.sessionID, bound: bound}
}

func (h *attemptHandler) WithGroup(name string) slog.Handler {
	return &attemptHandler{next: h.next.WithGroup(name), sessionID: h.sessionID, bound: h.bound}
}

// levelFloor drops records below min before they reach next, which is built
// at the most verbose level any component needs.
type levelFloor struct {
	next slog.Handler
	min  slog.Level
}

func (h *levelFloor) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.min && h.next.Enabled(ctx, level)
}

func (h *levelFloor) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < h.min {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h *levelFloor) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelFloor{next: h.next.WithAttrs(attrs), min: h.min}
}

func (h *levelFloor) WithGroup(name string) slog.Handler {
	return &levelFloor{next: h.next.WithGroup(name), min: h.min}
}

// withLevelFloor replaces any floor already on logger rather than stacking
// a second one.
func withLevelFloor(logger *slog.Logger, min slog.Level) *slog.Logger {
	handler := logger.Handler()
	if floor, ok := handler.(*levelFloor); ok {
		handler = floor.next
	}
	return slog.New(&levelFloor{next: handler, min: min})
}

func newJSONHandler(w io.Writer, level slog.Leveler, source bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		AddSource:   source,
		ReplaceAttr: jsonAttr,
	})
}

// jsonAttr shortens the built-in keys to ts/level/msg and renders
// durations as text ("1.5s") rather than nanoseconds.
func jsonAttr(groups []string, attr slog.Attr) slog.Attr {
	if attr.Value.Kind() == slog.KindDuration {
		attr.Value = slog.StringValue(attr.Value.Duration().String())
		return attr
	}
	if len(groups) > 0 {
		return attr
	}
	switch attr.Key {
	case slog.TimeKey:
		attr.Key = "ts"
		attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339Nano))
	case slog.LevelKey:
		attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
	case slog.SourceKey:
		if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
			attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
		}
	}
	return attr
}
