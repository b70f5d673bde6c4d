package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler writes one human-readable line per record:
//
//	2024-05-01T10:00:00Z INFO  bootstrap [native_libraries #1a2b3c4d]: message key=value
//
// component, step and attempt_id move into the subject; every other field
// follows the message as key=value.
type consoleHandler struct {
	out    *syncWriter
	level  slog.Leveler
	source bool

	subject subject
	group   string
	// bound holds the pre-rendered " key=value" pairs from WithAttrs.
	bound string
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(p)
	return err
}

type subject struct {
	component string
	step      string
	attempt   string
}

// take claims attr for the subject when it is one of the subject keys.
func (s *subject) take(key string, value slog.Value) bool {
	switch key {
	case FieldComponent:
		s.component = value.String()
	case FieldStep:
		s.step = value.String()
	case FieldAttemptID:
		s.attempt = value.String()
		if len(s.attempt) > 8 {
			s.attempt = s.attempt[:8]
		}
	default:
		return false
	}
	return true
}

func (s subject) String() string {
	var b strings.Builder
	b.WriteString(s.component)
	if s.step != "" || s.attempt != "" {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte('[')
		b.WriteString(s.step)
		if s.attempt != "" {
			if s.step != "" {
				b.WriteByte(' ')
			}
			b.WriteByte('#')
			b.WriteString(s.attempt)
		}
		b.WriteByte(']')
	}
	return b.String()
}

func newConsoleHandler(w io.Writer, level slog.Leveler, source bool) slog.Handler {
	return &consoleHandler{out: &syncWriter{w: w}, level: level, source: source}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	subj := h.subject
	var pairs strings.Builder
	pairs.WriteString(h.bound)
	record.Attrs(func(attr slog.Attr) bool {
		h.appendAttr(&pairs, &subj, h.group, attr)
		return true
	})

	var line strings.Builder
	line.WriteString(ts.UTC().Format(time.RFC3339))
	fmt.Fprintf(&line, " %-5s ", levelLabel(record.Level))
	if s := subj.String(); s != "" {
		line.WriteString(s)
		line.WriteString(": ")
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	line.WriteString(msg)
	if h.source {
		if src := record.Source(); src != nil {
			fmt.Fprintf(&line, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	line.WriteString(pairs.String())
	line.WriteByte('\n')
	return h.out.write([]byte(line.String()))
}

// appendAttr renders attr, flattening groups into dotted keys. Subject keys
// are only recognised outside groups.
func (h *consoleHandler) appendAttr(b *strings.Builder, subj *subject, group string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}
	key := attr.Key
	if group != "" {
		key = group + "." + key
	}
	if attr.Value.Kind() == slog.KindGroup {
		if attr.Key == "" {
			key = group
		}
		for _, member := range attr.Value.Group() {
			h.appendAttr(b, subj, key, member)
		}
		return
	}
	if group == "" && subj.take(key, attr.Value) {
		return
	}
	b.WriteByte(' ')
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(consoleValue(attr.Value))
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	var b strings.Builder
	b.WriteString(h.bound)
	for _, attr := range attrs {
		h.appendAttr(&b, &clone.subject, h.group, attr)
	}
	clone.bound = b.String()
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if clone.group != "" {
		clone.group += "." + name
	} else {
		clone.group = name
	}
	return &clone
}

func consoleValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindString:
		s = v.String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		// Bool, numbers and durations never need quoting.
		return v.String()
	}
	if s == "" || strings.ContainsAny(s, " \t\n=\"") {
		return strconv.Quote(s)
	}
	return s
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
