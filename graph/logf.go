package graph

import (
	"context"
	"fmt"
	"log/slog"
)

// logfHandler adapts a printf-style logging hook to slog.Handler, so a caller
// wiring an existing logger (fmt.Printf, a logging library's Printf shim)
// through Options.Logf gets the same structured call sites as one supplying
// a real *slog.Logger via Options.Logger.
type logfHandler struct {
	logf  func(format string, args ...any)
	level slog.Level
	attrs []slog.Attr
	group string
}

func newLogfHandler(logf func(format string, args ...any), level slog.Level) *logfHandler {
	return &logfHandler{logf: logf, level: level}
}

func (h *logfHandler) Enabled(_ context.Context, level slog.Level) bool { return level >= h.level }

func (h *logfHandler) Handle(_ context.Context, r slog.Record) error {
	msg := r.Message
	if h.group != "" {
		msg = h.group + ": " + msg
	}
	for _, a := range h.attrs {
		msg += fmt.Sprintf(" %s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		msg += fmt.Sprintf(" %s=%v", a.Key, a.Value)
		return true
	})
	h.logf("[%s] %s", r.Level, msg)
	return nil
}

func (h *logfHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *logfHandler) WithGroup(name string) slog.Handler {
	next := *h
	if next.group == "" {
		next.group = name
	} else {
		next.group = next.group + "." + name
	}
	return &next
}
