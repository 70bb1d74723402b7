package logring

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
)

// Handler is an slog.Handler that tees every record into a Ring and then
// forwards to the wrapped handler. A failure while capturing is swallowed;
// the forwarded log call is never affected.
type Handler struct {
	inner slog.Handler
	ring  *Ring
	attrs []slog.Attr // attrs bound via WithAttrs, kept for the capture
}

// NewHandler wraps inner so its records are also captured in ring.
func NewHandler(inner slog.Handler, ring *Ring) *Handler {
	return &Handler{inner: inner, ring: ring}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, rec slog.Record) error {
	h.capture(rec)
	return h.inner.Handle(ctx, rec)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &Handler{inner: h.inner.WithAttrs(attrs), ring: h.ring, attrs: merged}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{inner: h.inner.WithGroup(name), ring: h.ring, attrs: h.attrs}
}

// capture converts the slog record and appends it to the ring.
func (h *Handler) capture(rec slog.Record) {
	defer func() {
		_ = recover()
	}()

	out := Record{
		Time:    rec.Time,
		Level:   rec.Level.String(),
		Message: rec.Message,
		Attrs:   make(map[string]string, rec.NumAttrs()+len(h.attrs)),
	}

	addAttr := func(a slog.Attr) {
		if a.Key == "component" {
			out.Logger = a.Value.String()
			return
		}
		out.Attrs[a.Key] = fmt.Sprint(a.Value.Any())
	}
	for _, a := range h.attrs {
		addAttr(a)
	}
	rec.Attrs(func(a slog.Attr) bool {
		addAttr(a)
		return true
	})

	if rec.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{rec.PC})
		frame, _ := frames.Next()
		out.Function = frame.Function
		out.File = frame.File
		out.Line = frame.Line
	}

	h.ring.Append(out)
}
