package logger

import (
	"context"
	"errors"
	"log/slog"
)

// MultiHandler duplicates each record to every target handler, so the
// stdout JSON stream and the remote sink see the same records. Records
// are cloned per target, as the slog.Handler contract requires when a
// record outlives one Handle call.
type MultiHandler struct {
	targets []slog.Handler
}

// NewMultiHandler builds a MultiHandler over the non-nil targets.
func NewMultiHandler(targets ...slog.Handler) *MultiHandler {
	kept := make([]slog.Handler, 0, len(targets))
	for _, h := range targets {
		if h != nil {
			kept = append(kept, h)
		}
	}
	return &MultiHandler{targets: kept}
}

// Enabled reports whether any target would accept a record at level.
func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.targets {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle delivers r to every target enabled for its level, joining any
// errors so one failing sink never hides another's.
func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m.targets {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WithAttrs applies attrs to every target.
func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(m.targets))
	for i, h := range m.targets {
		next[i] = h.WithAttrs(attrs)
	}
	return &MultiHandler{targets: next}
}

// WithGroup applies the group to every target.
func (m *MultiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(m.targets))
	for i, h := range m.targets {
		next[i] = h.WithGroup(name)
	}
	return &MultiHandler{targets: next}
}
