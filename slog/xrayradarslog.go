// Package xrayradarslog provides a slog.Handler that reports log records to
// an xrayradar Tracker.
package xrayradarslog

import (
	"context"
	"log/slog"

	"github.com/xrayradar/xrayradar-go"
	"github.com/xrayradar/xrayradar-go/internal/logging"
)

// LevelFatal has no slog counterpart; records at or above it map to fatal.
const LevelFatal = slog.Level(12)

var _ slog.Handler = (*Handler)(nil)

type Options struct {
	// Tracker receives the records. When nil, the tracker on the record's
	// context is used, then xrayradar.CurrentTracker.
	Tracker *xrayradar.Tracker
	// Level is the least severe level handled. Defaults to slog.LevelWarn.
	Level slog.Leveler
	// Logger restricts the handler to records whose "logger" attribute
	// starts with this prefix.
	Logger string
	// ExcludeLoggers lists logger names that are never reported.
	ExcludeLoggers []string
	// CaptureAsBreadcrumbs records entries as console breadcrumbs instead of
	// sending them as events.
	CaptureAsBreadcrumbs bool
	// AttrFromContext extracts additional attributes from the context
	// passed to the logger.
	AttrFromContext []func(ctx context.Context) []slog.Attr
}

type Handler struct {
	option Options
	filter logging.Filter
	attrs  []slog.Attr
	groups []string
}

func New(opts Options) *Handler {
	if opts.Level == nil {
		opts.Level = slog.LevelWarn
	}
	return &Handler{
		option: opts,
		filter: logging.NewFilter(opts.Logger, opts.ExcludeLoggers),
	}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.option.Level.Level()
}

func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	tracker := h.option.Tracker
	if tracker == nil {
		tracker = xrayradar.GetTrackerFromContext(ctx)
	}
	if tracker == nil {
		tracker = xrayradar.CurrentTracker()
	}
	if tracker == nil {
		return nil
	}

	attrs := append(append([]slog.Attr{}, h.attrs...), contextAttrs(ctx, h.option.AttrFromContext)...)
	r := convert(attrs, h.groups, &record)
	if !h.filter.Allows(r.Logger) {
		return nil
	}
	logging.Emit(tracker, r, h.option.CaptureAsBreadcrumbs)
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{
		option: h.option,
		filter: h.filter,
		attrs:  appendAttrsToGroup(h.groups, h.attrs, attrs...),
		groups: h.groups,
	}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	groups := make([]string, len(h.groups), len(h.groups)+1)
	copy(groups, h.groups)
	return &Handler{
		option: h.option,
		filter: h.filter,
		attrs:  h.attrs,
		groups: append(groups, name),
	}
}

func contextAttrs(ctx context.Context, fns []func(ctx context.Context) []slog.Attr) []slog.Attr {
	var attrs []slog.Attr
	for _, fn := range fns {
		attrs = append(attrs, fn(ctx)...)
	}
	return attrs
}
