package logging

import (
	"context"
	"errors"
	"log/slog"
)

// Fanout sends every record to each sink enabled for its level. A failing sink does
// not stop the others; their errors are joined.
type Fanout struct {
	sinks []slog.Handler
}

// NewFanout drops nil sinks.
func NewFanout(sinks ...slog.Handler) *Fanout {
	f := &Fanout{sinks: make([]slog.Handler, 0, len(sinks))}
	for _, h := range sinks {
		if h != nil {
			f.sinks = append(f.sinks, h)
		}
	}
	return f
}

func (f *Fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.sinks {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *Fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f.sinks {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f *Fanout) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f *Fanout) each(fn func(slog.Handler) slog.Handler) *Fanout {
	out := &Fanout{sinks: make([]slog.Handler, len(f.sinks))}
	for i, h := range f.sinks {
		out.sinks[i] = fn(h)
	}
	return out
}

// AttrFunc is evaluated once per record, e.g. for the elapsed run time.
type AttrFunc func() []slog.Attr

// Stamped appends the attributes of an AttrFunc to each record it handles.
type Stamped struct {
	next  slog.Handler
	attrs AttrFunc
}

// NewStamped wraps next; a nil fn leaves records untouched.
func NewStamped(next slog.Handler, fn AttrFunc) *Stamped {
	return &Stamped{next: next, attrs: fn}
}

func (s *Stamped) Enabled(ctx context.Context, level slog.Level) bool {
	return s.next.Enabled(ctx, level)
}

func (s *Stamped) Handle(ctx context.Context, r slog.Record) error {
	if s.attrs != nil {
		r.AddAttrs(s.attrs()...)
	}
	return s.next.Handle(ctx, r)
}

func (s *Stamped) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Stamped{next: s.next.WithAttrs(attrs), attrs: s.attrs}
}

func (s *Stamped) WithGroup(name string) slog.Handler {
	if name == "" {
		return s
	}
	return &Stamped{next: s.next.WithGroup(name), attrs: s.attrs}
}
