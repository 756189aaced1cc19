package log

import (
	"context"
	"log/slog"
)

// NewSlogHandler adapts a Logger to a slog.Handler so code written against
// log/slog flows through the same formatter and outputs.
func NewSlogHandler(l Logger) slog.Handler {
	return &slogHandler{logger: l}
}

type slogHandler struct {
	logger Logger
	attrs  []Field
	group  string
}

// Enabled gates by the bound logger's effective level.
func (h *slogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.logger.Enabled(fromSlogLevel(level))
}

// Handle converts the record to an Entry and emits it.
func (h *slogHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make([]Field, 0, len(h.attrs)+r.NumAttrs())
	fields = append(fields, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		fields = append(fields, Field{Key: h.qualify(a.Key), Value: a.Value.Any()})
		return true
	})
	switch fromSlogLevel(r.Level) {
	case Debug:
		h.logger.Debug(r.Message, fields...)
	case Info:
		h.logger.Info(r.Message, fields...)
	case Warn:
		h.logger.Warn(r.Message, fields...)
	default:
		h.logger.Error(r.Message, fields...)
	}
	return nil
}

// WithAttrs returns a copy of the handler carrying the extra attributes.
func (h *slogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	nh := *h
	nh.attrs = make([]Field, 0, len(h.attrs)+len(attrs))
	nh.attrs = append(nh.attrs, h.attrs...)
	for _, a := range attrs {
		nh.attrs = append(nh.attrs, Field{Key: h.qualify(a.Key), Value: a.Value.Any()})
	}
	return &nh
}

// WithGroup returns a copy that prefixes subsequent attribute keys with the
// group name.
func (h *slogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.group = h.qualify(name)
	return &nh
}

func (h *slogHandler) qualify(key string) string {
	if h.group == "" {
		return key
	}
	return h.group + "." + key
}

func fromSlogLevel(level slog.Level) Level {
	switch {
	case level <= slog.LevelDebug:
		return Debug
	case level < slog.LevelWarn:
		return Info
	case level < slog.LevelError:
		return Warn
	default:
		return Error
	}
}
