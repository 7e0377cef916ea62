package logging

import (
	"context"
	"log/slog"
	"time"
)

// Shared attribute keys used across components so log output stays uniform.
const (
	FieldComponent   = "component"
	FieldEvent       = "event"
	FieldError       = "error"
	FieldFolder      = "folder"
	FieldSeries      = "series"
	FieldSource      = "source"
	FieldSourceID    = "source_id"
	FieldMediaPath   = "media_path"
	FieldPlayerState = "player_state"
	FieldCycle       = "cycle"
	FieldRunID       = "run_id"
	FieldDuration    = "duration"
	FieldScore       = "score"
)

// String builds a string attribute.
func String(key, value string) slog.Attr { return slog.String(key, value) }

// Int builds an int attribute.
func Int(key string, value int) slog.Attr { return slog.Int(key, value) }

// Int64 builds an int64 attribute.
func Int64(key string, value int64) slog.Attr { return slog.Int64(key, value) }

// Float64 builds a float64 attribute.
func Float64(key string, value float64) slog.Attr { return slog.Float64(key, value) }

// Bool builds a bool attribute.
func Bool(key string, value bool) slog.Attr { return slog.Bool(key, value) }

// Duration builds a duration attribute.
func Duration(key string, value time.Duration) slog.Attr { return slog.Duration(key, value) }

// Error builds the conventional error attribute. A nil error yields an empty
// attribute that handlers skip.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(FieldError, err.Error())
}

// Group nests attributes under a common key.
func Group(key string, attrs ...any) slog.Attr { return slog.Group(key, attrs...) }

// NewComponentLogger tags a child logger with the component field.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(String(FieldComponent, component))
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(NoopHandler{})
}

// NoopHandler drops all records.
type NoopHandler struct{}

func (NoopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (NoopHandler) Handle(context.Context, slog.Record) error { return nil }
func (NoopHandler) WithAttrs([]slog.Attr) slog.Handler        { return NoopHandler{} }
func (NoopHandler) WithGroup(string) slog.Handler             { return NoopHandler{} }
