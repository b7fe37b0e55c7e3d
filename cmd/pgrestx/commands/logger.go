package commands

import (
	"context"
	"io"
	"log/slog"
	"sort"

	"github.com/fivetwenty-io/postgrestx/pkg/postgrest"
)

// StderrLogger adapts a slog text handler to postgrest.Logger. Debug entries
// are dropped unless verbose is set.
type StderrLogger struct {
	logger *slog.Logger
}

// NewStderrLogger creates a logger writing "level=... msg=... key=value"
// lines to out.
func NewStderrLogger(out io.Writer, verbose bool) *StderrLogger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: dropTime,
	})

	return &StderrLogger{logger: slog.New(handler)}
}

// Debug implements postgrest.Logger.
func (l *StderrLogger) Debug(msg string, fields map[string]interface{}) {
	l.log(slog.LevelDebug, msg, fields)
}

// Info implements postgrest.Logger.
func (l *StderrLogger) Info(msg string, fields map[string]interface{}) {
	l.log(slog.LevelInfo, msg, fields)
}

// Warn implements postgrest.Logger.
func (l *StderrLogger) Warn(msg string, fields map[string]interface{}) {
	l.log(slog.LevelWarn, msg, fields)
}

// Error implements postgrest.Logger.
func (l *StderrLogger) Error(msg string, fields map[string]interface{}) {
	l.log(slog.LevelError, msg, fields)
}

func (l *StderrLogger) log(level slog.Level, msg string, fields map[string]interface{}) {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	attrs := make([]slog.Attr, 0, len(keys))
	for _, key := range keys {
		attrs = append(attrs, slog.Any(key, fields[key]))
	}

	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// dropTime removes the timestamp; CLI diagnostics are read as they happen.
func dropTime(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) == 0 && attr.Key == slog.TimeKey {
		return slog.Attr{}
	}

	return attr
}

var _ postgrest.Logger = (*StderrLogger)(nil)
