// Package logger builds the service's slog pipeline: a JSON handler on
// stdout, context-derived attributes (request id, task date) on every
// record, and an optional buffered Better Stack sink for deployments
// that ship logs off-host.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	slogbetterstack "github.com/samber/slog-betterstack"
)

// betterStackTimeout bounds each remote log-shipping request.
const betterStackTimeout = 5 * time.Second

// Logger wraps slog.Logger with a flush hook for the async sink.
type Logger struct {
	*slog.Logger
	flush func(context.Context) error
}

// Options selects the optional secondary sink and static attributes.
type Options struct {
	BetterStackToken    string
	BetterStackEndpoint string
	Version             string
}

// New builds a stdout-only JSON logger at the given level.
func New(level string) *Logger {
	return NewWithOptions(level, os.Stdout, Options{})
}

// NewWithWriter builds a JSON logger writing to w, for tests that want
// to capture output.
func NewWithWriter(level string, w io.Writer) *Logger {
	return NewWithOptions(level, w, Options{})
}

// NewWithOptions builds the full pipeline. With a Better Stack token the
// JSON handler is joined by an async remote sink behind a MultiHandler;
// Shutdown then drains that sink.
func NewWithOptions(level string, w io.Writer, opts Options) *Logger {
	lvl := parseLevel(level)

	jsonHandler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   true,
		ReplaceAttr: renameStandardKeys,
	})

	handler := slog.Handler(jsonHandler)
	var flush func(context.Context) error
	if opts.BetterStackToken != "" {
		remote := slogbetterstack.Option{
			Level:       lvl,
			Token:       opts.BetterStackToken,
			Endpoint:    opts.BetterStackEndpoint,
			Timeout:     betterStackTimeout,
			ReplaceAttr: renameStandardKeys,
		}.NewBetterstackHandler()
		async := NewAsyncHandler(remote, AsyncOptions{})
		flush = async.Shutdown
		handler = NewMultiHandler(jsonHandler, async)
	}

	base := slog.New(NewContextHandler(handler))
	if opts.Version != "" {
		base = base.With("version", opts.Version)
	}
	return &Logger{Logger: base, flush: flush}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// renameStandardKeys maps slog's default keys onto the timestamp/level/
// message names the log-ingestion side expects, lowercasing levels and
// spelling WARN out as "warning".
func renameStandardKeys(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.TimeKey:
		a.Key = "timestamp"
	case slog.MessageKey:
		a.Key = "message"
	case slog.LevelKey:
		a.Key = "level"
		if a.Value.String() == "WARN" {
			a.Value = slog.StringValue("warning")
		} else {
			a.Value = slog.StringValue(strings.ToLower(a.Value.String()))
		}
	}
	return a
}

// WithField returns a Logger carrying an extra attribute.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{Logger: l.With(key, value), flush: l.flush}
}

// WithError returns a Logger carrying the error as an attribute.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Logger: l.With("error", err), flush: l.flush}
}

// Shutdown drains the async sink, if one was configured.
func (l *Logger) Shutdown(ctx context.Context) error {
	if l == nil || l.flush == nil {
		return nil
	}
	return l.flush(ctx)
}
