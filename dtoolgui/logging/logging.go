package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
	"github.com/rs/zerolog"

	internal "github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui"
)

// Options selects the console level and an optional log file
type Options struct {
	Verbose int
	Quiet   bool
	Debug   bool

	// LogFile receives JSON lines at debug level when set
	LogFile string
	// Console defaults to stderr
	Console io.Writer
	NoColor bool
}

// Level maps the command line flags onto a slog level. The default only
// shows warnings; each -v lowers it by one step.
func (o Options) Level() slog.Level {
	switch {
	case o.Debug || o.Verbose >= 2:
		return slog.LevelDebug
	case o.Verbose == 1:
		return slog.LevelInfo
	case o.Quiet:
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// Setup builds the process logger and installs it as the slog default.
// The returned closer releases the log file and must be called on exit.
func Setup(opts Options) (*slog.Logger, io.Closer, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	var handler slog.Handler = tint.NewHandler(console, &tint.Options{
		Level:      opts.Level(),
		TimeFormat: time.TimeOnly,
		NoColor:    opts.NoColor,
	})

	closer := io.Closer(nopCloser{})
	if opts.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(opts.LogFile), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", opts.LogFile, err)
		}
		closer = f
		fileLogger := internal.GetFileLogger(f, zerolog.DebugLevel)
		handler = teeHandler{handler, NewZerologHandler(fileLogger)}
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// teeHandler hands each record to every handler that accepts its level
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
