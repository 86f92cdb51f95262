// Package logging builds the structured loggers used across JuriRH.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Formats accepted by New
const (
	FormatText = "text"
	FormatJSON = "json"
)

// New creates a logger writing to w (stderr when nil) at the named level.
func New(level, format string, w io.Writer) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", FormatText:
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))
}

// Component tags logger with the component attribute.
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", name)
}

// LogSearch logs a search at debug level, or at error level when it failed.
// The query itself is not logged, only its length.
func LogSearch(ctx context.Context, logger *slog.Logger, query string, results int, elapsed time.Duration, err error) {
	if err != nil {
		logger.ErrorContext(ctx, "search failed",
			"query_len", len(query),
			"duration", elapsed,
			"error", err,
		)
		return
	}
	logger.DebugContext(ctx, "search completed",
		"query_len", len(query),
		"results", results,
		"duration", elapsed,
	)
}

// LogReload logs the outcome of an index reload.
func LogReload(ctx context.Context, logger *slog.Logger, dir, buildID string, err error) {
	if err != nil {
		logger.ErrorContext(ctx, "index reload failed, keeping current index",
			"index_dir", dir,
			"error", err,
		)
		return
	}
	logger.InfoContext(ctx, "index reloaded",
		"index_dir", dir,
		"build_id", buildID,
	)
}
