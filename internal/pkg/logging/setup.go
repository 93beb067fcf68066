package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Vodeneev/sofascore-scraper/internal/pkg/config"
)

// SetupLogger installs the global logger: text to stdout and, when a file is set, JSON to that file.
// The returned closer flushes and closes the log file; it is never nil.
func SetupLogger(cfg config.LoggingConfig, serviceName string) (*slog.Logger, io.Closer, error) {
	return setupLogger(cfg, serviceName, os.Stdout)
}

func setupLogger(cfg config.LoggingConfig, serviceName string, stdout io.Writer) (*slog.Logger, io.Closer, error) {
	level := ParseLevel(cfg.Level)
	var handlers []slog.Handler
	var closer io.Closer = nopCloser{}

	// stdout is always on
	handlers = append(handlers, slog.NewTextHandler(stdout, &slog.HandlerOptions{Level: level}))

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, closer, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, closer, fmt.Errorf("open log file: %w", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
		closer = f
	}

	logger := slog.New(&MultiHandler{handlers: handlers}).With("service", serviceName)

	// make it the default
	slog.SetDefault(logger)

	return logger, closer, nil
}

// ParseLevel maps DEBUG/INFO/WARN/ERROR to slog levels; anything else is INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Printf adapts slog to printf-style log funcs (chromedp.WithLogf and friends).
func Printf(level slog.Level, prefix string) func(string, ...any) {
	return func(format string, args ...any) {
		slog.Log(context.Background(), level, prefix+fmt.Sprintf(format, args...))
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// MultiHandler fans records out to several handlers.
type MultiHandler struct {
	handlers []slog.Handler
}

func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *MultiHandler) Handle(ctx context.Context, record slog.Record) error {
	var lastErr error
	for _, h := range m.handlers {
		if h.Enabled(ctx, record.Level) {
			if err := h.Handle(ctx, record.Clone()); err != nil {
				lastErr = err
			}
		}
	}
	return lastErr
}

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: handlers}
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &MultiHandler{handlers: handlers}
}
