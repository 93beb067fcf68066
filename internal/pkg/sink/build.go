package sink

import (
	"context"
	"io"
	"log/slog"

	"github.com/Vodeneev/sofascore-scraper/internal/pkg/artifacts"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/config"
)

// Options select the outputs of a CLI run.
type Options struct {
	// SaveOnly suppresses the console table.
	SaveOnly bool
	Out      io.Writer
}

// FromConfig assembles the enabled sinks. Sinks that cannot connect are
// logged and left out so the run still delivers what it can.
func FromConfig(ctx context.Context, cfg *config.Config, store *artifacts.Store, opts Options) Multi {
	var m Multi
	if !opts.SaveOnly {
		m = append(m, NewConsole(opts.Out))
	}
	if cfg.Scraper.SaveToFile {
		m = append(m, NewFile(store, opts.Out))
	}

	if cfg.Storage.Driver != "" {
		s, err := NewSQL(ctx, cfg.Storage)
		if err != nil {
			slog.Error("Sink: SQL storage disabled", "driver", cfg.Storage.Driver, "error", err)
		} else {
			m = append(m, s)
		}
	}
	if cfg.Redis.Addr != "" {
		r, err := NewRedis(ctx, cfg.Redis)
		if err != nil {
			slog.Error("Sink: Redis disabled", "addr", cfg.Redis.Addr, "error", err)
		} else {
			m = append(m, r)
		}
	}
	if cfg.Telegram.BotToken != "" {
		t, err := NewTelegram(cfg.Telegram)
		if err != nil {
			slog.Error("Sink: Telegram disabled", "error", err)
		} else {
			m = append(m, t)
		}
	}
	return m
}
