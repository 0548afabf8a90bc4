package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"taskbot/internal/bot"
	"taskbot/internal/config"
	"taskbot/internal/dialogue"
	"taskbot/internal/store"
)

// NewLogger returns a text slog logger at the named level.
func NewLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// OpenStore builds the configured backend and makes sure it holds a valid
// collection, repairing it if it does not.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*store.Store, error) {
	var (
		backend store.Backend
		err     error
	)
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		backend, err = store.OpenSQLiteBackend(ctx, cfg.Storage.DataDir)
	case config.DriverFile, "":
		backend, err = store.NewFileBackend(cfg.Storage.DataDir)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open task storage in %s: %w", cfg.Storage.DataDir, err)
	}
	st := store.New(backend, store.WithLogger(logger))
	res, err := st.Ensure(ctx)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("task storage %s is unusable: %w", st.Location(), err)
	}
	switch res {
	case store.EnsureReinitialized:
		logger.Warn("task storage was corrupt and has been re-initialized", "location", st.Location())
	default:
		logger.Info("task storage ready", "location", st.Location(), "state", string(res))
	}
	return st, nil
}

// NewBot wires the dispatcher and dialogue for the configured schema.
func NewBot(cfg *config.Config, st *store.Store, logger *slog.Logger) *bot.Bot {
	return bot.New(st, bot.Options{
		Reminder:  cfg.Dialogue.Reminder,
		Precision: dialogue.Precision(cfg.Dialogue.Precision),
		Logger:    logger,
	})
}
