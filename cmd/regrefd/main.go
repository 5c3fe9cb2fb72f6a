// regrefd serves structured regulatory content with change tracking:
// it syncs configured CFR parts from the upstream provider, caches parsed
// sections in SQLite, records content changes, and exposes a JSON API for
// reading, diffing, and annotating sections.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "modernc.org/sqlite"

	"github.com/regref/regref/ecfr"
	"github.com/regref/regref/notes"
	"github.com/regref/regref/store"
	"github.com/regref/regref/tracker"
	"github.com/regref/regref/watch"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	var lvl slog.Level
	switch cfg.LogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		slog.Error("open db", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	provider := ecfr.New(cfg.ProviderClientConfig(), logger)
	trk := tracker.New(st, provider, tracker.Config{SectionDelay: cfg.Sync.SectionDelay}, logger)
	noteSvc := notes.New(st, logger)

	// Changelog watch loop. The action is a log line until a render cache
	// or search indexer hangs off it.
	w := watch.New(st, watch.Options{
		Interval: cfg.Watch.Interval,
		Debounce: cfg.Watch.Debounce,
		Logger:   logger,
	})
	go w.OnChange(ctx, func() error {
		logger.Info("content changed", "changelog_mark", w.Version())
		return nil
	})

	// Periodic sync over the configured parts.
	if cfg.Sync.Interval > 0 {
		go syncLoop(ctx, trk, cfg.Parts, cfg.Sync.Interval, logger)
	}

	a := &api{store: st, tracker: trk, notes: noteSvc, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Group(a.routes)

	srv := &http.Server{
		Addr:         cfg.Listen,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // sync endpoint is synchronous
	}

	go func() {
		slog.Info("regrefd listening", "addr", cfg.Listen, "parts", cfg.Parts)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
}

// syncLoop runs structure + content syncs for every configured part at a
// fixed interval, starting immediately.
func syncLoop(ctx context.Context, trk *tracker.Tracker, parts []string, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runAll := func() {
		for _, part := range parts {
			if _, err := trk.SyncStructure(ctx, part); err != nil {
				logger.Error("structure sync failed", "part", part, "error", err)
			}
			if _, err := trk.SyncPart(ctx, part); err != nil && !errors.Is(err, tracker.ErrSyncInProgress) {
				logger.Error("content sync failed", "part", part, "error", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}

	runAll()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runAll()
		}
	}
}
