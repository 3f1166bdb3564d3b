package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	httpapi "github.com/i474232898/wx-briefing/internal/api/http"
	"github.com/i474232898/wx-briefing/internal/scheduler"
	"github.com/i474232898/wx-briefing/internal/store"
)

// Serve runs the HTTP API with the periodic worldview refresh until ctx is
// cancelled, then shuts down gracefully.
func (a *App) Serve(ctx context.Context) error {
	cfg := a.Config

	// In-memory store with configured retention.
	snapshots := store.NewMemoryStore(cfg.Server.StoreMaxHistory, cfg.Server.StoreMaxAge.Std())

	sched := scheduler.New(a.Briefing, snapshots, cfg.Server.WorldviewInterval.Std(), a.Logger.With("component", "scheduler"))
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	app := httpapi.NewApp(a.Metrics.Handler(), a.Logger.Enabled(ctx, slog.LevelDebug))
	httpapi.RegisterRoutes(app, a.Briefing, snapshots)

	errc := make(chan error, 1)
	go func() {
		a.Logger.Info("listening", "port", cfg.Server.Port)
		errc <- app.Listen(":" + cfg.Server.Port)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
