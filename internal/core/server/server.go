package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Janus-Aurelius/driver-proximity/internal/core/config"
	"github.com/Janus-Aurelius/driver-proximity/internal/core/health"
	middleware "github.com/Janus-Aurelius/driver-proximity/internal/core/middleware"
	"github.com/Janus-Aurelius/driver-proximity/internal/core/model"
	"github.com/Janus-Aurelius/driver-proximity/internal/core/router"
	"github.com/Janus-Aurelius/driver-proximity/internal/engine"
)

type Deps struct {
	Engine          *engine.Engine
	Gateway         *engine.Gateway
	DefaultStrategy model.Strategy
	StorePinger     health.Pinger // nil for the in-memory backend
	Metrics         http.Handler  // nil disables the endpoint
}

// Routes assembles the chi router; split out so tests can drive the
// full HTTP surface without a listener.
func Routes(logger *slog.Logger, d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(d.StorePinger))
	if d.Metrics != nil {
		r.Get("/metrics", d.Metrics.ServeHTTP)
	}

	r.Get("/nearby", router.HandleNearby(logger, d.Engine, d.DefaultStrategy))
	r.Put("/drivers/{id}/location", router.HandleReportLocation(logger, d.Gateway))
	r.Delete("/drivers/{id}", router.HandleDeregister(logger, d.Gateway))
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, d Deps) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           Routes(logger, d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
