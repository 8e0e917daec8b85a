package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aretw0/barter"
	"github.com/aretw0/barter/internal/config"
	"github.com/aretw0/barter/internal/metrics"
	httpAdapter "github.com/aretw0/barter/pkg/adapters/http"
	"github.com/aretw0/barter/pkg/persistence/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewServer builds the HTTP server for an exchange. The registry receives
// the exchange metrics and is served on /metrics.
func NewServer(cfg config.Config, ex *barter.Exchange, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	handler := httpAdapter.NewHandler(ex, ex.Catalog(),
		httpAdapter.WithLogger(logger),
		httpAdapter.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		httpAdapter.WithInfo(httpAdapter.Info{
			Name:          "barter",
			Version:       barter.Version,
			Instance:      cfg.InstanceName,
			Store:         cfg.Store,
			Transactional: ex.Transactional(),
		}),
	)
	return &http.Server{
		Addr:    cfg.Addr,
		Handler: handler,
	}
}

// Serve runs the HTTP server until ctx is done, then shuts down gracefully.
func Serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector, err := metrics.NewCollector(reg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	instrument, err := middleware.NewInstrumentation(reg)
	if err != nil {
		return fmt.Errorf("failed to register store metrics: %w", err)
	}

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	store = middleware.Chain(store, instrument)
	defer store.Close()

	ex := newExchange(cfg, store, logger, metrics.Combine(collector.Hooks(), createDebugHooks(logger)))

	if cfg.SeedFile != "" {
		seed, err := config.LoadSeed(cfg.SeedFile)
		if err != nil {
			return err
		}
		res, err := SeedCatalog(ctx, ex.Catalog(), seed, logger)
		if err != nil {
			return err
		}
		logger.Info("catalog seeded", "created", res.Created, "skipped", res.Skipped)
	}

	srv := NewServer(cfg, ex, reg, logger)

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting barter server",
			"addr", srv.Addr,
			"store", cfg.Store,
			"instance", cfg.InstanceName,
			"transactional", ex.Transactional(),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown did not complete", "err", err)
			if err := srv.Close(); err != nil {
				return fmt.Errorf("failed to close server: %w", err)
			}
		}
		logger.Info("barter server stopped gracefully")
		return nil
	}
}
