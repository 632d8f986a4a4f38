package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/riverqueue/river"
	"github.com/spf13/cobra"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"riverqueue.com/riverui"

	"cookiescan/internal/api"
	"cookiescan/internal/api/handler/v1handler"
	"cookiescan/internal/config"
	"cookiescan/internal/scanner"
	"cookiescan/internal/worker"
	"cookiescan/pkg/browser"
	"cookiescan/pkg/browser/chromium"
	"cookiescan/pkg/categorizer"
	"cookiescan/pkg/categorizer/cookiedb"
	"cookiescan/pkg/logger"
	"cookiescan/pkg/metrics"
	"cookiescan/pkg/retry"
)

// setupMetrics registers an OpenTelemetry Prometheus exporter on the default
// registry and returns the scan engine's metrics recorder backed by it. The
// API server serves the same registry at the metrics path.
func setupMetrics(ctx context.Context) *metrics.Recorder {
	exp, err := otelprom.New(otelprom.WithRegisterer(prometheus.DefaultRegisterer))
	if err != nil {
		logger.Fatal(ctx, "could not create otel exporter", zap.Error(err))
	}

	recorder, err := metrics.NewRecorder(sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp)).Meter("cookiescan"))
	if err != nil {
		logger.Fatal(ctx, "could not create metrics recorder", zap.Error(err))
	}

	return recorder
}

// setupCategorizer builds the categorization pipeline the scan engine
// consumes: the cookie database client behind a lookaside cache, bounded
// retries and a circuit breaker.
func setupCategorizer(cfg *config.Config, recorder *metrics.Recorder) scanner.Categorizer {
	var cache *categorizer.Cache
	if cfg.Categorizer.CacheEnabled && cfg.Categorizer.CacheTTL > 0 {
		cache = categorizer.NewCache(cfg.Categorizer.CacheTTL)
	}

	return categorizer.NewResilient(categorizer.ResilientOptions{
		Upstream: cookiedb.New(&http.Client{Timeout: cfg.Categorizer.RequestTimeout}, cfg.Categorizer.Endpoint),
		Cache:    cache,
		Retry: retry.Config{
			MaxAttempts: cfg.Categorizer.RetryMaxAttempts,
			BaseDelay:   cfg.Categorizer.RetryBaseDelay,
		},
		Breaker: categorizer.BreakerConfig{
			FailureRateThreshold: cfg.Categorizer.BreakerFailureRate,
			Cooldown:             cfg.Categorizer.BreakerCooldown,
		},
		Recorder: recorder,
	})
}

// setupJobUI starts the river web UI for inspecting the scan job queue. The
// returned handler is mounted by the API server.
func setupJobUI(ctx context.Context, riverClient *river.Client[pgx.Tx], dbPool *pgxpool.Pool) http.Handler {
	ui, err := riverui.NewServer(&riverui.ServerOpts{
		Client: riverClient,
		DB:     dbPool,
		Logger: slog.New(zapslog.NewHandler(logger.Get(ctx).Core())),
		Prefix: "/riverui",
	})
	if err != nil {
		logger.Fatal(ctx, "could not create river UI server", zap.Error(err))
	}

	if err := ui.Start(ctx); err != nil {
		logger.Fatal(ctx, "could not start river UI server", zap.Error(err))
	}

	return ui
}

// setupServer starts the HTTP API server in the background and returns a
// function that shuts it down gracefully.
func setupServer(ctx context.Context, cfg *config.Config, deps api.Deps) func(ctx context.Context) {
	server := api.NewServer(deps, api.NewOptions(cfg))

	go func() {
		logger.Info(ctx, "starting webserver...")
		if err := server.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logger.Error(ctx, "could not start webserver", zap.Error(err))
			}
		}
	}()

	return func(ctx context.Context) {
		logger.Info(ctx, "stopping webserver...")
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(ctx, "could not stop webserver", zap.Error(err))
		}
	}
}

func serveCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts the API server and scan workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, _ := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

			pgsql, closeStrg := getPostgres(ctx, cfg)
			defer closeStrg()

			recorder := setupMetrics(ctx)

			launcher := chromium.NewLauncher(browser.Options{
				Headless:          cfg.Browser.Headless,
				ViewportWidth:     cfg.Browser.ViewportWidth,
				ViewportHeight:    cfg.Browser.ViewportHeight,
				UserAgent:         cfg.Browser.UserAgent,
				NavigationTimeout: cfg.Browser.NavigationTimeout,
				ActionTimeout:     cfg.Browser.ActionTimeout,
				NetworkIdleWait:   cfg.Browser.NetworkIdleWait,
			})

			scannerService := scanner.New(pgsql,
				launcher,
				setupCategorizer(cfg, recorder),
				recorder,
				scanner.NewOptions(cfg))

			riverClient, err := worker.Start(ctx, pgsql.Pool, scannerService, cfg.Worker.MaxWorkers)
			if err != nil {
				logger.Fatal(ctx, "could not start workers", zap.Error(err))
			}

			stopWebserver := setupServer(ctx, cfg, api.Deps{
				Deps:  v1handler.Deps{Scanner: scannerService},
				JobUI: setupJobUI(ctx, riverClient, pgsql.Pool),
			})

			// wait for interrupt
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout)
			defer cancel()

			stopWebserver(shutdownCtx)

			logger.Info(ctx, "stopping workers...")
			if err := riverClient.Stop(shutdownCtx); err != nil {
				logger.Error(ctx, "could not stop workers", zap.Error(err))
			}
		},
	}

	return cmd
}
