package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/followup/internal/config"
	"github.com/JonMunkholm/followup/internal/core"
	_ "github.com/JonMunkholm/followup/internal/core/tables" // Register all table kinds
	"github.com/JonMunkholm/followup/internal/logging"
	"github.com/JonMunkholm/followup/internal/metrics"
	"github.com/JonMunkholm/followup/internal/storage/postgres"
	"github.com/JonMunkholm/followup/internal/web"
	"github.com/JonMunkholm/followup/internal/workbook"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"data_dir", cfg.Runs.DataDir,
		"run_max_concurrent", cfg.Runs.MaxConcurrent,
		"history_enabled", cfg.Database.Enabled(),
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	if err := os.MkdirAll(cfg.Runs.DataDir, 0o755); err != nil {
		slog.Error("failed to create data directory", "path", cfg.Runs.DataDir, "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	var store core.RunStore
	if cfg.Database.Enabled() {
		pool, err := connect(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		pg := postgres.New(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			slog.Error("failed to create history schema", "error", err)
			os.Exit(1)
		}
		store = pg
	} else {
		slog.Warn("DATABASE_URL not set, run history disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	runMetrics := metrics.NewRuns(reg)

	pipeline := core.NewPipeline(workbook.New(cfg.Runs.ReadConcurrency), config.Files{})
	service := core.NewService(pipeline, core.ServiceOptions{
		Limiter:         core.NewRunLimiter(cfg.Runs.MaxConcurrent, cfg.Runs.MaxWaitTime),
		Store:           store,
		Observer:        runMetrics,
		RunTimeout:      cfg.Runs.Timeout,
		ResultRetention: cfg.Runs.ResultRetention,
	})

	slog.Info("table kinds registered", "count", len(service.ListTables()))

	opts := web.Options{
		DataDir:        cfg.Runs.DataDir,
		RequestTimeout: cfg.Server.RequestTimeout,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
	}
	if cfg.Rate.Enabled {
		opts.RequestsPerMinute = cfg.Rate.RequestsPerMinute
		opts.RunsPerMinute = cfg.Rate.RunLimit
	}
	if cfg.Metrics.Enabled {
		opts.Metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
		opts.MetricsPath = cfg.Metrics.Path
	}
	server := web.NewServer(service, opts)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartHistoryPruner(jobCtx, core.PruneConfig{
		Retention:     cfg.History.Retention(),
		CheckInterval: cfg.History.CheckInterval,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Runs cannot be interrupted; wait for them before closing the pool.
		if status := service.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for runs to complete", "active", status.Active)
			if err := service.WaitForRuns(shutdownCtx); err != nil {
				slog.Warn("runs did not complete in time", "error", err)
			} else {
				slog.Info("all runs completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// connect opens and verifies the history database pool.
func connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}
