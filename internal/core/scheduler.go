package core

// scheduler.go runs the periodic pruning of the run history.
//
// Each cycle deletes runs (and their reference snapshots) older than the
// retention window. Failures are logged and retried on the next tick; they
// never stop the service.

import (
	"context"
	"log/slog"
	"time"
)

// PruneConfig controls the history pruner. Zero values select the defaults.
type PruneConfig struct {
	Retention     time.Duration // How long runs are kept (default: 180 days)
	CheckInterval time.Duration // How often to prune (default: 24h)
}

func (c PruneConfig) withDefaults() PruneConfig {
	if c.Retention <= 0 {
		c.Retention = 180 * 24 * time.Hour
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 24 * time.Hour
	}
	return c
}

// StartHistoryPruner prunes the run history immediately, then every
// CheckInterval until ctx is cancelled. It does nothing without a store.
func (s *Service) StartHistoryPruner(ctx context.Context, cfg PruneConfig) {
	if s.store == nil {
		return
	}
	cfg = cfg.withDefaults()
	slog.Info("history pruner started",
		"retention_days", int(cfg.Retention.Hours()/24),
		"interval", cfg.CheckInterval,
	)

	s.pruneHistory(ctx, cfg, time.Now())

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("history pruner stopped")
			return
		case now := <-ticker.C:
			s.pruneHistory(ctx, cfg, now)
		}
	}
}

// pruneHistory performs one pruning cycle and returns the rows removed.
func (s *Service) pruneHistory(ctx context.Context, cfg PruneConfig, now time.Time) int64 {
	start := time.Now()
	pruned, err := s.store.PruneRuns(ctx, now.Add(-cfg.Retention))
	if err != nil {
		slog.Error("prune history failed", "error", err)
		return 0
	}
	slog.Info("pruned run history",
		"runs_pruned", pruned,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return pruned
}
