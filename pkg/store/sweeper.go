package store

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically evicts stale artifacts so the audio directory stays
// bounded.
type Sweeper struct {
	store     *ArtifactStore
	interval  time.Duration
	retention time.Duration
	logger    *slog.Logger
}

func NewSweeper(store *ArtifactStore, interval, retention time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if retention <= 0 {
		retention = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:     store,
		interval:  interval,
		retention: retention,
		logger:    logger.With(slog.String("component", "artifact_sweeper")),
	}
}

// Run blocks until ctx is cancelled, sweeping at every interval tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.store.Sweep(s.retention)
			if err != nil {
				s.logger.Warn("artifact sweep failed", slog.String("error", err.Error()))
				continue
			}
			if removed > 0 {
				s.logger.Info("swept artifacts", slog.Int("removed", removed))
			}
		}
	}
}
