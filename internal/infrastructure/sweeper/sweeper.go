package sweeper

import (
	"context"
	"log/slog"
	"time"
)

// SweepFunc removes expired entries and reports how many went away.
type SweepFunc func(ctx context.Context) (int64, error)

// Run calls sweep every interval until ctx is done. It blocks; start it with go.
func Run(ctx context.Context, interval time.Duration, sweep SweepFunc, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evicted, err := sweep(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Error("session sweep failed", "error", err)
				}
				continue
			}
			if evicted > 0 {
				logger.Info("session sweeper evicted expired records", "count", evicted)
			}
		}
	}
}
