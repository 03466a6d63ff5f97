package presence

import (
	"context"
	"log/slog"
	"time"

	"collabhub/internal/realtime/metrics"
	"collabhub/internal/realtime/ports"
)

// StartSweeper removes expired leases every interval until ctx is cancelled.
// Sweep failures are logged and retried on the next tick.
func StartSweeper(ctx context.Context, store ports.PresenceStore, interval time.Duration, logger *slog.Logger, m *metrics.Metrics) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			SweepOnce(ctx, store, time.Now(), logger, m)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SweepOnce runs a single sweep at now and returns the number of removed entries.
func SweepOnce(ctx context.Context, store ports.PresenceStore, now time.Time, logger *slog.Logger, m *metrics.Metrics) int {
	removed, err := store.Sweep(ctx, now)
	if err != nil {
		logger.WarnContext(ctx, "presence sweep failed", "error", err, "removed", removed)
	}
	if removed > 0 {
		logger.DebugContext(ctx, "presence sweep removed expired entries", "removed", removed)
		if m != nil {
			m.AddSwept(removed)
		}
	}
	return removed
}
