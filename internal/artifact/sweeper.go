package artifact

import (
	"context"
	"log/slog"
	"time"
)

// Sweep applies retention on a fixed interval until ctx is cancelled.
// The caller owns the goroutine.
func Sweep(ctx context.Context, store Store, interval time.Duration, log *slog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.Prune(ctx)
			if err != nil {
				log.Warn("artifact sweep failed", slogError(err))
				continue
			}
			if removed > 0 {
				log.Info("artifacts swept", slog.Int("removed", removed))
			}
		}
	}
}
