package climate

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/itohio/microclimate/pkg/watchdog"
)

// feedWatchdog kicks k every interval until ctx is cancelled.
func feedWatchdog(ctx context.Context, k watchdog.Kicker, interval time.Duration, logger *zap.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	failing := false
	for {
		err := k.Kick()
		switch {
		case err != nil && !failing:
			logger.Error("Watchdog kick failed", zap.Error(err))
			failing = true
		case err == nil && failing:
			logger.Info("Watchdog kick recovered")
			failing = false
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
