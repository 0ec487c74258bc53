package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/civicdesk/grievance-service/internal/intake"
)

// RunSessionSweeper evicts idle intake sessions every interval until ctx is
// cancelled.
func RunSessionSweeper(ctx context.Context, registry *intake.Registry, interval time.Duration, logger *zap.Logger) error {
	logger.Info("session sweeper started", zap.Duration("interval", interval), zap.Duration("ttl", registry.TTL()))
	registry.Run(ctx, interval)
	logger.Info("session sweeper stopped")
	return nil
}
