package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RevocationCleaner deletes revocation rows whose session would have expired anyway
type RevocationCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// CleanupManager periodically purges expired session revocations
type CleanupManager struct {
	revocations RevocationCleaner
	logger      *slog.Logger
	interval    time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(revocations RevocationCleaner, logger *slog.Logger, interval time.Duration) *CleanupManager {
	if interval <= 0 {
		interval = time.Hour
	}
	return &CleanupManager{
		revocations: revocations,
		logger:      logger,
		interval:    interval,
		stopCh:      make(chan struct{}),
	}
}

// Start runs one purge immediately, then one per interval until ctx is
// cancelled or Stop is called. It blocks.
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rowsDeleted, err := cm.revocations.CleanupExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to purge expired session revocations", slog.Any("error", err))
		return
	}

	if rowsDeleted > 0 {
		cm.logger.Info("expired session revocations purged", slog.Int64("rows_deleted", rowsDeleted))
	}
}

// Stop signals the cleanup manager to stop. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
