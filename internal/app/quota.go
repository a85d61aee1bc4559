package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pawpals/backend/internal/repositories"
	"github.com/pawpals/backend/internal/videos"
)

const snapshotTimeout = 5 * time.Second

// restoreLedger seeds the ledger with spend recorded by an earlier process in
// the same window. A store failure only costs accuracy, so startup continues.
func restoreLedger(ctx context.Context, ledger *videos.Ledger, store repositories.QuotaStore, logger *slog.Logger) {
	windowStart, _ := ledger.Snapshot()

	loadCtx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	used, err := store.Load(loadCtx, windowStart)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return
	case err != nil:
		logger.Warn("could not restore quota ledger", "window_start", windowStart, "error", err)
		return
	}

	if ledger.Restore(windowStart, used) {
		logger.Info("restored quota ledger", "window_start", windowStart, "used", used)
	}
}

func snapshotLedger(ctx context.Context, ledger *videos.Ledger, store repositories.QuotaStore, logger *slog.Logger) {
	windowStart, used := ledger.Snapshot()
	if used == 0 {
		return
	}

	saveCtx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	if err := store.Save(saveCtx, windowStart, used); err != nil {
		logger.Warn("could not persist quota ledger", "window_start", windowStart, "used", used, "error", err)
	}
}

// runLedger rolls the window over promptly and persists spend every interval.
// A final snapshot is written when ctx ends.
func runLedger(ctx context.Context, ledger *videos.Ledger, store repositories.QuotaStore, interval time.Duration, logger *slog.Logger) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			snapshotLedger(context.WithoutCancel(ctx), ledger, store, logger)
			return nil
		case <-ticker.C:
			ledger.ResetIfWindowElapsed()
			snapshotLedger(ctx, ledger, store, logger)
		}
	}
}
