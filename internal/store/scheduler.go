package store

// scheduler.go keeps the dataset fresh in the background.
//
// The scheduler loads once on start, then again every interval. A failed
// load is logged and the previous records stay in place; the next tick tries
// again. It stops when the context is cancelled.

import (
	"context"
	"log/slog"
	"time"
)

// StartRefreshScheduler loads the dataset immediately and, when interval is
// positive, keeps reloading it until ctx is cancelled. With a zero interval
// it returns after the first load. Scheduled loads share the in-flight
// deduplication of Load, so a manual reload never doubles a fetch.
func (s *Store) StartRefreshScheduler(ctx context.Context, loader Loader, sheetID string, interval time.Duration) {
	s.runRefreshJob(ctx, loader, sheetID)

	if interval <= 0 {
		return
	}

	slog.Info("refresh scheduler started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("refresh scheduler stopped")
			return
		case <-ticker.C:
			s.runRefreshJob(ctx, loader, sheetID)
		}
	}
}

// runRefreshJob performs one load and logs its outcome.
func (s *Store) runRefreshJob(ctx context.Context, loader Loader, sheetID string) {
	start := time.Now()
	if err := s.Load(ctx, loader, sheetID); err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Warn("scheduled load failed, keeping previous dataset",
			"sheet_id", sheetID,
			"error", err,
		)
		return
	}
	slog.Info("dataset refreshed",
		"sheet_id", sheetID,
		"locations", len(s.Records()),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
