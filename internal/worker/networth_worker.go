// Package worker consumes net worth refresh messages and records the
// resulting net worth points.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tally/internal/amqp"
	"tally/internal/cache"
	"tally/internal/core"
)

// Recorder computes and persists the net worth point for a date.
type Recorder interface {
	RecordNetWorth(ctx context.Context, date core.Date) (core.NetWorthPoint, error)
	Today() core.Date
}

// NetWorthWorker turns refresh messages into stored net worth points.
// Redelivered messages are skipped by id for as long as they stay in the
// seen cache.
type NetWorthWorker struct {
	recorder Recorder
	seen     *cache.LRUCache[struct{}]
}

func NewNetWorthWorker(recorder Recorder, seenSize int, seenTTL time.Duration) *NetWorthWorker {
	return &NetWorthWorker{
		recorder: recorder,
		seen:     cache.NewLRUCache[struct{}](seenSize, seenTTL),
	}
}

// Seen exposes the dedupe cache so it can be registered for periodic cleanup.
func (w *NetWorthWorker) Seen() cache.Cleaner {
	return w.seen
}

// HandleRefreshMessage records the net worth for msg.Date. An error leaves
// the message unacknowledged so the broker redelivers it.
func (w *NetWorthWorker) HandleRefreshMessage(ctx context.Context, msg *amqp.NetWorthRefreshMessage) error {
	if msg.MessageID != "" {
		if _, dup := w.seen.Get(msg.MessageID); dup {
			slog.DebugContext(ctx, "Skipping already processed refresh message",
				"component", "worker",
				"message_id", msg.MessageID)
			return nil
		}
	}

	slog.InfoContext(ctx, "Processing net worth refresh",
		"component", "worker",
		"message_id", msg.MessageID,
		"date", msg.Date.String(),
		"reason", msg.Reason)

	point, err := w.recorder.RecordNetWorth(ctx, msg.Date)
	if err != nil {
		return fmt.Errorf("record net worth for %s: %w", msg.Date, err)
	}
	if msg.MessageID != "" {
		w.seen.Set(msg.MessageID, struct{}{})
	}

	slog.InfoContext(ctx, "Net worth recorded",
		"component", "worker",
		"date", point.Date.String(),
		"net_worth", point.NetWorth.String(),
		"total_assets", point.TotalAssets.String(),
		"total_expenses", point.TotalExpenses.String())
	return nil
}

// StartupCheck records today's point so a worker that was down while
// refreshes were published does not leave today stale.
func (w *NetWorthWorker) StartupCheck(ctx context.Context) error {
	today := w.recorder.Today()
	if _, err := w.recorder.RecordNetWorth(ctx, today); err != nil {
		return fmt.Errorf("startup net worth for %s: %w", today, err)
	}
	slog.InfoContext(ctx, "Startup net worth recorded", "component", "worker", "date", today.String())
	return nil
}
