package worker

import (
	"context"
	"fmt"
	"time"

	"expenses/internal/amqp"
	"expenses/internal/cache"
	"expenses/internal/log"
	"expenses/internal/metrics"
)

const (
	DefaultDedupeSize = 10000
	DefaultDedupeTTL  = 10 * time.Minute
)

// EventWorker records every change event it receives. Redeliveries of an
// event already seen within the dedupe window are acknowledged but not logged again.
type EventWorker struct {
	logger *log.Logger
	seen   *cache.LRU[struct{}]
}

func NewEventWorker(logger *log.Logger, dedupeSize int, dedupeTTL time.Duration) *EventWorker {
	if dedupeSize <= 0 {
		dedupeSize = DefaultDedupeSize
	}
	if dedupeTTL <= 0 {
		dedupeTTL = DefaultDedupeTTL
	}
	return &EventWorker{
		logger: logger.WithComponent(log.ComponentEvents),
		seen:   cache.NewLRU[struct{}](dedupeSize, dedupeTTL),
	}
}

// HandleExpenseEvent is the consumer callback passed to amqp.Client.ConsumeExpenseEvents.
func (w *EventWorker) HandleExpenseEvent(ctx context.Context, ev *amqp.ExpenseEvent) error {
	// Requeueing would redeliver it forever, so it is acknowledged and dropped.
	if ev.ID <= 0 {
		w.logger.WarnContext(ctx, "Dropping event with invalid id", "type", ev.Type, log.FieldExpenseID, ev.ID)
		return nil
	}

	key := eventKey(ev)
	if !w.seen.Add(key, struct{}{}) {
		metrics.CountEventConsumed(string(ev.Type), true)
		w.logger.DebugContext(ctx, "Skipping redelivered event", "type", ev.Type, log.FieldExpenseID, ev.ID)
		return nil
	}
	metrics.CountEventConsumed(string(ev.Type), false)

	attrs := []any{
		"type", ev.Type,
		log.FieldExpenseID, ev.ID,
		"timestamp", ev.Timestamp,
	}
	if ev.Expense != nil {
		attrs = append(attrs,
			"amount", ev.Expense.Amount,
			"description", ev.Expense.Description,
			"date", ev.Expense.Date,
			"category", ev.Expense.Category)
	}
	w.logger.InfoContext(ctx, "Expense event", attrs...)
	return nil
}

// CleanupLoop drops expired dedupe entries until ctx is done.
func (w *EventWorker) CleanupLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := w.seen.CleanExpired(); n > 0 {
				w.logger.DebugContext(ctx, "Dedupe cache cleanup completed", "entries_removed", n)
			}
		}
	}
}

func eventKey(ev *amqp.ExpenseEvent) string {
	return fmt.Sprintf("%s/%d/%d", ev.Type, ev.ID, ev.Timestamp.UnixNano())
}
