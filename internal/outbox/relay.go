package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/hqnguyen/order-engine/internal/metrics"
	"github.com/hqnguyen/order-engine/internal/port"
)

// Relay drains pending outbox events into the publisher. Events were
// committed with the business mutation that produced them, so the
// relay gives at-least-once delivery without a distributed
// transaction. A failed publish marks the event FAILED with the error
// recorded; it is not retried automatically.
type Relay struct {
	outbox    port.OutboxRepository
	publisher port.EventPublisher
	metrics   *metrics.Registry
	log       *slog.Logger

	interval  time.Duration
	batchSize int
}

func NewRelay(outbox port.OutboxRepository, publisher port.EventPublisher, m *metrics.Registry, logger *slog.Logger, interval time.Duration, batchSize int) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		outbox:    outbox,
		publisher: publisher,
		metrics:   m,
		log:       logger,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Drain(ctx); err != nil {
				r.log.ErrorContext(ctx, "outbox.drain_failed", "error", err)
			}
		}
	}
}

// Drain publishes one batch of pending events in creation order.
func (r *Relay) Drain(ctx context.Context) error {
	events, err := r.outbox.PullPending(ctx, r.batchSize)
	if err != nil {
		return err
	}

	for _, event := range events {
		if err := r.publisher.Publish(ctx, event); err != nil {
			r.metrics.OutboxFailed.Inc()
			r.log.WarnContext(ctx, "outbox.publish_failed",
				"event_id", event.ID.String(),
				"event_type", event.EventType,
				"error", err)
			if markErr := r.outbox.MarkFailed(ctx, event.ID, err.Error()); markErr != nil {
				return markErr
			}
			continue
		}

		r.metrics.OutboxPublished.Inc()
		if err := r.outbox.MarkPublished(ctx, event.ID); err != nil {
			// The event was delivered but stays PENDING; the next drain
			// republishes it. At-least-once, by contract.
			return err
		}
		r.log.InfoContext(ctx, "outbox.published",
			"event_id", event.ID.String(),
			"event_type", event.EventType,
			"aggregate_id", event.AggregateID.String())
	}
	return nil
}
