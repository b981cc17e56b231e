package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hqnguyen/order-engine/internal/core/domain"
)

// EventStreamPrefix namespaces the per-topic Redis streams.
const EventStreamPrefix = "events:"

// RedisPublisher delivers outbox events to a Redis stream, one stream
// per topic. Delivery is at-least-once: consumers must deduplicate on
// event_id.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, event domain.OutboxEvent) error {
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: EventStreamPrefix + event.Topic,
		Values: map[string]any{
			"event_id":     event.ID.String(),
			"event_type":   event.EventType,
			"aggregate_id": event.AggregateID.String(),
			"payload":      string(event.Payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish event %s: %w", event.ID, err)
	}
	return nil
}
