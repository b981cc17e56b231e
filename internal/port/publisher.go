package port

import (
	"context"

	"github.com/hqnguyen/order-engine/internal/core/domain"
)

// EventPublisher delivers a committed outbox event downstream. The
// relay wires a concrete sink (Redis stream, message queue, or a no-op
// in tests); the core never touches a global bus.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.OutboxEvent) error
}
