package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Domain event types written to the outbox in the same transaction as
// the mutation they describe.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderCancelled     = "order.cancelled"
)

// OrdersTopic is the downstream destination for order events.
const OrdersTopic = "orders"

type EventStatus string

const (
	EventStatusPending   EventStatus = "PENDING"
	EventStatusPublished EventStatus = "PUBLISHED"
	EventStatusFailed    EventStatus = "FAILED"
)

// OutboxEvent is one durable event record. It is appended inside the
// business transaction and later delivered at least once by the relay.
type OutboxEvent struct {
	ID           uuid.UUID
	EventType    string
	AggregateID  uuid.UUID
	Topic        string
	Payload      json.RawMessage
	Status       EventStatus
	RetryCount   int
	ErrorMessage string
	ProcessedAt  *time.Time
	CreatedAt    time.Time
}

// OrderEventPayload is the body shared by all order events.
type OrderEventPayload struct {
	OrderID     uuid.UUID   `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	CustomerID  uuid.UUID   `json:"customer_id"`
	OldStatus   OrderStatus `json:"old_status,omitempty"`
	NewStatus   OrderStatus `json:"new_status"`
	TotalAmount string      `json:"total_amount"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

// NewOrderEvent builds a pending outbox record for an order mutation.
// oldStatus is empty for the creation event.
func NewOrderEvent(eventType string, o *Order, oldStatus OrderStatus) (*OutboxEvent, error) {
	payload, err := json.Marshal(OrderEventPayload{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		CustomerID:  o.CustomerID,
		OldStatus:   oldStatus,
		NewStatus:   o.Status,
		TotalAmount: o.TotalAmount.StringFixed(2),
		OccurredAt:  time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	return &OutboxEvent{
		ID:          uuid.Must(uuid.NewV7()),
		EventType:   eventType,
		AggregateID: o.ID,
		Topic:       OrdersTopic,
		Payload:     payload,
		Status:      EventStatusPending,
	}, nil
}
