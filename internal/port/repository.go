package port

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hqnguyen/order-engine/internal/core/domain"
)

// UnitOfWork runs fn inside one storage transaction. The transaction
// commits when fn returns nil and rolls back on any error, so a domain
// error leaves zero persisted side effects.
type UnitOfWork interface {
	Run(ctx context.Context, fn func(tx RepositoryTx) error) error
}

// RepositoryTx exposes the repositories bound to one open transaction.
// Row locks taken through them are held until the transaction ends.
type RepositoryTx interface {
	Orders() OrderRepository
	Products() ProductRepository
	Customers() CustomerRepository
	Outbox() OutboxRepository
}

// OrderFilter narrows ListOrders. Nil fields are ignored.
type OrderFilter struct {
	Status      *domain.OrderStatus
	CustomerID  *uuid.UUID
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// OrderRepository persists the Order aggregate. Lookups return
// (nil, nil) when the aggregate does not exist.
type OrderRepository interface {
	// Create inserts the order header and all its items atomically,
	// assigning a unique order number (bounded retry on collision) and
	// summing item subtotals into the total. Must run inside a
	// transaction.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID is a non-locking read with items and history eager-loaded.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)

	// GetForUpdate fetches with a pessimistic write lock held for the
	// remainder of the transaction, same eager-loading shape as GetByID.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error)

	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error)

	// UpdateStatus persists a new status on the order header.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error

	// AddHistory appends one audit record. oldStatus is recorded as
	// given; nil marks the initial creation record.
	AddHistory(ctx context.Context, orderID uuid.UUID, oldStatus *domain.OrderStatus, newStatus domain.OrderStatus, notes string) (*domain.OrderStatusHistory, error)

	// RecordTransition appends a history record using the order's
	// current persisted status as the old value. Racy outside a lock
	// scope; diagnostic fallback only. The orchestrator always passes
	// the captured old status to AddHistory instead.
	RecordTransition(ctx context.Context, orderID uuid.UUID, newStatus domain.OrderStatus, notes string) (*domain.OrderStatusHistory, error)

	List(ctx context.Context, filter OrderFilter) ([]domain.Order, error)
}

// ProductRepository is the stock ledger access path.
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error

	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)

	// GetForUpdate fetches a product row with a pessimistic write lock.
	// Must be called inside an open transaction; returns (nil, nil)
	// when the product does not exist.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Product, error)

	// UpdateStock persists the stock counter of an already-locked row.
	UpdateStock(ctx context.Context, product *domain.Product) error
}

// CustomerRepository is the customer lookup collaborator.
type CustomerRepository interface {
	Create(ctx context.Context, customer *domain.Customer) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error)
}

// OutboxRepository stores domain events for at-least-once delivery.
type OutboxRepository interface {
	// Append writes a pending event; called inside the same transaction
	// as the mutation the event describes.
	Append(ctx context.Context, event *domain.OutboxEvent) error

	// PullPending returns up to limit pending events in creation order.
	PullPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error)

	MarkPublished(ctx context.Context, id uuid.UUID) error

	// MarkFailed records the delivery error and increments the retry
	// counter.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}
