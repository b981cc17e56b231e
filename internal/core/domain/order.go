package domain

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderNumberMaxRetries bounds regeneration attempts when a generated
// order number collides with an existing one.
const OrderNumberMaxRetries = 5

// Order is the aggregate root: it owns its items and status history
// and is the sole consistency boundary for them.
//
// OrderNumber is a human-readable identifier assigned once at creation
// and immutable afterwards. IdempotencyKey is empty for orders created
// without a client-supplied key; when present it is unique across all
// orders.
type Order struct {
	ID             uuid.UUID
	OrderNumber    string
	CustomerID     uuid.UUID
	Status         OrderStatus
	TotalAmount    decimal.Decimal
	Notes          string
	IdempotencyKey string
	Items          []OrderItem
	History        []OrderStatusHistory
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}

// OrderItem is a price-snapshotted line of an order. UnitPrice is the
// product price captured at creation time and never re-read afterwards.
type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
	CreatedAt time.Time
}

// OrderStatusHistory is one append-only audit record per status
// transition. OldStatus is nil only on the initial creation record.
type OrderStatusHistory struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	OldStatus *OrderStatus
	NewStatus OrderStatus
	Notes     string
	CreatedAt time.Time
}

// NewOrder builds a PENDING order header. Items, order number and total
// are filled in by the aggregate store during creation.
func NewOrder(customerID uuid.UUID, notes, idempotencyKey string) *Order {
	return &Order{
		ID:             uuid.Must(uuid.NewV7()),
		CustomerID:     customerID,
		Status:         OrderStatusPending,
		TotalAmount:    decimal.Zero,
		Notes:          notes,
		IdempotencyKey: idempotencyKey,
	}
}

// NewOrderItem builds a line item with its subtotal computed from the
// snapshotted unit price.
func NewOrderItem(productID uuid.UUID, quantity int, unitPrice decimal.Decimal) OrderItem {
	return OrderItem{
		ID:        uuid.Must(uuid.NewV7()),
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		Subtotal:  unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// CanTransitionTo checks the requested transition against the state
// machine.
func (o *Order) CanTransitionTo(target OrderStatus) bool {
	return CanTransition(o.Status, target)
}

// IsTerminal reports whether the order accepts no further transitions.
func (o *Order) IsTerminal() bool {
	return IsTerminal(o.Status)
}

// GenerateOrderNumber produces a candidate human-readable order number
// in the form ORD-YYYYMMDD-XXXXXX. Uniqueness is enforced by the store;
// callers retry on collision up to OrderNumberMaxRetries.
func GenerateOrderNumber(now time.Time) string {
	var b [3]byte
	rand.Read(b[:])
	return "ORD-" + now.Format("20060102") + "-" + strings.ToUpper(hex.EncodeToString(b[:]))
}
