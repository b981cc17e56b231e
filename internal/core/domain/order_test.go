package domain

import (
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestCanTransition_AllowedMoves(t *testing.T) {
	allowed := [][2]OrderStatus{
		{OrderStatusPending, OrderStatusConfirmed},
		{OrderStatusPending, OrderStatusCancelled},
		{OrderStatusConfirmed, OrderStatusSeparated},
		{OrderStatusConfirmed, OrderStatusCancelled},
		{OrderStatusSeparated, OrderStatusShipped},
		{OrderStatusShipped, OrderStatusDelivered},
	}
	for _, pair := range allowed {
		if !CanTransition(pair[0], pair[1]) {
			t.Errorf("expected %s -> %s to be allowed", pair[0], pair[1])
		}
	}
}

func TestCanTransition_RejectedMoves(t *testing.T) {
	rejected := [][2]OrderStatus{
		{OrderStatusPending, OrderStatusShipped},
		{OrderStatusPending, OrderStatusDelivered},
		{OrderStatusPending, OrderStatusSeparated},
		{OrderStatusConfirmed, OrderStatusPending},
		{OrderStatusSeparated, OrderStatusCancelled},
		{OrderStatusShipped, OrderStatusCancelled},
		{OrderStatusDelivered, OrderStatusPending},
		{OrderStatusCancelled, OrderStatusPending},
	}
	for _, pair := range rejected {
		if CanTransition(pair[0], pair[1]) {
			t.Errorf("expected %s -> %s to be rejected", pair[0], pair[1])
		}
	}
}

func TestStateMachine_Totality(t *testing.T) {
	for _, status := range AllStatuses {
		if _, ok := ValidTransitions[status]; !ok {
			t.Errorf("no adjacency entry for %s", status)
		}
		if CanTransition(status, status) {
			t.Errorf("self-transition allowed for %s", status)
		}
	}
	if len(ValidTransitions) != len(AllStatuses) {
		t.Errorf("adjacency map has %d entries, want %d", len(ValidTransitions), len(AllStatuses))
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := map[OrderStatus]bool{
		OrderStatusPending:   false,
		OrderStatusConfirmed: false,
		OrderStatusSeparated: false,
		OrderStatusShipped:   false,
		OrderStatusDelivered: true,
		OrderStatusCancelled: true,
	}
	for status, want := range terminal {
		if got := IsTerminal(status); got != want {
			t.Errorf("IsTerminal(%s) = %v, want %v", status, got, want)
		}
	}
}

func TestIsValidStatus(t *testing.T) {
	for _, status := range AllStatuses {
		if !IsValidStatus(status) {
			t.Errorf("expected %s to be valid", status)
		}
	}
	if IsValidStatus("REFUNDED") {
		t.Error("expected unknown status to be invalid")
	}
}

func TestGenerateOrderNumber_Format(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	pattern := regexp.MustCompile(`^ORD-20260829-[0-9A-F]{6}$`)

	for i := 0; i < 20; i++ {
		number := GenerateOrderNumber(now)
		if !pattern.MatchString(number) {
			t.Fatalf("order number %q does not match expected format", number)
		}
	}
}

func TestNewOrderItem_Subtotal(t *testing.T) {
	item := NewOrderItem(uuid.Must(uuid.NewV7()), 3, decimal.RequireFromString("10.50"))

	if want := decimal.RequireFromString("31.50"); !item.Subtotal.Equal(want) {
		t.Errorf("subtotal = %s, want %s", item.Subtotal, want)
	}
	if item.ID == uuid.Nil {
		t.Error("expected non-nil item id")
	}
}

func TestNewOrder_Defaults(t *testing.T) {
	customerID := uuid.Must(uuid.NewV7())
	order := NewOrder(customerID, "gift wrap", "key-1")

	if order.Status != OrderStatusPending {
		t.Errorf("status = %s, want PENDING", order.Status)
	}
	if !order.TotalAmount.IsZero() {
		t.Errorf("total = %s, want 0", order.TotalAmount)
	}
	if order.CustomerID != customerID {
		t.Error("customer id not set")
	}
	if order.IsTerminal() {
		t.Error("new order must not be terminal")
	}
}
