package domain

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusSeparated OrderStatus = "SEPARATED"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// ValidTransitions is the single source of truth for the order state
// machine. Every transition in the system, including cancellation, is
// checked against this map before any mutation. Terminal states map to
// an empty set; self-transitions are never allowed.
var ValidTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusSeparated, OrderStatusCancelled},
	OrderStatusSeparated: {OrderStatusShipped},
	OrderStatusShipped:   {OrderStatusDelivered},
	OrderStatusDelivered: {},
	OrderStatusCancelled: {},
}

// AllStatuses lists every order status, for validation and tests.
var AllStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusSeparated,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// CanTransition reports whether the state machine allows moving from
// current to target.
func CanTransition(current, target OrderStatus) bool {
	for _, allowed := range ValidTransitions[current] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func IsTerminal(status OrderStatus) bool {
	return len(ValidTransitions[status]) == 0
}

// IsValidStatus reports whether s is a known order status.
func IsValidStatus(s OrderStatus) bool {
	_, ok := ValidTransitions[s]
	return ok
}
