package domain

import "errors"

// Domain errors raised by the transactional core. Every one of them
// aborts the surrounding transaction; none are retried internally.
var (
	ErrCustomerNotFound = errors.New("customer not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrOrderNotFound    = errors.New("order not found")

	ErrInactiveCustomer = errors.New("customer is inactive")
	ErrInactiveProduct  = errors.New("product is inactive")

	ErrInsufficientStock = errors.New("insufficient stock")

	ErrInvalidOrderStatus = errors.New("invalid order status transition")

	// ErrOrderNumberExhausted is fatal: order-number generation
	// collided on every attempt within the retry budget.
	ErrOrderNumberExhausted = errors.New("order number generation exhausted retries")

	// ErrIdempotencyConflict signals that a concurrent create with the
	// same idempotency key won the race. The unique index on the key is
	// the final safety net; callers resolve it by returning the
	// winner's order.
	ErrIdempotencyConflict = errors.New("idempotency key already used")
)
