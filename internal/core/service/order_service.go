package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/hqnguyen/order-engine/internal/core/domain"
	"github.com/hqnguyen/order-engine/internal/metrics"
	"github.com/hqnguyen/order-engine/internal/port"
)

// CreateOrderItemInput is one requested line of a new order.
type CreateOrderItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// CreateOrderInput carries everything needed to create an order.
// IdempotencyKey is optional; when set, replaying the same key returns
// the original order without re-executing side effects.
type CreateOrderInput struct {
	CustomerID     uuid.UUID
	Items          []CreateOrderItemInput
	Notes          string
	IdempotencyKey string
}

// OrderService orchestrates the order use-cases. Each operation is one
// atomic unit of work: it opens a transaction, locks the rows it needs
// in a deterministic order, validates the business invariants, mutates
// stock and aggregate together, appends history and the outbox event,
// and commits. Any domain error rolls the whole transaction back.
//
// The service holds no mutable state; all shared state lives in the
// transactional store behind the injected ports.
type OrderService struct {
	uow     port.UnitOfWork
	orders  port.OrderRepository
	metrics *metrics.Registry
	log     *slog.Logger
}

func NewOrderService(uow port.UnitOfWork, orders port.OrderRepository, m *metrics.Registry, logger *slog.Logger) *OrderService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderService{
		uow:     uow,
		orders:  orders,
		metrics: m,
		log:     logger,
	}
}

// CreateOrder creates an order with atomic multi-product stock
// reservation.
//
// Product rows are locked in ascending product-id order regardless of
// the order the items arrived in. Every concurrent caller acquires
// locks in the same global order, so lock-wait cycles cannot form;
// this total order is the sole deadlock-prevention mechanism and must
// not be changed.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	log := s.log.With("customer_id", in.CustomerID.String())
	log.InfoContext(ctx, "order.creation_started")

	if len(in.Items) == 0 {
		return nil, errors.New("order requires at least one item")
	}
	for _, it := range in.Items {
		if it.Quantity < 1 {
			return nil, fmt.Errorf("quantity must be at least 1 for product %s", it.ProductID)
		}
	}

	// Idempotent fast path: checked before any locking or mutation.
	if in.IdempotencyKey != "" {
		existing, err := s.orders.GetByIdempotencyKey(ctx, in.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("idempotency lookup: %w", err)
		}
		if existing != nil {
			log.InfoContext(ctx, "order.idempotency_hit",
				"order_id", existing.ID.String(), "key", in.IdempotencyKey)
			s.metrics.IdempotentReplays.Inc()
			return existing, nil
		}
	}

	var orderID uuid.UUID
	err := s.uow.Run(ctx, func(tx port.RepositoryTx) error {
		customer, err := tx.Customers().GetByID(ctx, in.CustomerID)
		if err != nil {
			return fmt.Errorf("fetch customer: %w", err)
		}
		if customer == nil {
			return fmt.Errorf("%w: %s", domain.ErrCustomerNotFound, in.CustomerID)
		}
		if !customer.IsActive {
			return fmt.Errorf("%w: %s", domain.ErrInactiveCustomer, in.CustomerID)
		}

		items := make([]CreateOrderItemInput, len(in.Items))
		copy(items, in.Items)
		sort.Slice(items, func(i, j int) bool {
			return bytes.Compare(items[i].ProductID[:], items[j].ProductID[:]) < 0
		})

		orderItems := make([]domain.OrderItem, 0, len(items))
		for _, it := range items {
			product, err := tx.Products().GetForUpdate(ctx, it.ProductID)
			if err != nil {
				return fmt.Errorf("lock product: %w", err)
			}
			if product == nil {
				return fmt.Errorf("%w: %s", domain.ErrProductNotFound, it.ProductID)
			}
			if err := product.Reserve(it.Quantity); err != nil {
				return err
			}
			if err := tx.Products().UpdateStock(ctx, product); err != nil {
				return fmt.Errorf("update stock: %w", err)
			}
			log.InfoContext(ctx, "order.stock_reserved",
				"product_id", product.ID.String(),
				"quantity", it.Quantity,
				"remaining", product.StockQuantity)

			// Snapshot the current price: the line keeps it forever.
			orderItems = append(orderItems, domain.NewOrderItem(product.ID, it.Quantity, product.Price))
		}

		order := domain.NewOrder(in.CustomerID, in.Notes, in.IdempotencyKey)
		order.Items = orderItems
		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}

		if _, err := tx.Orders().AddHistory(ctx, order.ID, nil, domain.OrderStatusPending, "Order created"); err != nil {
			return fmt.Errorf("record history: %w", err)
		}

		event, err := domain.NewOrderEvent(domain.EventOrderCreated, order, "")
		if err != nil {
			return fmt.Errorf("build event: %w", err)
		}
		if err := tx.Outbox().Append(ctx, event); err != nil {
			return fmt.Errorf("append outbox: %w", err)
		}

		orderID = order.ID
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			s.metrics.StockConflicts.Inc()
		}
		// Lost the race on the idempotency unique index: another
		// transaction with the same key committed first. Return the
		// winner's order, exactly as the fast path would have.
		if in.IdempotencyKey != "" && errors.Is(err, domain.ErrIdempotencyConflict) {
			winner, lookupErr := s.orders.GetByIdempotencyKey(ctx, in.IdempotencyKey)
			if lookupErr == nil && winner != nil {
				s.metrics.IdempotentReplays.Inc()
				return winner, nil
			}
		}
		return nil, err
	}

	s.metrics.OrdersCreated.Inc()
	log.InfoContext(ctx, "order.created", "order_id", orderID.String())
	return s.refetch(ctx, orderID)
}

// UpdateStatus transitions an order to newStatus after validating the
// move against the state machine, under a row lock on the order.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus domain.OrderStatus, notes string) (*domain.Order, error) {
	if !domain.IsValidStatus(newStatus) {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidOrderStatus, newStatus)
	}

	var oldStatus domain.OrderStatus
	err := s.uow.Run(ctx, func(tx port.RepositoryTx) error {
		order, err := tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		if order == nil {
			return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
		}

		if !order.CanTransitionTo(newStatus) {
			s.log.WarnContext(ctx, "order.invalid_transition",
				"order_id", orderID.String(),
				"current_status", string(order.Status),
				"new_status", string(newStatus))
			return fmt.Errorf("%w: cannot transition from %s to %s",
				domain.ErrInvalidOrderStatus, order.Status, newStatus)
		}

		// Captured before the mutation; passed explicitly so history
		// never depends on a stale re-read.
		oldStatus = order.Status
		order.Status = newStatus

		if err := tx.Orders().UpdateStatus(ctx, order.ID, newStatus); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if _, err := tx.Orders().AddHistory(ctx, order.ID, &oldStatus, newStatus, notes); err != nil {
			return fmt.Errorf("record history: %w", err)
		}

		event, err := domain.NewOrderEvent(domain.EventOrderStatusChanged, order, oldStatus)
		if err != nil {
			return fmt.Errorf("build event: %w", err)
		}
		return tx.Outbox().Append(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.StatusTransitions.Inc()
	s.log.InfoContext(ctx, "order.status_updated",
		"order_id", orderID.String(),
		"old_status", string(oldStatus),
		"new_status", string(newStatus))
	return s.refetch(ctx, orderID)
}

// CancelOrder cancels an order and releases its reserved stock.
//
// The order row is locked first, before any product row: two
// concurrent cancellations of the same order serialize on that lock,
// so stock can never be released twice. The transition is validated
// before any stock is touched, making a rejected cancel side-effect
// free. Product rows are then locked in ascending product-id order,
// the same rule creation uses.
func (s *OrderService) CancelOrder(ctx context.Context, orderID uuid.UUID, notes string) (*domain.Order, error) {
	if notes == "" {
		notes = "Order cancelled"
	}

	err := s.uow.Run(ctx, func(tx port.RepositoryTx) error {
		order, err := tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		if order == nil {
			return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
		}

		if !order.CanTransitionTo(domain.OrderStatusCancelled) {
			s.log.WarnContext(ctx, "order.cancel_not_allowed",
				"order_id", orderID.String(),
				"current_status", string(order.Status))
			return fmt.Errorf("%w: cannot cancel order in status %s",
				domain.ErrInvalidOrderStatus, order.Status)
		}

		items := append([]domain.OrderItem(nil), order.Items...)
		sort.Slice(items, func(i, j int) bool {
			return bytes.Compare(items[i].ProductID[:], items[j].ProductID[:]) < 0
		})

		for _, item := range items {
			product, err := tx.Products().GetForUpdate(ctx, item.ProductID)
			if err != nil {
				return fmt.Errorf("lock product: %w", err)
			}
			if product == nil {
				continue
			}
			product.Release(item.Quantity)
			if err := tx.Products().UpdateStock(ctx, product); err != nil {
				return fmt.Errorf("update stock: %w", err)
			}
			s.log.InfoContext(ctx, "order.stock_released",
				"product_id", product.ID.String(),
				"quantity", item.Quantity,
				"restored_stock", product.StockQuantity)
		}

		oldStatus := order.Status
		order.Status = domain.OrderStatusCancelled

		if err := tx.Orders().UpdateStatus(ctx, order.ID, domain.OrderStatusCancelled); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if _, err := tx.Orders().AddHistory(ctx, order.ID, &oldStatus, domain.OrderStatusCancelled, notes); err != nil {
			return fmt.Errorf("record history: %w", err)
		}

		event, err := domain.NewOrderEvent(domain.EventOrderCancelled, order, oldStatus)
		if err != nil {
			return fmt.Errorf("build event: %w", err)
		}
		return tx.Outbox().Append(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.OrdersCancelled.Inc()
	s.log.InfoContext(ctx, "order.cancelled", "order_id", orderID.String())
	return s.refetch(ctx, orderID)
}

// GetOrder retrieves one order with items and history eager-loaded.
func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("fetch order: %w", err)
	}
	if order == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	return order, nil
}

// ListOrders returns orders matching the filter.
func (s *OrderService) ListOrders(ctx context.Context, filter port.OrderFilter) ([]domain.Order, error) {
	return s.orders.List(ctx, filter)
}

func (s *OrderService) refetch(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("refetch order: %w", err)
	}
	if order == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	return order, nil
}
