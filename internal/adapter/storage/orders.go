package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hqnguyen/order-engine/internal/core/domain"
	"github.com/hqnguyen/order-engine/internal/port"
)

// OrderMySQL persists the Order aggregate: header, items and status
// history rows.
type OrderMySQL struct {
	q queryer
}

const orderColumns = `id, order_number, customer_id, status, total_amount, notes, idempotency_key, created_at, updated_at, deleted_at`

// Create inserts the header and all item rows, assigning a unique
// order number. Number collisions are detected via the unique index
// and retried up to domain.OrderNumberMaxRetries; exhausting the
// budget is fatal. Must run inside the caller's transaction.
func (r *OrderMySQL) Create(ctx context.Context, order *domain.Order) error {
	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now

	var key any
	if order.IdempotencyKey != "" {
		key = order.IdempotencyKey
	}

	inserted := false
	for attempt := 0; attempt < domain.OrderNumberMaxRetries; attempt++ {
		order.OrderNumber = domain.GenerateOrderNumber(now)
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO orders (id, order_number, customer_id, status, total_amount, notes, idempotency_key, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			order.ID.String(), order.OrderNumber, order.CustomerID.String(),
			string(order.Status), decimal.Zero, order.Notes, key, now, now,
		)
		if err == nil {
			inserted = true
			break
		}
		if isDuplicate(err, "uq_orders_order_number") {
			continue
		}
		if isDuplicate(err, "uq_orders_idempotency_key") {
			return fmt.Errorf("%w: %q", domain.ErrIdempotencyConflict, order.IdempotencyKey)
		}
		return fmt.Errorf("insert order: %w", err)
	}
	if !inserted {
		return fmt.Errorf("%w: %d attempts", domain.ErrOrderNumberExhausted, domain.OrderNumberMaxRetries)
	}

	total := decimal.Zero
	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		item.CreatedAt = now
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, unit_price, subtotal, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.ID.String(), item.OrderID.String(), item.ProductID.String(),
			item.Quantity, item.UnitPrice, item.Subtotal, now,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
		total = total.Add(item.Subtotal)
	}

	order.TotalAmount = total
	if _, err := r.q.ExecContext(ctx,
		`UPDATE orders SET total_amount = ?, updated_at = ? WHERE id = ?`,
		total, now, order.ID.String(),
	); err != nil {
		return fmt.Errorf("update order total: %w", err)
	}
	return nil
}

func (r *OrderMySQL) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.getOne(ctx, "id = ?", false, id.String())
}

func (r *OrderMySQL) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.getOne(ctx, "id = ?", true, id.String())
}

func (r *OrderMySQL) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	return r.getOne(ctx, "idempotency_key = ?", false, key)
}

func (r *OrderMySQL) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	result, err := r.q.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		string(status), time.Now().UTC(), id.String(),
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	return nil
}

func (r *OrderMySQL) AddHistory(ctx context.Context, orderID uuid.UUID, oldStatus *domain.OrderStatus, newStatus domain.OrderStatus, notes string) (*domain.OrderStatusHistory, error) {
	record := &domain.OrderStatusHistory{
		ID:        uuid.Must(uuid.NewV7()),
		OrderID:   orderID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		Notes:     notes,
		CreatedAt: time.Now().UTC(),
	}

	var old any
	if oldStatus != nil {
		old = string(*oldStatus)
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO order_status_history (id, order_id, old_status, new_status, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		record.ID.String(), orderID.String(), old, string(newStatus), notes, record.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert history: %w", err)
	}
	return record, nil
}

// RecordTransition re-reads the order's current persisted status as
// the old value. Racy when called outside the lock scope that mutates
// the order; the orchestrator passes the captured status to AddHistory
// instead and this path exists for out-of-transaction diagnostics.
func (r *OrderMySQL) RecordTransition(ctx context.Context, orderID uuid.UUID, newStatus domain.OrderStatus, notes string) (*domain.OrderStatusHistory, error) {
	var current string
	err := r.q.QueryRowContext(ctx,
		`SELECT status FROM orders WHERE id = ? AND deleted_at IS NULL`,
		orderID.String(),
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("read order status: %w", err)
	}

	old := domain.OrderStatus(current)
	return r.AddHistory(ctx, orderID, &old, newStatus, notes)
}

func (r *OrderMySQL) List(ctx context.Context, filter port.OrderFilter) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE deleted_at IS NULL`
	var args []any

	if filter.Status != nil {
		query += ` AND status = ?`
		args = append(args, string(*filter.Status))
	}
	if filter.CustomerID != nil {
		query += ` AND customer_id = ?`
		args = append(args, filter.CustomerID.String())
	}
	if filter.CreatedFrom != nil {
		query += ` AND created_at >= ?`
		args = append(args, filter.CreatedFrom.UTC())
	}
	if filter.CreatedTo != nil {
		query += ` AND created_at <= ?`
		args = append(args, filter.CreatedTo.UTC())
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	for i := range orders {
		if err := r.loadRelations(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// getOne fetches a single order with items and history eager-loaded.
// With lock=true the header row is read FOR UPDATE and stays locked
// until the surrounding transaction ends.
func (r *OrderMySQL) getOne(ctx context.Context, where string, lock bool, args ...any) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + where + ` AND deleted_at IS NULL`
	if lock {
		query += ` FOR UPDATE`
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query order: %w", err)
		}
		return nil, nil
	}
	order, err := scanOrder(rows)
	if err != nil {
		return nil, err
	}
	rows.Close()

	if err := r.loadRelations(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *OrderMySQL) loadRelations(ctx context.Context, order *domain.Order) error {
	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return err
	}
	order.Items = items

	history, err := r.loadHistory(ctx, order.ID)
	if err != nil {
		return err
	}
	order.History = history
	return nil
}

func (r *OrderMySQL) loadItems(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price, subtotal, created_at
		FROM order_items WHERE order_id = ? ORDER BY id`,
		orderID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var (
			item                  domain.OrderItem
			idStr, ordStr, prdStr string
		)
		if err := rows.Scan(&idStr, &ordStr, &prdStr, &item.Quantity, &item.UnitPrice, &item.Subtotal, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if item.ID, err = parseUUID(idStr); err != nil {
			return nil, err
		}
		if item.OrderID, err = parseUUID(ordStr); err != nil {
			return nil, err
		}
		if item.ProductID, err = parseUUID(prdStr); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// loadHistory returns history newest first. IDs are UUIDv7, so the id
// ordering is creation ordering even when timestamps collide.
func (r *OrderMySQL) loadHistory(ctx context.Context, orderID uuid.UUID) ([]domain.OrderStatusHistory, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, order_id, old_status, new_status, notes, created_at
		FROM order_status_history WHERE order_id = ? ORDER BY id DESC`,
		orderID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var history []domain.OrderStatusHistory
	for rows.Next() {
		var (
			rec           domain.OrderStatusHistory
			idStr, ordStr string
			oldStatus     sql.NullString
			newStatus     string
		)
		if err := rows.Scan(&idStr, &ordStr, &oldStatus, &newStatus, &rec.Notes, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if rec.ID, err = parseUUID(idStr); err != nil {
			return nil, err
		}
		if rec.OrderID, err = parseUUID(ordStr); err != nil {
			return nil, err
		}
		if oldStatus.Valid {
			old := domain.OrderStatus(oldStatus.String)
			rec.OldStatus = &old
		}
		rec.NewStatus = domain.OrderStatus(newStatus)
		history = append(history, rec)
	}
	return history, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order          domain.Order
		idStr, custStr string
		status         string
		idempotencyKey sql.NullString
		deletedAt      sql.NullTime
	)
	err := row.Scan(&idStr, &order.OrderNumber, &custStr, &status, &order.TotalAmount,
		&order.Notes, &idempotencyKey, &order.CreatedAt, &order.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}

	if order.ID, err = parseUUID(idStr); err != nil {
		return nil, err
	}
	if order.CustomerID, err = parseUUID(custStr); err != nil {
		return nil, err
	}
	order.Status = domain.OrderStatus(strings.TrimSpace(status))
	order.IdempotencyKey = idempotencyKey.String
	order.DeletedAt = timePtr(deletedAt)
	return &order, nil
}
