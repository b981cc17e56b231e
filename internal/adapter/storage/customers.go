package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hqnguyen/order-engine/internal/core/domain"
)

// CustomerMySQL is the customer lookup collaborator. Customer CRUD
// lives outside the order core; the engine only reads the active flag.
type CustomerMySQL struct {
	q queryer
}

func (r *CustomerMySQL) Create(ctx context.Context, customer *domain.Customer) error {
	now := time.Now().UTC()
	customer.CreatedAt = now
	customer.UpdatedAt = now

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO customers (id, name, email, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		customer.ID.String(), customer.Name, customer.Email, customer.IsActive, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

func (r *CustomerMySQL) GetByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	var (
		customer  domain.Customer
		idStr     string
		deletedAt sql.NullTime
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, name, email, is_active, created_at, updated_at, deleted_at
		FROM customers WHERE id = ? AND deleted_at IS NULL`,
		id.String(),
	).Scan(&idStr, &customer.Name, &customer.Email, &customer.IsActive,
		&customer.CreatedAt, &customer.UpdatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query customer: %w", err)
	}

	if customer.ID, err = parseUUID(idStr); err != nil {
		return nil, err
	}
	customer.DeletedAt = timePtr(deletedAt)
	return &customer, nil
}
