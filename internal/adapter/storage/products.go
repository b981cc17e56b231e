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

// ProductMySQL is the stock ledger. Stock reads for mutation go
// through GetForUpdate so the row stays locked for the rest of the
// caller's transaction.
type ProductMySQL struct {
	q queryer
}

func (r *ProductMySQL) Create(ctx context.Context, product *domain.Product) error {
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now
	product.SKU = domain.NormalizeSKU(product.SKU)

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO products (id, sku, name, description, price, stock_quantity, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		product.ID.String(), product.SKU, product.Name, product.Description,
		product.Price, product.StockQuantity, string(product.Status), now, now,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *ProductMySQL) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return r.getOne(ctx, id, false)
}

func (r *ProductMySQL) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return r.getOne(ctx, id, true)
}

// UpdateStock persists the stock counter of an already-locked row.
func (r *ProductMySQL) UpdateStock(ctx context.Context, product *domain.Product) error {
	now := time.Now().UTC()
	result, err := r.q.ExecContext(ctx,
		`UPDATE products SET stock_quantity = ?, updated_at = ? WHERE id = ?`,
		product.StockQuantity, now, product.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		// RowsAffected is 0 when the value did not change; confirm the
		// row exists before treating this as missing.
		var exists int
		if err := r.q.QueryRowContext(ctx,
			`SELECT 1 FROM products WHERE id = ?`, product.ID.String(),
		).Scan(&exists); err != nil {
			return fmt.Errorf("%w: %s", domain.ErrProductNotFound, product.ID)
		}
	}
	product.UpdatedAt = now
	return nil
}

func (r *ProductMySQL) getOne(ctx context.Context, id uuid.UUID, lock bool) (*domain.Product, error) {
	query := `
		SELECT id, sku, name, description, price, stock_quantity, status, created_at, updated_at, deleted_at
		FROM products WHERE id = ? AND deleted_at IS NULL`
	if lock {
		query += ` FOR UPDATE`
	}

	var (
		product   domain.Product
		idStr     string
		status    string
		deletedAt sql.NullTime
	)
	err := r.q.QueryRowContext(ctx, query, id.String()).Scan(
		&idStr, &product.SKU, &product.Name, &product.Description,
		&product.Price, &product.StockQuantity, &status,
		&product.CreatedAt, &product.UpdatedAt, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}

	if product.ID, err = parseUUID(idStr); err != nil {
		return nil, err
	}
	product.Status = domain.ProductStatus(status)
	product.DeletedAt = timePtr(deletedAt)
	return &product, nil
}
