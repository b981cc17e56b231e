package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// EnsureSchema creates the tables the engine needs. Safe to call on
// every start; existing tables are left untouched.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS customers (
			id CHAR(36) NOT NULL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL,
			is_active TINYINT(1) NOT NULL DEFAULT 1,
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			deleted_at DATETIME(6) NULL,
			KEY idx_customers_deleted_at (deleted_at)
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id CHAR(36) NOT NULL PRIMARY KEY,
			sku VARCHAR(64) NOT NULL,
			name VARCHAR(255) NOT NULL,
			description TEXT NOT NULL,
			price DECIMAL(10,2) NOT NULL,
			stock_quantity INT NOT NULL DEFAULT 0,
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			deleted_at DATETIME(6) NULL,
			UNIQUE KEY uq_products_sku (sku),
			KEY idx_products_status (status)
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id CHAR(36) NOT NULL PRIMARY KEY,
			order_number VARCHAR(20) NOT NULL,
			customer_id CHAR(36) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
			total_amount DECIMAL(10,2) NOT NULL DEFAULT 0.00,
			notes TEXT NOT NULL,
			idempotency_key VARCHAR(255) NULL,
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			deleted_at DATETIME(6) NULL,
			UNIQUE KEY uq_orders_order_number (order_number),
			UNIQUE KEY uq_orders_idempotency_key (idempotency_key),
			KEY idx_orders_status (status),
			KEY idx_orders_customer (customer_id),
			KEY idx_orders_created_at (created_at)
		)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id CHAR(36) NOT NULL PRIMARY KEY,
			order_id CHAR(36) NOT NULL,
			product_id CHAR(36) NOT NULL,
			quantity INT NOT NULL,
			unit_price DECIMAL(10,2) NOT NULL,
			subtotal DECIMAL(10,2) NOT NULL,
			created_at DATETIME(6) NOT NULL,
			KEY idx_order_items_order (order_id),
			KEY idx_order_items_product (product_id)
		)`,
		`CREATE TABLE IF NOT EXISTS order_status_history (
			id CHAR(36) NOT NULL PRIMARY KEY,
			order_id CHAR(36) NOT NULL,
			old_status VARCHAR(20) NULL,
			new_status VARCHAR(20) NOT NULL,
			notes TEXT NOT NULL,
			created_at DATETIME(6) NOT NULL,
			KEY idx_history_order (order_id)
		)`,
		`CREATE TABLE IF NOT EXISTS outbox_events (
			id CHAR(36) NOT NULL PRIMARY KEY,
			event_type VARCHAR(100) NOT NULL,
			aggregate_id CHAR(36) NOT NULL,
			topic VARCHAR(100) NOT NULL,
			payload JSON NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
			retry_count INT NOT NULL DEFAULT 0,
			error_message TEXT NULL,
			processed_at DATETIME(6) NULL,
			created_at DATETIME(6) NOT NULL,
			KEY idx_outbox_status_created (status, created_at),
			KEY idx_outbox_aggregate (aggregate_id)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
