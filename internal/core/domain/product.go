package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
)

// Product carries the stock ledger for one sellable item.
// StockQuantity only changes on a row fetched with a write lock, inside
// a transaction that also commits a matching order mutation.
type Product struct {
	ID            uuid.UUID
	SKU           string
	Name          string
	Description   string
	Price         decimal.Decimal
	StockQuantity int
	Status        ProductStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
}

// NormalizeSKU trims and upper-cases a SKU so visually identical codes
// ("sku-01" vs "SKU-01") cannot coexist.
func NormalizeSKU(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}

// Reserve decrements stock by quantity. The product must be active and
// hold at least quantity units; the caller must already hold the row
// lock and persist the mutation in the same transaction.
func (p *Product) Reserve(quantity int) error {
	if p.Status != ProductStatusActive {
		return fmt.Errorf("%w: product %s", ErrInactiveProduct, p.ID)
	}
	if p.StockQuantity < quantity {
		return fmt.Errorf("%w: product %s: requested %d, available %d",
			ErrInsufficientStock, p.SKU, quantity, p.StockQuantity)
	}
	p.StockQuantity -= quantity
	return nil
}

// Release returns quantity units to stock on cancellation. There is no
// upper bound: conservation is guaranteed by symmetry with Reserve.
func (p *Product) Release(quantity int) {
	p.StockQuantity += quantity
}
