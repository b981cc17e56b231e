package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func activeProduct(stock int) *Product {
	return &Product{
		ID:            uuid.Must(uuid.NewV7()),
		SKU:           "TEST-SKU",
		Name:          "Test Product",
		Price:         decimal.RequireFromString("10.00"),
		StockQuantity: stock,
		Status:        ProductStatusActive,
	}
}

func TestReserve_Success(t *testing.T) {
	p := activeProduct(10)

	if err := p.Reserve(3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.StockQuantity != 7 {
		t.Errorf("stock = %d, want 7", p.StockQuantity)
	}
}

func TestReserve_InsufficientStock(t *testing.T) {
	p := activeProduct(2)

	err := p.Reserve(3)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got: %v", err)
	}
	if p.StockQuantity != 2 {
		t.Errorf("stock changed on rejected reserve: %d", p.StockQuantity)
	}
}

func TestReserve_ExactStock(t *testing.T) {
	p := activeProduct(5)

	if err := p.Reserve(5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.StockQuantity != 0 {
		t.Errorf("stock = %d, want 0", p.StockQuantity)
	}
}

func TestReserve_InactiveProduct(t *testing.T) {
	p := activeProduct(10)
	p.Status = ProductStatusInactive

	err := p.Reserve(1)
	if !errors.Is(err, ErrInactiveProduct) {
		t.Fatalf("expected ErrInactiveProduct, got: %v", err)
	}
	if p.StockQuantity != 10 {
		t.Errorf("stock changed on rejected reserve: %d", p.StockQuantity)
	}
}

func TestRelease_RestoresStock(t *testing.T) {
	p := activeProduct(10)

	if err := p.Reserve(4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.Release(4)

	if p.StockQuantity != 10 {
		t.Errorf("stock = %d, want 10", p.StockQuantity)
	}
}

func TestNormalizeSKU(t *testing.T) {
	cases := map[string]string{
		"sku-01":    "SKU-01",
		"  sku-01 ": "SKU-01",
		"SKU-01":    "SKU-01",
	}
	for in, want := range cases {
		if got := NormalizeSKU(in); got != want {
			t.Errorf("NormalizeSKU(%q) = %q, want %q", in, got, want)
		}
	}
}
