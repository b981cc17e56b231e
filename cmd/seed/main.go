// Command seed populates the database with demo customers and
// products for local development.
package main

import (
	"context"
	"database/sql"
	"log"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hqnguyen/order-engine/internal/adapter/storage"
	"github.com/hqnguyen/order-engine/internal/config"
	"github.com/hqnguyen/order-engine/internal/core/domain"
)

func main() {
	cfg := config.FromEnv()
	ctx := context.Background()

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}
	if err := storage.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	store := storage.NewStore(db)

	customers := []*domain.Customer{
		{ID: uuid.Must(uuid.NewV7()), Name: "Ana Souza", Email: "ana@example.com", IsActive: true},
		{ID: uuid.Must(uuid.NewV7()), Name: "Bruno Lima", Email: "bruno@example.com", IsActive: true},
		{ID: uuid.Must(uuid.NewV7()), Name: "Carla Mendes", Email: "carla@example.com", IsActive: false},
	}
	for _, c := range customers {
		if err := store.Customers().Create(ctx, c); err != nil {
			log.Fatalf("failed to seed customer %s: %v", c.Name, err)
		}
		log.Printf("seeded customer %s (%s)", c.Name, c.ID)
	}

	products := []*domain.Product{
		{ID: uuid.Must(uuid.NewV7()), SKU: "KB-0001", Name: "Mechanical Keyboard", Price: decimal.RequireFromString("249.90"), StockQuantity: 40, Status: domain.ProductStatusActive},
		{ID: uuid.Must(uuid.NewV7()), SKU: "MS-0002", Name: "Wireless Mouse", Price: decimal.RequireFromString("89.50"), StockQuantity: 120, Status: domain.ProductStatusActive},
		{ID: uuid.Must(uuid.NewV7()), SKU: "MN-0003", Name: "27in Monitor", Price: decimal.RequireFromString("1299.00"), StockQuantity: 15, Status: domain.ProductStatusActive},
		{ID: uuid.Must(uuid.NewV7()), SKU: "HS-0004", Name: "Headset (discontinued)", Price: decimal.RequireFromString("159.00"), StockQuantity: 7, Status: domain.ProductStatusInactive},
	}
	for _, p := range products {
		if err := store.Products().Create(ctx, p); err != nil {
			log.Fatalf("failed to seed product %s: %v", p.SKU, err)
		}
		log.Printf("seeded product %s (%s)", p.SKU, p.ID)
	}

	log.Println("seed complete")
}
