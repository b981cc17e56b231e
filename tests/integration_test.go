package tests

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/hqnguyen/order-engine/internal/adapter/storage"
	"github.com/hqnguyen/order-engine/internal/core/domain"
	"github.com/hqnguyen/order-engine/internal/core/service"
	"github.com/hqnguyen/order-engine/internal/metrics"
	"github.com/hqnguyen/order-engine/internal/outbox"
)

type testEnv struct {
	redis   *redis.Client
	mysql   *sql.DB
	store   *storage.Store
	svc     *service.OrderService
	cleanup func()
}

func setupTestEnv(t *testing.T) *testEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/orders?parseTime=true"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := storage.EnsureSchema(context.Background(), db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	store := storage.NewStore(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewOrderService(store, store.Orders(), metrics.NewRegistry(), logger)

	return &testEnv{
		redis: rdb,
		mysql: db,
		store: store,
		svc:   svc,
		cleanup: func() {
			rdb.Close()
			db.Close()
		},
	}
}

func (env *testEnv) seedCustomer(t *testing.T, ctx context.Context) *domain.Customer {
	t.Helper()
	customer := &domain.Customer{
		ID:       uuid.Must(uuid.NewV7()),
		Name:     "E2E Customer",
		Email:    uuid.NewString() + "@example.com",
		IsActive: true,
	}
	if err := env.store.Customers().Create(ctx, customer); err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return customer
}

func (env *testEnv) seedProduct(t *testing.T, ctx context.Context, price string, stock int) *domain.Product {
	t.Helper()
	product := &domain.Product{
		ID:            uuid.Must(uuid.NewV7()),
		SKU:           "e2e-" + uuid.NewString()[:13],
		Name:          "E2E Product",
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		Status:        domain.ProductStatusActive,
	}
	if err := env.store.Products().Create(ctx, product); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func (env *testEnv) stockOf(t *testing.T, ctx context.Context, id uuid.UUID) int {
	t.Helper()
	product, err := env.store.Products().GetByID(ctx, id)
	if err != nil || product == nil {
		t.Fatalf("read product %s: %v", id, err)
	}
	return product.StockQuantity
}

func TestIntegration_OrderLifecycle(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	customer := env.seedCustomer(t, ctx)
	productA := env.seedProduct(t, ctx, "10.00", 10)
	productB := env.seedProduct(t, ctx, "25.50", 5)

	order, err := env.svc.CreateOrder(ctx, service.CreateOrderInput{
		CustomerID: customer.ID,
		Items: []service.CreateOrderItemInput{
			{ProductID: productA.ID, Quantity: 2},
			{ProductID: productB.ID, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if want := decimal.RequireFromString("45.50"); !order.TotalAmount.Equal(want) {
		t.Errorf("total = %s, want %s", order.TotalAmount, want)
	}
	if env.stockOf(t, ctx, productA.ID) != 8 || env.stockOf(t, ctx, productB.ID) != 4 {
		t.Error("stock not deducted after create")
	}

	order, err = env.svc.UpdateStatus(ctx, order.ID, domain.OrderStatusConfirmed, "")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}

	order, err = env.svc.CancelOrder(ctx, order.ID, "changed mind")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if order.Status != domain.OrderStatusCancelled {
		t.Errorf("status = %s, want CANCELLED", order.Status)
	}
	if env.stockOf(t, ctx, productA.ID) != 10 || env.stockOf(t, ctx, productB.ID) != 5 {
		t.Error("stock not restored after cancel")
	}
	if len(order.History) != 3 {
		t.Errorf("history = %d records, want 3", len(order.History))
	}
}

func TestIntegration_ConcurrentCreates(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	customer := env.seedCustomer(t, ctx)
	product := env.seedProduct(t, ctx, "10.00", 5)

	var successCount, conflictCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.CreateOrder(ctx, service.CreateOrderInput{
				CustomerID: customer.ID,
				Items:      []service.CreateOrderItemInput{{ProductID: product.ID, Quantity: 1}},
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				conflictCount.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successCount.Load() != 5 || conflictCount.Load() != 5 {
		t.Errorf("successes = %d conflicts = %d, want 5/5", successCount.Load(), conflictCount.Load())
	}
	if got := env.stockOf(t, ctx, product.ID); got != 0 {
		t.Errorf("final stock = %d, want 0", got)
	}
}

func TestIntegration_DeadlockFreeInterleavedLocks(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	customer := env.seedCustomer(t, ctx)
	productA := env.seedProduct(t, ctx, "1.00", 1000)
	productB := env.seedProduct(t, ctx, "1.00", 1000)

	// Opposite item orderings from many workers; the ascending-id lock
	// rule keeps MySQL from ever killing one as a deadlock victim.
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		items := []service.CreateOrderItemInput{
			{ProductID: productA.ID, Quantity: 1},
			{ProductID: productB.ID, Quantity: 1},
		}
		if i%2 == 1 {
			items[0], items[1] = items[1], items[0]
		}
		wg.Add(1)
		go func(items []service.CreateOrderItemInput) {
			defer wg.Done()
			if _, err := env.svc.CreateOrder(ctx, service.CreateOrderInput{
				CustomerID: customer.ID,
				Items:      items,
			}); err != nil {
				t.Errorf("create failed: %v", err)
			}
		}(items)
	}
	wg.Wait()

	if got := env.stockOf(t, ctx, productA.ID); got != 980 {
		t.Errorf("product A stock = %d, want 980", got)
	}
	if got := env.stockOf(t, ctx, productB.ID); got != 980 {
		t.Errorf("product B stock = %d, want 980", got)
	}
}

func TestIntegration_IdempotentReplay(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	customer := env.seedCustomer(t, ctx)
	product := env.seedProduct(t, ctx, "10.00", 10)
	key := "e2e-key-" + uuid.NewString()

	in := service.CreateOrderInput{
		CustomerID:     customer.ID,
		Items:          []service.CreateOrderItemInput{{ProductID: product.ID, Quantity: 1}},
		IdempotencyKey: key,
	}

	first, err := env.svc.CreateOrder(ctx, in)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := env.svc.CreateOrder(ctx, in)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("replay returned different order: %s vs %s", first.ID, second.ID)
	}
	if got := env.stockOf(t, ctx, product.ID); got != 9 {
		t.Errorf("stock = %d, want 9 (deducted once)", got)
	}
}

func TestIntegration_OutboxRelayToRedis(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	customer := env.seedCustomer(t, ctx)
	product := env.seedProduct(t, ctx, "10.00", 10)

	stream := storage.EventStreamPrefix + domain.OrdersTopic
	before, _ := env.redis.XLen(ctx, stream).Result()

	order, err := env.svc.CreateOrder(ctx, service.CreateOrderInput{
		CustomerID: customer.ID,
		Items:      []service.CreateOrderItemInput{{ProductID: product.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	relay := outbox.NewRelay(env.store.Outbox(), storage.NewRedisPublisher(env.redis),
		metrics.NewRegistry(), logger, time.Second, 1000)
	if err := relay.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}

	after, err := env.redis.XLen(ctx, stream).Result()
	if err != nil {
		t.Fatalf("xlen: %v", err)
	}
	if after <= before {
		t.Fatalf("stream did not grow: before=%d after=%d", before, after)
	}

	entries, err := env.redis.XRevRangeN(ctx, stream, "+", "-", after-before).Result()
	if err != nil {
		t.Fatalf("xrevrange: %v", err)
	}
	found := false
	for _, entry := range entries {
		if entry.Values["aggregate_id"] == order.ID.String() {
			found = true
			break
		}
	}
	if !found {
		t.Error("created order's event not found on the stream")
	}
}
