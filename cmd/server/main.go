package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/hqnguyen/order-engine/internal/adapter/handler"
	"github.com/hqnguyen/order-engine/internal/adapter/storage"
	"github.com/hqnguyen/order-engine/internal/config"
	"github.com/hqnguyen/order-engine/internal/core/service"
	"github.com/hqnguyen/order-engine/internal/metrics"
	"github.com/hqnguyen/order-engine/internal/outbox"
	"github.com/hqnguyen/order-engine/internal/telemetry"
)

func main() {
	cfg := config.FromEnv()
	logger := telemetry.InitLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}
	if err := storage.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}
	logger.Info("connected to mysql")

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	logger.Info("connected to redis")

	// Wiring
	reg := metrics.NewRegistry()
	store := storage.NewStore(db)
	orderService := service.NewOrderService(store, store.Orders(), reg, logger)
	publisher := storage.NewRedisPublisher(rdb)
	relay := outbox.NewRelay(store.Outbox(), publisher, reg, logger, cfg.OutboxInterval, cfg.OutboxBatch)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		relay.Run(ctx)
	}()
	logger.Info("outbox relay started", "interval", cfg.OutboxInterval.String())

	// HTTP server
	httpHandler := handler.NewHTTPHandler(orderService)
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Group(httpHandler.Routes)
	router.Handle("/metrics", reg.Handler())

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)

	cancel()
	wg.Wait()

	rdb.Close()
	db.Close()
	logger.Info("stopped")
}
