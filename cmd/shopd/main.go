package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	"nullashop.io/shop"
	"nullashop.io/shop/cart"
	"nullashop.io/shop/checkout"
	"nullashop.io/shop/config"
	"nullashop.io/shop/driver"
	"nullashop.io/shop/identity"
	"nullashop.io/shop/image"
	"nullashop.io/shop/order"
	"nullashop.io/shop/product"
	"nullashop.io/shop/server"
	"nullashop.io/shop/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := driver.ConnectSQL(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("無法連線資料庫", zap.Error(err))
	}
	defer db.Pool.Close()

	redisClient, err := driver.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Fatal("無法連線 Redis", zap.Error(err))
	}
	defer redisClient.Close()

	natsConn, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		logger.Fatal("無法連線 NATS", zap.Error(err))
	}
	defer natsConn.Close()

	bucket, err := storage.NewBucket("product-images", cfg.StorageRoot, cfg.PublicBaseURL, logger)
	if err != nil {
		logger.Fatal("無法初始化 storage bucket", zap.Error(err))
	}

	cache := driver.NewCache(redisClient)
	tm := driver.NewTransactionManager(db.Pool, logger)

	service := shop.NewService(
		product.NewRepository(db.Pool, cache, logger),
		order.NewRepository(db.Pool, cache, logger),
		image.NewRepository(db.Pool, logger),
		bucket, tm, natsConn, logger,
	)

	carts := cart.NewStore(logger)
	checkouts := checkout.NewManager(carts, service, stripe.Currency(cfg.DefaultCurrency), logger)
	auth := identity.NewClient(cfg.SupabaseURL, cfg.AnonKey, logger)

	router := server.NewRouter(server.Deps{
		Shop:     service,
		Carts:    carts,
		Checkout: checkouts,
		Auth:     auth,
		Bucket:   bucket,
		Logger:   logger,
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("storefront 啟動", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}
