package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"nullashop.io/shop/adminapi"
	"nullashop.io/shop/config"
	"nullashop.io/shop/identity"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// 沒有 service-role key 就直接拒絕啟動
	if err := cfg.RequireServiceRole(); err != nil {
		logger.Fatal("admin server refused to start", zap.Error(err))
	}

	directory := identity.NewAdmin(cfg.SupabaseURL, cfg.ServiceRoleKey, logger)
	router := adminapi.NewRouter(directory, logger)

	srv := &http.Server{
		Addr:         cfg.AdminAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("admin server 啟動", zap.String("addr", cfg.AdminAddr))
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
