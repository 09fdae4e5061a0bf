package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/richardliu001/ecommerce-analytics/internal/config"
	"github.com/richardliu001/ecommerce-analytics/internal/logger"
	"github.com/richardliu001/ecommerce-analytics/internal/model"
	"github.com/richardliu001/ecommerce-analytics/internal/repo"
	"github.com/richardliu001/ecommerce-analytics/internal/service"
	httptransport "github.com/richardliu001/ecommerce-analytics/internal/transport/http"
)

func main() {
	// 1. load config
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	// 2. init logger
	log, err := logger.NewLogger("command")
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. write store
	var gdb *gorm.DB
	connect := func() error {
		var err error
		gdb, err = gorm.Open(postgres.Open(cfg.WriteDB.DSN), &gorm.Config{PrepareStmt: true})
		return err
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = time.Minute
	if err := backoff.Retry(connect, backoff.WithContext(bo, ctx)); err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	if err := gdb.AutoMigrate(&model.Product{}, &model.Order{}, &model.OrderItem{}, &model.OutboxEvent{}); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	// 4. repo & service
	writeRepo := repo.NewWriteRepository(gdb, log)
	svc := service.NewCommandService(writeRepo, log)

	// 5. gin router
	router := httptransport.NewCommandRouter(svc, cfg.RateLimit, log)

	// 6. serve with graceful shutdown
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Command.Port),
		Handler: router,
	}
	go func() {
		log.Infof("command api listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}
