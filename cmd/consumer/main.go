package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/richardliu001/ecommerce-analytics/internal/broker"
	"github.com/richardliu001/ecommerce-analytics/internal/config"
	"github.com/richardliu001/ecommerce-analytics/internal/consumer"
	"github.com/richardliu001/ecommerce-analytics/internal/logger"
	"github.com/richardliu001/ecommerce-analytics/internal/model"
	"github.com/richardliu001/ecommerce-analytics/internal/projector"
	"github.com/richardliu001/ecommerce-analytics/internal/repo"
)

func main() {
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	log, err := logger.NewLogger("consumer")
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var gdb *gorm.DB
	connect := func() error {
		var err error
		gdb, err = gorm.Open(postgres.Open(cfg.ReadDB.DSN), &gorm.Config{PrepareStmt: true})
		return err
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = time.Minute
	if err := backoff.Retry(connect, backoff.WithContext(bo, ctx)); err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	if err := gdb.AutoMigrate(
		&model.ProcessedEvent{},
		&model.ProductCategory{},
		&model.ProductSalesView{},
		&model.CategoryMetricsView{},
		&model.CustomerLTVView{},
		&model.HourlySalesView{},
	); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	readRepo := repo.NewReadRepository(gdb, log)
	proj := projector.NewProjector(readRepo, log)
	sub := broker.NewKafkaSubscriber(cfg.Kafka, log)
	defer sub.Close()

	c := consumer.NewConsumer(readRepo, proj, sub, log)
	log.Info("consumer started")
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("consume: %v", err)
	}
	log.Info("consumer stopped")
}
