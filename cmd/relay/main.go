package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/richardliu001/ecommerce-analytics/internal/broker"
	"github.com/richardliu001/ecommerce-analytics/internal/config"
	"github.com/richardliu001/ecommerce-analytics/internal/logger"
	"github.com/richardliu001/ecommerce-analytics/internal/relay"
	"github.com/richardliu001/ecommerce-analytics/internal/repo"
)

func main() {
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	log, err := logger.NewLogger("relay")
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	writeRepo := repo.NewWriteRepository(gdb, log)
	pub := broker.NewKafkaPublisher(cfg.Kafka, log)
	defer pub.Close()

	r := relay.NewRelay(writeRepo, pub, cfg.Relay, log)
	r.Run(ctx)
	r.Stop()
	log.Info("relay stopped")
}
