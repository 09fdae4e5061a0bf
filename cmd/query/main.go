package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/richardliu001/ecommerce-analytics/internal/config"
	"github.com/richardliu001/ecommerce-analytics/internal/logger"
	"github.com/richardliu001/ecommerce-analytics/internal/repo"
	"github.com/richardliu001/ecommerce-analytics/internal/service"
	httptransport "github.com/richardliu001/ecommerce-analytics/internal/transport/http"
)

func main() {
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	log, err := logger.NewLogger("query")
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

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		// cache is optional on the read path; serve from the store alone
		log.Warnf("redis ping: %v (view cache disabled)", err)
		rdb = nil
	}

	readRepo := repo.NewReadRepository(gdb, log)
	svc := service.NewQueryService(readRepo, rdb, cfg.Redis.CacheTTL.Std(), log)

	router := httptransport.NewQueryRouter(svc, log)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Query.Port),
		Handler: router,
	}
	go func() {
		log.Infof("query api listening on %s", srv.Addr)
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
