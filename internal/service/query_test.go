package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/richardliu001/ecommerce-analytics/internal/logger"
	"github.com/richardliu001/ecommerce-analytics/internal/model"
	"github.com/richardliu001/ecommerce-analytics/internal/repo"
)

func newReadDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(
		&model.ProcessedEvent{},
		&model.ProductSalesView{},
		&model.CategoryMetricsView{},
		&model.CustomerLTVView{},
	))
	return db
}

func TestQuery_AbsentKeysReturnZeroedStats(t *testing.T) {
	db := newReadDB(t)
	log := must(logger.NewLogger("test"))
	svc := NewQueryService(repo.NewReadRepository(db, log), nil, time.Minute, log)
	ctx := context.Background()

	sales, err := svc.ProductSales(ctx, 7)
	assert.NoError(t, err)
	assert.Equal(t, uint64(7), sales.ProductID)
	assert.Zero(t, sales.OrderCount)
	assert.True(t, sales.TotalRevenue.IsZero())

	cat, err := svc.CategoryRevenue(ctx, "books")
	assert.NoError(t, err)
	assert.Equal(t, "books", cat.Category)
	assert.Zero(t, cat.TotalOrders)

	ltv, err := svc.CustomerLTV(ctx, 9)
	assert.NoError(t, err)
	assert.Equal(t, uint64(9), ltv.CustomerID)
	assert.Nil(t, ltv.LastOrderDate)
}

func TestQuery_ProductSalesCacheAside(t *testing.T) {
	db := newReadDB(t)
	assert.NoError(t, db.Create(&model.ProductSalesView{
		ProductID:         7,
		TotalQuantitySold: 3,
		TotalRevenue:      decimal.NewFromInt(75),
		OrderCount:        2,
	}).Error)

	rdb, mock := redismock.NewClientMock()
	mock.ExpectGet("product_sales:7").RedisNil()
	mock.Regexp().ExpectSet("product_sales:7", `.*"productId":7.*`, time.Minute).SetVal("OK")

	log := must(logger.NewLogger("test"))
	svc := NewQueryService(repo.NewReadRepository(db, log), rdb, time.Minute, log)

	sales, err := svc.ProductSales(context.Background(), 7)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), sales.TotalQuantitySold)
	assert.True(t, sales.TotalRevenue.Equal(decimal.NewFromInt(75)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_ProductSalesCacheHitSkipsStore(t *testing.T) {
	db := newReadDB(t) // intentionally empty

	rdb, mock := redismock.NewClientMock()
	mock.ExpectGet("product_sales:7").SetVal(`{"productId":7,"totalQuantitySold":3,"totalRevenue":"75","orderCount":2}`)

	log := must(logger.NewLogger("test"))
	svc := NewQueryService(repo.NewReadRepository(db, log), rdb, time.Minute, log)

	sales, err := svc.ProductSales(context.Background(), 7)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), sales.OrderCount)
	assert.True(t, sales.TotalRevenue.Equal(decimal.NewFromInt(75)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_SyncStatus(t *testing.T) {
	db := newReadDB(t)
	log := must(logger.NewLogger("test"))
	svc := NewQueryService(repo.NewReadRepository(db, log), nil, time.Minute, log)
	ctx := context.Background()

	status, err := svc.SyncStatus(ctx)
	assert.NoError(t, err)
	assert.Nil(t, status.LastProcessedEventTimestamp)
	assert.Zero(t, status.LagSeconds)

	past := time.Now().Add(-10 * time.Second)
	assert.NoError(t, db.Create(&model.ProcessedEvent{EventID: "order:1", ProcessedAt: past}).Error)

	status, err = svc.SyncStatus(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, status.LastProcessedEventTimestamp)
	assert.InDelta(t, 10, status.LagSeconds, 2)
}
