package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/richardliu001/ecommerce-analytics/internal/event"
	"github.com/richardliu001/ecommerce-analytics/internal/logger"
	"github.com/richardliu001/ecommerce-analytics/internal/model"
	"github.com/richardliu001/ecommerce-analytics/internal/repo"
)

func newCommandService(t *testing.T) (*CommandService, *gorm.DB, context.Context) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&model.Product{}, &model.Order{}, &model.OrderItem{}, &model.OutboxEvent{}))

	writeRepo := repo.NewWriteRepository(db, must(logger.NewLogger("test")))
	return NewCommandService(writeRepo, must(logger.NewLogger("test"))), db, context.Background()
}

func TestCreateOrder_WritesOrderItemsAndOutboxAtomically(t *testing.T) {
	svc, db, ctx := newCommandService(t)

	orderID, err := svc.CreateOrder(ctx, 9, []OrderItemInput{
		{ProductID: 7, Quantity: 2, Price: decimal.NewFromInt(25)},
		{ProductID: 8, Quantity: 1, Price: decimal.NewFromInt(30)},
	})
	assert.NoError(t, err)
	assert.NotZero(t, orderID)

	var o model.Order
	assert.NoError(t, db.First(&o, orderID).Error)
	assert.True(t, o.TotalAmount.Equal(decimal.NewFromInt(80)))
	assert.Equal(t, "PENDING", o.Status)

	var items []model.OrderItem
	assert.NoError(t, db.Where("order_id = ?", orderID).Find(&items).Error)
	assert.Len(t, items, 2)

	var evt model.OutboxEvent
	assert.NoError(t, db.First(&evt).Error)
	assert.Equal(t, event.RoutingKeyOrders, evt.Topic)
	assert.Nil(t, evt.PublishedAt)

	decoded, err := event.Decode([]byte(evt.Payload))
	assert.NoError(t, err)
	oc, ok := decoded.(event.OrderCreated)
	assert.True(t, ok)
	assert.Equal(t, orderID, oc.OrderID)
	assert.True(t, oc.Total.Equal(decimal.NewFromInt(80)))
	assert.Len(t, oc.Items, 2)
}

func TestCreateOrder_RollsBackWhenOutboxInsertFails(t *testing.T) {
	svc, db, ctx := newCommandService(t)
	assert.NoError(t, db.Migrator().DropTable(&model.OutboxEvent{}))

	_, err := svc.CreateOrder(ctx, 9, []OrderItemInput{
		{ProductID: 7, Quantity: 1, Price: decimal.NewFromInt(10)},
	})
	assert.Error(t, err)

	var orders, items int64
	db.Model(&model.Order{}).Count(&orders)
	db.Model(&model.OrderItem{}).Count(&items)
	assert.Equal(t, int64(0), orders, "business rows must roll back with the outbox insert")
	assert.Equal(t, int64(0), items)
}

func TestCreateOrder_Validation(t *testing.T) {
	svc, _, ctx := newCommandService(t)

	_, err := svc.CreateOrder(ctx, 9, nil)
	assert.ErrorIs(t, err, ErrNoItems)

	_, err = svc.CreateOrder(ctx, 9, []OrderItemInput{{ProductID: 7, Quantity: 0, Price: decimal.NewFromInt(10)}})
	assert.ErrorIs(t, err, ErrInvalidItem)
}

func TestCreateProduct_WritesProductAndOutbox(t *testing.T) {
	svc, db, ctx := newCommandService(t)

	productID, err := svc.CreateProduct(ctx, "Go in Practice", "books", decimal.NewFromFloat(39.99), 12)
	assert.NoError(t, err)
	assert.NotZero(t, productID)

	var p model.Product
	assert.NoError(t, db.First(&p, productID).Error)
	assert.Equal(t, "books", p.Category)

	var evt model.OutboxEvent
	assert.NoError(t, db.First(&evt).Error)
	assert.Equal(t, event.RoutingKeyProducts, evt.Topic)

	decoded, err := event.Decode([]byte(evt.Payload))
	assert.NoError(t, err)
	pc, ok := decoded.(event.ProductCreated)
	assert.True(t, ok)
	assert.Equal(t, productID, pc.ProductID)
	assert.Equal(t, "books", pc.Category)
}

func must(l *zap.SugaredLogger, err error) *zap.SugaredLogger {
	if err != nil {
		panic(err)
	}
	return l
}
