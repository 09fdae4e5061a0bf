package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/richardliu001/ecommerce-analytics/internal/event"
	"github.com/richardliu001/ecommerce-analytics/internal/model"
	"github.com/richardliu001/ecommerce-analytics/internal/repo"
)

var (
	// ErrNoItems means an order was submitted without line items.
	ErrNoItems = errors.New("order has no items")
	// ErrInvalidItem means a line item has a non-positive quantity or a
	// negative price.
	ErrInvalidItem = errors.New("invalid order item")
)

// OrderItemInput is one requested line item.
type OrderItemInput struct {
	ProductID uint64
	Quantity  int64
	Price     decimal.Decimal
}

// CommandService handles the write path. Every mutation writes its outbox
// event in the same transaction as the business rows: both commit or neither
// does. It never talks to the broker.
type CommandService struct {
	repo repo.WriteRepositoryInterface
	log  *zap.SugaredLogger
}

func NewCommandService(r repo.WriteRepositoryInterface, logger *zap.SugaredLogger) *CommandService {
	return &CommandService{repo: r, log: logger}
}

// CreateProduct inserts the product and its ProductCreated outbox row.
func (s *CommandService) CreateProduct(ctx context.Context, name, category string, price decimal.Decimal, stock int64) (uint64, error) {
	var productID uint64
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		p := &model.Product{Name: name, Category: category, Price: price, Stock: stock}
		if err := s.repo.CreateProduct(ctx, tx, p); err != nil {
			return err
		}
		payload, err := event.Encode(event.ProductCreated{
			ProductID: p.ID,
			Name:      name,
			Category:  category,
			Price:     price,
			Stock:     stock,
		})
		if err != nil {
			return err
		}
		evt := &model.OutboxEvent{Topic: event.RoutingKeyProducts, Payload: string(payload)}
		if err := s.repo.CreateOutboxEvent(ctx, tx, evt); err != nil {
			return err
		}
		productID = p.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return productID, nil
}

// CreateOrder inserts the order, its items and the OrderCreated outbox row.
func (s *CommandService) CreateOrder(ctx context.Context, customerID uint64, items []OrderItemInput) (uint64, error) {
	if len(items) == 0 {
		return 0, ErrNoItems
	}
	total := decimal.Zero
	for _, it := range items {
		if it.Quantity <= 0 || it.Price.IsNegative() {
			return 0, ErrInvalidItem
		}
		total = total.Add(it.Price.Mul(decimal.NewFromInt(it.Quantity)))
	}

	var orderID uint64
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		o := &model.Order{CustomerID: customerID, TotalAmount: total, Status: "PENDING"}
		if err := s.repo.CreateOrder(ctx, tx, o); err != nil {
			return err
		}

		rows := make([]model.OrderItem, 0, len(items))
		evItems := make([]event.OrderItem, 0, len(items))
		for _, it := range items {
			rows = append(rows, model.OrderItem{
				OrderID:   o.ID,
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				Price:     it.Price,
			})
			evItems = append(evItems, event.OrderItem{
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				Price:     it.Price,
			})
		}
		if err := s.repo.CreateOrderItems(ctx, tx, rows); err != nil {
			return err
		}

		payload, err := event.Encode(event.OrderCreated{
			OrderID:    o.ID,
			CustomerID: customerID,
			Items:      evItems,
			Total:      total,
			Timestamp:  o.CreatedAt,
		})
		if err != nil {
			return err
		}
		evt := &model.OutboxEvent{Topic: event.RoutingKeyOrders, Payload: string(payload)}
		if err := s.repo.CreateOutboxEvent(ctx, tx, evt); err != nil {
			return err
		}
		orderID = o.ID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return orderID, nil
}
