package projector

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/richardliu001/ecommerce-analytics/internal/event"
	"github.com/richardliu001/ecommerce-analytics/internal/model"
	"github.com/richardliu001/ecommerce-analytics/internal/repo"
)

// Projector maintains the materialized views. Every write is an upsert keyed
// on the view's unique column with commutative increments, so re-applying an
// event is safe even if dedup fails open.
type Projector struct {
	repo repo.ReadRepositoryInterface
	log  *zap.SugaredLogger
}

func NewProjector(r repo.ReadRepositoryInterface, logger *zap.SugaredLogger) *Projector {
	return &Projector{repo: r, log: logger}
}

// Apply dispatches an event to its projection inside the caller's tx.
func (p *Projector) Apply(ctx context.Context, tx *gorm.DB, ev event.Event) error {
	switch e := ev.(type) {
	case event.OrderCreated:
		return p.applyOrderCreated(ctx, tx, e)
	case event.ProductCreated:
		return p.applyProductCreated(ctx, tx, e)
	default:
		return event.ErrUnknownType
	}
}

// applyProductCreated maintains the product->category lookup used by later
// order projections for revenue attribution.
func (p *Projector) applyProductCreated(ctx context.Context, tx *gorm.DB, e event.ProductCreated) error {
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"category"}),
		}).
		Create(&model.ProductCategory{ProductID: e.ProductID, Category: e.Category}).Error
}

func (p *Projector) applyOrderCreated(ctx context.Context, tx *gorm.DB, e event.OrderCreated) error {
	// customer lifetime value: totals increment, last_order_date is
	// last-write-wins on delivery order
	err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "customer_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"total_spent":     gorm.Expr("total_spent + ?", e.Total),
				"order_count":     gorm.Expr("order_count + 1"),
				"last_order_date": e.Timestamp,
			}),
		}).
		Create(&model.CustomerLTVView{
			CustomerID:    e.CustomerID,
			TotalSpent:    e.Total,
			OrderCount:    1,
			LastOrderDate: e.Timestamp,
		}).Error
	if err != nil {
		return err
	}

	hour := e.Timestamp.UTC().Truncate(time.Hour)
	err = tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "hour_timestamp"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"total_orders":  gorm.Expr("total_orders + 1"),
				"total_revenue": gorm.Expr("total_revenue + ?", e.Total),
			}),
		}).
		Create(&model.HourlySalesView{
			HourBucket:   hour,
			TotalOrders:  1,
			TotalRevenue: e.Total,
		}).Error
	if err != nil {
		return err
	}

	for _, item := range e.Items {
		itemTotal := item.Price.Mul(decimal.NewFromInt(item.Quantity))
		err = tx.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "product_id"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"total_quantity_sold": gorm.Expr("total_quantity_sold + ?", item.Quantity),
					"total_revenue":       gorm.Expr("total_revenue + ?", itemTotal),
					"order_count":         gorm.Expr("order_count + 1"),
				}),
			}).
			Create(&model.ProductSalesView{
				ProductID:         item.ProductID,
				TotalQuantitySold: item.Quantity,
				TotalRevenue:      itemTotal,
				OrderCount:        1,
			}).Error
		if err != nil {
			return err
		}

		category, found, err := p.repo.GetProductCategory(ctx, tx, item.ProductID)
		if err != nil {
			return err
		}
		if !found {
			// ProductCreated not projected yet; category attribution is
			// best-effort
			p.log.Warnf("no category for product %d, skipping category metrics", item.ProductID)
			continue
		}
		err = tx.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "category_name"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"total_revenue": gorm.Expr("total_revenue + ?", itemTotal),
					"total_orders":  gorm.Expr("total_orders + 1"),
				}),
			}).
			Create(&model.CategoryMetricsView{
				Category:     category,
				TotalRevenue: itemTotal,
				TotalOrders:  1,
			}).Error
		if err != nil {
			return err
		}
	}
	return nil
}
