package repo

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/richardliu001/ecommerce-analytics/internal/model"
)

// ErrDuplicateEvent is returned when an event identity was already recorded;
// the surrounding transaction must be rolled back and the delivery acked.
var ErrDuplicateEvent = errors.New("event already processed")

// ReadRepositoryInterface restricts read-store methods (unit test mocks).
type ReadRepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB
	InsertProcessedEvent(ctx context.Context, tx *gorm.DB, eventID string) error
	GetProductCategory(ctx context.Context, tx *gorm.DB, productID uint64) (string, bool, error)
	GetProductSales(ctx context.Context, productID uint64) (*model.ProductSalesView, error)
	GetCategoryMetrics(ctx context.Context, category string) (*model.CategoryMetricsView, error)
	GetCustomerLTV(ctx context.Context, customerID uint64) (*model.CustomerLTVView, error)
	LatestProcessedAt(ctx context.Context) (*time.Time, error)
}

// ReadRepository owns the query-side store: dedup table and view tables.
type ReadRepository struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewReadRepository(db *gorm.DB, logger *zap.SugaredLogger) *ReadRepository {
	return &ReadRepository{db: db, log: logger}
}

// DB returns underlying *gorm.DB
func (r *ReadRepository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// InsertProcessedEvent claims an event identity. The insert races with
// concurrent deliveries of the same event; the primary-key conflict decides
// the winner, so ON CONFLICT DO NOTHING with zero rows affected means the
// claim was lost and the event must be treated as already applied.
func (r *ReadRepository) InsertProcessedEvent(ctx context.Context, tx *gorm.DB, eventID string) error {
	res := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.ProcessedEvent{EventID: eventID, ProcessedAt: time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDuplicateEvent
	}
	return nil
}

// GetProductCategory resolves the category lookup inside a projection tx.
// A miss is not an error: the ProductCreated event may simply not have
// arrived yet.
func (r *ReadRepository) GetProductCategory(ctx context.Context, tx *gorm.DB, productID uint64) (string, bool, error) {
	var pc model.ProductCategory
	err := tx.WithContext(ctx).Where("product_id = ?", productID).First(&pc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return pc.Category, true, nil
}

func (r *ReadRepository) GetProductSales(ctx context.Context, productID uint64) (*model.ProductSalesView, error) {
	var v model.ProductSalesView
	if err := r.db.WithContext(ctx).Where("product_id = ?", productID).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *ReadRepository) GetCategoryMetrics(ctx context.Context, category string) (*model.CategoryMetricsView, error) {
	var v model.CategoryMetricsView
	if err := r.db.WithContext(ctx).Where("category_name = ?", category).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *ReadRepository) GetCustomerLTV(ctx context.Context, customerID uint64) (*model.CustomerLTVView, error) {
	var v model.CustomerLTVView
	if err := r.db.WithContext(ctx).Where("customer_id = ?", customerID).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// LatestProcessedAt returns the newest dedup timestamp, nil when the
// consumer has not processed anything yet.
func (r *ReadRepository) LatestProcessedAt(ctx context.Context) (*time.Time, error) {
	var pe model.ProcessedEvent
	err := r.db.WithContext(ctx).Order("processed_at DESC").First(&pe).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pe.ProcessedAt, nil
}
