package repo

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/richardliu001/ecommerce-analytics/internal/model"
)

// WriteRepositoryInterface restricts write-store methods (unit test mocks).
type WriteRepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB
	CreateProduct(ctx context.Context, tx *gorm.DB, p *model.Product) error
	CreateOrder(ctx context.Context, tx *gorm.DB, o *model.Order) error
	CreateOrderItems(ctx context.Context, tx *gorm.DB, items []model.OrderItem) error
	CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error
	PollOutbox(ctx context.Context, limit, maxAttempts int) ([]model.OutboxEvent, error)
	MarkOutboxPublished(ctx context.Context, id uint64) error
	IncrementOutboxAttempts(ctx context.Context, id uint64) error
}

// WriteRepository owns the command-side store: business tables plus outbox.
type WriteRepository struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewWriteRepository(db *gorm.DB, logger *zap.SugaredLogger) *WriteRepository {
	return &WriteRepository{db: db, log: logger}
}

// DB returns underlying *gorm.DB
func (r *WriteRepository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

func (r *WriteRepository) CreateProduct(ctx context.Context, tx *gorm.DB, p *model.Product) error {
	return tx.WithContext(ctx).Create(p).Error
}

func (r *WriteRepository) CreateOrder(ctx context.Context, tx *gorm.DB, o *model.Order) error {
	return tx.WithContext(ctx).Create(o).Error
}

func (r *WriteRepository) CreateOrderItems(ctx context.Context, tx *gorm.DB, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(&items).Error
}

// CreateOutboxEvent writes event in the caller's transaction.
func (r *WriteRepository) CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error {
	return tx.WithContext(ctx).Create(evt).Error
}

// PollOutbox pulls unpublished events FIFO. Rows that reached maxAttempts
// are quarantined out of the batch so a dead row cannot livelock the relay.
func (r *WriteRepository) PollOutbox(ctx context.Context, limit, maxAttempts int) ([]model.OutboxEvent, error) {
	var evts []model.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("published_at IS NULL AND attempts < ?", maxAttempts).
		Order("created_at").
		Limit(limit).
		Find(&evts).Error
	return evts, err
}

// MarkOutboxPublished stamps published_at once; only the relay calls this.
func (r *WriteRepository) MarkOutboxPublished(ctx context.Context, id uint64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).
		Where("id = ? AND published_at IS NULL", id).
		Update("published_at", &now).Error
}

func (r *WriteRepository) IncrementOutboxAttempts(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Update("attempts", gorm.Expr("attempts + 1")).Error
}
