package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/richardliu001/ecommerce-analytics/internal/repo"
)

// ProductSalesStats mirrors product_sales_view for API responses.
type ProductSalesStats struct {
	ProductID         uint64          `json:"productId"`
	TotalQuantitySold int64           `json:"totalQuantitySold"`
	TotalRevenue      decimal.Decimal `json:"totalRevenue"`
	OrderCount        int64           `json:"orderCount"`
}

type CategoryRevenueStats struct {
	Category     string          `json:"category"`
	TotalRevenue decimal.Decimal `json:"totalRevenue"`
	TotalOrders  int64           `json:"totalOrders"`
}

type CustomerLTVStats struct {
	CustomerID    uint64          `json:"customerId"`
	TotalSpent    decimal.Decimal `json:"totalSpent"`
	OrderCount    int64           `json:"orderCount"`
	LastOrderDate *time.Time      `json:"lastOrderDate"`
}

// SyncStatus reports how far the read model lags behind the consumers.
type SyncStatus struct {
	LastProcessedEventTimestamp *time.Time `json:"lastProcessedEventTimestamp"`
	LagSeconds                  float64    `json:"lagSeconds"`
}

// QueryService reads the materialized views. An absent row is "no activity
// yet" and comes back zeroed, never as an error. Hot view reads go through
// a redis cache-aside with a short TTL, same discipline as any other
// eventually consistent read here.
type QueryService struct {
	repo repo.ReadRepositoryInterface
	rdb  *redis.Client
	ttl  time.Duration
	log  *zap.SugaredLogger
}

func NewQueryService(r repo.ReadRepositoryInterface, rdb *redis.Client, ttl time.Duration, logger *zap.SugaredLogger) *QueryService {
	return &QueryService{repo: r, rdb: rdb, ttl: ttl, log: logger}
}

func (s *QueryService) ProductSales(ctx context.Context, productID uint64) (*ProductSalesStats, error) {
	cacheKey := fmt.Sprintf("product_sales:%d", productID)
	var cached ProductSalesStats
	if s.cacheGet(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	v, err := s.repo.GetProductSales(ctx, productID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &ProductSalesStats{ProductID: productID, TotalRevenue: decimal.Zero}, nil
	}
	if err != nil {
		return nil, err
	}
	stats := &ProductSalesStats{
		ProductID:         v.ProductID,
		TotalQuantitySold: v.TotalQuantitySold,
		TotalRevenue:      v.TotalRevenue,
		OrderCount:        v.OrderCount,
	}
	s.cacheSet(ctx, cacheKey, stats)
	return stats, nil
}

func (s *QueryService) CategoryRevenue(ctx context.Context, category string) (*CategoryRevenueStats, error) {
	cacheKey := "category_revenue:" + category
	var cached CategoryRevenueStats
	if s.cacheGet(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	v, err := s.repo.GetCategoryMetrics(ctx, category)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &CategoryRevenueStats{Category: category, TotalRevenue: decimal.Zero}, nil
	}
	if err != nil {
		return nil, err
	}
	stats := &CategoryRevenueStats{
		Category:     v.Category,
		TotalRevenue: v.TotalRevenue,
		TotalOrders:  v.TotalOrders,
	}
	s.cacheSet(ctx, cacheKey, stats)
	return stats, nil
}

func (s *QueryService) CustomerLTV(ctx context.Context, customerID uint64) (*CustomerLTVStats, error) {
	v, err := s.repo.GetCustomerLTV(ctx, customerID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &CustomerLTVStats{CustomerID: customerID, TotalSpent: decimal.Zero}, nil
	}
	if err != nil {
		return nil, err
	}
	last := v.LastOrderDate
	return &CustomerLTVStats{
		CustomerID:    v.CustomerID,
		TotalSpent:    v.TotalSpent,
		OrderCount:    v.OrderCount,
		LastOrderDate: &last,
	}, nil
}

func (s *QueryService) SyncStatus(ctx context.Context) (*SyncStatus, error) {
	last, err := s.repo.LatestProcessedAt(ctx)
	if err != nil {
		return nil, err
	}
	status := &SyncStatus{}
	if last != nil {
		status.LastProcessedEventTimestamp = last
		status.LagSeconds = time.Since(*last).Seconds()
	}
	return status, nil
}

func (s *QueryService) cacheGet(ctx context.Context, key string, out interface{}) bool {
	if s.rdb == nil {
		return false
	}
	str, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warnf("cache get %s: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal([]byte(str), out); err != nil {
		s.log.Warnf("cache decode %s: %v", key, err)
		return false
	}
	return true
}

func (s *QueryService) cacheSet(ctx context.Context, key string, val interface{}) {
	if s.rdb == nil {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, key, string(data), s.ttl).Err(); err != nil {
		s.log.Warnf("cache set %s: %v", key, err)
	}
}
