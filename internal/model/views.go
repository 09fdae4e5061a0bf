package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductCategory is the read-side lookup joining order items to a category.
// Populated by ProductCreated projections only.
type ProductCategory struct {
	ProductID uint64 `gorm:"primaryKey"`
	Category  string `gorm:"size:255;not null"`
}

func (ProductCategory) TableName() string { return "read_products" }

type ProductSalesView struct {
	ProductID         uint64          `gorm:"primaryKey"`
	TotalQuantitySold int64           `gorm:"not null;default:0"`
	TotalRevenue      decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	OrderCount        int64           `gorm:"not null;default:0"`
}

func (ProductSalesView) TableName() string { return "product_sales_view" }

type CategoryMetricsView struct {
	Category     string          `gorm:"primaryKey;size:255;column:category_name"`
	TotalRevenue decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	TotalOrders  int64           `gorm:"not null;default:0"`
}

func (CategoryMetricsView) TableName() string { return "category_metrics_view" }

type CustomerLTVView struct {
	CustomerID    uint64          `gorm:"primaryKey"`
	TotalSpent    decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	OrderCount    int64           `gorm:"not null;default:0"`
	LastOrderDate time.Time       `gorm:"not null"`
}

func (CustomerLTVView) TableName() string { return "customer_ltv_view" }

type HourlySalesView struct {
	HourBucket   time.Time       `gorm:"primaryKey;column:hour_timestamp"`
	TotalOrders  int64           `gorm:"not null;default:0"`
	TotalRevenue decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
}

func (HourlySalesView) TableName() string { return "hourly_sales_view" }
