package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        uint64          `gorm:"primaryKey"`
	Name      string          `gorm:"size:255;not null"`
	Category  string          `gorm:"size:255;not null"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Stock     int64           `gorm:"not null;default:0"`
	CreatedAt time.Time       `gorm:"autoCreateTime"`
}

func (Product) TableName() string { return "products" }
