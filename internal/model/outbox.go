package model

import "time"

type OutboxEvent struct {
	ID          uint64    `gorm:"primaryKey"`
	Topic       string    `gorm:"size:64;not null"`
	Payload     string    `gorm:"type:jsonb;not null"`
	Attempts    int       `gorm:"not null;default:0"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index"`
	PublishedAt *time.Time
}

func (OutboxEvent) TableName() string { return "outbox" }
