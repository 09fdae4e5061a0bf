package model

import "time"

// ProcessedEvent records that an event identity has been applied to the read
// model. The primary key on EventID is the dedup enforcement point.
type ProcessedEvent struct {
	EventID     string    `gorm:"primaryKey;size:64"`
	ProcessedAt time.Time `gorm:"autoCreateTime;index"`
}

func (ProcessedEvent) TableName() string { return "processed_events" }
