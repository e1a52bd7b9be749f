package models

import "time"

// Score records points awarded when a task is approved.
type Score struct {
	ID        uint64    `gorm:"primarykey" json:"id"`
	UserID    uint64    `gorm:"not null;index" json:"user_id"`
	TaskID    uint64    `gorm:"not null;index" json:"task_id"`
	Points    int       `gorm:"not null" json:"points"`
	AwardedBy uint64    `gorm:"not null" json:"awarded_by"`
	CreatedAt time.Time `json:"created_at"`
}
