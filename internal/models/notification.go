package models

import "time"

type NotificationKind string

const (
	NotificationTaskApproved NotificationKind = "TASK_APPROVED"
	NotificationTaskRejected NotificationKind = "TASK_REJECTED"
)

type Notification struct {
	ID        uint64           `gorm:"primarykey" json:"id"`
	UserID    uint64           `gorm:"not null;index" json:"user_id"`
	TaskID    *uint64          `json:"task_id"`
	Title     string           `gorm:"type:varchar(255);not null" json:"title"`
	Body      string           `gorm:"type:text" json:"body"`
	Kind      NotificationKind `gorm:"type:varchar(32);not null" json:"kind"`
	Read      bool             `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}
