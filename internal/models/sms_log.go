package models

import "time"

type SmsLog struct {
	ID        uint64    `gorm:"primarykey" json:"id"`
	Phone     string    `gorm:"type:varchar(32);not null" json:"phone"`
	Message   string    `gorm:"type:text" json:"message"`
	Success   bool      `gorm:"not null" json:"success"`
	JobID     string    `gorm:"type:varchar(64)" json:"job_id"`
	ErrorCode string    `gorm:"type:varchar(64)" json:"error_code"`
	TaskID    *uint64   `gorm:"index" json:"task_id"`
	UserID    uint64    `gorm:"index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
