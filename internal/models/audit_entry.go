package models

import (
	"time"

	"gorm.io/datatypes"
)

type AuditKind string

const (
	AuditTaskCreated   AuditKind = "TASK_CREATED"
	AuditTaskSubmitted AuditKind = "TASK_SUBMITTED"
	AuditTaskApproved  AuditKind = "TASK_APPROVED"
	AuditTaskRejected  AuditKind = "TASK_REJECTED"
)

// AuditEntry is append-only.
type AuditEntry struct {
	ID            uint64         `gorm:"primarykey" json:"id"`
	CorrelationID string         `gorm:"type:varchar(36);index" json:"correlation_id"`
	Kind          AuditKind      `gorm:"type:varchar(32);not null;index" json:"kind"`
	Description   string         `gorm:"type:text" json:"description"`
	ActorID       uint64         `gorm:"not null" json:"actor_id"`
	TaskID        *uint64        `gorm:"index" json:"task_id"`
	UserID        *uint64        `json:"user_id"`
	Details       datatypes.JSON `json:"details"`
	CreatedAt     time.Time      `json:"created_at"`
}
