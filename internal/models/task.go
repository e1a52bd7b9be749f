package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

type TaskStatus string

const (
	TaskStatusWaiting  TaskStatus = "WAITING"
	TaskStatusApproved TaskStatus = "APPROVED"
	TaskStatusRejected TaskStatus = "REJECTED"
)

// NormalizeStatus maps a stored status onto the canonical enum. The second
// vocabulary (pending, in_progress, completed, cancelled) was written by an
// older producer; both unsubmitted forms become WAITING.
func NormalizeStatus(raw string) (TaskStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "waiting", "pending", "in_progress":
		return TaskStatusWaiting, true
	case "approved", "completed":
		return TaskStatusApproved, true
	case "rejected", "cancelled":
		return TaskStatusRejected, true
	default:
		return "", false
	}
}

type Repetition string

const (
	RepetitionOnce   Repetition = "ONCE"
	RepetitionDaily  Repetition = "DAILY"
	RepetitionWeekly Repetition = "WEEKLY"
)

// Valid reports whether r is a known repetition.
func (r Repetition) Valid() bool {
	switch r {
	case RepetitionOnce, RepetitionDaily, RepetitionWeekly:
		return true
	}
	return false
}

const (
	KindPriceSurvey = "PRICE_SURVEY"
	KindStandard    = "STANDARD"
)

type Task struct {
	ID                 uint64                      `gorm:"primarykey" json:"id"`
	Title              string                      `gorm:"type:varchar(255);not null" json:"title"`
	Description        string                      `gorm:"type:text" json:"description"`
	Kind               string                      `gorm:"type:varchar(64);not null;default:'STANDARD'" json:"kind"`
	Repetition         Repetition                  `gorm:"type:varchar(10);not null;default:'ONCE'" json:"repetition"`
	IsTemplate         bool                        `gorm:"not null;default:false;index" json:"is_template"`
	HasCustomDuration  bool                        `gorm:"not null;default:false" json:"has_custom_duration"`
	DurationMinutes    *int                        `json:"duration_minutes"`
	AssigneeID         uint64                      `gorm:"not null;index" json:"assignee_id"`
	AssignerID         uint64                      `gorm:"not null" json:"assigner_id"`
	Status             TaskStatus                  `gorm:"type:varchar(20);not null;default:'WAITING';index" json:"status"`
	AssignedAt         *time.Time                  `json:"assigned_at"`
	SubmittedAt        *time.Time                  `json:"submitted_at"`
	LastReminderSentAt *time.Time                  `json:"last_reminder_sent_at"`
	Photos             datatypes.JSONSlice[string] `json:"photos"`
	CreatedAt          time.Time                   `gorm:"index" json:"created_at"`
	UpdatedAt          time.Time                   `json:"updated_at"`

	// Relations
	Assignee  User            `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
	PriceLogs []PriceLogEntry `gorm:"foreignKey:TaskID" json:"price_logs,omitempty"`
}

// IsSubmitted reports whether a WAITING task is in the awaiting-approval sub-state.
func (t Task) IsSubmitted() bool {
	return t.Status == TaskStatusWaiting && t.SubmittedAt != nil
}
