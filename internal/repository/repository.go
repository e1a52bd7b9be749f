package repository

import (
	"context"
	"time"

	"github.com/yukikurage/task-escalation-engine/internal/models"
)

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	// Create inserts a task together with its price log entries
	Create(ctx context.Context, task *models.Task) error

	// FindByID finds a task by ID with optional preloading
	FindByID(ctx context.Context, id uint64, preload ...string) (*models.Task, error)

	// FindByFilter returns every task matching the filter
	FindByFilter(ctx context.Context, filter TaskFilter) ([]models.Task, error)

	// List retrieves one page of tasks matching the filter and the total count
	List(ctx context.Context, filter TaskFilter) ([]models.Task, int64, error)

	// ExistsInstance reports whether a non-template task exists for the
	// assignee and title created inside [from, to)
	ExistsInstance(ctx context.Context, assigneeID uint64, title string, from time.Time, to *time.Time) (bool, error)

	// ConditionalUpdate applies fields only when the row still matches the
	// transition's predicate. Effects are written in the same transaction and
	// only when a row was affected. Returns the affected row count.
	ConditionalUpdate(ctx context.Context, transition StatusTransition, fields map[string]any, effects *TransitionEffects) (int64, error)

	// ClaimThrottle sets last_reminder_sent_at to claimedAt when the marker is
	// empty or older than openBefore. Returns false when another run holds it.
	ClaimThrottle(ctx context.Context, id uint64, claimedAt, openBefore time.Time) (bool, error)

	// ReleaseThrottle restores the previous marker if claimedAt is still current
	ReleaseThrottle(ctx context.Context, id uint64, claimedAt time.Time, previous *time.Time) error

	// BulkUpdateThrottle sets last_reminder_sent_at for all given tasks
	BulkUpdateThrottle(ctx context.Context, ids []uint64, at time.Time) error
}

// TaskFilter holds filtering options for task queries. Nil fields do not filter.
type TaskFilter struct {
	IsTemplate      *bool
	Statuses        []models.TaskStatus
	Submitted       *bool
	AssigneeID      *uint64
	Title           *string
	AssignedBefore  *time.Time
	SubmittedBefore *time.Time
	// ThrottleOpenBefore keeps tasks whose reminder marker is empty or older than the value
	ThrottleOpenBefore *time.Time
	CreatedFrom        *time.Time
	CreatedTo          *time.Time
	OldestFirst        bool
	Preload            []string
	Page               int
	PageSize           int
}

// StatusTransition is the predicate of a conditional update.
type StatusTransition struct {
	TaskID uint64
	From   []models.TaskStatus
	// RequireSubmitted restricts the update to the awaiting-approval sub-state
	RequireSubmitted bool
	// AssigneeID, when set, restricts the update to the assignee's own task
	AssigneeID *uint64
}

// TransitionEffects are rows written atomically with a successful transition.
type TransitionEffects struct {
	ReplacePriceLogs bool
	PriceLogs        []models.PriceLogEntry
	Score            *models.Score
	Notification     *models.Notification
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *models.User) error

	// FindByID finds a user by ID
	FindByID(ctx context.Context, id uint64) (*models.User, error)

	// ListByRole lists all users holding a role
	ListByRole(ctx context.Context, role models.Role) ([]models.User, error)
}

// SettingsRepository reads the global settings singleton
type SettingsRepository interface {
	// Read returns the latest settings row, or defaults when none exists
	Read(ctx context.Context) (models.GlobalSettings, error)

	// Save stores a settings row
	Save(ctx context.Context, settings *models.GlobalSettings) error
}

// AuditRepository appends audit entries
type AuditRepository interface {
	Append(ctx context.Context, entry *models.AuditEntry) error
}

// SmsLogRepository appends SMS dispatch records
type SmsLogRepository interface {
	Append(ctx context.Context, entry *models.SmsLog) error
}
