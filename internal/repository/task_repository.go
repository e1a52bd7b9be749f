package repository

import (
	"context"
	"time"

	"github.com/yukikurage/task-escalation-engine/internal/database"
	"github.com/yukikurage/task-escalation-engine/internal/models"
	"github.com/yukikurage/task-escalation-engine/internal/utils"
	"gorm.io/gorm"
)

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

// Create inserts a task and its price log entries
func (r *GormTaskRepository) Create(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Omit("Assignee").Create(task).Error
}

// FindByID finds a task by ID with optional preloading
func (r *GormTaskRepository) FindByID(ctx context.Context, id uint64, preload ...string) (*models.Task, error) {
	var task models.Task
	query := r.db.WithContext(ctx)

	for _, p := range preload {
		query = query.Preload(p)
	}

	if err := query.First(&task, id).Error; err != nil {
		return nil, err
	}

	return &task, nil
}

// FindByFilter returns every task matching the filter
func (r *GormTaskRepository) FindByFilter(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	var tasks []models.Task

	query := applyTaskFilter(r.db.WithContext(ctx).Model(&models.Task{}), filter)
	for _, p := range filter.Preload {
		query = query.Preload(p)
	}

	if err := query.Order(taskOrder(filter)).Find(&tasks).Error; err != nil {
		return nil, err
	}

	return tasks, nil
}

// List retrieves tasks with filtering and pagination
func (r *GormTaskRepository) List(ctx context.Context, filter TaskFilter) ([]models.Task, int64, error) {
	var tasks []models.Task

	query := applyTaskFilter(r.db.WithContext(ctx).Model(&models.Task{}), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := query.Order(taskOrder(filter))
	if filter.Page > 0 && filter.PageSize > 0 {
		listQuery = listQuery.Scopes(database.Paginate(utils.NewPaginationParams(filter.Page, filter.PageSize)))
	}
	for _, p := range filter.Preload {
		listQuery = listQuery.Preload(p)
	}

	if err := listQuery.Find(&tasks).Error; err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

// ExistsInstance reports whether a materialized instance already exists in the bucket
func (r *GormTaskRepository) ExistsInstance(ctx context.Context, assigneeID uint64, title string, from time.Time, to *time.Time) (bool, error) {
	isTemplate := false
	query := applyTaskFilter(r.db.WithContext(ctx).Model(&models.Task{}), TaskFilter{
		IsTemplate:  &isTemplate,
		AssigneeID:  &assigneeID,
		Title:       &title,
		CreatedFrom: &from,
		CreatedTo:   to,
	})

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ConditionalUpdate updates the task only while it still satisfies the
// transition predicate, so concurrent callers cannot both succeed.
func (r *GormTaskRepository) ConditionalUpdate(ctx context.Context, transition StatusTransition, fields map[string]any, effects *TransitionEffects) (int64, error) {
	var affected int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Model(&models.Task{}).
			Where("id = ?", transition.TaskID).
			Where("is_template = ?", false)
		if len(transition.From) > 0 {
			query = query.Where("status IN ?", transition.From)
		}
		if transition.RequireSubmitted {
			query = query.Where("submitted_at IS NOT NULL")
		}
		if transition.AssigneeID != nil {
			query = query.Where("assignee_id = ?", *transition.AssigneeID)
		}

		result := query.Updates(fields)
		if result.Error != nil {
			return result.Error
		}
		affected = result.RowsAffected
		if affected == 0 || effects == nil {
			return nil
		}

		return writeEffects(tx, transition.TaskID, effects)
	})
	if err != nil {
		return 0, err
	}

	return affected, nil
}

// ClaimThrottle takes the reminder marker for one task
func (r *GormTaskRepository) ClaimThrottle(ctx context.Context, id uint64, claimedAt, openBefore time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", id).
		Where("last_reminder_sent_at IS NULL OR last_reminder_sent_at < ?", openBefore.UTC()).
		UpdateColumn("last_reminder_sent_at", claimedAt.UTC())
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ReleaseThrottle gives back a claim after a failed dispatch
func (r *GormTaskRepository) ReleaseThrottle(ctx context.Context, id uint64, claimedAt time.Time, previous *time.Time) error {
	var value any
	if previous != nil {
		value = previous.UTC()
	}

	return r.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ? AND last_reminder_sent_at = ?", id, claimedAt.UTC()).
		UpdateColumn("last_reminder_sent_at", value).Error
}

// BulkUpdateThrottle sets the reminder marker on every given task
func (r *GormTaskRepository) BulkUpdateThrottle(ctx context.Context, ids []uint64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Task{}).
		Where("id IN ?", ids).
		UpdateColumn("last_reminder_sent_at", at.UTC()).Error
}

func writeEffects(tx *gorm.DB, taskID uint64, effects *TransitionEffects) error {
	if effects.ReplacePriceLogs {
		if err := tx.Where("task_id = ?", taskID).Delete(&models.PriceLogEntry{}).Error; err != nil {
			return err
		}
		if len(effects.PriceLogs) > 0 {
			logs := make([]models.PriceLogEntry, len(effects.PriceLogs))
			for i, entry := range effects.PriceLogs {
				entry.ID = 0
				entry.TaskID = taskID
				logs[i] = entry
			}
			if err := tx.Create(&logs).Error; err != nil {
				return err
			}
		}
	}

	if effects.Score != nil {
		if err := tx.Create(effects.Score).Error; err != nil {
			return err
		}
	}

	if effects.Notification != nil {
		if err := tx.Create(effects.Notification).Error; err != nil {
			return err
		}
	}

	return nil
}

func applyTaskFilter(query *gorm.DB, filter TaskFilter) *gorm.DB {
	if filter.IsTemplate != nil {
		query = query.Where("tasks.is_template = ?", *filter.IsTemplate)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("tasks.status IN ?", filter.Statuses)
	}
	if filter.Submitted != nil {
		if *filter.Submitted {
			query = query.Where("tasks.submitted_at IS NOT NULL")
		} else {
			query = query.Where("tasks.submitted_at IS NULL")
		}
	}
	if filter.AssigneeID != nil {
		query = query.Where("tasks.assignee_id = ?", *filter.AssigneeID)
	}
	if filter.Title != nil {
		query = query.Where("tasks.title = ?", *filter.Title)
	}
	if filter.AssignedBefore != nil {
		query = query.Where("tasks.assigned_at IS NOT NULL AND tasks.assigned_at < ?", filter.AssignedBefore.UTC())
	}
	if filter.SubmittedBefore != nil {
		query = query.Where("tasks.submitted_at < ?", filter.SubmittedBefore.UTC())
	}
	if filter.ThrottleOpenBefore != nil {
		query = query.Where("tasks.last_reminder_sent_at IS NULL OR tasks.last_reminder_sent_at < ?", filter.ThrottleOpenBefore.UTC())
	}
	if filter.CreatedFrom != nil {
		query = query.Where("tasks.created_at >= ?", filter.CreatedFrom.UTC())
	}
	if filter.CreatedTo != nil {
		query = query.Where("tasks.created_at < ?", filter.CreatedTo.UTC())
	}
	return query
}

func taskOrder(filter TaskFilter) string {
	if filter.OldestFirst {
		return "tasks.created_at ASC, tasks.id ASC"
	}
	return "tasks.created_at DESC, tasks.id DESC"
}
