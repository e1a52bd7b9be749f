package database

import (
	"fmt"
	"strings"

	"github.com/yukikurage/task-escalation-engine/internal/logger"
	"github.com/yukikurage/task-escalation-engine/internal/models"
	"gorm.io/gorm"
)

// AddIndexes adds the composite indexes the batch jobs query by
func AddIndexes(db *gorm.DB) error {
	indexes := []struct {
		name    string
		columns []string
	}{
		// Materializer dedup lookup
		{"idx_tasks_assignee_title_created", []string{"assignee_id", "title", "created_at"}},
		// Staff SLA pass
		{"idx_tasks_status_assigned", []string{"status", "assigned_at"}},
		// Manager SLA pass
		{"idx_tasks_status_submitted", []string{"status", "submitted_at"}},
		// Throttle filter
		{"idx_tasks_last_reminder", []string{"last_reminder_sent_at"}},
	}

	migrator := db.Migrator()
	for _, idx := range indexes {
		if migrator.HasIndex(&models.Task{}, idx.name) {
			logger.Log.Debugf("Index %s already exists, skipping", idx.name)
			continue
		}

		sql := fmt.Sprintf("CREATE INDEX %s ON tasks (%s)", idx.name, strings.Join(idx.columns, ", "))
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}

		logger.Log.Infof("Created index %s on tasks(%s)", idx.name, strings.Join(idx.columns, ", "))
	}

	return nil
}

// legacyStatuses are the English strings an older producer wrote into
// tasks.status. NormalizeStatus decides their canonical value.
var legacyStatuses = []string{"pending", "in_progress", "completed", "cancelled"}

// NormalizeLegacyStatuses rewrites legacy status strings to the canonical enum.
// Returns the number of rewritten rows.
func NormalizeLegacyStatuses(db *gorm.DB) (int64, error) {
	var total int64
	for _, legacy := range legacyStatuses {
		canonical, _ := models.NormalizeStatus(legacy)
		result := db.Model(&models.Task{}).
			Where("status = ?", legacy).
			UpdateColumn("status", canonical)
		if result.Error != nil {
			return total, fmt.Errorf("failed to normalize status %q: %w", legacy, result.Error)
		}
		total += result.RowsAffected
	}
	return total, nil
}

// MigrateDatabase runs all database migrations
func MigrateDatabase(db *gorm.DB) error {
	if err := Migrate(db); err != nil {
		return err
	}

	if err := AddIndexes(db); err != nil {
		return fmt.Errorf("failed to add indexes: %w", err)
	}

	rewritten, err := NormalizeLegacyStatuses(db)
	if err != nil {
		return err
	}
	if rewritten > 0 {
		logger.Log.WithField("rows", rewritten).Info("Normalized legacy task statuses")
	}

	return nil
}
