package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/yukikurage/task-escalation-engine/internal/models"
	"github.com/yukikurage/task-escalation-engine/internal/repository"
	"gorm.io/datatypes"
)

// AuditEvent describes one lifecycle event for the audit log.
type AuditEvent struct {
	Kind        models.AuditKind
	Description string
	ActorID     uint64
	TaskID      *uint64
	UserID      *uint64
	Details     map[string]any
}

// AuditLogger appends audit events. Callers log failures and carry on.
type AuditLogger interface {
	Append(ctx context.Context, event AuditEvent) error
}

// StoreAuditLogger writes audit events through the audit repository.
type StoreAuditLogger struct {
	repo repository.AuditRepository
}

func NewStoreAuditLogger(repo repository.AuditRepository) *StoreAuditLogger {
	return &StoreAuditLogger{repo: repo}
}

func (l *StoreAuditLogger) Append(ctx context.Context, event AuditEvent) error {
	entry := &models.AuditEntry{
		CorrelationID: uuid.NewString(),
		Kind:          event.Kind,
		Description:   event.Description,
		ActorID:       event.ActorID,
		TaskID:        event.TaskID,
		UserID:        event.UserID,
	}

	if len(event.Details) > 0 {
		raw, err := json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("failed to encode audit details: %w", err)
		}
		entry.Details = datatypes.JSON(raw)
	}

	if err := l.repo.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}
