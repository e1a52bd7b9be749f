package repository

import (
	"context"

	"github.com/yukikurage/task-escalation-engine/internal/models"
	"gorm.io/gorm"
)

// GormAuditRepository is a GORM implementation of AuditRepository
type GormAuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &GormAuditRepository{db: db}
}

// Append inserts an audit entry
func (r *GormAuditRepository) Append(ctx context.Context, entry *models.AuditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// GormSmsLogRepository is a GORM implementation of SmsLogRepository
type GormSmsLogRepository struct {
	db *gorm.DB
}

// NewSmsLogRepository creates a new SmsLogRepository
func NewSmsLogRepository(db *gorm.DB) SmsLogRepository {
	return &GormSmsLogRepository{db: db}
}

// Append inserts an SMS dispatch record
func (r *GormSmsLogRepository) Append(ctx context.Context, entry *models.SmsLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}
