package repository

import (
	"context"
	"errors"

	"github.com/yukikurage/task-escalation-engine/internal/models"
	"gorm.io/gorm"
)

// GormSettingsRepository is a GORM implementation of SettingsRepository
type GormSettingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository creates a new SettingsRepository
func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &GormSettingsRepository{db: db}
}

// Read returns the most recently updated settings row
func (r *GormSettingsRepository) Read(ctx context.Context) (models.GlobalSettings, error) {
	var settings models.GlobalSettings
	err := r.db.WithContext(ctx).
		Order("updated_at DESC").
		Order("id DESC").
		First(&settings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.DefaultSettings(), nil
		}
		return models.GlobalSettings{}, err
	}
	return settings, nil
}

// Save stores a settings row
func (r *GormSettingsRepository) Save(ctx context.Context, settings *models.GlobalSettings) error {
	return r.db.WithContext(ctx).Save(settings).Error
}
