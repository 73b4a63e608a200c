package persistence

import (
	"context"

	"github.com/beizaplus/commerce-sync/internal/domain/commerce"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormSyncLogRepository implements commerce.SyncLogRepository using GORM.
// It only ever inserts.
type GormSyncLogRepository struct {
	db *gorm.DB
}

// NewGormSyncLogRepository creates a new GormSyncLogRepository
func NewGormSyncLogRepository(db *gorm.DB) *GormSyncLogRepository {
	return &GormSyncLogRepository{db: db}
}

// Append inserts a log entry
func (r *GormSyncLogRepository) Append(ctx context.Context, entry *commerce.SyncLogEntry) error {
	return r.db.WithContext(ctx).Create(models.SyncLogModelFromDomain(entry)).Error
}

// ListRecent returns the newest entries first
func (r *GormSyncLogRepository) ListRecent(ctx context.Context, limit int) ([]commerce.SyncLogEntry, error) {
	var logModels []models.SyncLogModel
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&logModels).Error; err != nil {
		return nil, err
	}
	return syncLogModelsToDomain(logModels), nil
}

// ListByEntity returns the history of one entity, newest first
func (r *GormSyncLogRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]commerce.SyncLogEntry, error) {
	var logModels []models.SyncLogModel
	if err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at DESC").
		Find(&logModels).Error; err != nil {
		return nil, err
	}
	return syncLogModelsToDomain(logModels), nil
}

func syncLogModelsToDomain(logModels []models.SyncLogModel) []commerce.SyncLogEntry {
	entries := make([]commerce.SyncLogEntry, len(logModels))
	for i, model := range logModels {
		entries[i] = *model.ToDomain()
	}
	return entries
}

var _ commerce.SyncLogRepository = (*GormSyncLogRepository)(nil)
