package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/beizaplus/commerce-sync/internal/domain/commerce"
	"github.com/beizaplus/commerce-sync/internal/domain/shared"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormDigitalAssetRepository implements commerce.DigitalAssetRepository using GORM
type GormDigitalAssetRepository struct {
	db *gorm.DB
}

// NewGormDigitalAssetRepository creates a new GormDigitalAssetRepository
func NewGormDigitalAssetRepository(db *gorm.DB) *GormDigitalAssetRepository {
	return &GormDigitalAssetRepository{db: db}
}

// Create inserts a new asset. The unique index on download_token rejects collisions
// and the order foreign key turns an unknown order into ErrOrderNotFound.
func (r *GormDigitalAssetRepository) Create(ctx context.Context, asset *commerce.DigitalAsset) error {
	err := r.db.WithContext(ctx).Create(models.DigitalAssetModelFromDomain(asset)).Error
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return commerce.ErrOrderNotFound
	}
	return err
}

// FindByToken finds an asset by its download token
func (r *GormDigitalAssetRepository) FindByToken(ctx context.Context, token string) (*commerce.DigitalAsset, error) {
	var model models.DigitalAssetModel
	if err := r.db.WithContext(ctx).
		Where("download_token = ?", token).
		First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindByOrderID lists the assets issued for an order
func (r *GormDigitalAssetRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]commerce.DigitalAsset, error) {
	var assetModels []models.DigitalAssetModel
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&assetModels).Error; err != nil {
		return nil, err
	}

	assets := make([]commerce.DigitalAsset, len(assetModels))
	for i, model := range assetModels {
		assets[i] = *model.ToDomain()
	}
	return assets, nil
}

// IncrementDownloadCount adds one to download_count in a single UPDATE so
// concurrent downloads never lose a count
func (r *GormDigitalAssetRepository) IncrementDownloadCount(ctx context.Context, token string) error {
	result := r.db.WithContext(ctx).
		Model(&models.DigitalAssetModel{}).
		Where("download_token = ?", token).
		UpdateColumns(map[string]any{
			"download_count": gorm.Expr("download_count + ?", 1),
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ commerce.DigitalAssetRepository = (*GormDigitalAssetRepository)(nil)
