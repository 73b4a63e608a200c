package persistence

import (
	"context"
	"errors"

	"github.com/beizaplus/commerce-sync/internal/domain/commerce"
	"github.com/beizaplus/commerce-sync/internal/domain/shared"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormProductMappingRepository implements ProductMappingRepository using GORM
type GormProductMappingRepository struct {
	db *gorm.DB
}

// NewGormProductMappingRepository creates a new GormProductMappingRepository
func NewGormProductMappingRepository(db *gorm.DB) *GormProductMappingRepository {
	return &GormProductMappingRepository{db: db}
}

// ---------------------------------------------------------------------------
// ProductMappingReader implementation
// ---------------------------------------------------------------------------

// FindByID finds a mapping by its ID
func (r *GormProductMappingRepository) FindByID(ctx context.Context, id uuid.UUID) (*commerce.ProductMapping, error) {
	var model models.ProductMappingModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindByLocal finds the mapping of a local entity
func (r *GormProductMappingRepository) FindByLocal(ctx context.Context, localType commerce.LocalType, localID string) (*commerce.ProductMapping, error) {
	var model models.ProductMappingModel
	if err := r.db.WithContext(ctx).
		Where("local_type = ? AND local_id = ?", localType, localID).
		First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindByPlatformProductID finds a mapping by platform product ID
func (r *GormProductMappingRepository) FindByPlatformProductID(ctx context.Context, platformProductID string) (*commerce.ProductMapping, error) {
	var model models.ProductMappingModel
	if err := r.db.WithContext(ctx).
		Where("platform_product_id = ?", platformProductID).
		First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindByPlatformVariantID finds a mapping by platform variant ID
func (r *GormProductMappingRepository) FindByPlatformVariantID(ctx context.Context, platformVariantID string) (*commerce.ProductMapping, error) {
	var model models.ProductMappingModel
	if err := r.db.WithContext(ctx).
		Where("platform_variant_id = ?", platformVariantID).
		First(&model).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindAll returns every mapping, oldest first
func (r *GormProductMappingRepository) FindAll(ctx context.Context) ([]commerce.ProductMapping, error) {
	var mappingModels []models.ProductMappingModel
	if err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Find(&mappingModels).Error; err != nil {
		return nil, err
	}

	mappings := make([]commerce.ProductMapping, len(mappingModels))
	for i, model := range mappingModels {
		mappings[i] = *model.ToDomain()
	}
	return mappings, nil
}

// ---------------------------------------------------------------------------
// ProductMappingWriter implementation
// ---------------------------------------------------------------------------

// Save creates or updates a mapping
func (r *GormProductMappingRepository) Save(ctx context.Context, mapping *commerce.ProductMapping) error {
	model := models.ProductMappingModelFromDomain(mapping)
	return translateDuplicate(r.db.WithContext(ctx).Save(model).Error)
}

// ClaimPlatformProduct saves mapping and drops the standalone mapping a
// products/create webhook may have inserted for the same platform product
// while the push was in flight
func (r *GormProductMappingRepository) ClaimPlatformProduct(ctx context.Context, mapping *commerce.ProductMapping) error {
	if !mapping.HasPlatformProduct() {
		return r.Save(ctx, mapping)
	}
	model := models.ProductMappingModelFromDomain(mapping)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("platform_product_id = ? AND id <> ? AND local_id IS NULL", mapping.PlatformProductID, mapping.ID).
			Delete(&models.ProductMappingModel{}).Error; err != nil {
			return err
		}
		return tx.Save(model).Error
	})
	return translateDuplicate(err)
}

// Delete deletes a mapping
func (r *GormProductMappingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.ProductMappingModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// translateNotFound maps GORM's not-found onto the shared sentinel
func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	return err
}

// translateDuplicate maps a unique violation onto the shared sentinel
func translateDuplicate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.ErrAlreadyExists
	}
	return err
}

var _ commerce.ProductMappingRepository = (*GormProductMappingRepository)(nil)
