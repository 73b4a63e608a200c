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
	"gorm.io/gorm/clause"
)

// orderUpsertColumns are overwritten from the platform on every upsert.
// Email bookkeeping and creation time are owned locally.
var orderUpsertColumns = []string{
	"order_number",
	"customer_email",
	"customer_name",
	"status",
	"order_type",
	"total_amount",
	"currency",
	"line_items",
	"shipping_address",
	"raw_snapshot",
	"updated_at",
}

// GormOrderRepository implements commerce.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Upsert inserts or updates an order keyed by platform_order_id.
// The previous status is read under a row lock in the same transaction and
// the write itself is an INSERT .. ON CONFLICT, so concurrent deliveries of
// the same order can never produce two rows.
func (r *GormOrderRepository) Upsert(ctx context.Context, order *commerce.OrderRecord) (*commerce.UpsertResult, error) {
	result := &commerce.UpsertResult{}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.OrderModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "status", "last_email_status", "last_email_sent_at", "created_at").
			Where("platform_order_id = ?", order.PlatformOrderID).
			Take(&existing).Error
		switch {
		case err == nil:
			result.PreviousStatus = existing.Status
			order.ID = existing.ID
			order.CreatedAt = existing.CreatedAt
			order.LastEmailStatus = existing.LastEmailStatus
			order.LastEmailSentAt = existing.LastEmailSentAt
		case errors.Is(err, gorm.ErrRecordNotFound):
			result.Created = true
		default:
			return err
		}

		order.UpdatedAt = time.Now()
		model := models.OrderModelFromDomain(order)
		insertedID := model.ID
		if err := tx.Clauses(
			clause.OnConflict{
				Columns:   []clause.Column{{Name: "platform_order_id"}},
				DoUpdates: clause.AssignmentColumns(orderUpsertColumns),
			},
			clause.Returning{Columns: []clause.Column{{Name: "id"}}},
		).Create(model).Error; err != nil {
			return err
		}

		// A concurrent first delivery won the insert between our read and write
		if result.Created && model.ID != insertedID {
			result.Created = false
			result.PreviousStatus = order.Status
		}
		order.ID = model.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// FindByID finds an order by its local ID
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*commerce.OrderRecord, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByPlatformOrderID finds an order by the platform's identifier
func (r *GormOrderRepository) FindByPlatformOrderID(ctx context.Context, platformOrderID string) (*commerce.OrderRecord, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).
		Where("platform_order_id = ?", platformOrderID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByOrderNumber finds the most recent order with a human-facing number
func (r *GormOrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (*commerce.OrderRecord, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).
		Where("order_number = ?", orderNumber).
		Order("created_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// UpdateEmailStatus records the last notification state of an order
func (r *GormOrderRepository) UpdateEmailStatus(ctx context.Context, id uuid.UUID, status commerce.EmailStatus, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_email_status":  status,
			"last_email_sent_at": at,
			"updated_at":         time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ commerce.OrderRepository = (*GormOrderRepository)(nil)
