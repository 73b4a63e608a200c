package commerce

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/beizaplus/commerce-sync/internal/domain/commerce"
	"github.com/beizaplus/commerce-sync/internal/domain/shared"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/telemetry"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

// SyncResult is the outcome of one push to the commerce platform
type SyncResult struct {
	Success           bool                     `json:"success"`
	PlatformProductID string                   `json:"platform_product_id,omitempty"`
	Error             string                   `json:"error,omitempty"`
	Retryable         bool                     `json:"retryable,omitempty"`
	Mapping           *commerce.ProductMapping `json:"-"`
}

// ReconcileFailure describes one mapping that failed during reconciliation
type ReconcileFailure struct {
	MappingID         uuid.UUID `json:"mapping_id"`
	PlatformProductID string    `json:"platform_product_id,omitempty"`
	Error             string    `json:"error"`
}

// ReconcileSummary reports a batch reconciliation run
type ReconcileSummary struct {
	Synced   int                `json:"synced"`
	Errors   int                `json:"errors"`
	Failures []ReconcileFailure `json:"failures,omitempty"`
}

// ProductSyncService pushes local entities to the commerce platform and
// pulls platform products back into local mappings
type ProductSyncService struct {
	mappingRepo commerce.ProductMappingRepository
	syncLogRepo commerce.SyncLogRepository
	gateway     commerce.CommerceGateway
	validate    *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewProductSyncService creates a new ProductSyncService
func NewProductSyncService(
	mappingRepo commerce.ProductMappingRepository,
	syncLogRepo commerce.SyncLogRepository,
	gateway commerce.CommerceGateway,
	logger *zap.Logger,
) *ProductSyncService {
	return &ProductSyncService{
		mappingRepo: mappingRepo,
		syncLogRepo: syncLogRepo,
		gateway:     gateway,
		validate:    validator.New(),
		logger:      logger,
		now:         time.Now,
	}
}

// ---------------------------------------------------------------------------
// Push
// ---------------------------------------------------------------------------

// PushToCommercePlatform creates or updates the platform product for a local
// entity. Gateway failures are recorded on the mapping and in the sync log and
// reported in the result; only storage and validation failures return an error.
func (s *ProductSyncService) PushToCommercePlatform(ctx context.Context, entity commerce.LocalEntity) (*SyncResult, error) {
	if err := s.validate.Struct(entity); err != nil {
		return nil, shared.NewDomainError("INVALID_INPUT", err.Error())
	}

	mapping, err := s.findOrCreateMapping(ctx, entity)
	if err != nil {
		return nil, err
	}

	mapping.BeginSync()
	if err := s.mappingRepo.Save(ctx, mapping); err != nil {
		return nil, fmt.Errorf("%w: save mapping %s: %v", commerce.ErrTransient, mapping.ID, err)
	}

	input := s.buildProductInput(entity, mapping)
	op := commerce.SyncOperationCreate
	var product *commerce.PlatformProduct
	if mapping.HasPlatformProduct() {
		op = commerce.SyncOperationUpdate
		product, err = s.gateway.UpdateProduct(ctx, mapping.PlatformProductID, input)
	} else {
		product, err = s.gateway.CreateProduct(ctx, input)
	}

	if err != nil {
		mapping.RecordSyncFailure(err.Error())
		if saveErr := s.mappingRepo.Save(ctx, mapping); saveErr != nil {
			return nil, fmt.Errorf("%w: save mapping %s: %v", commerce.ErrTransient, mapping.ID, saveErr)
		}
		s.appendLog(ctx, op, mapping.ID.String(), commerce.SyncLogError, err.Error())

		s.logger.Warn("Product push failed",
			zap.String("mapping_id", mapping.ID.String()),
			zap.String("local_type", string(mapping.LocalType)),
			zap.String("local_id", mapping.LocalID),
			zap.String("operation", string(op)),
			zap.Bool("retryable", commerce.IsRetryable(err)),
			zap.Error(err),
		)

		return &SyncResult{
			Success:           false,
			PlatformProductID: mapping.PlatformProductID,
			Error:             err.Error(),
			Retryable:         commerce.IsRetryable(err),
			Mapping:           mapping,
		}, nil
	}

	mapping.RecordSyncSuccess(product, s.now())
	// The products/create webhook for a fresh product can land before this
	// save and leave a standalone mapping holding the same platform id
	if err := s.mappingRepo.ClaimPlatformProduct(ctx, mapping); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			s.logger.Error("Platform product is already mapped to another entity",
				zap.String("mapping_id", mapping.ID.String()),
				zap.String("platform_product_id", mapping.PlatformProductID),
			)
			return nil, shared.NewDomainError("ALREADY_EXISTS",
				fmt.Sprintf("platform product %s is already mapped to another entity", mapping.PlatformProductID))
		}
		return nil, fmt.Errorf("%w: save mapping %s: %v", commerce.ErrTransient, mapping.ID, err)
	}
	s.appendLog(ctx, op, mapping.ID.String(), commerce.SyncLogSuccess, "")

	s.logger.Info("Product pushed",
		zap.String("mapping_id", mapping.ID.String()),
		zap.String("platform_product_id", mapping.PlatformProductID),
		zap.String("operation", string(op)),
	)

	return &SyncResult{
		Success:           true,
		PlatformProductID: mapping.PlatformProductID,
		Mapping:           mapping,
	}, nil
}

func (s *ProductSyncService) findOrCreateMapping(ctx context.Context, entity commerce.LocalEntity) (*commerce.ProductMapping, error) {
	if entity.ID != "" {
		existing, err := s.mappingRepo.FindByLocal(ctx, entity.Type, entity.ID)
		if err == nil {
			if entity.FileURL != "" {
				if existing.Metadata == nil {
					existing.Metadata = make(map[string]any)
				}
				existing.Metadata[commerce.MetadataFileURL] = entity.FileURL
			}
			return existing, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: find mapping: %v", commerce.ErrTransient, err)
		}
	}

	mapping, err := commerce.NewProductMapping(entity.Type, entity.ID, entity.Category)
	if err != nil {
		return nil, err
	}
	if entity.FileURL != "" {
		mapping.Metadata[commerce.MetadataFileURL] = entity.FileURL
	}
	return mapping, nil
}

func (s *ProductSyncService) buildProductInput(entity commerce.LocalEntity, mapping *commerce.ProductMapping) commerce.ProductInput {
	tags := make([]string, 0, len(entity.Tags)+2)
	tags = append(tags, entity.Tags...)
	tags = append(tags, string(entity.Type))
	if mapping.ProductCategory != "" {
		tags = append(tags, mapping.ProductCategory)
	}

	handle := slug.Make(entity.Title)
	if entity.ID != "" {
		handle = slug.Make(entity.Title + " " + entity.ID)
	}

	return commerce.ProductInput{
		Title:       entity.Title,
		BodyHTML:    entity.Description,
		Vendor:      entity.Vendor,
		ProductType: mapping.ProductCategory,
		Handle:      handle,
		Status:      "active",
		Tags:        tags,
		Price:       entity.Price,
		SKU:         entity.SKU,
		VariantID:   mapping.PlatformVariantID,
	}
}

// ---------------------------------------------------------------------------
// Pull
// ---------------------------------------------------------------------------

// PullFromCommercePlatform refreshes local metadata from a platform product.
// Locally owned fields (local type, local id, category) are left alone.
// Products created on the platform side get a standalone mapping.
func (s *ProductSyncService) PullFromCommercePlatform(ctx context.Context, product *commerce.PlatformProduct) error {
	if product == nil || product.PlatformProductID() == "" {
		return fmt.Errorf("%w: missing product id", commerce.ErrInvalidProductPayload)
	}

	mapping, err := s.mappingRepo.FindByPlatformProductID(ctx, product.PlatformProductID())
	switch {
	case err == nil:
		mapping.RefreshFromPlatform(product, s.now())
	case errors.Is(err, shared.ErrNotFound):
		mapping = commerce.NewMappingFromPlatform(product)
		s.logger.Info("Discovered platform product without mapping",
			zap.String("platform_product_id", product.PlatformProductID()),
			zap.String("product_category", mapping.ProductCategory),
		)
	default:
		return fmt.Errorf("%w: find mapping: %v", commerce.ErrTransient, err)
	}

	if err := s.mappingRepo.Save(ctx, mapping); err != nil {
		return fmt.Errorf("%w: save mapping %s: %v", commerce.ErrTransient, mapping.ID, err)
	}
	s.appendLog(ctx, commerce.SyncOperationSync, mapping.ID.String(), commerce.SyncLogSuccess, "")
	return nil
}

// ApplyInventoryLevel records the available quantity on the mapping that owns
// the variant. Variants nobody maps are ignored.
func (s *ProductSyncService) ApplyInventoryLevel(ctx context.Context, level *commerce.PlatformInventoryLevel) error {
	if level == nil || level.VariantID == 0 {
		return fmt.Errorf("%w: missing variant id", commerce.ErrInvalidInventoryUpdate)
	}
	variantID := fmt.Sprintf("%d", level.VariantID)

	mapping, err := s.mappingRepo.FindByPlatformVariantID(ctx, variantID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Debug("Inventory update for unmapped variant", zap.String("variant_id", variantID))
			return nil
		}
		return fmt.Errorf("%w: find mapping by variant: %v", commerce.ErrTransient, err)
	}

	mapping.ApplyInventory(level.Available)
	if err := s.mappingRepo.Save(ctx, mapping); err != nil {
		return fmt.Errorf("%w: save mapping %s: %v", commerce.ErrTransient, mapping.ID, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Reconciliation
// ---------------------------------------------------------------------------

// ReconcileProducts re-fetches the platform product of every mapping and
// refreshes local metadata. Each mapping is attempted independently; one
// failure never aborts the batch. Cancellation does: the summary covers the
// mappings visited so far and is returned together with ctx.Err().
func (s *ProductSyncService) ReconcileProducts(ctx context.Context) (*ReconcileSummary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "product_sync", "reconcile")
	defer span.End()

	mappings, err := s.mappingRepo.FindAll(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("%w: list mappings: %v", commerce.ErrTransient, err)
	}

	summary := &ReconcileSummary{Failures: make([]ReconcileFailure, 0)}
	for i := range mappings {
		if err := ctx.Err(); err != nil {
			telemetry.RecordError(span, err)
			s.logger.Warn("Product reconciliation interrupted",
				zap.Int("total", len(mappings)),
				zap.Int("visited", i),
				zap.Int("synced", summary.Synced),
				zap.Int("errors", summary.Errors),
				zap.Error(err),
			)
			return summary, fmt.Errorf("reconcile interrupted after %d of %d mappings: %w", i, len(mappings), err)
		}
		mapping := &mappings[i]
		if err := s.reconcileOne(ctx, mapping); err != nil {
			summary.Errors++
			summary.Failures = append(summary.Failures, ReconcileFailure{
				MappingID:         mapping.ID,
				PlatformProductID: mapping.PlatformProductID,
				Error:             err.Error(),
			})
			continue
		}
		summary.Synced++
	}

	telemetry.SetAttributes(span, "synced", summary.Synced, "errors", summary.Errors)
	if summary.Errors == 0 {
		telemetry.SetOK(span)
	}
	s.logger.Info("Product reconciliation finished",
		zap.Int("total", len(mappings)),
		zap.Int("synced", summary.Synced),
		zap.Int("errors", summary.Errors),
	)
	return summary, nil
}

func (s *ProductSyncService) reconcileOne(ctx context.Context, mapping *commerce.ProductMapping) error {
	if !mapping.HasPlatformProduct() {
		s.recordFailure(ctx, mapping, commerce.SyncOperationSync, commerce.ErrMappingNotPushed)
		return commerce.ErrMappingNotPushed
	}

	product, err := s.gateway.GetProduct(ctx, mapping.PlatformProductID)
	if err != nil {
		s.recordFailure(ctx, mapping, commerce.SyncOperationSync, err)
		return err
	}

	mapping.RefreshFromPlatform(product, s.now())
	if err := s.mappingRepo.Save(ctx, mapping); err != nil {
		s.logger.Error("Failed to save reconciled mapping",
			zap.String("mapping_id", mapping.ID.String()),
			zap.Error(err),
		)
		return err
	}
	s.appendLog(ctx, commerce.SyncOperationSync, mapping.ID.String(), commerce.SyncLogSuccess, "")
	return nil
}

func (s *ProductSyncService) recordFailure(ctx context.Context, mapping *commerce.ProductMapping, op commerce.SyncOperation, cause error) {
	mapping.RecordSyncFailure(cause.Error())
	if err := s.mappingRepo.Save(ctx, mapping); err != nil {
		s.logger.Error("Failed to record mapping sync failure",
			zap.String("mapping_id", mapping.ID.String()),
			zap.Error(err),
		)
	}
	s.appendLog(ctx, op, mapping.ID.String(), commerce.SyncLogError, cause.Error())
	s.logger.Warn("Mapping sync failed",
		zap.String("mapping_id", mapping.ID.String()),
		zap.String("platform_product_id", mapping.PlatformProductID),
		zap.Error(cause),
	)
}

// ---------------------------------------------------------------------------
// Removal and inventory
// ---------------------------------------------------------------------------

// RemoveFromCommercePlatform deletes the platform product of a mapping and
// then the mapping itself. A product already gone on the platform counts as removed.
func (s *ProductSyncService) RemoveFromCommercePlatform(ctx context.Context, mappingID uuid.UUID) error {
	mapping, err := s.findMapping(ctx, mappingID)
	if err != nil {
		return err
	}

	if mapping.HasPlatformProduct() {
		if err := s.gateway.DeleteProduct(ctx, mapping.PlatformProductID); err != nil && !isNotFound(err) {
			s.recordFailure(ctx, mapping, commerce.SyncOperationDelete, err)
			return err
		}
	}

	if err := s.mappingRepo.Delete(ctx, mapping.ID); err != nil {
		return fmt.Errorf("%w: delete mapping %s: %v", commerce.ErrTransient, mapping.ID, err)
	}
	s.appendLog(ctx, commerce.SyncOperationDelete, mapping.ID.String(), commerce.SyncLogSuccess, "")
	s.logger.Info("Product removed from platform",
		zap.String("mapping_id", mapping.ID.String()),
		zap.String("platform_product_id", mapping.PlatformProductID),
	)
	return nil
}

// UpdateInventory sets the inventory quantity of the mapped variant on the platform
func (s *ProductSyncService) UpdateInventory(ctx context.Context, mappingID uuid.UUID, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("%w: quantity %d", commerce.ErrInvalidInventoryUpdate, quantity)
	}
	mapping, err := s.findMapping(ctx, mappingID)
	if err != nil {
		return err
	}
	if mapping.PlatformVariantID == "" {
		return commerce.ErrMappingNotPushed
	}

	variant, err := s.gateway.UpdateVariantInventory(ctx, mapping.PlatformVariantID, quantity)
	if err != nil {
		s.appendLogFor(ctx, commerce.SyncOperationUpdate, commerce.EntityTypeVariant, mapping.PlatformVariantID, commerce.SyncLogError, err.Error())
		return err
	}

	mapping.ApplyInventory(variant.InventoryQuantity)
	if err := s.mappingRepo.Save(ctx, mapping); err != nil {
		return fmt.Errorf("%w: save mapping %s: %v", commerce.ErrTransient, mapping.ID, err)
	}
	s.appendLogFor(ctx, commerce.SyncOperationUpdate, commerce.EntityTypeVariant, mapping.PlatformVariantID, commerce.SyncLogSuccess, "")
	return nil
}

// ListSyncLog returns the most recent sync log entries
func (s *ProductSyncService) ListSyncLog(ctx context.Context, limit int) ([]commerce.SyncLogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.syncLogRepo.ListRecent(ctx, limit)
}

func (s *ProductSyncService) findMapping(ctx context.Context, id uuid.UUID) (*commerce.ProductMapping, error) {
	mapping, err := s.mappingRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, commerce.ErrMappingNotFound
		}
		return nil, fmt.Errorf("%w: find mapping: %v", commerce.ErrTransient, err)
	}
	return mapping, nil
}

func (s *ProductSyncService) appendLog(ctx context.Context, op commerce.SyncOperation, entityID string, status commerce.SyncLogStatus, errMsg string) {
	s.appendLogFor(ctx, op, commerce.EntityTypeProductMapping, entityID, status, errMsg)
}

// appendLogFor writes an audit entry. Audit failures are logged and never
// mask the outcome of the sync itself.
func (s *ProductSyncService) appendLogFor(ctx context.Context, op commerce.SyncOperation, entityType, entityID string, status commerce.SyncLogStatus, errMsg string) {
	entry, err := commerce.NewSyncLogEntry(op, entityType, entityID, status, errMsg)
	if err != nil {
		s.logger.Error("Invalid sync log entry", zap.Error(err))
		return
	}
	if err := s.syncLogRepo.Append(ctx, entry); err != nil {
		s.logger.Error("Failed to append sync log",
			zap.String("operation", string(op)),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}
}

type statusCoder interface {
	HTTPStatus() int
}

func isNotFound(err error) bool {
	var sc statusCoder
	return errors.As(err, &sc) && sc.HTTPStatus() == http.StatusNotFound
}
