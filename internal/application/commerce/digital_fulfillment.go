package commerce

import (
	"context"
	"errors"
	"fmt"

	"github.com/beizaplus/commerce-sync/internal/domain/commerce"
	"github.com/beizaplus/commerce-sync/internal/domain/shared"
	"go.uber.org/zap"
)

// DigitalFulfiller issues download tokens for the digital line items of a
// paid order. It is run on every reconcile of a paid order, so an asset that
// failed to issue is retried by the next delivery or resync.
type DigitalFulfiller struct {
	mappingRepo commerce.ProductMappingReader
	assets      *DigitalAssetService
	logger      *zap.Logger
}

// NewDigitalFulfiller creates a new DigitalFulfiller
func NewDigitalFulfiller(mappingRepo commerce.ProductMappingReader, assets *DigitalAssetService, logger *zap.Logger) *DigitalFulfiller {
	return &DigitalFulfiller{
		mappingRepo: mappingRepo,
		assets:      assets,
		logger:      logger,
	}
}

// Fulfill issues one asset per digital product on the order that has none yet
func (h *DigitalFulfiller) Fulfill(ctx context.Context, order *commerce.OrderRecord) (int, error) {
	if order == nil || !order.Status.IsPaid() {
		return 0, nil
	}

	existing, err := h.assets.ListForOrder(ctx, order.ID)
	if err != nil {
		return 0, fmt.Errorf("%w: list order assets: %v", commerce.ErrTransient, err)
	}
	issued := make(map[string]bool, len(existing))
	for _, a := range existing {
		issued[a.PlatformProductID] = true
	}

	count := 0
	var errs []error
	for _, item := range order.LineItems {
		if item.ProductID == "" || issued[item.ProductID] {
			continue
		}

		mapping, err := h.mappingRepo.FindByPlatformProductID(ctx, item.ProductID)
		if err != nil {
			if !errors.Is(err, shared.ErrNotFound) {
				errs = append(errs, err)
			}
			continue
		}
		if !mapping.IsDigital() {
			continue
		}

		assetType, ok := commerce.AssetTypeForCategory(mapping.ProductCategory)
		if !ok || mapping.FileURL() == "" {
			h.logger.Warn("Digital product has no deliverable file",
				zap.String("mapping_id", mapping.ID.String()),
				zap.String("platform_product_id", item.ProductID),
			)
			continue
		}

		if _, err := h.assets.Issue(ctx, IssueAssetRequest{
			OrderID:           order.ID,
			PlatformProductID: item.ProductID,
			AssetType:         assetType,
			FileURL:           mapping.FileURL(),
		}); err != nil {
			if !commerce.IsRetryable(err) {
				h.logger.Warn("Digital item cannot be issued",
					zap.String("order_id", order.ID.String()),
					zap.String("platform_product_id", item.ProductID),
					zap.Error(err),
				)
				continue
			}
			errs = append(errs, err)
			continue
		}
		issued[item.ProductID] = true
		count++
	}

	return count, errors.Join(errs...)
}

var _ OrderFulfiller = (*DigitalFulfiller)(nil)
