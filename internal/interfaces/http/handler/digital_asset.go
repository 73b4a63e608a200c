package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appcommerce "github.com/beizaplus/commerce-sync/internal/application/commerce"
	"github.com/beizaplus/commerce-sync/internal/domain/commerce"
	"github.com/beizaplus/commerce-sync/internal/interfaces/http/dto"
	"github.com/beizaplus/commerce-sync/internal/interfaces/http/middleware"
)

// AssetIssuer mints and lists download tokens
type AssetIssuer interface {
	Issue(ctx context.Context, req appcommerce.IssueAssetRequest) (*commerce.DigitalAsset, error)
	ListForOrder(ctx context.Context, orderID uuid.UUID) ([]commerce.DigitalAsset, error)
}

// DigitalAssetHandler serves the admin digital asset routes
type DigitalAssetHandler struct {
	BaseHandler
	assets        AssetIssuer
	publicBaseURL string
}

// NewDigitalAssetHandler creates a new DigitalAssetHandler.
// publicBaseURL is used to render the customer download link.
func NewDigitalAssetHandler(assets AssetIssuer, publicBaseURL string) *DigitalAssetHandler {
	return &DigitalAssetHandler{
		assets:        assets,
		publicBaseURL: publicBaseURL,
	}
}

// Issue handles POST /api/v1/admin/digital-assets
func (h *DigitalAssetHandler) Issue(c *gin.Context) {
	var req dto.IssueAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	// binding already checked the uuid format
	orderID := uuid.MustParse(req.OrderID)

	asset, err := h.assets.Issue(c.Request.Context(), appcommerce.IssueAssetRequest{
		OrderID:           orderID,
		PlatformProductID: req.PlatformProductID,
		AssetType:         commerce.AssetType(req.AssetType),
		FileURL:           req.FileURL,
		ExpiresInDays:     req.ExpiresInDays,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, dto.ToDigitalAssetResponse(asset, h.publicBaseURL))
}

// ListForOrder handles GET /api/v1/admin/orders/:id/digital-assets
func (h *DigitalAssetHandler) ListForOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order id")
		return
	}

	assets, err := h.assets.ListForOrder(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	out := make([]*dto.DigitalAssetResponse, 0, len(assets))
	for i := range assets {
		out = append(out, dto.ToDigitalAssetResponse(&assets[i], h.publicBaseURL))
	}
	h.Success(c, out)
}
