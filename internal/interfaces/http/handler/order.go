package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	appcommerce "github.com/beizaplus/commerce-sync/internal/application/commerce"
	"github.com/beizaplus/commerce-sync/internal/domain/commerce"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/telemetry"
	"github.com/beizaplus/commerce-sync/internal/interfaces/http/dto"
	"github.com/beizaplus/commerce-sync/internal/interfaces/http/middleware"
)

// OrderLookup finds an order for a customer
type OrderLookup interface {
	Lookup(ctx context.Context, orderNumber, email string) (*commerce.OrderRecord, error)
}

// OrderBackfiller re-reads orders from the commerce platform
type OrderBackfiller interface {
	Backfill(ctx context.Context, limit int) (*appcommerce.BackfillSummary, error)
	ResyncOrder(ctx context.Context, platformOrderID string) (*commerce.StatusTransition, error)
}

// OrderHandler serves the order lookup and the admin order maintenance routes
type OrderHandler struct {
	BaseHandler
	lookup     OrderLookup
	backfiller OrderBackfiller
	metrics    *telemetry.Metrics
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(lookup OrderLookup, backfiller OrderBackfiller, metrics *telemetry.Metrics) *OrderHandler {
	return &OrderHandler{
		lookup:     lookup,
		backfiller: backfiller,
		metrics:    metrics,
	}
}

// Lookup handles GET /api/v1/orders/lookup?order_number=&email=
func (h *OrderHandler) Lookup(c *gin.Context) {
	var query dto.OrderLookupQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	order, err := h.lookup.Lookup(c.Request.Context(), query.OrderNumber, query.Email)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.ToOrderResponse(order))
}

// Backfill handles POST /api/v1/admin/orders/backfill?limit=
func (h *OrderHandler) Backfill(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.BadRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	summary, err := h.backfiller.Backfill(c.Request.Context(), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, summary)
}

// Resync handles POST /api/v1/admin/orders/:id/resync, where id is the platform order id
func (h *OrderHandler) Resync(c *gin.Context) {
	platformID := c.Param("id")
	if _, err := strconv.ParseInt(platformID, 10, 64); err != nil {
		h.BadRequest(c, "id must be a numeric platform order id")
		return
	}

	transition, err := h.backfiller.ResyncOrder(c.Request.Context(), platformID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	switch {
	case transition.Created:
		h.metrics.ObserveOrderCreated()
	case transition.Changed():
		h.metrics.ObserveOrderTransition(string(transition.Previous), string(transition.Current))
	}

	h.Success(c, dto.ToTransitionResponse(transition))
}
