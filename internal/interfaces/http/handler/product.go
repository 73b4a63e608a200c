package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appcommerce "github.com/beizaplus/commerce-sync/internal/application/commerce"
	"github.com/beizaplus/commerce-sync/internal/domain/commerce"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/scheduler"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/telemetry"
	"github.com/beizaplus/commerce-sync/internal/interfaces/http/dto"
	"github.com/beizaplus/commerce-sync/internal/interfaces/http/middleware"
)

// Product sync metric labels
const (
	syncOpPush      = "push"
	syncOpDelete    = "delete"
	syncOpInventory = "inventory"
	syncStatusOK    = "success"
	syncStatusError = "error"
)

const (
	defaultSyncLogLimit = 50
	defaultRunsLimit    = 20
)

// ProductSyncer is the admin surface of the product sync engine
type ProductSyncer interface {
	PushToCommercePlatform(ctx context.Context, entity commerce.LocalEntity) (*appcommerce.SyncResult, error)
	RemoveFromCommercePlatform(ctx context.Context, mappingID uuid.UUID) error
	UpdateInventory(ctx context.Context, mappingID uuid.UUID, quantity int) error
	ListSyncLog(ctx context.Context, limit int) ([]commerce.SyncLogEntry, error)
}

// ReconcileRunner runs and reports product reconciliation
type ReconcileRunner interface {
	RunOnce(ctx context.Context, trigger string) (*scheduler.ReconcileRun, error)
	History(limit int) []scheduler.ReconcileRun
}

// ProductHandler serves the admin product sync routes
type ProductHandler struct {
	BaseHandler
	syncer  ProductSyncer
	runner  ReconcileRunner
	metrics *telemetry.Metrics
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(syncer ProductSyncer, runner ReconcileRunner, metrics *telemetry.Metrics) *ProductHandler {
	return &ProductHandler{
		syncer:  syncer,
		runner:  runner,
		metrics: metrics,
	}
}

// Push handles POST /api/v1/admin/products/push.
// A platform rejection is still recorded on the mapping, so the response
// carries the mapping alongside the error.
func (h *ProductHandler) Push(c *gin.Context) {
	var req dto.PushProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.syncer.PushToCommercePlatform(c.Request.Context(), req.ToLocalEntity())
	if err != nil {
		h.metrics.ObserveProductSync(syncOpPush, syncStatusError)
		h.HandleError(c, err)
		return
	}

	resp := dto.PushProductResponse{
		Success:           result.Success,
		PlatformProductID: result.PlatformProductID,
		Error:             result.Error,
		Retryable:         result.Retryable,
		Mapping:           dto.ToMappingResponse(result.Mapping),
	}

	if result.Success {
		h.metrics.ObserveProductSync(syncOpPush, syncStatusOK)
		h.Success(c, resp)
		return
	}

	h.metrics.ObserveProductSync(syncOpPush, syncStatusError)
	status, code := http.StatusBadGateway, dto.ErrCodeUpstream
	if result.Retryable {
		status, code = http.StatusServiceUnavailable, dto.ErrCodeUnavailable
	}
	c.JSON(status, dto.Response{
		Success: false,
		Data:    resp,
		Error: &dto.ErrorInfo{
			Code:      code,
			Message:   result.Error,
			RequestID: getRequestID(c),
		},
	})
}

// Reconcile handles POST /api/v1/admin/products/reconcile.
// The run shares the scheduler's guard, so it never overlaps a timed run.
func (h *ProductHandler) Reconcile(c *gin.Context) {
	// a dropped admin connection should not abort a half-finished batch
	ctx := context.WithoutCancel(c.Request.Context())

	run, err := h.runner.RunOnce(ctx, "manual")
	if errors.Is(err, scheduler.ErrRunInProgress) {
		h.Conflict(c, "A product reconcile is already running")
		return
	}
	if err != nil && run == nil {
		h.HandleError(c, err)
		return
	}

	// a failed run is still reported as a run
	h.Success(c, run)
}

// ReconcileRuns handles GET /api/v1/admin/products/reconcile/runs?limit=
func (h *ProductHandler) ReconcileRuns(c *gin.Context) {
	limit, ok := h.queryLimit(c, defaultRunsLimit)
	if !ok {
		return
	}
	h.Success(c, h.runner.History(limit))
}

// DeleteMapping handles DELETE /api/v1/admin/products/mappings/:id
func (h *ProductHandler) DeleteMapping(c *gin.Context) {
	id, ok := h.mappingID(c)
	if !ok {
		return
	}

	if err := h.syncer.RemoveFromCommercePlatform(c.Request.Context(), id); err != nil {
		h.metrics.ObserveProductSync(syncOpDelete, syncStatusError)
		h.HandleError(c, err)
		return
	}

	h.metrics.ObserveProductSync(syncOpDelete, syncStatusOK)
	h.NoContent(c)
}

// UpdateInventory handles PUT /api/v1/admin/products/mappings/:id/inventory
func (h *ProductHandler) UpdateInventory(c *gin.Context) {
	id, ok := h.mappingID(c)
	if !ok {
		return
	}

	var req dto.UpdateInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	if err := h.syncer.UpdateInventory(c.Request.Context(), id, *req.Quantity); err != nil {
		h.metrics.ObserveProductSync(syncOpInventory, syncStatusError)
		h.HandleError(c, err)
		return
	}

	h.metrics.ObserveProductSync(syncOpInventory, syncStatusOK)
	h.Success(c, gin.H{"mapping_id": id, "quantity": *req.Quantity})
}

// SyncLog handles GET /api/v1/admin/sync-log?limit=
func (h *ProductHandler) SyncLog(c *gin.Context) {
	limit, ok := h.queryLimit(c, defaultSyncLogLimit)
	if !ok {
		return
	}

	entries, err := h.syncer.ListSyncLog(c.Request.Context(), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.ToSyncLogResponses(entries))
}

func (h *ProductHandler) mappingID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid mapping id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *ProductHandler) queryLimit(c *gin.Context, fallback int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return fallback, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		h.BadRequest(c, "limit must be a positive integer")
		return 0, false
	}
	return limit, true
}
