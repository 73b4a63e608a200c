package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appcommerce "github.com/beizaplus/commerce-sync/internal/application/commerce"
	"github.com/beizaplus/commerce-sync/internal/domain/commerce"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/logger"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/telemetry"
)

// invalidLinkMessage is the same for unknown, expired and unusable tokens
const invalidLinkMessage = "Invalid or expired link"

// DownloadRedeemer turns a download token into a signed file URL
type DownloadRedeemer interface {
	Redeem(ctx context.Context, token string) (*appcommerce.DownloadLink, error)
}

// DownloadHandler serves customer download links
type DownloadHandler struct {
	BaseHandler
	redeemer DownloadRedeemer
	metrics  *telemetry.Metrics
}

// NewDownloadHandler creates a new DownloadHandler. metrics may be nil.
func NewDownloadHandler(redeemer DownloadRedeemer, metrics *telemetry.Metrics) *DownloadHandler {
	return &DownloadHandler{
		redeemer: redeemer,
		metrics:  metrics,
	}
}

// Download handles GET /api/v1/downloads?token=...
// A valid token redirects (302) to a short-lived signed URL; every failure is a 404.
func (h *DownloadHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		h.metrics.ObserveDownload(telemetry.DownloadResultInvalid)
		h.NotFound(c, invalidLinkMessage)
		return
	}

	link, err := h.redeemer.Redeem(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, commerce.ErrAssetNotFound) || errors.Is(err, commerce.ErrInvalidFileURL) {
			h.metrics.ObserveDownload(telemetry.DownloadResultInvalid)
			h.NotFound(c, invalidLinkMessage)
			return
		}

		// storage and database failures get the same answer; only logs tell them apart
		h.metrics.ObserveDownload(telemetry.DownloadResultError)
		logger.GetGinLogger(c).Error("Download redemption failed",
			zap.Bool("retryable", commerce.IsRetryable(err)),
			zap.Error(err),
		)
		h.NotFound(c, invalidLinkMessage)
		return
	}

	h.metrics.ObserveDownload(telemetry.DownloadResultRedirect)
	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusFound, link.URL)
}
