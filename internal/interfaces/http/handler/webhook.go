package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appcommerce "github.com/beizaplus/commerce-sync/internal/application/commerce"
	"github.com/beizaplus/commerce-sync/internal/domain/commerce"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/logger"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/telemetry"
	"github.com/beizaplus/commerce-sync/internal/interfaces/http/dto"
)

// Headers set by the commerce platform on every webhook delivery
const (
	HeaderWebhookTopic     = "X-Shopify-Topic"
	HeaderWebhookShop      = "X-Shopify-Shop-Domain"
	HeaderWebhookID        = "X-Shopify-Webhook-Id"
	HeaderWebhookSignature = "X-Shopify-Hmac-Sha256"
)

const defaultWebhookMaxBody = 5 << 20

// WebhookProcessor verifies and dispatches one delivery
type WebhookProcessor interface {
	ProcessWebhook(ctx context.Context, req appcommerce.WebhookRequest) (*appcommerce.WebhookResult, error)
}

// WebhookHandler receives commerce platform webhooks.
// The endpoint is unauthenticated; the HMAC signature is the credential.
type WebhookHandler struct {
	BaseHandler
	processor    WebhookProcessor
	metrics      *telemetry.Metrics
	maxBodyBytes int64
}

// NewWebhookHandler creates a new WebhookHandler. metrics may be nil.
func NewWebhookHandler(processor WebhookProcessor, metrics *telemetry.Metrics, maxBodyBytes int64) *WebhookHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultWebhookMaxBody
	}
	return &WebhookHandler{
		processor:    processor,
		metrics:      metrics,
		maxBodyBytes: maxBodyBytes,
	}
}

// Receive handles POST /webhooks/commerce.
// 2xx acknowledges the delivery; 503 asks the platform to redeliver.
func (h *WebhookHandler) Receive(c *gin.Context) {
	start := time.Now()
	topic := c.GetHeader(HeaderWebhookTopic)

	// the signature covers the exact bytes, so the body is read raw
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxBodyBytes+1))
	if err != nil {
		h.metrics.ObserveWebhook(topic, telemetry.WebhookResultRejected, time.Since(start))
		h.BadRequest(c, "Failed to read request body")
		return
	}
	if int64(len(body)) > h.maxBodyBytes {
		h.metrics.ObserveWebhook(topic, telemetry.WebhookResultRejected, time.Since(start))
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge, "Payload too large")
		return
	}

	result, err := h.processor.ProcessWebhook(c.Request.Context(), appcommerce.WebhookRequest{
		Topic:      topic,
		ShopDomain: c.GetHeader(HeaderWebhookShop),
		WebhookID:  c.GetHeader(HeaderWebhookID),
		Body:       body,
		Signature:  c.GetHeader(HeaderWebhookSignature),
	})
	if err != nil {
		h.handleWebhookError(c, topic, err, start)
		return
	}

	switch {
	case result.Duplicate:
		h.metrics.ObserveWebhook(topic, telemetry.WebhookResultDuplicate, time.Since(start))
	case result.Ignored:
		h.metrics.ObserveWebhook(topic, telemetry.WebhookResultIgnored, time.Since(start))
	default:
		h.metrics.ObserveWebhook(topic, telemetry.WebhookResultProcessed, time.Since(start))
		h.observeTransition(result.Transition)
	}

	h.Success(c, result)
}

func (h *WebhookHandler) handleWebhookError(c *gin.Context, topic string, err error, start time.Time) {
	log := logger.GetGinLogger(c)

	switch {
	case appcommerce.IsVerificationError(err):
		h.metrics.ObserveWebhook(topic, telemetry.WebhookResultRejected, time.Since(start))
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeInvalidSignature, "Webhook signature verification failed")

	case errors.Is(err, appcommerce.ErrMalformedPayload):
		h.metrics.ObserveWebhook(topic, telemetry.WebhookResultRejected, time.Since(start))
		h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, "Malformed webhook payload")

	case errors.Is(err, appcommerce.ErrMissingPayloadKey),
		errors.Is(err, commerce.ErrInvalidOrderPayload),
		errors.Is(err, commerce.ErrInvalidProductPayload),
		errors.Is(err, commerce.ErrInvalidInventoryUpdate):
		h.metrics.ObserveWebhook(topic, telemetry.WebhookResultRejected, time.Since(start))
		h.Error(c, http.StatusUnprocessableEntity, dto.ErrCodeMalformedPayload, err.Error())

	case commerce.IsRetryable(err):
		h.metrics.ObserveWebhook(topic, telemetry.WebhookResultRetryable, time.Since(start))
		log.Warn("Webhook processing failed, requesting redelivery",
			zap.String("topic", topic),
			zap.Error(err),
		)
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "Temporarily unavailable, please retry")

	default:
		h.metrics.ObserveWebhook(topic, telemetry.WebhookResultPermanent, time.Since(start))
		log.Error("Webhook processing failed",
			zap.String("topic", topic),
			zap.Error(err),
		)
		h.InternalError(c, "Webhook processing failed")
	}
}

func (h *WebhookHandler) observeTransition(t *commerce.StatusTransition) {
	if t == nil {
		return
	}
	if t.Created {
		h.metrics.ObserveOrderCreated()
		return
	}
	if t.Changed() {
		h.metrics.ObserveOrderTransition(string(t.Previous), string(t.Current))
	}
}
