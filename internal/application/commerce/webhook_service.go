package commerce

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/beizaplus/commerce-sync/internal/domain/commerce"
	"github.com/beizaplus/commerce-sync/internal/domain/shared"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Webhook topics routed to a handler
const (
	TopicProductsCreate        = "products/create"
	TopicProductsUpdate        = "products/update"
	TopicOrdersCreate          = "orders/create"
	TopicOrdersUpdated         = "orders/updated"
	TopicInventoryLevelsUpdate = "inventory_levels/update"
)

// Top-level payload keys required per topic family
const (
	payloadKeyOrder          = "order"
	payloadKeyProduct        = "product"
	payloadKeyInventoryLevel = "inventory_level"
)

// Webhook verification and parsing errors
var (
	ErrWebhookSecretMissing = errors.New("webhook: no signing secret configured")
	ErrMissingSignature     = errors.New("webhook: missing signature header")
	ErrInvalidSignature     = errors.New("webhook: signature mismatch")
	ErrMalformedPayload     = errors.New("webhook: malformed payload")
	ErrMissingPayloadKey    = errors.New("webhook: missing required payload key")
)

// IsVerificationError reports whether err means the request could not be authenticated
func IsVerificationError(err error) bool {
	return errors.Is(err, ErrWebhookSecretMissing) ||
		errors.Is(err, ErrMissingSignature) ||
		errors.Is(err, ErrInvalidSignature)
}

// OrderSink receives verified order payloads
type OrderSink interface {
	Reconcile(ctx context.Context, po *commerce.PlatformOrder) (*commerce.StatusTransition, error)
}

// ProductSink receives verified product and inventory payloads
type ProductSink interface {
	PullFromCommercePlatform(ctx context.Context, product *commerce.PlatformProduct) error
	ApplyInventoryLevel(ctx context.Context, level *commerce.PlatformInventoryLevel) error
}

// WebhookConfig controls signature verification and duplicate suppression
type WebhookConfig struct {
	Secret string
	// AllowUnverified skips verification when no secret is set.
	// Configuration refuses it in production.
	AllowUnverified bool
	DedupeTTL       time.Duration
}

// WebhookRequest is one inbound delivery as received over HTTP
type WebhookRequest struct {
	Topic      string
	ShopDomain string
	WebhookID  string
	Body       []byte
	Signature  string
}

// WebhookResult contains the result of processing a webhook
type WebhookResult struct {
	Topic      string                     `json:"topic"`
	WebhookID  string                     `json:"webhook_id,omitempty"`
	Processed  bool                       `json:"processed"`
	Ignored    bool                       `json:"ignored,omitempty"`
	Duplicate  bool                       `json:"duplicate,omitempty"`
	Transition *commerce.StatusTransition `json:"-"`
	Message    string                     `json:"message,omitempty"`
}

// WebhookService verifies inbound commerce webhooks and routes them by topic
type WebhookService struct {
	config   WebhookConfig
	orders   OrderSink
	products ProductSink
	dedupe   shared.IdempotencyStore
	logger   *zap.Logger
}

// NewWebhookService creates a new WebhookService. dedupe may be nil.
func NewWebhookService(cfg WebhookConfig, orders OrderSink, products ProductSink, dedupe shared.IdempotencyStore, logger *zap.Logger) *WebhookService {
	if cfg.DedupeTTL <= 0 {
		cfg.DedupeTTL = shared.DefaultIdempotencyConfig().TTL
	}
	return &WebhookService{
		config:   cfg,
		orders:   orders,
		products: products,
		dedupe:   dedupe,
		logger:   logger,
	}
}

// Verify authenticates the raw body against the base64 HMAC-SHA256 signature.
// Without a secret every request is refused unless AllowUnverified is set.
func (s *WebhookService) Verify(body []byte, signature string) error {
	if s.config.Secret == "" {
		if s.config.AllowUnverified {
			return nil
		}
		return ErrWebhookSecretMissing
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrMissingSignature
	}
	provided, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}
	if !hmac.Equal(provided, ComputeSignature([]byte(s.config.Secret), body)) {
		return ErrInvalidSignature
	}
	return nil
}

// ComputeSignature returns the raw HMAC-SHA256 of body
func ComputeSignature(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}

// SignPayload returns the base64 signature header value for body
func SignPayload(secret string, body []byte) string {
	return base64.StdEncoding.EncodeToString(ComputeSignature([]byte(secret), body))
}

// ProcessWebhook verifies, parses and dispatches one delivery
func (s *WebhookService) ProcessWebhook(ctx context.Context, req WebhookRequest) (*WebhookResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "webhook", "process",
		telemetry.WithAttribute(telemetry.SpanAttrWebhookTopic, req.Topic),
		telemetry.WithAttribute(telemetry.SpanAttrWebhookID, req.WebhookID),
	)
	defer span.End()

	if err := s.Verify(req.Body, req.Signature); err != nil {
		s.logger.Warn("Rejected unverified webhook",
			zap.String("topic", req.Topic),
			zap.String("shop_domain", req.ShopDomain),
			zap.Error(err),
		)
		return nil, err
	}

	result := &WebhookResult{
		Topic:     req.Topic,
		WebhookID: req.WebhookID,
	}

	key, known := requiredPayloadKey(req.Topic)
	if !known {
		s.logger.Info("Ignoring webhook with unhandled topic",
			zap.String("topic", req.Topic),
			zap.String("shop_domain", req.ShopDomain),
		)
		result.Ignored = true
		result.Message = "Topic not handled"
		return result, nil
	}

	payload, err := extractPayload(req.Body, key)
	if err != nil {
		s.logger.Warn("Rejected webhook payload",
			zap.String("topic", req.Topic),
			zap.String("shop_domain", req.ShopDomain),
			zap.Error(err),
		)
		return nil, err
	}

	if s.alreadyProcessed(ctx, req.WebhookID) {
		s.logger.Info("Skipping redelivered webhook",
			zap.String("topic", req.Topic),
			zap.String("webhook_id", req.WebhookID),
		)
		result.Duplicate = true
		result.Message = "Already processed"
		return result, nil
	}

	s.logger.Info("Processing commerce webhook",
		zap.String("topic", req.Topic),
		zap.String("shop_domain", req.ShopDomain),
		zap.String("webhook_id", req.WebhookID),
	)

	switch req.Topic {
	case TopicOrdersCreate, TopicOrdersUpdated:
		err = s.handleOrder(ctx, payload, result)
	case TopicProductsCreate, TopicProductsUpdate:
		err = s.handleProduct(ctx, payload)
	case TopicInventoryLevelsUpdate:
		err = s.handleInventoryLevel(ctx, payload)
	}

	if err != nil {
		s.logger.Error("Failed to process webhook",
			zap.String("topic", req.Topic),
			zap.String("webhook_id", req.WebhookID),
			zap.Bool("retryable", commerce.IsRetryable(err)),
			zap.Error(err),
		)
		telemetry.RecordError(span, err)
		result.Message = err.Error()
		return result, err
	}

	result.Processed = true
	s.markProcessed(ctx, req.WebhookID)
	telemetry.SetOK(span)
	return result, nil
}

func (s *WebhookService) handleOrder(ctx context.Context, payload json.RawMessage, result *WebhookResult) error {
	var po commerce.PlatformOrder
	if err := json.Unmarshal(payload, &po); err != nil {
		return fmt.Errorf("%w: order: %v", ErrMalformedPayload, err)
	}
	po.Raw = payload

	transition, err := s.orders.Reconcile(ctx, &po)
	if err != nil {
		return err
	}
	result.Transition = transition
	return nil
}

func (s *WebhookService) handleProduct(ctx context.Context, payload json.RawMessage) error {
	var product commerce.PlatformProduct
	if err := json.Unmarshal(payload, &product); err != nil {
		return fmt.Errorf("%w: product: %v", ErrMalformedPayload, err)
	}
	if product.ID == 0 {
		return fmt.Errorf("%w: missing product id", commerce.ErrInvalidProductPayload)
	}
	return s.products.PullFromCommercePlatform(ctx, &product)
}

func (s *WebhookService) handleInventoryLevel(ctx context.Context, payload json.RawMessage) error {
	var level commerce.PlatformInventoryLevel
	if err := json.Unmarshal(payload, &level); err != nil {
		return fmt.Errorf("%w: inventory_level: %v", ErrMalformedPayload, err)
	}
	return s.products.ApplyInventoryLevel(ctx, &level)
}

func (s *WebhookService) alreadyProcessed(ctx context.Context, webhookID string) bool {
	if s.dedupe == nil || webhookID == "" {
		return false
	}
	seen, err := s.dedupe.IsProcessed(ctx, dedupeKey(webhookID))
	if err != nil {
		s.logger.Warn("Webhook dedupe lookup failed",
			zap.String("webhook_id", webhookID),
			zap.Error(err),
		)
		return false
	}
	return seen
}

func (s *WebhookService) markProcessed(ctx context.Context, webhookID string) {
	if s.dedupe == nil || webhookID == "" {
		return
	}
	if _, err := s.dedupe.MarkProcessed(ctx, dedupeKey(webhookID), s.config.DedupeTTL); err != nil {
		s.logger.Warn("Failed to mark webhook processed",
			zap.String("webhook_id", webhookID),
			zap.Error(err),
		)
	}
}

func dedupeKey(webhookID string) string {
	return "webhook:" + webhookID
}

func requiredPayloadKey(topic string) (string, bool) {
	switch topic {
	case TopicOrdersCreate, TopicOrdersUpdated:
		return payloadKeyOrder, true
	case TopicProductsCreate, TopicProductsUpdate:
		return payloadKeyProduct, true
	case TopicInventoryLevelsUpdate:
		return payloadKeyInventoryLevel, true
	}
	return "", false
}

// extractPayload parses the envelope and returns the object under key
func extractPayload(body []byte, key string) (json.RawMessage, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	payload, ok := envelope[key]
	if !ok || len(payload) == 0 || bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		return nil, fmt.Errorf("%w: %q", ErrMissingPayloadKey, key)
	}
	return payload, nil
}
