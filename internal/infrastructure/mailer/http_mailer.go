package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/beizaplus/commerce-sync/internal/domain/commerce"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/logger"
)

// ErrMissingRecipient is returned for orders without a customer email
var ErrMissingRecipient = errors.New("mailer: order has no customer email")

// ProviderError is a non-2xx answer from the email provider
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("mailer: provider returned HTTP %d: %s", e.StatusCode, e.Body)
}

// HTTPStatus returns the provider status code
func (e *ProviderError) HTTPStatus() int {
	return e.StatusCode
}

// Retryable reports whether the provider may accept the message later
func (e *ProviderError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// HTTPMailer posts Message as JSON to a transactional email endpoint
// authenticated with a bearer API key.
type HTTPMailer struct {
	endpoint   string
	apiKey     string
	from       string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ commerce.OrderMailer = (*HTTPMailer)(nil)

// NewHTTPMailer creates an HTTPMailer
func NewHTTPMailer(endpoint, apiKey, from string, timeout time.Duration, logger *zap.Logger) (*HTTPMailer, error) {
	if endpoint == "" {
		return nil, errors.New("mailer: endpoint is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPMailer{
		endpoint:   endpoint,
		apiKey:     apiKey,
		from:       from,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// SendOrderStatusEmail composes and submits the message
func (m *HTTPMailer) SendOrderStatusEmail(ctx context.Context, order *commerce.OrderRecord, previousStatus commerce.OrderStatus) error {
	if order.CustomerEmail == "" {
		return ErrMissingRecipient
	}

	msg := NewMessage(m.from, order, previousStatus)
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("mailer: encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("mailer: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}
	if order.ID != uuid.Nil {
		// lets the provider drop resubmissions of the same transition
		req.Header.Set("Idempotency-Key", order.ID.String()+":"+string(order.Status))
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: mailer: %v", commerce.ErrTransient, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ProviderError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}

	logger.Enrich(ctx, m.logger).Info("Order email submitted",
		zap.String("order_number", order.OrderNumber),
		zap.String("template", msg.Template),
		zap.Int("status_code", resp.StatusCode),
	)
	return nil
}
