package mailer

import (
	"context"

	"go.uber.org/zap"

	"github.com/beizaplus/commerce-sync/internal/domain/commerce"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/logger"
)

// LogMailer writes the composed message to the log instead of sending it.
// Used in development and when no provider is configured.
type LogMailer struct {
	from   string
	logger *zap.Logger
}

var _ commerce.OrderMailer = (*LogMailer)(nil)

// NewLogMailer creates a LogMailer
func NewLogMailer(from string, logger *zap.Logger) *LogMailer {
	return &LogMailer{from: from, logger: logger}
}

// SendOrderStatusEmail logs the message
func (m *LogMailer) SendOrderStatusEmail(ctx context.Context, order *commerce.OrderRecord, previousStatus commerce.OrderStatus) error {
	msg := NewMessage(m.from, order, previousStatus)
	logger.Enrich(ctx, m.logger).Info("Order email (log transport)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("template", msg.Template),
		zap.String("order_number", msg.Data.OrderNumber),
		zap.String("previous_status", msg.Data.PreviousStatus),
	)
	return nil
}
