package commerce

import (
	"context"
	"fmt"
	"time"

	"github.com/beizaplus/commerce-sync/internal/domain/commerce"
	"github.com/beizaplus/commerce-sync/internal/domain/shared"
	"go.uber.org/zap"
)

// NotificationTrigger decides when an order status change warrants a
// customer email. Composition and delivery belong to the mailer.
type NotificationTrigger struct {
	orderRepo commerce.OrderRepository
	mailer    commerce.OrderMailer
	logger    *zap.Logger
	now       func() time.Time
}

// NewNotificationTrigger creates a new NotificationTrigger
func NewNotificationTrigger(orderRepo commerce.OrderRepository, mailer commerce.OrderMailer, logger *zap.Logger) *NotificationTrigger {
	return &NotificationTrigger{
		orderRepo: orderRepo,
		mailer:    mailer,
		logger:    logger,
		now:       time.Now,
	}
}

// OnStatusTransition records a pending email and hands the order to the mailer.
// A pending status that never advances is the signal for a failed delivery.
func (t *NotificationTrigger) OnStatusTransition(ctx context.Context, order *commerce.OrderRecord, previous, current commerce.OrderStatus) error {
	if order == nil || previous == current {
		return nil
	}

	at := t.now()
	if err := t.orderRepo.UpdateEmailStatus(ctx, order.ID, commerce.EmailStatusPending, at); err != nil {
		return fmt.Errorf("%w: record pending email for order %s: %v", commerce.ErrTransient, order.ID, err)
	}
	order.MarkEmailPending(at)

	t.logger.Info("Order status notification queued",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("previous_status", string(previous)),
		zap.String("status", string(current)),
	)

	if err := t.mailer.SendOrderStatusEmail(ctx, order, previous); err != nil {
		t.logger.Warn("Order status email not delivered",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return nil
	}

	sentAt := t.now()
	if err := t.orderRepo.UpdateEmailStatus(ctx, order.ID, commerce.EmailStatusSent, sentAt); err != nil {
		t.logger.Warn("Failed to record sent email",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return nil
	}
	order.LastEmailStatus = commerce.EmailStatusSent
	order.LastEmailSentAt = &sentAt
	return nil
}

// Handle implements shared.EventHandler
func (t *NotificationTrigger) Handle(ctx context.Context, event shared.DomainEvent) error {
	changed, ok := event.(*commerce.OrderStatusChangedEvent)
	if !ok {
		return nil
	}
	return t.OnStatusTransition(ctx, changed.Order, changed.PreviousStatus, changed.NewStatus)
}

// EventTypes implements shared.EventHandler
func (t *NotificationTrigger) EventTypes() []string {
	return []string{commerce.EventTypeOrderStatusChanged}
}

var _ shared.EventHandler = (*NotificationTrigger)(nil)
