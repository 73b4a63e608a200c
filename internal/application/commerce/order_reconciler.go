package commerce

import (
	"context"
	"errors"
	"fmt"

	"github.com/beizaplus/commerce-sync/internal/domain/commerce"
	"github.com/beizaplus/commerce-sync/internal/domain/shared"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// OrderFulfiller delivers whatever a paid order is owed. It must skip items
// that were already delivered.
type OrderFulfiller interface {
	Fulfill(ctx context.Context, order *commerce.OrderRecord) (int, error)
}

// OrderReconciler maps platform order payloads onto local order records
type OrderReconciler struct {
	orderRepo commerce.OrderRepository
	publisher shared.EventPublisher
	fulfiller OrderFulfiller
	logger    *zap.Logger
}

// OrderReconcilerOption configures an OrderReconciler
type OrderReconcilerOption func(*OrderReconciler)

// WithFulfiller runs f after every reconcile of a paid order
func WithFulfiller(f OrderFulfiller) OrderReconcilerOption {
	return func(r *OrderReconciler) {
		r.fulfiller = f
	}
}

// NewOrderReconciler creates a new OrderReconciler
func NewOrderReconciler(orderRepo commerce.OrderRepository, publisher shared.EventPublisher, logger *zap.Logger, opts ...OrderReconcilerOption) *OrderReconciler {
	r := &OrderReconciler{
		orderRepo: orderRepo,
		publisher: publisher,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile upserts the platform order by its platform id and reports the
// status transition it caused. The platform is trusted as the source of
// truth, so backward moves are stored as derived. Paid orders are fulfilled
// on every call, not only on a status change; a fulfillment failure is
// returned as retryable alongside the transition so the delivery is retried.
func (r *OrderReconciler) Reconcile(ctx context.Context, po *commerce.PlatformOrder) (*commerce.StatusTransition, error) {
	order, err := commerce.NewOrderRecordFromPlatform(po)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "order_reconciler", "reconcile",
		telemetry.WithAttribute(telemetry.SpanAttrPlatformOrderID, order.PlatformOrderID),
	)
	defer span.End()

	result, err := r.orderRepo.Upsert(ctx, order)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("%w: upsert order %s: %v", commerce.ErrTransient, order.PlatformOrderID, err)
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrderID, order.ID.String(),
		telemetry.SpanAttrOrderStatus, string(order.Status),
		"created", result.Created,
	)

	transition := &commerce.StatusTransition{
		OrderID:  order.ID,
		Previous: result.PreviousStatus,
		Current:  order.Status,
		Created:  result.Created,
	}

	r.logger.Info("Order reconciled",
		zap.String("order_id", order.ID.String()),
		zap.String("platform_order_id", order.PlatformOrderID),
		zap.String("order_number", order.OrderNumber),
		zap.String("previous_status", string(transition.Previous)),
		zap.String("status", string(transition.Current)),
		zap.Bool("created", transition.Created),
	)

	if err := r.publish(ctx, order, transition); err != nil {
		r.logger.Warn("Failed to publish order event",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}

	if err := r.fulfill(ctx, order); err != nil {
		telemetry.RecordError(span, err)
		return transition, err
	}

	telemetry.SetOK(span)
	return transition, nil
}

func (r *OrderReconciler) fulfill(ctx context.Context, order *commerce.OrderRecord) error {
	if r.fulfiller == nil || !order.Status.IsPaid() {
		return nil
	}
	count, err := r.fulfiller.Fulfill(ctx, order)
	if count > 0 {
		r.logger.Info("Digital items fulfilled",
			zap.String("order_id", order.ID.String()),
			zap.Int("assets_issued", count),
		)
	}
	if err != nil {
		r.logger.Warn("Order fulfillment incomplete, delivery will be retried",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return fmt.Errorf("%w: fulfill order %s: %v", commerce.ErrTransient, order.PlatformOrderID, err)
	}
	return nil
}

func (r *OrderReconciler) publish(ctx context.Context, order *commerce.OrderRecord, t *commerce.StatusTransition) error {
	if r.publisher == nil {
		return nil
	}
	switch {
	case t.Created:
		return r.publisher.Publish(ctx, commerce.NewOrderCreatedEvent(order))
	case t.Changed():
		return r.publisher.Publish(ctx, commerce.NewOrderStatusChangedEvent(order, t.Previous, t.Current))
	}
	return nil
}

// OrderQueryService answers customer-facing order lookups
type OrderQueryService struct {
	orderRepo commerce.OrderRepository
}

// NewOrderQueryService creates a new OrderQueryService
func NewOrderQueryService(orderRepo commerce.OrderRepository) *OrderQueryService {
	return &OrderQueryService{orderRepo: orderRepo}
}

// Lookup finds an order by its human-facing number and the customer's email.
// A wrong email is indistinguishable from a missing order.
func (s *OrderQueryService) Lookup(ctx context.Context, orderNumber, email string) (*commerce.OrderRecord, error) {
	if orderNumber == "" || email == "" {
		return nil, commerce.ErrOrderNotFound
	}
	order, err := s.orderRepo.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, commerce.ErrOrderNotFound
		}
		return nil, err
	}
	if !order.MatchesCustomer(email) {
		return nil, commerce.ErrOrderNotFound
	}
	return order, nil
}
