package commerce

import (
	"github.com/beizaplus/commerce-sync/internal/domain/shared"
)

// Event types published by the order reconciler
const (
	EventTypeOrderCreated       = "commerce.order.created"
	EventTypeOrderStatusChanged = "commerce.order.status_changed"
)

// AggregateTypeOrder is the aggregate type for order events
const AggregateTypeOrder = "OrderRecord"

// OrderCreatedEvent is published when a platform order is seen for the first time
type OrderCreatedEvent struct {
	shared.BaseDomainEvent
	Order *OrderRecord `json:"order"`
}

// NewOrderCreatedEvent creates an OrderCreatedEvent
func NewOrderCreatedEvent(order *OrderRecord) *OrderCreatedEvent {
	return &OrderCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderCreated, AggregateTypeOrder, order.ID),
		Order:           order,
	}
}

// OrderStatusChangedEvent is published when a stored order moves to another status
type OrderStatusChangedEvent struct {
	shared.BaseDomainEvent
	Order          *OrderRecord `json:"order"`
	PreviousStatus OrderStatus  `json:"previous_status"`
	NewStatus      OrderStatus  `json:"new_status"`
}

// NewOrderStatusChangedEvent creates an OrderStatusChangedEvent
func NewOrderStatusChangedEvent(order *OrderRecord, previous, current OrderStatus) *OrderStatusChangedEvent {
	return &OrderStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderStatusChanged, AggregateTypeOrder, order.ID),
		Order:           order,
		PreviousStatus:  previous,
		NewStatus:       current,
	}
}
