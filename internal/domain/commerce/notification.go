package commerce

import "context"

// OrderMailer composes and delivers customer emails about an order.
// It receives the full order and the status the order moved away from.
type OrderMailer interface {
	SendOrderStatusEmail(ctx context.Context, order *OrderRecord, previousStatus OrderStatus) error
}
