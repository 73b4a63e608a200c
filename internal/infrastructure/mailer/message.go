// Package mailer delivers order status emails through a log sink or an HTTP email provider.
package mailer

import (
	"fmt"

	"github.com/beizaplus/commerce-sync/internal/domain/commerce"
)

// Message is the provider-neutral description of one order email.
// Templates live with the provider and are selected by Template.
type Message struct {
	From     string      `json:"from,omitempty"`
	To       string      `json:"to"`
	Subject  string      `json:"subject"`
	Template string      `json:"template"`
	Data     MessageData `json:"data"`
}

// MessageData is the template model
type MessageData struct {
	OrderNumber    string              `json:"order_number"`
	CustomerName   string              `json:"customer_name,omitempty"`
	Status         string              `json:"status"`
	PreviousStatus string              `json:"previous_status,omitempty"`
	OrderType      string              `json:"order_type"`
	TotalAmount    string              `json:"total_amount"`
	Currency       string              `json:"currency,omitempty"`
	LineItems      []commerce.LineItem `json:"line_items"`
	ShippingAddr   *commerce.Address   `json:"shipping_address,omitempty"`
}

// NewMessage builds the email for an order that moved away from previous
func NewMessage(from string, order *commerce.OrderRecord, previous commerce.OrderStatus) Message {
	return Message{
		From:     from,
		To:       order.CustomerEmail,
		Subject:  subjectFor(order),
		Template: "order_" + string(order.Status),
		Data: MessageData{
			OrderNumber:    order.OrderNumber,
			CustomerName:   order.CustomerName,
			Status:         string(order.Status),
			PreviousStatus: string(previous),
			OrderType:      string(order.OrderType),
			TotalAmount:    order.TotalAmount.StringFixed(2),
			Currency:       order.Currency,
			LineItems:      order.LineItems,
			ShippingAddr:   order.ShippingAddress,
		},
	}
}

func subjectFor(order *commerce.OrderRecord) string {
	n := order.OrderNumber
	switch order.Status {
	case commerce.OrderStatusConfirmed:
		if order.OrderType == commerce.OrderTypePreOrder {
			return fmt.Sprintf("Your pre-order #%s is confirmed", n)
		}
		return fmt.Sprintf("Your order #%s is confirmed", n)
	case commerce.OrderStatusProcessing:
		return fmt.Sprintf("Your order #%s is being prepared", n)
	case commerce.OrderStatusShipped:
		return fmt.Sprintf("Your order #%s has shipped", n)
	case commerce.OrderStatusDelivered:
		return fmt.Sprintf("Your order #%s was delivered", n)
	case commerce.OrderStatusCancelled:
		return fmt.Sprintf("Your order #%s was cancelled", n)
	case commerce.OrderStatusRefunded:
		return fmt.Sprintf("Your order #%s was refunded", n)
	default:
		return fmt.Sprintf("Update on your order #%s", n)
	}
}
