package commerce

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the canonical local status of an order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// IsValid checks if the order status is valid
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// IsTerminal reports whether no further platform-driven progress is expected
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusRefunded
}

// IsPaid reports whether the order has been paid and not reversed
func (s OrderStatus) IsPaid() bool {
	switch s {
	case OrderStatusConfirmed, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered:
		return true
	}
	return false
}

// String returns the string representation
func (s OrderStatus) String() string {
	return string(s)
}

// OrderType distinguishes regular orders from pre-orders
type OrderType string

const (
	OrderTypeOrder    OrderType = "order"
	OrderTypePreOrder OrderType = "pre_order"
)

// PreOrderTag marks a platform order as a pre-order
const PreOrderTag = "pre-order"

// EmailStatus tracks the last customer notification for an order
type EmailStatus string

const (
	EmailStatusNone    EmailStatus = ""
	EmailStatusPending EmailStatus = "pending"
	EmailStatusSent    EmailStatus = "sent"
)

// DeriveOrderStatus maps the platform financial and fulfillment status onto
// the local status. The first matching rule wins.
func DeriveOrderStatus(financialStatus, fulfillmentStatus string) OrderStatus {
	financial := strings.ToLower(strings.TrimSpace(financialStatus))
	fulfillment := strings.ToLower(strings.TrimSpace(fulfillmentStatus))

	switch {
	case financial == "refunded":
		return OrderStatusRefunded
	case financial == "voided":
		return OrderStatusCancelled
	case fulfillment == "fulfilled":
		return OrderStatusShipped
	case fulfillment == "partial":
		return OrderStatusProcessing
	case financial == "paid":
		return OrderStatusConfirmed
	default:
		return OrderStatusPending
	}
}

// DeriveOrderType returns pre_order when the pre-order tag is present
func DeriveOrderType(tags []string) OrderType {
	for _, tag := range tags {
		if strings.EqualFold(strings.TrimSpace(tag), PreOrderTag) {
			return OrderTypePreOrder
		}
	}
	return OrderTypeOrder
}

// ---------------------------------------------------------------------------
// OrderRecord Entity
// ---------------------------------------------------------------------------

// LineItem is one purchased line of an order
type LineItem struct {
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	ProductID string          `json:"product_id,omitempty"`
	VariantID string          `json:"variant_id,omitempty"`
	SKU       string          `json:"sku,omitempty"`
}

// Address is a shipping address
type Address struct {
	Name     string `json:"name,omitempty"`
	Address1 string `json:"address1,omitempty"`
	Address2 string `json:"address2,omitempty"`
	City     string `json:"city,omitempty"`
	Province string `json:"province,omitempty"`
	Country  string `json:"country,omitempty"`
	Zip      string `json:"zip,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// OrderRecord mirrors one platform order locally.
// PlatformOrderID is unique and never changes once set.
type OrderRecord struct {
	ID              uuid.UUID
	PlatformOrderID string
	OrderNumber     string
	CustomerEmail   string
	CustomerName    string
	Status          OrderStatus
	OrderType       OrderType
	TotalAmount     decimal.Decimal
	Currency        string
	LineItems       []LineItem
	ShippingAddress *Address
	RawSnapshot     json.RawMessage
	LastEmailSentAt *time.Time
	LastEmailStatus EmailStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewOrderRecordFromPlatform builds a local order from a platform payload
func NewOrderRecordFromPlatform(po *PlatformOrder) (*OrderRecord, error) {
	if po == nil {
		return nil, fmt.Errorf("%w: order is nil", ErrInvalidOrderPayload)
	}
	platformID := po.PlatformOrderID()
	if platformID == "" {
		return nil, fmt.Errorf("%w: missing order id", ErrInvalidOrderPayload)
	}

	total := decimal.Zero
	if strings.TrimSpace(po.TotalPrice) != "" {
		parsed, err := decimal.NewFromString(po.TotalPrice)
		if err != nil {
			return nil, fmt.Errorf("%w: total_price %q", ErrInvalidOrderPayload, po.TotalPrice)
		}
		total = parsed
	}

	items := make([]LineItem, 0, len(po.LineItems))
	for _, li := range po.LineItems {
		price := decimal.Zero
		if li.Price != "" {
			parsed, err := decimal.NewFromString(li.Price)
			if err != nil {
				return nil, fmt.Errorf("%w: line item price %q", ErrInvalidOrderPayload, li.Price)
			}
			price = parsed
		}
		items = append(items, LineItem{
			Title:     li.Title,
			Quantity:  li.Quantity,
			Price:     price,
			ProductID: formatID(li.ProductID),
			VariantID: formatID(li.VariantID),
			SKU:       li.SKU,
		})
	}

	email := po.Email
	name := ""
	if po.Customer != nil {
		if email == "" {
			email = po.Customer.Email
		}
		name = po.Customer.FullName()
	}

	var address *Address
	if po.ShippingAddress != nil {
		a := Address(*po.ShippingAddress)
		address = &a
	}

	now := time.Now()
	return &OrderRecord{
		ID:              uuid.New(),
		PlatformOrderID: platformID,
		OrderNumber:     po.DisplayNumber(),
		CustomerEmail:   email,
		CustomerName:    name,
		Status:          DeriveOrderStatus(po.FinancialStatus, po.Fulfillment()),
		OrderType:       DeriveOrderType(po.TagList()),
		TotalAmount:     total,
		Currency:        po.Currency,
		LineItems:       items,
		ShippingAddress: address,
		RawSnapshot:     po.Raw,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// MarkEmailPending records that a notification has been queued
func (o *OrderRecord) MarkEmailPending(at time.Time) {
	o.LastEmailStatus = EmailStatusPending
	o.LastEmailSentAt = &at
}

// MatchesCustomer checks the email a customer supplied against the order
func (o *OrderRecord) MatchesCustomer(email string) bool {
	return email != "" && strings.EqualFold(strings.TrimSpace(email), o.CustomerEmail)
}

// StatusTransition is what a reconcile run observed for one order
type StatusTransition struct {
	OrderID  uuid.UUID
	Previous OrderStatus
	Current  OrderStatus
	Created  bool
}

// Changed reports whether an existing order moved to a different status
func (t StatusTransition) Changed() bool {
	return !t.Created && t.Previous != t.Current
}

// UpsertResult describes what an order upsert found in the store
type UpsertResult struct {
	// Created is true when no row existed for the platform order id
	Created bool
	// PreviousStatus is the stored status before the write, empty when created
	PreviousStatus OrderStatus
}

// OrderRepository persists order records
type OrderRepository interface {
	// Upsert inserts or updates by platform order id. order.ID is set to the stored id.
	Upsert(ctx context.Context, order *OrderRecord) (*UpsertResult, error)
	FindByID(ctx context.Context, id uuid.UUID) (*OrderRecord, error)
	FindByPlatformOrderID(ctx context.Context, platformOrderID string) (*OrderRecord, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*OrderRecord, error)
	UpdateEmailStatus(ctx context.Context, id uuid.UUID, status EmailStatus, at time.Time) error
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return fmt.Sprintf("%d", id)
}
