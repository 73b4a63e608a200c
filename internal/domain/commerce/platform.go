package commerce

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Platform payloads
// ---------------------------------------------------------------------------

// PlatformOrder is an order as the commerce platform reports it,
// in webhooks and in REST responses.
type PlatformOrder struct {
	ID                int64              `json:"id"`
	Name              string             `json:"name"`
	OrderNumber       int64              `json:"order_number"`
	Email             string             `json:"email"`
	FinancialStatus   string             `json:"financial_status"`
	FulfillmentStatus *string            `json:"fulfillment_status"`
	TotalPrice        string             `json:"total_price"`
	Currency          string             `json:"currency"`
	Tags              string             `json:"tags"`
	Customer          *PlatformCustomer  `json:"customer,omitempty"`
	LineItems         []PlatformLineItem `json:"line_items"`
	ShippingAddress   *PlatformAddress   `json:"shipping_address,omitempty"`
	CancelledAt       *time.Time         `json:"cancelled_at,omitempty"`
	CreatedAt         *time.Time         `json:"created_at,omitempty"`
	UpdatedAt         *time.Time         `json:"updated_at,omitempty"`

	// Raw is the order object exactly as received, kept as the local snapshot
	Raw json.RawMessage `json:"-"`
}

// PlatformOrderID returns the platform identifier as stored locally
func (o *PlatformOrder) PlatformOrderID() string {
	if o.ID == 0 {
		return ""
	}
	return strconv.FormatInt(o.ID, 10)
}

// Fulfillment returns the fulfillment status, empty when the platform sent null
func (o *PlatformOrder) Fulfillment() string {
	if o.FulfillmentStatus == nil {
		return ""
	}
	return *o.FulfillmentStatus
}

// DisplayNumber returns the human-facing order number
func (o *PlatformOrder) DisplayNumber() string {
	if o.OrderNumber != 0 {
		return strconv.FormatInt(o.OrderNumber, 10)
	}
	return strings.TrimPrefix(o.Name, "#")
}

// TagList splits the comma separated tag string
func (o *PlatformOrder) TagList() []string {
	return splitTags(o.Tags)
}

// PlatformCustomer is the customer block of a platform order
type PlatformCustomer struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// FullName joins first and last name
func (c *PlatformCustomer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// PlatformLineItem is one line of a platform order
type PlatformLineItem struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	VariantID int64  `json:"variant_id"`
	Title     string `json:"title"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

// PlatformAddress is a postal address on a platform order
type PlatformAddress struct {
	Name     string `json:"name"`
	Address1 string `json:"address1"`
	Address2 string `json:"address2"`
	City     string `json:"city"`
	Province string `json:"province"`
	Country  string `json:"country"`
	Zip      string `json:"zip"`
	Phone    string `json:"phone"`
}

// PlatformProduct is a product as the commerce platform reports it
type PlatformProduct struct {
	ID          int64             `json:"id"`
	Title       string            `json:"title"`
	BodyHTML    string            `json:"body_html"`
	Vendor      string            `json:"vendor"`
	ProductType string            `json:"product_type"`
	Handle      string            `json:"handle"`
	Status      string            `json:"status"`
	Tags        string            `json:"tags"`
	Variants    []PlatformVariant `json:"variants"`
	CreatedAt   *time.Time        `json:"created_at,omitempty"`
	UpdatedAt   *time.Time        `json:"updated_at,omitempty"`
}

// PlatformProductID returns the product identifier as stored locally
func (p *PlatformProduct) PlatformProductID() string {
	if p.ID == 0 {
		return ""
	}
	return strconv.FormatInt(p.ID, 10)
}

// FirstVariantID returns the identifier of the default variant, if any
func (p *PlatformProduct) FirstVariantID() string {
	if len(p.Variants) == 0 || p.Variants[0].ID == 0 {
		return ""
	}
	return strconv.FormatInt(p.Variants[0].ID, 10)
}

// PlatformVariant is a purchasable variant of a platform product
type PlatformVariant struct {
	ID                int64  `json:"id,omitempty"`
	ProductID         int64  `json:"product_id,omitempty"`
	Title             string `json:"title,omitempty"`
	Price             string `json:"price,omitempty"`
	SKU               string `json:"sku,omitempty"`
	InventoryQuantity int    `json:"inventory_quantity"`
}

// PlatformInventoryLevel is the body of an inventory_levels/update webhook
type PlatformInventoryLevel struct {
	VariantID       int64      `json:"variant_id"`
	InventoryItemID int64      `json:"inventory_item_id"`
	LocationID      int64      `json:"location_id"`
	Available       int        `json:"available"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

// ---------------------------------------------------------------------------
// Gateway port
// ---------------------------------------------------------------------------

// ProductInput is the payload for creating or updating a platform product
type ProductInput struct {
	Title       string
	BodyHTML    string
	Vendor      string
	ProductType string
	Handle      string
	Status      string
	Tags        []string
	Price       decimal.Decimal
	SKU         string
	// VariantID targets the existing default variant on update
	VariantID string
}

// ProductListQuery filters GET /products.json
type ProductListQuery struct {
	Limit       int
	Page        int
	ProductType string
	Tags        []string
	Status      string
}

// OrderListQuery filters GET /orders.json
type OrderListQuery struct {
	Limit           int
	Status          string
	FinancialStatus string
}

// CommerceGateway is the authenticated REST interface to the commerce platform
type CommerceGateway interface {
	GetProduct(ctx context.Context, productID string) (*PlatformProduct, error)
	ListProducts(ctx context.Context, query ProductListQuery) ([]PlatformProduct, error)
	CreateProduct(ctx context.Context, input ProductInput) (*PlatformProduct, error)
	UpdateProduct(ctx context.Context, productID string, input ProductInput) (*PlatformProduct, error)
	DeleteProduct(ctx context.Context, productID string) error
	UpdateVariantInventory(ctx context.Context, variantID string, quantity int) (*PlatformVariant, error)
	GetOrder(ctx context.Context, orderID string) (*PlatformOrder, error)
	ListOrders(ctx context.Context, query OrderListQuery) ([]PlatformOrder, error)
}

func splitTags(tags string) []string {
	if strings.TrimSpace(tags) == "" {
		return nil
	}
	parts := strings.Split(tags, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
