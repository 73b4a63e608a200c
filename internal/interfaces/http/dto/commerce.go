package dto

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/beizaplus/commerce-sync/internal/domain/commerce"
)

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

// PushProductRequest is the admin request to push a local entity to the platform
type PushProductRequest struct {
	LocalType   string          `json:"local_type" binding:"required,oneof=offering memoir physical_product"`
	LocalID     string          `json:"local_id" binding:"omitempty,max=100"`
	Title       string          `json:"title" binding:"required,max=255"`
	Description string          `json:"description"`
	Category    string          `json:"category" binding:"max=50"`
	Price       decimal.Decimal `json:"price"`
	SKU         string          `json:"sku" binding:"max=100"`
	Vendor      string          `json:"vendor" binding:"max=255"`
	Tags        []string        `json:"tags" binding:"max=250"`
	FileURL     string          `json:"file_url" binding:"omitempty,max=1024"`
}

// ToLocalEntity converts the request into the domain push input
func (r PushProductRequest) ToLocalEntity() commerce.LocalEntity {
	return commerce.LocalEntity{
		Type:        commerce.LocalType(r.LocalType),
		ID:          r.LocalID,
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Price:       r.Price,
		SKU:         r.SKU,
		Vendor:      r.Vendor,
		Tags:        r.Tags,
		FileURL:     r.FileURL,
	}
}

// UpdateInventoryRequest sets the available quantity of a mapped variant
type UpdateInventoryRequest struct {
	Quantity *int `json:"quantity" binding:"required,min=0"`
}

// MappingResponse is the API view of a product mapping
type MappingResponse struct {
	ID                uuid.UUID      `json:"id"`
	LocalType         string         `json:"local_type"`
	LocalID           string         `json:"local_id,omitempty"`
	PlatformProductID string         `json:"platform_product_id,omitempty"`
	PlatformVariantID string         `json:"platform_variant_id,omitempty"`
	ProductType       string         `json:"product_type"`
	ProductCategory   string         `json:"product_category,omitempty"`
	SyncStatus        string         `json:"sync_status"`
	LastSyncedAt      *time.Time     `json:"last_synced_at,omitempty"`
	LastSyncError     string         `json:"last_sync_error,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// ToMappingResponse converts a domain mapping
func ToMappingResponse(m *commerce.ProductMapping) *MappingResponse {
	if m == nil {
		return nil
	}
	return &MappingResponse{
		ID:                m.ID,
		LocalType:         string(m.LocalType),
		LocalID:           m.LocalID,
		PlatformProductID: m.PlatformProductID,
		PlatformVariantID: m.PlatformVariantID,
		ProductType:       string(m.ProductType),
		ProductCategory:   m.ProductCategory,
		SyncStatus:        string(m.SyncStatus),
		LastSyncedAt:      m.LastSyncedAt,
		LastSyncError:     m.LastSyncError,
		Metadata:          m.Metadata,
		UpdatedAt:         m.UpdatedAt,
	}
}

// PushProductResponse reports the outcome of a push
type PushProductResponse struct {
	Success           bool             `json:"success"`
	PlatformProductID string           `json:"platform_product_id,omitempty"`
	Error             string           `json:"error,omitempty"`
	Retryable         bool             `json:"retryable,omitempty"`
	Mapping           *MappingResponse `json:"mapping,omitempty"`
}

// SyncLogEntryResponse is the API view of a sync log entry
type SyncLogEntryResponse struct {
	ID            uuid.UUID `json:"id"`
	OperationType string    `json:"operation_type"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Status        string    `json:"status"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ToSyncLogResponses converts sync log entries
func ToSyncLogResponses(entries []commerce.SyncLogEntry) []SyncLogEntryResponse {
	out := make([]SyncLogEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, SyncLogEntryResponse{
			ID:            e.ID,
			OperationType: string(e.OperationType),
			EntityType:    e.EntityType,
			EntityID:      e.EntityID,
			Status:        string(e.Status),
			ErrorMessage:  e.ErrorMessage,
			CreatedAt:     e.CreatedAt,
		})
	}
	return out
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// OrderLookupQuery is the customer-facing order lookup
type OrderLookupQuery struct {
	OrderNumber string `form:"order_number" binding:"required,max=50"`
	Email       string `form:"email" binding:"required,email,max=255"`
}

// OrderResponse is the customer-facing view of an order.
// Raw platform data and notification bookkeeping stay internal.
type OrderResponse struct {
	ID              uuid.UUID           `json:"id"`
	OrderNumber     string              `json:"order_number"`
	Status          string              `json:"status"`
	OrderType       string              `json:"order_type"`
	TotalAmount     decimal.Decimal     `json:"total_amount"`
	Currency        string              `json:"currency"`
	LineItems       []commerce.LineItem `json:"line_items"`
	ShippingAddress *commerce.Address   `json:"shipping_address,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// ToOrderResponse converts a domain order
func ToOrderResponse(o *commerce.OrderRecord) *OrderResponse {
	items := o.LineItems
	if items == nil {
		items = []commerce.LineItem{}
	}
	return &OrderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		Status:          string(o.Status),
		OrderType:       string(o.OrderType),
		TotalAmount:     o.TotalAmount,
		Currency:        o.Currency,
		LineItems:       items,
		ShippingAddress: o.ShippingAddress,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

// TransitionResponse reports what a reconcile observed for one order
type TransitionResponse struct {
	OrderID        uuid.UUID `json:"order_id"`
	Created        bool      `json:"created"`
	Changed        bool      `json:"changed"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	CurrentStatus  string    `json:"current_status"`
}

// ToTransitionResponse converts a status transition
func ToTransitionResponse(t *commerce.StatusTransition) *TransitionResponse {
	return &TransitionResponse{
		OrderID:        t.OrderID,
		Created:        t.Created,
		Changed:        t.Changed(),
		PreviousStatus: string(t.Previous),
		CurrentStatus:  string(t.Current),
	}
}

// ---------------------------------------------------------------------------
// Digital assets
// ---------------------------------------------------------------------------

// IssueAssetRequest is the admin request to issue a download token
type IssueAssetRequest struct {
	OrderID           string `json:"order_id" binding:"required,uuid"`
	PlatformProductID string `json:"platform_product_id" binding:"required,max=100"`
	AssetType         string `json:"asset_type" binding:"required,oneof=tribute archive memory_page"`
	FileURL           string `json:"file_url" binding:"required,max=1024"`
	ExpiresInDays     int    `json:"expires_in_days" binding:"min=0,max=3650"`
}

// DigitalAssetResponse is the admin view of a digital asset
type DigitalAssetResponse struct {
	ID                uuid.UUID  `json:"id"`
	OrderID           uuid.UUID  `json:"order_id"`
	PlatformProductID string     `json:"platform_product_id"`
	AssetType         string     `json:"asset_type"`
	FileURL           string     `json:"file_url"`
	DownloadToken     string     `json:"download_token"`
	DownloadURL       string     `json:"download_url,omitempty"`
	DownloadCount     int64      `json:"download_count"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// ToDigitalAssetResponse converts a domain asset. publicBaseURL, when set,
// is used to build the customer-facing download link.
func ToDigitalAssetResponse(a *commerce.DigitalAsset, publicBaseURL string) *DigitalAssetResponse {
	return &DigitalAssetResponse{
		ID:                a.ID,
		OrderID:           a.OrderID,
		PlatformProductID: a.PlatformProductID,
		AssetType:         string(a.AssetType),
		FileURL:           a.FileURL,
		DownloadToken:     a.DownloadToken,
		DownloadURL:       DownloadLink(publicBaseURL, a.DownloadToken),
		DownloadCount:     a.DownloadCount,
		ExpiresAt:         a.ExpiresAt,
		CreatedAt:         a.CreatedAt,
	}
}

// DownloadLink builds {base}/api/v1/downloads?token=...; empty when base is unset
func DownloadLink(publicBaseURL, token string) string {
	if publicBaseURL == "" || token == "" {
		return ""
	}
	return strings.TrimRight(publicBaseURL, "/") + "/api/v1/downloads?token=" + url.QueryEscape(token)
}
