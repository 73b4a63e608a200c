package models

import (
	"encoding/json"
	"time"

	"github.com/beizaplus/commerce-sync/internal/domain/commerce"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderModel is the persistence model for the OrderRecord domain entity.
type OrderModel struct {
	ID                  uuid.UUID            `gorm:"type:uuid;primary_key"`
	PlatformOrderID     string               `gorm:"type:varchar(64);not null;uniqueIndex:uq_orders_platform_order_id"`
	OrderNumber         string               `gorm:"type:varchar(64);not null;index:idx_orders_order_number"`
	CustomerEmail       string               `gorm:"type:varchar(320)"`
	CustomerName        string               `gorm:"type:varchar(255)"`
	Status              commerce.OrderStatus `gorm:"type:varchar(20);not null;index:idx_orders_status"`
	OrderType           commerce.OrderType   `gorm:"type:varchar(20);not null"`
	TotalAmount         decimal.Decimal      `gorm:"type:decimal(12,2);not null"`
	Currency            string               `gorm:"type:varchar(3)"`
	LineItemsJSON       string               `gorm:"type:jsonb;column:line_items"`
	ShippingAddressJSON *string              `gorm:"type:jsonb;column:shipping_address"`
	RawSnapshotJSON     *string              `gorm:"type:jsonb;column:raw_snapshot"`
	LastEmailSentAt     *time.Time
	LastEmailStatus     commerce.EmailStatus `gorm:"type:varchar(20)"`
	CreatedAt           time.Time            `gorm:"not null"`
	UpdatedAt           time.Time            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain OrderRecord.
func (m *OrderModel) ToDomain() *commerce.OrderRecord {
	order := &commerce.OrderRecord{
		ID:              m.ID,
		PlatformOrderID: m.PlatformOrderID,
		OrderNumber:     m.OrderNumber,
		CustomerEmail:   m.CustomerEmail,
		CustomerName:    m.CustomerName,
		Status:          m.Status,
		OrderType:       m.OrderType,
		TotalAmount:     m.TotalAmount,
		Currency:        m.Currency,
		LineItems:       make([]commerce.LineItem, 0),
		LastEmailSentAt: m.LastEmailSentAt,
		LastEmailStatus: m.LastEmailStatus,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}

	if m.LineItemsJSON != "" {
		var items []commerce.LineItem
		if err := json.Unmarshal([]byte(m.LineItemsJSON), &items); err == nil {
			order.LineItems = items
		}
	}
	if m.ShippingAddressJSON != nil && *m.ShippingAddressJSON != "" {
		var addr commerce.Address
		if err := json.Unmarshal([]byte(*m.ShippingAddressJSON), &addr); err == nil {
			order.ShippingAddress = &addr
		}
	}
	if m.RawSnapshotJSON != nil {
		order.RawSnapshot = json.RawMessage(*m.RawSnapshotJSON)
	}

	return order
}

// FromDomain populates the persistence model from a domain OrderRecord.
func (m *OrderModel) FromDomain(o *commerce.OrderRecord) {
	m.ID = o.ID
	m.PlatformOrderID = o.PlatformOrderID
	m.OrderNumber = o.OrderNumber
	m.CustomerEmail = o.CustomerEmail
	m.CustomerName = o.CustomerName
	m.Status = o.Status
	m.OrderType = o.OrderType
	m.TotalAmount = o.TotalAmount
	m.Currency = o.Currency
	m.LastEmailSentAt = o.LastEmailSentAt
	m.LastEmailStatus = o.LastEmailStatus
	m.CreatedAt = o.CreatedAt
	m.UpdatedAt = o.UpdatedAt

	m.LineItemsJSON = "[]"
	if len(o.LineItems) > 0 {
		if b, err := json.Marshal(o.LineItems); err == nil {
			m.LineItemsJSON = string(b)
		}
	}
	m.ShippingAddressJSON = nil
	if o.ShippingAddress != nil {
		if b, err := json.Marshal(o.ShippingAddress); err == nil {
			s := string(b)
			m.ShippingAddressJSON = &s
		}
	}
	m.RawSnapshotJSON = nil
	if len(o.RawSnapshot) > 0 {
		s := string(o.RawSnapshot)
		m.RawSnapshotJSON = &s
	}
}

// OrderModelFromDomain creates a new persistence model from a domain OrderRecord.
func OrderModelFromDomain(o *commerce.OrderRecord) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(o)
	return m
}

// ProductMappingModel is the persistence model for the ProductMapping domain entity.
type ProductMappingModel struct {
	ID                uuid.UUID            `gorm:"type:uuid;primary_key"`
	LocalType         commerce.LocalType   `gorm:"type:varchar(30);not null;index:idx_product_mappings_local,priority:1"`
	LocalID           *string              `gorm:"type:varchar(100);index:idx_product_mappings_local,priority:2"`
	PlatformProductID *string              `gorm:"type:varchar(64);index:idx_product_mappings_platform_product"`
	PlatformVariantID *string              `gorm:"type:varchar(64);index:idx_product_mappings_platform_variant"`
	ProductType       commerce.ProductType `gorm:"type:varchar(20);not null"`
	ProductCategory   string               `gorm:"type:varchar(50)"`
	SyncStatus        commerce.SyncStatus  `gorm:"type:varchar(20);not null;default:'pending'"`
	LastSyncedAt      *time.Time
	LastSyncError     string    `gorm:"type:text"`
	MetadataJSON      string    `gorm:"type:jsonb;column:metadata"`
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductMappingModel) TableName() string {
	return "product_mappings"
}

// ToDomain converts the persistence model to a domain ProductMapping entity.
func (m *ProductMappingModel) ToDomain() *commerce.ProductMapping {
	mapping := &commerce.ProductMapping{
		ID:                m.ID,
		LocalType:         m.LocalType,
		LocalID:           derefString(m.LocalID),
		PlatformProductID: derefString(m.PlatformProductID),
		PlatformVariantID: derefString(m.PlatformVariantID),
		ProductType:       m.ProductType,
		ProductCategory:   m.ProductCategory,
		SyncStatus:        m.SyncStatus,
		LastSyncedAt:      m.LastSyncedAt,
		LastSyncError:     m.LastSyncError,
		Metadata:          make(map[string]any),
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}

	if m.MetadataJSON != "" {
		var metadata map[string]any
		if err := json.Unmarshal([]byte(m.MetadataJSON), &metadata); err == nil && metadata != nil {
			mapping.Metadata = metadata
		}
	}

	return mapping
}

// FromDomain populates the persistence model from a domain ProductMapping entity.
func (m *ProductMappingModel) FromDomain(pm *commerce.ProductMapping) {
	m.ID = pm.ID
	m.LocalType = pm.LocalType
	m.LocalID = nullableString(pm.LocalID)
	m.PlatformProductID = nullableString(pm.PlatformProductID)
	m.PlatformVariantID = nullableString(pm.PlatformVariantID)
	m.ProductType = pm.ProductType
	m.ProductCategory = pm.ProductCategory
	m.SyncStatus = pm.SyncStatus
	m.LastSyncedAt = pm.LastSyncedAt
	m.LastSyncError = pm.LastSyncError
	m.CreatedAt = pm.CreatedAt
	m.UpdatedAt = pm.UpdatedAt

	m.MetadataJSON = "{}"
	if len(pm.Metadata) > 0 {
		if b, err := json.Marshal(pm.Metadata); err == nil {
			m.MetadataJSON = string(b)
		}
	}
}

// ProductMappingModelFromDomain creates a new persistence model from a domain ProductMapping entity.
func ProductMappingModelFromDomain(pm *commerce.ProductMapping) *ProductMappingModel {
	m := &ProductMappingModel{}
	m.FromDomain(pm)
	return m
}

// DigitalAssetModel is the persistence model for the DigitalAsset domain entity.
type DigitalAssetModel struct {
	ID                uuid.UUID          `gorm:"type:uuid;primary_key"`
	PlatformProductID string             `gorm:"type:varchar(64);not null"`
	OrderID           uuid.UUID          `gorm:"type:uuid;not null;index:idx_digital_assets_order"`
	AssetType         commerce.AssetType `gorm:"type:varchar(20);not null"`
	FileURL           string             `gorm:"type:varchar(1024);not null"`
	DownloadToken     string             `gorm:"type:varchar(128);not null;uniqueIndex:uq_digital_assets_download_token"`
	DownloadCount     int64              `gorm:"not null;default:0"`
	ExpiresAt         *time.Time
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DigitalAssetModel) TableName() string {
	return "digital_assets"
}

// ToDomain converts the persistence model to a domain DigitalAsset.
func (m *DigitalAssetModel) ToDomain() *commerce.DigitalAsset {
	return &commerce.DigitalAsset{
		ID:                m.ID,
		PlatformProductID: m.PlatformProductID,
		OrderID:           m.OrderID,
		AssetType:         m.AssetType,
		FileURL:           m.FileURL,
		DownloadToken:     m.DownloadToken,
		DownloadCount:     m.DownloadCount,
		ExpiresAt:         m.ExpiresAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// DigitalAssetModelFromDomain creates a new persistence model from a domain DigitalAsset.
func DigitalAssetModelFromDomain(a *commerce.DigitalAsset) *DigitalAssetModel {
	return &DigitalAssetModel{
		ID:                a.ID,
		PlatformProductID: a.PlatformProductID,
		OrderID:           a.OrderID,
		AssetType:         a.AssetType,
		FileURL:           a.FileURL,
		DownloadToken:     a.DownloadToken,
		DownloadCount:     a.DownloadCount,
		ExpiresAt:         a.ExpiresAt,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

// SyncLogModel is the persistence model for SyncLogEntry. Rows are never updated.
type SyncLogModel struct {
	ID            uuid.UUID              `gorm:"type:uuid;primary_key"`
	OperationType commerce.SyncOperation `gorm:"type:varchar(20);not null"`
	EntityType    string                 `gorm:"type:varchar(50);not null;index:idx_sync_log_entity,priority:1"`
	EntityID      string                 `gorm:"type:varchar(100);index:idx_sync_log_entity,priority:2"`
	Status        commerce.SyncLogStatus `gorm:"type:varchar(20);not null"`
	ErrorMessage  string                 `gorm:"type:text"`
	CreatedAt     time.Time              `gorm:"not null;index:idx_sync_log_created_at"`
}

// TableName returns the table name for GORM
func (SyncLogModel) TableName() string {
	return "sync_log"
}

// ToDomain converts the persistence model to a domain SyncLogEntry.
func (m *SyncLogModel) ToDomain() *commerce.SyncLogEntry {
	return &commerce.SyncLogEntry{
		ID:            m.ID,
		OperationType: m.OperationType,
		EntityType:    m.EntityType,
		EntityID:      m.EntityID,
		Status:        m.Status,
		ErrorMessage:  m.ErrorMessage,
		CreatedAt:     m.CreatedAt,
	}
}

// SyncLogModelFromDomain creates a new persistence model from a domain SyncLogEntry.
func SyncLogModelFromDomain(e *commerce.SyncLogEntry) *SyncLogModel {
	return &SyncLogModel{
		ID:            e.ID,
		OperationType: e.OperationType,
		EntityType:    e.EntityType,
		EntityID:      e.EntityID,
		Status:        e.Status,
		ErrorMessage:  e.ErrorMessage,
		CreatedAt:     e.CreatedAt,
	}
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
