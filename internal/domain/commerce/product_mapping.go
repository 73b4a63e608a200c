package commerce

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LocalType is the kind of local entity a mapping links to the platform
type LocalType string

const (
	LocalTypeOffering        LocalType = "offering"
	LocalTypeMemoir          LocalType = "memoir"
	LocalTypePhysicalProduct LocalType = "physical_product"
)

// IsValid checks if the local type is valid
func (t LocalType) IsValid() bool {
	switch t {
	case LocalTypeOffering, LocalTypeMemoir, LocalTypePhysicalProduct:
		return true
	}
	return false
}

// ProductType says whether a product ships or downloads
type ProductType string

const (
	ProductTypePhysical ProductType = "physical"
	ProductTypeDigital  ProductType = "digital"
)

// SyncStatus is the lifecycle marker of a mapping's last sync attempt
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusError   SyncStatus = "error"
)

// IsValid checks if the sync status is valid
func (s SyncStatus) IsValid() bool {
	switch s {
	case SyncStatusPending, SyncStatusSyncing, SyncStatusSynced, SyncStatusError:
		return true
	}
	return false
}

// Digital product categories
const (
	CategoryTribute    = "tribute"
	CategoryArchive    = "archive"
	CategoryMemoryPage = "memory_page"
)

// ProductTypeForCategory maps a product category onto a product type.
// tribute, archive and memory_page are digital; anything else ships.
func ProductTypeForCategory(category string) ProductType {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case CategoryTribute, CategoryArchive, CategoryMemoryPage:
		return ProductTypeDigital
	default:
		return ProductTypePhysical
	}
}

// Metadata keys refreshed from the platform
const (
	MetadataTitle              = "title"
	MetadataStatus             = "status"
	MetadataHandle             = "handle"
	MetadataPlatformUpdatedAt  = "platform_updated_at"
	MetadataInventoryAvailable = "inventory_available"
	MetadataFileURL            = "file_url"
)

// LocalEntity is a local offering, memoir or product to be pushed to the platform
type LocalEntity struct {
	Type        LocalType       `validate:"required,oneof=offering memoir physical_product"`
	ID          string          `validate:"omitempty,max=100"`
	Title       string          `validate:"required,max=255"`
	Description string          `validate:"max=65535"`
	Category    string          `validate:"max=50"`
	Price       decimal.Decimal `validate:"-"`
	SKU         string          `validate:"max=100"`
	Vendor      string          `validate:"max=255"`
	Tags        []string        `validate:"max=250,dive,max=255"`
	FileURL     string          `validate:"omitempty,max=1024"`
}

// ---------------------------------------------------------------------------
// ProductMapping Entity
// ---------------------------------------------------------------------------

// ProductMapping links a local entity to a platform product and variant.
// localType, localId and productCategory are owned locally and are never
// overwritten by data pulled from the platform.
type ProductMapping struct {
	ID                uuid.UUID
	LocalType         LocalType
	LocalID           string
	PlatformProductID string
	PlatformVariantID string
	ProductType       ProductType
	ProductCategory   string
	SyncStatus        SyncStatus
	LastSyncedAt      *time.Time
	LastSyncError     string
	Metadata          map[string]any
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewProductMapping creates a pending mapping for a local entity
func NewProductMapping(localType LocalType, localID, category string) (*ProductMapping, error) {
	if !localType.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLocalType, localType)
	}
	now := time.Now()
	return &ProductMapping{
		ID:              uuid.New(),
		LocalType:       localType,
		LocalID:         localID,
		ProductType:     ProductTypeForCategory(category),
		ProductCategory: category,
		SyncStatus:      SyncStatusPending,
		Metadata:        make(map[string]any),
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// NewMappingFromPlatform creates a standalone mapping for a product that was
// created on the platform side
func NewMappingFromPlatform(p *PlatformProduct) *ProductMapping {
	now := time.Now()
	category := strings.ToLower(strings.TrimSpace(p.ProductType))
	m := &ProductMapping{
		ID:                uuid.New(),
		LocalType:         LocalTypePhysicalProduct,
		PlatformProductID: p.PlatformProductID(),
		PlatformVariantID: p.FirstVariantID(),
		ProductType:       ProductTypeForCategory(category),
		ProductCategory:   category,
		SyncStatus:        SyncStatusPending,
		Metadata:          make(map[string]any),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	m.RefreshFromPlatform(p, now)
	return m
}

// HasPlatformProduct reports whether the mapping was pushed at least once
func (m *ProductMapping) HasPlatformProduct() bool {
	return m.PlatformProductID != ""
}

// BeginSync moves the mapping into syncing. Any state may start a new
// attempt, including error and a syncing state left behind by a crash.
func (m *ProductMapping) BeginSync() {
	m.SyncStatus = SyncStatusSyncing
	m.UpdatedAt = time.Now()
}

// RecordSyncSuccess records a successful push and clears any previous error
func (m *ProductMapping) RecordSyncSuccess(p *PlatformProduct, at time.Time) {
	if id := p.PlatformProductID(); id != "" {
		m.PlatformProductID = id
	}
	if variantID := p.FirstVariantID(); variantID != "" {
		m.PlatformVariantID = variantID
	}
	m.RefreshFromPlatform(p, at)
}

// RecordSyncFailure records a failed sync attempt
func (m *ProductMapping) RecordSyncFailure(errMsg string) {
	if errMsg == "" {
		errMsg = "unknown sync error"
	}
	m.SyncStatus = SyncStatusError
	m.LastSyncError = errMsg
	m.UpdatedAt = time.Now()
}

// RefreshFromPlatform copies platform-owned metadata onto the mapping
func (m *ProductMapping) RefreshFromPlatform(p *PlatformProduct, at time.Time) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]any)
	}
	m.Metadata[MetadataTitle] = p.Title
	m.Metadata[MetadataStatus] = p.Status
	if p.Handle != "" {
		m.Metadata[MetadataHandle] = p.Handle
	}
	if p.UpdatedAt != nil {
		m.Metadata[MetadataPlatformUpdatedAt] = p.UpdatedAt.UTC().Format(time.RFC3339)
	}
	m.SyncStatus = SyncStatusSynced
	m.LastSyncError = ""
	m.LastSyncedAt = &at
	m.UpdatedAt = at
}

// ApplyInventory records the available quantity reported by the platform
func (m *ProductMapping) ApplyInventory(available int) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]any)
	}
	m.Metadata[MetadataInventoryAvailable] = available
	m.UpdatedAt = time.Now()
}

// FileURL returns the storage path of the downloadable file for digital products
func (m *ProductMapping) FileURL() string {
	if v, ok := m.Metadata[MetadataFileURL].(string); ok {
		return v
	}
	return ""
}

// IsStandalone reports whether the mapping was discovered on the platform and
// has no local entity behind it
func (m *ProductMapping) IsStandalone() bool {
	return m.LocalID == ""
}

// IsDigital reports whether the mapped product is delivered as a download
func (m *ProductMapping) IsDigital() bool {
	return m.ProductType == ProductTypeDigital
}

// ProductMappingReader provides read access to mappings
type ProductMappingReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*ProductMapping, error)
	FindByLocal(ctx context.Context, localType LocalType, localID string) (*ProductMapping, error)
	FindByPlatformProductID(ctx context.Context, platformProductID string) (*ProductMapping, error)
	FindByPlatformVariantID(ctx context.Context, platformVariantID string) (*ProductMapping, error)
	FindAll(ctx context.Context) ([]ProductMapping, error)
}

// ProductMappingWriter provides write access to mappings
type ProductMappingWriter interface {
	Save(ctx context.Context, mapping *ProductMapping) error
	// ClaimPlatformProduct saves mapping after removing any standalone
	// mapping that holds the same platform product, in one transaction.
	// A platform product held by another local entity is ErrAlreadyExists.
	ClaimPlatformProduct(ctx context.Context, mapping *ProductMapping) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProductMappingRepository combines read and write access
type ProductMappingRepository interface {
	ProductMappingReader
	ProductMappingWriter
}
