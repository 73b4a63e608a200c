package commerce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductTypeForCategory(t *testing.T) {
	for _, category := range []string{"tribute", "archive", "memory_page", " Tribute "} {
		assert.Equal(t, ProductTypeDigital, ProductTypeForCategory(category), category)
	}
	for _, category := range []string{"", "book", "frame", "memory-page"} {
		assert.Equal(t, ProductTypePhysical, ProductTypeForCategory(category), category)
	}
}

func TestNewProductMapping(t *testing.T) {
	t.Run("creates pending mapping", func(t *testing.T) {
		m, err := NewProductMapping(LocalTypeMemoir, "memoir-1", "archive")
		require.NoError(t, err)
		assert.Equal(t, SyncStatusPending, m.SyncStatus)
		assert.Equal(t, ProductTypeDigital, m.ProductType)
		assert.False(t, m.HasPlatformProduct())
		assert.NotNil(t, m.Metadata)
	})

	t.Run("rejects unknown local type", func(t *testing.T) {
		_, err := NewProductMapping(LocalType("poster"), "x", "")
		assert.ErrorIs(t, err, ErrInvalidLocalType)
	})
}

func TestProductMapping_SyncLifecycle(t *testing.T) {
	m, err := NewProductMapping(LocalTypeOffering, "offering-9", "")
	require.NoError(t, err)

	m.BeginSync()
	assert.Equal(t, SyncStatusSyncing, m.SyncStatus)

	m.RecordSyncFailure("gateway returned 422")
	assert.Equal(t, SyncStatusError, m.SyncStatus)
	assert.Equal(t, "gateway returned 422", m.LastSyncError)

	m.BeginSync()
	assert.Equal(t, SyncStatusSyncing, m.SyncStatus)

	at := time.Now()
	updated := at.Add(-time.Hour)
	m.RecordSyncSuccess(&PlatformProduct{
		ID:        42,
		Title:     "Candle",
		Status:    "active",
		Handle:    "candle",
		UpdatedAt: &updated,
		Variants:  []PlatformVariant{{ID: 4201}},
	}, at)

	assert.Equal(t, SyncStatusSynced, m.SyncStatus)
	assert.Empty(t, m.LastSyncError)
	assert.Equal(t, "42", m.PlatformProductID)
	assert.Equal(t, "4201", m.PlatformVariantID)
	require.NotNil(t, m.LastSyncedAt)
	assert.Equal(t, at, *m.LastSyncedAt)
	assert.Equal(t, "Candle", m.Metadata[MetadataTitle])
	assert.Equal(t, "active", m.Metadata[MetadataStatus])
}

func TestProductMapping_RecordSyncFailureDefaultsMessage(t *testing.T) {
	m := &ProductMapping{}
	m.RecordSyncFailure("")
	assert.Equal(t, SyncStatusError, m.SyncStatus)
	assert.NotEmpty(t, m.LastSyncError)
}

func TestProductMapping_RefreshKeepsLocalFields(t *testing.T) {
	m, err := NewProductMapping(LocalTypeMemoir, "memoir-7", "tribute")
	require.NoError(t, err)
	m.PlatformProductID = "77"

	m.RefreshFromPlatform(&PlatformProduct{ID: 77, Title: "Renamed", ProductType: "book", Status: "draft"}, time.Now())

	assert.Equal(t, LocalTypeMemoir, m.LocalType)
	assert.Equal(t, "memoir-7", m.LocalID)
	assert.Equal(t, "tribute", m.ProductCategory)
	assert.Equal(t, ProductTypeDigital, m.ProductType)
	assert.Equal(t, "Renamed", m.Metadata[MetadataTitle])
	assert.Equal(t, "draft", m.Metadata[MetadataStatus])
}

func TestNewMappingFromPlatform(t *testing.T) {
	m := NewMappingFromPlatform(&PlatformProduct{
		ID:          900,
		Title:       "Memory Page",
		ProductType: "Memory_Page",
		Variants:    []PlatformVariant{{ID: 901}},
	})

	assert.Equal(t, LocalTypePhysicalProduct, m.LocalType)
	assert.Empty(t, m.LocalID)
	assert.Equal(t, "900", m.PlatformProductID)
	assert.Equal(t, "901", m.PlatformVariantID)
	assert.Equal(t, "memory_page", m.ProductCategory)
	assert.True(t, m.IsDigital())
	assert.Equal(t, SyncStatusSynced, m.SyncStatus)
}

func TestProductMapping_FileURLAndInventory(t *testing.T) {
	m := &ProductMapping{}
	assert.Empty(t, m.FileURL())

	m.ApplyInventory(12)
	assert.Equal(t, 12, m.Metadata[MetadataInventoryAvailable])

	m.Metadata[MetadataFileURL] = "assets/tributes/a.pdf"
	assert.Equal(t, "assets/tributes/a.pdf", m.FileURL())
}
