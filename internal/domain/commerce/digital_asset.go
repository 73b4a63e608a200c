package commerce

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AssetType is the kind of downloadable artifact
type AssetType string

const (
	AssetTypeTribute    AssetType = "tribute"
	AssetTypeArchive    AssetType = "archive"
	AssetTypeMemoryPage AssetType = "memory_page"
)

// IsValid checks if the asset type is valid
func (t AssetType) IsValid() bool {
	switch t {
	case AssetTypeTribute, AssetTypeArchive, AssetTypeMemoryPage:
		return true
	}
	return false
}

// AssetTypeForCategory returns the asset type of a digital product category
func AssetTypeForCategory(category string) (AssetType, bool) {
	t := AssetType(strings.ToLower(strings.TrimSpace(category)))
	return t, t.IsValid()
}

// DefaultAssetExpiryDays is the redemption window when the caller supplies none
const DefaultAssetExpiryDays = 30

// DigitalAsset is a downloadable artifact bound to one order and one product.
// DownloadCount only increases and an expired asset is never redeemable again.
type DigitalAsset struct {
	ID                uuid.UUID
	PlatformProductID string
	OrderID           uuid.UUID
	AssetType         AssetType
	FileURL           string
	DownloadToken     string
	DownloadCount     int64
	ExpiresAt         *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewDigitalAsset creates an asset with a zero download count
func NewDigitalAsset(orderID uuid.UUID, platformProductID string, assetType AssetType, fileURL, token string, expiresAt *time.Time) (*DigitalAsset, error) {
	if !assetType.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAssetType, assetType)
	}
	if _, _, err := ParseStoragePath(fileURL); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrMissingDownloadToken
	}
	now := time.Now()
	return &DigitalAsset{
		ID:                uuid.New(),
		PlatformProductID: platformProductID,
		OrderID:           orderID,
		AssetType:         assetType,
		FileURL:           fileURL,
		DownloadToken:     token,
		DownloadCount:     0,
		ExpiresAt:         expiresAt,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// IsExpired reports whether the asset can no longer be redeemed at now
func (a *DigitalAsset) IsExpired(now time.Time) bool {
	return a.ExpiresAt != nil && !now.Before(*a.ExpiresAt)
}

// ParseStoragePath splits a storage-relative path into bucket and object key.
// The first path segment is the bucket, the remainder is the key. Absolute
// URLs are rejected, every download goes through the presigner.
func ParseStoragePath(fileURL string) (bucket, key string, err error) {
	if strings.Contains(fileURL, "://") {
		return "", "", fmt.Errorf("%w: %q is an absolute url", ErrInvalidFileURL, fileURL)
	}
	trimmed := strings.TrimLeft(strings.TrimSpace(fileURL), "/")
	bucket, key, found := strings.Cut(trimmed, "/")
	if !found || bucket == "" || strings.Trim(key, "/") == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidFileURL, fileURL)
	}
	return bucket, key, nil
}

// DigitalAssetRepository persists digital assets
type DigitalAssetRepository interface {
	Create(ctx context.Context, asset *DigitalAsset) error
	FindByToken(ctx context.Context, token string) (*DigitalAsset, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]DigitalAsset, error)
	// IncrementDownloadCount adds one to the stored count in a single statement
	IncrementDownloadCount(ctx context.Context, token string) error
}

// DownloadURLSigner mints short-lived signed URLs for stored objects
type DownloadURLSigner interface {
	SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, time.Time, error)
}
