package commerce

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/beizaplus/commerce-sync/internal/domain/commerce"
	"github.com/beizaplus/commerce-sync/internal/domain/shared"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// downloadTokenBytes gives 256 bits of entropy per token
	downloadTokenBytes = 32

	// DefaultDownloadURLTTL is the lifetime of a signed download URL
	DefaultDownloadURLTTL = 3600 * time.Second
)

// IssueAssetRequest describes a digital asset to mint a token for
type IssueAssetRequest struct {
	OrderID           uuid.UUID          `json:"order_id" binding:"required"`
	PlatformProductID string             `json:"platform_product_id" binding:"required,max=100"`
	AssetType         commerce.AssetType `json:"asset_type" binding:"required,oneof=tribute archive memory_page"`
	FileURL           string             `json:"file_url" binding:"required,max=1024"`
	// ExpiresInDays of zero applies the default window
	ExpiresInDays int `json:"expires_in_days" binding:"min=0,max=3650"`
}

// DownloadLink is the result of redeeming a token
type DownloadLink struct {
	URL       string                 `json:"url"`
	ExpiresAt time.Time              `json:"expires_at"`
	Asset     *commerce.DigitalAsset `json:"-"`
}

// DigitalAssetService issues, verifies and tracks download tokens
type DigitalAssetService struct {
	assetRepo         commerce.DigitalAssetRepository
	signer            commerce.DownloadURLSigner
	defaultExpiryDays int
	urlTTL            time.Duration
	logger            *zap.Logger
	now               func() time.Time
	randRead          func([]byte) (int, error)
}

// DigitalAssetOption configures a DigitalAssetService
type DigitalAssetOption func(*DigitalAssetService)

// WithDefaultExpiryDays overrides the default redemption window
func WithDefaultExpiryDays(days int) DigitalAssetOption {
	return func(s *DigitalAssetService) {
		if days > 0 {
			s.defaultExpiryDays = days
		}
	}
}

// WithURLTTL overrides the lifetime of signed download URLs
func WithURLTTL(ttl time.Duration) DigitalAssetOption {
	return func(s *DigitalAssetService) {
		if ttl > 0 {
			s.urlTTL = ttl
		}
	}
}

// NewDigitalAssetService creates a new DigitalAssetService
func NewDigitalAssetService(
	assetRepo commerce.DigitalAssetRepository,
	signer commerce.DownloadURLSigner,
	logger *zap.Logger,
	opts ...DigitalAssetOption,
) *DigitalAssetService {
	s := &DigitalAssetService{
		assetRepo:         assetRepo,
		signer:            signer,
		defaultExpiryDays: commerce.DefaultAssetExpiryDays,
		urlTTL:            DefaultDownloadURLTTL,
		logger:            logger,
		now:               time.Now,
		randRead:          rand.Read,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue mints an unguessable token and persists a new asset with a zero
// download count, expiring expiresInDays from now
func (s *DigitalAssetService) Issue(ctx context.Context, req IssueAssetRequest) (*commerce.DigitalAsset, error) {
	if req.ExpiresInDays < 0 {
		return nil, commerce.ErrInvalidExpiry
	}
	days := req.ExpiresInDays
	if days == 0 {
		days = s.defaultExpiryDays
	}

	token, err := s.newToken()
	if err != nil {
		return nil, err
	}

	expiresAt := s.now().Add(time.Duration(days) * 24 * time.Hour)
	asset, err := commerce.NewDigitalAsset(req.OrderID, req.PlatformProductID, req.AssetType, req.FileURL, token, &expiresAt)
	if err != nil {
		return nil, err
	}

	if err := s.assetRepo.Create(ctx, asset); err != nil {
		if errors.Is(err, commerce.ErrOrderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: create digital asset: %v", commerce.ErrTransient, err)
	}

	s.logger.Info("Digital asset issued",
		zap.String("asset_id", asset.ID.String()),
		zap.String("order_id", asset.OrderID.String()),
		zap.String("platform_product_id", asset.PlatformProductID),
		zap.String("asset_type", string(asset.AssetType)),
		zap.Time("expires_at", expiresAt),
	)
	return asset, nil
}

// Verify returns the asset for a live token. Unknown and expired tokens both
// yield ErrAssetNotFound.
func (s *DigitalAssetService) Verify(ctx context.Context, token string) (*commerce.DigitalAsset, error) {
	if token == "" {
		return nil, commerce.ErrAssetNotFound
	}
	asset, err := s.assetRepo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, commerce.ErrAssetNotFound
		}
		return nil, fmt.Errorf("%w: find digital asset: %v", commerce.ErrTransient, err)
	}
	if asset.IsExpired(s.now()) {
		return nil, commerce.ErrAssetNotFound
	}
	return asset, nil
}

// ResolveDownloadURL mints a short-lived signed URL for a bucket/path file location
func (s *DigitalAssetService) ResolveDownloadURL(ctx context.Context, fileURL string, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = DefaultDownloadURLTTL
	}
	bucket, key, err := commerce.ParseStoragePath(fileURL)
	if err != nil {
		return "", time.Time{}, err
	}
	return s.signer.SignedURL(ctx, bucket, key, ttl)
}

// TrackDownload counts one download of the asset behind token
func (s *DigitalAssetService) TrackDownload(ctx context.Context, token string) error {
	if err := s.assetRepo.IncrementDownloadCount(ctx, token); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return commerce.ErrAssetNotFound
		}
		return fmt.Errorf("%w: track download: %v", commerce.ErrTransient, err)
	}
	return nil
}

// Redeem verifies a token, signs a URL for its file and counts the download
func (s *DigitalAssetService) Redeem(ctx context.Context, token string) (*DownloadLink, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "digital_asset", "redeem")
	defer span.End()

	asset, err := s.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	url, expiresAt, err := s.ResolveDownloadURL(ctx, asset.FileURL, s.urlTTL)
	if err != nil {
		s.logger.Error("Failed to sign download url",
			zap.String("asset_id", asset.ID.String()),
			zap.Error(err),
		)
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.TrackDownload(ctx, token); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	return &DownloadLink{URL: url, ExpiresAt: expiresAt, Asset: asset}, nil
}

// ListForOrder returns every asset issued for an order
func (s *DigitalAssetService) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]commerce.DigitalAsset, error) {
	return s.assetRepo.FindByOrderID(ctx, orderID)
}

func (s *DigitalAssetService) newToken() (string, error) {
	buf := make([]byte, downloadTokenBytes)
	if _, err := s.randRead(buf); err != nil {
		return "", fmt.Errorf("generate download token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
