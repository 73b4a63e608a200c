package commerce

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/beizaplus/commerce-sync/internal/domain/commerce"
	"github.com/beizaplus/commerce-sync/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAssetService(repo *MockDigitalAssetRepository, signer *MockURLSigner, now time.Time) *DigitalAssetService {
	svc := NewDigitalAssetService(repo, signer, zap.NewNop())
	svc.now = func() time.Time { return now }
	return svc
}

func TestDigitalAssetService_Issue(t *testing.T) {
	repo := new(MockDigitalAssetRepository)
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	svc := newAssetService(repo, new(MockURLSigner), now)

	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	asset, err := svc.Issue(context.Background(), IssueAssetRequest{
		OrderID:           uuid.New(),
		PlatformProductID: "900",
		AssetType:         commerce.AssetTypeTribute,
		FileURL:           "tributes/garden.pdf",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(0), asset.DownloadCount)
	require.NotNil(t, asset.ExpiresAt)
	assert.True(t, asset.ExpiresAt.Equal(now.Add(30*24*time.Hour)))

	raw, err := base64.RawURLEncoding.DecodeString(asset.DownloadToken)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(raw)*8, 128)
	repo.AssertExpectations(t)
}

func TestDigitalAssetService_Issue_TokensAreUnique(t *testing.T) {
	repo := new(MockDigitalAssetRepository)
	svc := newAssetService(repo, new(MockURLSigner), time.Now())
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		asset, err := svc.Issue(context.Background(), IssueAssetRequest{
			OrderID:           uuid.New(),
			PlatformProductID: "900",
			AssetType:         commerce.AssetTypeArchive,
			FileURL:           "archives/a.zip",
		})
		require.NoError(t, err)
		require.False(t, seen[asset.DownloadToken])
		seen[asset.DownloadToken] = true
	}
}

func TestDigitalAssetService_Issue_CustomExpiry(t *testing.T) {
	repo := new(MockDigitalAssetRepository)
	now := time.Now()
	svc := newAssetService(repo, new(MockURLSigner), now)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	asset, err := svc.Issue(context.Background(), IssueAssetRequest{
		OrderID:           uuid.New(),
		PlatformProductID: "900",
		AssetType:         commerce.AssetTypeMemoryPage,
		FileURL:           "pages/p.html",
		ExpiresInDays:     7,
	})

	require.NoError(t, err)
	assert.True(t, asset.ExpiresAt.Equal(now.Add(7*24*time.Hour)))
}

func TestDigitalAssetService_Issue_Rejections(t *testing.T) {
	repo := new(MockDigitalAssetRepository)
	svc := newAssetService(repo, new(MockURLSigner), time.Now())

	_, err := svc.Issue(context.Background(), IssueAssetRequest{AssetType: commerce.AssetTypeTribute, FileURL: "b/k", ExpiresInDays: -1})
	assert.ErrorIs(t, err, commerce.ErrInvalidExpiry)

	_, err = svc.Issue(context.Background(), IssueAssetRequest{AssetType: commerce.AssetTypeTribute, FileURL: "no-bucket"})
	assert.ErrorIs(t, err, commerce.ErrInvalidFileURL)

	_, err = svc.Issue(context.Background(), IssueAssetRequest{AssetType: commerce.AssetTypeTribute, FileURL: "https://cdn.example.com/tributes/garden.pdf"})
	assert.ErrorIs(t, err, commerce.ErrInvalidFileURL)

	_, err = svc.Issue(context.Background(), IssueAssetRequest{AssetType: "poster", FileURL: "b/k"})
	assert.ErrorIs(t, err, commerce.ErrInvalidAssetType)

	svc.randRead = func([]byte) (int, error) { return 0, errors.New("entropy exhausted") }
	_, err = svc.Issue(context.Background(), IssueAssetRequest{AssetType: commerce.AssetTypeTribute, FileURL: "b/k"})
	assert.Error(t, err)

	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestDigitalAssetService_Issue_UnknownOrder(t *testing.T) {
	repo := new(MockDigitalAssetRepository)
	svc := newAssetService(repo, new(MockURLSigner), time.Now())
	repo.On("Create", mock.Anything, mock.Anything).Return(commerce.ErrOrderNotFound).Once()

	_, err := svc.Issue(context.Background(), IssueAssetRequest{
		OrderID:           uuid.New(),
		PlatformProductID: "632910392",
		AssetType:         commerce.AssetTypeArchive,
		FileURL:           "memorial-assets/archives/1042.zip",
	})
	assert.ErrorIs(t, err, commerce.ErrOrderNotFound)
	assert.False(t, commerce.IsRetryable(err))
}

func TestDigitalAssetService_Verify_ExpiryBoundary(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt *time.Time
		wantErr   bool
	}{
		{name: "expired one second ago", expiresAt: timePtr(now.Add(-time.Second)), wantErr: true},
		{name: "expires exactly now", expiresAt: timePtr(now), wantErr: true},
		{name: "valid for one more second", expiresAt: timePtr(now.Add(time.Second))},
		{name: "no expiry", expiresAt: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockDigitalAssetRepository)
			svc := newAssetService(repo, new(MockURLSigner), now)
			asset := &commerce.DigitalAsset{ID: uuid.New(), DownloadToken: "tok", FileURL: "b/k", ExpiresAt: tt.expiresAt}
			repo.On("FindByToken", mock.Anything, "tok").Return(asset, nil)

			got, err := svc.Verify(context.Background(), "tok")
			if tt.wantErr {
				assert.ErrorIs(t, err, commerce.ErrAssetNotFound)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, asset, got)
		})
	}
}

func TestDigitalAssetService_Verify_UnknownLooksLikeExpired(t *testing.T) {
	repo := new(MockDigitalAssetRepository)
	svc := newAssetService(repo, new(MockURLSigner), time.Now())
	repo.On("FindByToken", mock.Anything, "missing").Return(nil, shared.ErrNotFound)

	_, err := svc.Verify(context.Background(), "missing")
	assert.Equal(t, commerce.ErrAssetNotFound, err)

	_, err = svc.Verify(context.Background(), "")
	assert.Equal(t, commerce.ErrAssetNotFound, err)
}

func TestDigitalAssetService_ResolveDownloadURL(t *testing.T) {
	signer := new(MockURLSigner)
	svc := newAssetService(new(MockDigitalAssetRepository), signer, time.Now())
	expires := time.Now().Add(time.Hour)

	signer.On("SignedURL", mock.Anything, "tributes", "2026/garden.pdf", time.Hour).
		Return("https://signed.example/tributes/2026/garden.pdf?sig=abc", expires, nil)

	url, exp, err := svc.ResolveDownloadURL(context.Background(), "tributes/2026/garden.pdf", 0)

	require.NoError(t, err)
	assert.Contains(t, url, "sig=abc")
	assert.Equal(t, expires, exp)

	_, _, err = svc.ResolveDownloadURL(context.Background(), "garden.pdf", 0)
	assert.ErrorIs(t, err, commerce.ErrInvalidFileURL)
}

func TestDigitalAssetService_Redeem(t *testing.T) {
	repo := new(MockDigitalAssetRepository)
	signer := new(MockURLSigner)
	now := time.Now()
	svc := newAssetService(repo, signer, now)

	asset := &commerce.DigitalAsset{ID: uuid.New(), DownloadToken: "tok", FileURL: "archives/family.zip", ExpiresAt: timePtr(now.Add(time.Hour))}
	repo.On("FindByToken", mock.Anything, "tok").Return(asset, nil)
	signer.On("SignedURL", mock.Anything, "archives", "family.zip", DefaultDownloadURLTTL).
		Return("https://signed.example/family.zip", now.Add(DefaultDownloadURLTTL), nil)
	repo.On("IncrementDownloadCount", mock.Anything, "tok").Return(nil).Once()

	link, err := svc.Redeem(context.Background(), "tok")

	require.NoError(t, err)
	assert.Equal(t, "https://signed.example/family.zip", link.URL)
	repo.AssertExpectations(t)
}

func TestDigitalAssetService_Redeem_ExpiredNeverCounts(t *testing.T) {
	repo := new(MockDigitalAssetRepository)
	signer := new(MockURLSigner)
	now := time.Now()
	svc := newAssetService(repo, signer, now)

	asset := &commerce.DigitalAsset{DownloadToken: "old", FileURL: "b/k", ExpiresAt: timePtr(now.Add(-time.Minute))}
	repo.On("FindByToken", mock.Anything, "old").Return(asset, nil)

	_, err := svc.Redeem(context.Background(), "old")

	assert.ErrorIs(t, err, commerce.ErrAssetNotFound)
	signer.AssertNotCalled(t, "SignedURL", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "IncrementDownloadCount", mock.Anything, mock.Anything)
}

func TestDigitalAssetService_TrackDownload_Errors(t *testing.T) {
	repo := new(MockDigitalAssetRepository)
	svc := newAssetService(repo, new(MockURLSigner), time.Now())
	repo.On("IncrementDownloadCount", mock.Anything, "gone").Return(shared.ErrNotFound)
	repo.On("IncrementDownloadCount", mock.Anything, "busy").Return(errors.New("deadlock"))

	assert.ErrorIs(t, svc.TrackDownload(context.Background(), "gone"), commerce.ErrAssetNotFound)
	err := svc.TrackDownload(context.Background(), "busy")
	assert.True(t, commerce.IsRetryable(err))
}

func timePtr(t time.Time) *time.Time { return &t }
