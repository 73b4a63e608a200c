package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appcommerce "github.com/beizaplus/commerce-sync/internal/application/commerce"
	"github.com/beizaplus/commerce-sync/internal/domain/commerce"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/scheduler"
	"github.com/beizaplus/commerce-sync/internal/interfaces/http/dto"
	"github.com/beizaplus/commerce-sync/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// newTestRouter returns an engine with the request id middleware installed
func newTestRouter() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	return r
}

func performRequest(r http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// MockWebhookProcessor implements WebhookProcessor for testing
type MockWebhookProcessor struct {
	mock.Mock
}

func (m *MockWebhookProcessor) ProcessWebhook(ctx context.Context, req appcommerce.WebhookRequest) (*appcommerce.WebhookResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appcommerce.WebhookResult), args.Error(1)
}

// MockDownloadRedeemer implements DownloadRedeemer for testing
type MockDownloadRedeemer struct {
	mock.Mock
}

func (m *MockDownloadRedeemer) Redeem(ctx context.Context, token string) (*appcommerce.DownloadLink, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appcommerce.DownloadLink), args.Error(1)
}

// MockOrderLookup implements OrderLookup for testing
type MockOrderLookup struct {
	mock.Mock
}

func (m *MockOrderLookup) Lookup(ctx context.Context, orderNumber, email string) (*commerce.OrderRecord, error) {
	args := m.Called(ctx, orderNumber, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commerce.OrderRecord), args.Error(1)
}

// MockOrderBackfiller implements OrderBackfiller for testing
type MockOrderBackfiller struct {
	mock.Mock
}

func (m *MockOrderBackfiller) Backfill(ctx context.Context, limit int) (*appcommerce.BackfillSummary, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appcommerce.BackfillSummary), args.Error(1)
}

func (m *MockOrderBackfiller) ResyncOrder(ctx context.Context, platformOrderID string) (*commerce.StatusTransition, error) {
	args := m.Called(ctx, platformOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commerce.StatusTransition), args.Error(1)
}

// MockProductSyncer implements ProductSyncer for testing
type MockProductSyncer struct {
	mock.Mock
}

func (m *MockProductSyncer) PushToCommercePlatform(ctx context.Context, entity commerce.LocalEntity) (*appcommerce.SyncResult, error) {
	args := m.Called(ctx, entity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appcommerce.SyncResult), args.Error(1)
}

func (m *MockProductSyncer) RemoveFromCommercePlatform(ctx context.Context, mappingID uuid.UUID) error {
	return m.Called(ctx, mappingID).Error(0)
}

func (m *MockProductSyncer) UpdateInventory(ctx context.Context, mappingID uuid.UUID, quantity int) error {
	return m.Called(ctx, mappingID, quantity).Error(0)
}

func (m *MockProductSyncer) ListSyncLog(ctx context.Context, limit int) ([]commerce.SyncLogEntry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]commerce.SyncLogEntry), args.Error(1)
}

// MockReconcileRunner implements ReconcileRunner for testing
type MockReconcileRunner struct {
	mock.Mock
}

func (m *MockReconcileRunner) RunOnce(ctx context.Context, trigger string) (*scheduler.ReconcileRun, error) {
	args := m.Called(ctx, trigger)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*scheduler.ReconcileRun), args.Error(1)
}

func (m *MockReconcileRunner) History(limit int) []scheduler.ReconcileRun {
	return m.Called(limit).Get(0).([]scheduler.ReconcileRun)
}

// MockAssetIssuer implements AssetIssuer for testing
type MockAssetIssuer struct {
	mock.Mock
}

func (m *MockAssetIssuer) Issue(ctx context.Context, req appcommerce.IssueAssetRequest) (*commerce.DigitalAsset, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commerce.DigitalAsset), args.Error(1)
}

func (m *MockAssetIssuer) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]commerce.DigitalAsset, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]commerce.DigitalAsset), args.Error(1)
}

// MockPinger implements Pinger for testing
type MockPinger struct {
	mock.Mock
}

func (m *MockPinger) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
