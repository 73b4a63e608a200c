package commerce

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/beizaplus/commerce-sync/internal/domain/commerce"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testWebhookSecret = "whsec_test_secret"

type MockOrderSink struct {
	mock.Mock
}

func (m *MockOrderSink) Reconcile(ctx context.Context, po *commerce.PlatformOrder) (*commerce.StatusTransition, error) {
	args := m.Called(ctx, po)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commerce.StatusTransition), args.Error(1)
}

type MockProductSink struct {
	mock.Mock
}

func (m *MockProductSink) PullFromCommercePlatform(ctx context.Context, product *commerce.PlatformProduct) error {
	return m.Called(ctx, product).Error(0)
}

func (m *MockProductSink) ApplyInventoryLevel(ctx context.Context, level *commerce.PlatformInventoryLevel) error {
	return m.Called(ctx, level).Error(0)
}

type webhookFixture struct {
	orders   *MockOrderSink
	products *MockProductSink
	svc      *WebhookService
}

func newWebhookFixture(cfg WebhookConfig) *webhookFixture {
	f := &webhookFixture{
		orders:   new(MockOrderSink),
		products: new(MockProductSink),
	}
	f.svc = NewWebhookService(cfg, f.orders, f.products, nil, zap.NewNop())
	return f
}

func signedRequest(topic string, body string) WebhookRequest {
	return WebhookRequest{
		Topic:      topic,
		ShopDomain: "beiza.myshopify.com",
		Body:       []byte(body),
		Signature:  SignPayload(testWebhookSecret, []byte(body)),
	}
}

const orderCreateBody = `{"order":{"id":5550001042,"name":"#1042","order_number":1042,"email":"ada@example.com","financial_status":"paid","fulfillment_status":null,"total_price":"120.00","currency":"USD","line_items":[]}}`

func TestWebhookService_Verify(t *testing.T) {
	body := []byte(`{"order":{"id":1}}`)

	tests := []struct {
		name      string
		cfg       WebhookConfig
		signature string
		wantErr   error
	}{
		{name: "valid signature", cfg: WebhookConfig{Secret: testWebhookSecret}, signature: SignPayload(testWebhookSecret, body)},
		{name: "wrong secret", cfg: WebhookConfig{Secret: testWebhookSecret}, signature: SignPayload("other", body), wantErr: ErrInvalidSignature},
		{name: "not base64", cfg: WebhookConfig{Secret: testWebhookSecret}, signature: "%%%", wantErr: ErrInvalidSignature},
		{name: "missing header", cfg: WebhookConfig{Secret: testWebhookSecret}, wantErr: ErrMissingSignature},
		{name: "no secret fails closed", cfg: WebhookConfig{}, signature: SignPayload("", body), wantErr: ErrWebhookSecretMissing},
		{name: "explicit unverified bypass", cfg: WebhookConfig{AllowUnverified: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewWebhookService(tt.cfg, nil, nil, nil, zap.NewNop())
			err := svc.Verify(body, tt.signature)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.True(t, IsVerificationError(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestWebhookService_Verify_TamperedBody(t *testing.T) {
	svc := NewWebhookService(WebhookConfig{Secret: testWebhookSecret}, nil, nil, nil, zap.NewNop())
	sig := SignPayload(testWebhookSecret, []byte(`{"order":{"id":1,"total_price":"10.00"}}`))

	err := svc.Verify([]byte(`{"order":{"id":1,"total_price":"0.01"}}`), sig)

	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestWebhookService_ProcessWebhook_RoutesOrders(t *testing.T) {
	f := newWebhookFixture(WebhookConfig{Secret: testWebhookSecret})
	f.orders.On("Reconcile", mock.Anything, mock.MatchedBy(func(po *commerce.PlatformOrder) bool {
		return po.ID == 5550001042 && po.FulfillmentStatus == nil && len(po.Raw) > 0
	})).Return(&commerce.StatusTransition{Created: true, Current: commerce.OrderStatusConfirmed}, nil)

	result, err := f.svc.ProcessWebhook(context.Background(), signedRequest(TopicOrdersCreate, orderCreateBody))

	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.Equal(t, commerce.OrderStatusConfirmed, result.Transition.Current)
	f.orders.AssertExpectations(t)
}

func TestWebhookService_ProcessWebhook_RoutesProductsAndInventory(t *testing.T) {
	f := newWebhookFixture(WebhookConfig{Secret: testWebhookSecret})
	f.products.On("PullFromCommercePlatform", mock.Anything, mock.MatchedBy(func(p *commerce.PlatformProduct) bool {
		return p.ID == 900 && p.Title == "Garden Tribute"
	})).Return(nil).Twice()
	f.products.On("ApplyInventoryLevel", mock.Anything, mock.MatchedBy(func(l *commerce.PlatformInventoryLevel) bool {
		return l.VariantID == 9001 && l.Available == 4
	})).Return(nil).Once()

	ctx := context.Background()
	productBody := `{"product":{"id":900,"title":"Garden Tribute","product_type":"tribute"}}`
	for _, topic := range []string{TopicProductsCreate, TopicProductsUpdate} {
		result, err := f.svc.ProcessWebhook(ctx, signedRequest(topic, productBody))
		require.NoError(t, err)
		assert.True(t, result.Processed)
	}

	result, err := f.svc.ProcessWebhook(ctx, signedRequest(TopicInventoryLevelsUpdate, `{"inventory_level":{"variant_id":9001,"available":4}}`))
	require.NoError(t, err)
	assert.True(t, result.Processed)
	f.products.AssertExpectations(t)
}

func TestWebhookService_ProcessWebhook_UnknownTopicIgnored(t *testing.T) {
	f := newWebhookFixture(WebhookConfig{Secret: testWebhookSecret})

	result, err := f.svc.ProcessWebhook(context.Background(), signedRequest("customers/create", `{"customer":{"id":1}}`))

	require.NoError(t, err)
	assert.True(t, result.Ignored)
	assert.False(t, result.Processed)
	f.orders.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)
}

func TestWebhookService_ProcessWebhook_RejectsBeforeHandlers(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		body    string
		wantErr error
	}{
		{name: "malformed json", topic: TopicOrdersCreate, body: `{"order":`, wantErr: ErrMalformedPayload},
		{name: "missing order key", topic: TopicOrdersUpdated, body: `{"product":{"id":1}}`, wantErr: ErrMissingPayloadKey},
		{name: "null order", topic: TopicOrdersUpdated, body: `{"order":null}`, wantErr: ErrMissingPayloadKey},
		{name: "missing product key", topic: TopicProductsUpdate, body: `{"order":{"id":1}}`, wantErr: ErrMissingPayloadKey},
		{name: "missing inventory key", topic: TopicInventoryLevelsUpdate, body: `{}`, wantErr: ErrMissingPayloadKey},
		{name: "order of wrong shape", topic: TopicOrdersCreate, body: `{"order":"1042"}`, wantErr: ErrMalformedPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWebhookFixture(WebhookConfig{Secret: testWebhookSecret})

			result, err := f.svc.ProcessWebhook(context.Background(), signedRequest(tt.topic, tt.body))

			assert.ErrorIs(t, err, tt.wantErr)
			if result != nil {
				assert.False(t, result.Processed)
			}
			f.orders.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)
			f.products.AssertNotCalled(t, "PullFromCommercePlatform", mock.Anything, mock.Anything)
			f.products.AssertNotCalled(t, "ApplyInventoryLevel", mock.Anything, mock.Anything)
		})
	}
}

func TestWebhookService_ProcessWebhook_UnsignedRejected(t *testing.T) {
	f := newWebhookFixture(WebhookConfig{})
	req := signedRequest(TopicOrdersCreate, orderCreateBody)

	_, err := f.svc.ProcessWebhook(context.Background(), req)

	assert.ErrorIs(t, err, ErrWebhookSecretMissing)
	f.orders.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)
}

func TestWebhookService_ProcessWebhook_HandlerErrorPropagates(t *testing.T) {
	f := newWebhookFixture(WebhookConfig{Secret: testWebhookSecret})
	dbErr := errors.Join(commerce.ErrTransient, errors.New("connection reset"))
	f.orders.On("Reconcile", mock.Anything, mock.Anything).Return(nil, dbErr)

	result, err := f.svc.ProcessWebhook(context.Background(), signedRequest(TopicOrdersUpdated, orderCreateBody))

	require.Error(t, err)
	assert.True(t, commerce.IsRetryable(err))
	assert.False(t, result.Processed)
}

func TestWebhookService_ProcessWebhook_Dedupe(t *testing.T) {
	store := new(MockIdempotencyStore)
	orders := new(MockOrderSink)
	svc := NewWebhookService(WebhookConfig{Secret: testWebhookSecret, DedupeTTL: time.Hour}, orders, new(MockProductSink), store, zap.NewNop())

	req := signedRequest(TopicOrdersCreate, orderCreateBody)
	req.WebhookID = "b54557e4-bdd9-4b37-8a5f-bf7d70bcd043"
	key := "webhook:" + req.WebhookID

	store.On("IsProcessed", mock.Anything, key).Return(false, nil).Once()
	orders.On("Reconcile", mock.Anything, mock.Anything).Return(&commerce.StatusTransition{Created: true}, nil).Once()
	store.On("MarkProcessed", mock.Anything, key, time.Hour).Return(true, nil).Once()

	first, err := svc.ProcessWebhook(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, first.Processed)

	store.On("IsProcessed", mock.Anything, key).Return(true, nil).Once()

	second, err := svc.ProcessWebhook(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.False(t, second.Processed)

	orders.AssertNumberOfCalls(t, "Reconcile", 1)
	store.AssertExpectations(t)
}

func TestWebhookService_ProcessWebhook_FailedDeliveryNotMarked(t *testing.T) {
	store := new(MockIdempotencyStore)
	orders := new(MockOrderSink)
	svc := NewWebhookService(WebhookConfig{Secret: testWebhookSecret}, orders, new(MockProductSink), store, zap.NewNop())

	req := signedRequest(TopicOrdersCreate, orderCreateBody)
	req.WebhookID = "delivery-1"

	store.On("IsProcessed", mock.Anything, "webhook:delivery-1").Return(false, nil)
	orders.On("Reconcile", mock.Anything, mock.Anything).Return(nil, commerce.ErrTransient)

	_, err := svc.ProcessWebhook(context.Background(), req)

	require.Error(t, err)
	store.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhookService_ProcessWebhook_StoreOutageDoesNotBlock(t *testing.T) {
	store := new(MockIdempotencyStore)
	orders := new(MockOrderSink)
	svc := NewWebhookService(WebhookConfig{Secret: testWebhookSecret}, orders, new(MockProductSink), store, zap.NewNop())

	req := signedRequest(TopicOrdersCreate, orderCreateBody)
	req.WebhookID = "delivery-2"

	store.On("IsProcessed", mock.Anything, mock.Anything).Return(false, errors.New("redis down"))
	store.On("MarkProcessed", mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("redis down"))
	orders.On("Reconcile", mock.Anything, mock.Anything).Return(&commerce.StatusTransition{}, nil)

	result, err := svc.ProcessWebhook(context.Background(), req)

	require.NoError(t, err)
	assert.True(t, result.Processed)
}
