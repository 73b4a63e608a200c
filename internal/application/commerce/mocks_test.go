package commerce

import (
	"context"
	"sync"
	"time"

	"github.com/beizaplus/commerce-sync/internal/domain/commerce"
	"github.com/beizaplus/commerce-sync/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// =============================================================================
// Repository mocks
// =============================================================================

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Upsert(ctx context.Context, order *commerce.OrderRecord) (*commerce.UpsertResult, error) {
	args := m.Called(ctx, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commerce.UpsertResult), args.Error(1)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*commerce.OrderRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commerce.OrderRecord), args.Error(1)
}

func (m *MockOrderRepository) FindByPlatformOrderID(ctx context.Context, platformOrderID string) (*commerce.OrderRecord, error) {
	args := m.Called(ctx, platformOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commerce.OrderRecord), args.Error(1)
}

func (m *MockOrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (*commerce.OrderRecord, error) {
	args := m.Called(ctx, orderNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commerce.OrderRecord), args.Error(1)
}

func (m *MockOrderRepository) UpdateEmailStatus(ctx context.Context, id uuid.UUID, status commerce.EmailStatus, at time.Time) error {
	args := m.Called(ctx, id, status, at)
	return args.Error(0)
}

type MockProductMappingRepository struct {
	mock.Mock
}

func (m *MockProductMappingRepository) FindByID(ctx context.Context, id uuid.UUID) (*commerce.ProductMapping, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commerce.ProductMapping), args.Error(1)
}

func (m *MockProductMappingRepository) FindByLocal(ctx context.Context, localType commerce.LocalType, localID string) (*commerce.ProductMapping, error) {
	args := m.Called(ctx, localType, localID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commerce.ProductMapping), args.Error(1)
}

func (m *MockProductMappingRepository) FindByPlatformProductID(ctx context.Context, platformProductID string) (*commerce.ProductMapping, error) {
	args := m.Called(ctx, platformProductID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commerce.ProductMapping), args.Error(1)
}

func (m *MockProductMappingRepository) FindByPlatformVariantID(ctx context.Context, platformVariantID string) (*commerce.ProductMapping, error) {
	args := m.Called(ctx, platformVariantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commerce.ProductMapping), args.Error(1)
}

func (m *MockProductMappingRepository) FindAll(ctx context.Context) ([]commerce.ProductMapping, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]commerce.ProductMapping), args.Error(1)
}

func (m *MockProductMappingRepository) Save(ctx context.Context, mapping *commerce.ProductMapping) error {
	args := m.Called(ctx, mapping)
	return args.Error(0)
}

func (m *MockProductMappingRepository) ClaimPlatformProduct(ctx context.Context, mapping *commerce.ProductMapping) error {
	args := m.Called(ctx, mapping)
	return args.Error(0)
}

func (m *MockProductMappingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockSyncLogRepository struct {
	mock.Mock
}

func (m *MockSyncLogRepository) Append(ctx context.Context, entry *commerce.SyncLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockSyncLogRepository) ListRecent(ctx context.Context, limit int) ([]commerce.SyncLogEntry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]commerce.SyncLogEntry), args.Error(1)
}

func (m *MockSyncLogRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]commerce.SyncLogEntry, error) {
	args := m.Called(ctx, entityType, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]commerce.SyncLogEntry), args.Error(1)
}

type MockDigitalAssetRepository struct {
	mock.Mock
}

func (m *MockDigitalAssetRepository) Create(ctx context.Context, asset *commerce.DigitalAsset) error {
	args := m.Called(ctx, asset)
	return args.Error(0)
}

func (m *MockDigitalAssetRepository) FindByToken(ctx context.Context, token string) (*commerce.DigitalAsset, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commerce.DigitalAsset), args.Error(1)
}

func (m *MockDigitalAssetRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]commerce.DigitalAsset, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]commerce.DigitalAsset), args.Error(1)
}

func (m *MockDigitalAssetRepository) IncrementDownloadCount(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

// =============================================================================
// Collaborator mocks
// =============================================================================

type MockCommerceGateway struct {
	mock.Mock
}

func (m *MockCommerceGateway) GetProduct(ctx context.Context, productID string) (*commerce.PlatformProduct, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commerce.PlatformProduct), args.Error(1)
}

func (m *MockCommerceGateway) ListProducts(ctx context.Context, query commerce.ProductListQuery) ([]commerce.PlatformProduct, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]commerce.PlatformProduct), args.Error(1)
}

func (m *MockCommerceGateway) CreateProduct(ctx context.Context, input commerce.ProductInput) (*commerce.PlatformProduct, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commerce.PlatformProduct), args.Error(1)
}

func (m *MockCommerceGateway) UpdateProduct(ctx context.Context, productID string, input commerce.ProductInput) (*commerce.PlatformProduct, error) {
	args := m.Called(ctx, productID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commerce.PlatformProduct), args.Error(1)
}

func (m *MockCommerceGateway) DeleteProduct(ctx context.Context, productID string) error {
	args := m.Called(ctx, productID)
	return args.Error(0)
}

func (m *MockCommerceGateway) UpdateVariantInventory(ctx context.Context, variantID string, quantity int) (*commerce.PlatformVariant, error) {
	args := m.Called(ctx, variantID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commerce.PlatformVariant), args.Error(1)
}

func (m *MockCommerceGateway) GetOrder(ctx context.Context, orderID string) (*commerce.PlatformOrder, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commerce.PlatformOrder), args.Error(1)
}

func (m *MockCommerceGateway) ListOrders(ctx context.Context, query commerce.OrderListQuery) ([]commerce.PlatformOrder, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]commerce.PlatformOrder), args.Error(1)
}

type MockURLSigner struct {
	mock.Mock
}

func (m *MockURLSigner) SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, time.Time, error) {
	args := m.Called(ctx, bucket, key, ttl)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

type MockOrderMailer struct {
	mock.Mock
}

func (m *MockOrderMailer) SendOrderStatusEmail(ctx context.Context, order *commerce.OrderRecord, previous commerce.OrderStatus) error {
	args := m.Called(ctx, order, previous)
	return args.Error(0)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}

// =============================================================================
// In-memory fakes for end-to-end flows
// =============================================================================

// memOrderRepository upserts by platform order id under a lock
type memOrderRepository struct {
	mu     sync.Mutex
	orders map[string]*commerce.OrderRecord
}

func newMemOrderRepository() *memOrderRepository {
	return &memOrderRepository{orders: make(map[string]*commerce.OrderRecord)}
}

func (r *memOrderRepository) Upsert(_ context.Context, order *commerce.OrderRecord) (*commerce.UpsertResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.orders[order.PlatformOrderID]
	if !ok {
		stored := *order
		r.orders[order.PlatformOrderID] = &stored
		return &commerce.UpsertResult{Created: true}, nil
	}
	previous := existing.Status
	order.ID = existing.ID
	order.CreatedAt = existing.CreatedAt
	order.LastEmailStatus = existing.LastEmailStatus
	order.LastEmailSentAt = existing.LastEmailSentAt
	stored := *order
	r.orders[order.PlatformOrderID] = &stored
	return &commerce.UpsertResult{PreviousStatus: previous}, nil
}

func (r *memOrderRepository) FindByID(_ context.Context, id uuid.UUID) (*commerce.OrderRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.ID == id {
			c := *o
			return &c, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memOrderRepository) FindByPlatformOrderID(_ context.Context, platformOrderID string) (*commerce.OrderRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[platformOrderID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	c := *o
	return &c, nil
}

func (r *memOrderRepository) FindByOrderNumber(_ context.Context, orderNumber string) (*commerce.OrderRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.OrderNumber == orderNumber {
			c := *o
			return &c, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memOrderRepository) UpdateEmailStatus(_ context.Context, id uuid.UUID, status commerce.EmailStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.ID == id {
			o.LastEmailStatus = status
			o.LastEmailSentAt = &at
			return nil
		}
	}
	return shared.ErrNotFound
}

func (r *memOrderRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

// syncPublisher dispatches events to handlers on the calling goroutine
type syncPublisher struct {
	handlers []shared.EventHandler
}

func (p *syncPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, event := range events {
		for _, h := range p.handlers {
			for _, t := range h.EventTypes() {
				if t == event.EventType() {
					_ = h.Handle(ctx, event)
				}
			}
		}
	}
	return nil
}
