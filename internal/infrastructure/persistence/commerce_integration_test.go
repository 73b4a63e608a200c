//go:build integration

package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/beizaplus/commerce-sync/internal/domain/commerce"
	"github.com/beizaplus/commerce-sync/internal/domain/shared"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newPostgresTestDB starts a PostgreSQL container and applies the embedded migrations
func newPostgresTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("commerce_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(20)
	t.Cleanup(func() { _ = sqlDB.Close() })

	m, err := migration.New(sqlDB, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())

	return db
}

func TestPostgres_OrderUpsertAgainstUniqueConstraint(t *testing.T) {
	db := newPostgresTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	deliveries := make([]*commerce.OrderRecord, 10)
	for i := range deliveries {
		deliveries[i] = newTestOrder(t, "paid", nil)
	}

	var wg sync.WaitGroup
	results := make([]*commerce.UpsertResult, len(deliveries))
	for i := range deliveries {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := repo.Upsert(ctx, deliveries[i])
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	created := 0
	for _, r := range results {
		if r != nil && r.Created {
			created++
		}
	}
	assert.Equal(t, 1, created)

	var count int64
	require.NoError(t, db.Table("orders").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestPostgres_ConcurrentDownloadCount(t *testing.T) {
	db := newPostgresTestDB(t)
	orders := NewGormOrderRepository(db)
	assets := NewGormDigitalAssetRepository(db)
	ctx := context.Background()

	order := newTestOrder(t, "paid", nil)
	_, err := orders.Upsert(ctx, order)
	require.NoError(t, err)

	asset, err := commerce.NewDigitalAsset(order.ID, "900", commerce.AssetTypeTribute, "tributes/garden.pdf", "pg-token", nil)
	require.NoError(t, err)
	require.NoError(t, assets.Create(ctx, asset))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, assets.IncrementDownloadCount(ctx, "pg-token"))
		}()
	}
	wg.Wait()

	stored, err := assets.FindByToken(ctx, "pg-token")
	require.NoError(t, err)
	assert.Equal(t, int64(50), stored.DownloadCount)
}

func TestPostgres_PushClaimsStandaloneMapping(t *testing.T) {
	db := newPostgresTestDB(t)
	repo := NewGormProductMappingRepository(db)
	ctx := context.Background()

	standalone := commerce.NewMappingFromPlatform(&commerce.PlatformProduct{ID: 77, Title: "Candle"})
	require.NoError(t, repo.Save(ctx, standalone))

	pushed, err := commerce.NewProductMapping(commerce.LocalTypeOffering, "offering-12", "candles")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, pushed))
	pushed.RecordSyncSuccess(&commerce.PlatformProduct{ID: 77, Title: "Memorial Candle"}, time.Now())

	assert.ErrorIs(t, repo.Save(ctx, pushed), shared.ErrAlreadyExists)
	require.NoError(t, repo.ClaimPlatformProduct(ctx, pushed))

	var count int64
	require.NoError(t, db.Table("product_mappings").Where("platform_product_id = ?", "77").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	owner, err := repo.FindByPlatformProductID(ctx, "77")
	require.NoError(t, err)
	assert.Equal(t, pushed.ID, owner.ID)
}
