package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beizaplus/commerce-sync/internal/infrastructure/scheduler"
	"github.com/beizaplus/commerce-sync/internal/interfaces/http/handler"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestNewRouter(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	assert.NotNil(t, r)
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)
	assert.Empty(t, r.root)
}

func TestRouterWithAPIVersion(t *testing.T) {
	r := NewRouter(gin.New(), WithAPIVersion("v2"))

	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)

	api := NewDomainGroup("test", "/test").GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	root := NewDomainGroup("probes", "").GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.Register(api).RegisterRoot(root).Setup()

	w := serve(engine, http.MethodGet, "/api/v1/test/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())

	w = serve(engine, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)

	// root routes are not mirrored under the api prefix
	w = serve(engine, http.MethodGet, "/api/v1/health")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouterAPIMiddlewareScope(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIMiddleware(func(c *gin.Context) {
		c.Header("X-API", "1")
		c.Next()
	}))

	r.Register(NewDomainGroup("items", "/items").GET("", func(c *gin.Context) { c.Status(http.StatusOK) }))
	r.RegisterRoot(NewDomainGroup("probes", "").GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) }))
	r.Setup()

	assert.Equal(t, "1", serve(engine, http.MethodGet, "/api/v1/items").Header().Get("X-API"))
	assert.Empty(t, serve(engine, http.MethodGet, "/health").Header().Get("X-API"))
}

func TestDomainGroup(t *testing.T) {
	t.Run("creates group with name and prefix", func(t *testing.T) {
		g := NewDomainGroup("orders", "/orders")
		assert.Equal(t, "orders", g.Name())
		assert.Equal(t, "/orders", g.Prefix())
	})

	t.Run("registers every method", func(t *testing.T) {
		engine := gin.New()
		ok := func(c *gin.Context) { c.Status(http.StatusOK) }
		g := NewDomainGroup("test", "/test").
			GET("/items", ok).
			POST("/items", ok).
			PUT("/items/:id", ok).
			DELETE("/items/:id", ok)
		g.RegisterRoutes(engine.Group("/api/v1"))

		for _, tc := range []struct{ method, path string }{
			{http.MethodGet, "/api/v1/test/items"},
			{http.MethodPost, "/api/v1/test/items"},
			{http.MethodPut, "/api/v1/test/items/1"},
			{http.MethodDelete, "/api/v1/test/items/1"},
		} {
			assert.Equal(t, http.StatusOK, serve(engine, tc.method, tc.path).Code, tc.method+" "+tc.path)
		}
	})

	t.Run("applies middleware to subgroups and skips nil", func(t *testing.T) {
		engine := gin.New()
		blocked := func(c *gin.Context) { c.AbortWithStatus(http.StatusUnauthorized) }
		g := NewDomainGroup("admin", "/admin").Use(nil, blocked)
		g.Group("products", "/products").GET("/list", func(c *gin.Context) { c.Status(http.StatusOK) })
		g.RegisterRoutes(engine.Group("/api/v1"))

		assert.Len(t, g.middleware, 1)
		assert.Equal(t, http.StatusUnauthorized, serve(engine, http.MethodGet, "/api/v1/admin/products/list").Code)
	})
}

type stubRunner struct{}

func (stubRunner) RunOnce(context.Context, string) (*scheduler.ReconcileRun, error) {
	return &scheduler.ReconcileRun{Status: scheduler.RunStatusSuccess}, nil
}

func (stubRunner) History(int) []scheduler.ReconcileRun { return nil }

func commerceEngine(t *testing.T, guards Guards) (*gin.Engine, *Router) {
	t.Helper()
	engine := gin.New()
	h := Handlers{
		System:       handler.NewSystemHandler("commerce-sync", "test", nil),
		Webhook:      handler.NewWebhookHandler(nil, nil, 0),
		Download:     handler.NewDownloadHandler(nil, nil),
		Order:        handler.NewOrderHandler(nil, nil, nil),
		Product:      handler.NewProductHandler(nil, stubRunner{}, nil),
		DigitalAsset: handler.NewDigitalAssetHandler(nil, ""),
	}

	r := NewRouter(engine)
	r.RegisterRoot(ProbeRoutes(h.System, "/metrics", http.NotFoundHandler()))
	r.RegisterRoot(WebhookRoutes(h.Webhook))
	r.Register(PublicRoutes(h, guards))
	r.Register(AdminRoutes(h, guards))
	require.NotPanics(t, r.Setup)
	return engine, r
}

func TestCommerceRoutes_Table(t *testing.T) {
	_, r := commerceEngine(t, Guards{})

	assert.Equal(t, []string{
		"DELETE /api/v1/admin/products/mappings/:id",
		"GET /api/v1/admin/orders/:id/digital-assets",
		"GET /api/v1/admin/products/reconcile/runs",
		"GET /api/v1/admin/sync-log",
		"GET /api/v1/downloads",
		"GET /api/v1/orders/lookup",
		"GET /health",
		"GET /metrics",
		"POST /api/v1/admin/digital-assets",
		"POST /api/v1/admin/orders/:id/resync",
		"POST /api/v1/admin/orders/backfill",
		"POST /api/v1/admin/products/push",
		"POST /api/v1/admin/products/reconcile",
		"POST /webhooks/commerce",
		"PUT /api/v1/admin/products/mappings/:id/inventory",
	}, r.Routes())
}

func TestCommerceRoutes_Guards(t *testing.T) {
	var limited []string
	engine, _ := commerceEngine(t, Guards{
		AdminAuth: func(c *gin.Context) { c.AbortWithStatus(http.StatusUnauthorized) },
		PublicRateLimit: func(c *gin.Context) {
			limited = append(limited, c.Request.URL.Path)
			c.AbortWithStatus(http.StatusTooManyRequests)
		},
	})

	assert.Equal(t, http.StatusUnauthorized, serve(engine, http.MethodPost, "/api/v1/admin/products/reconcile").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(engine, http.MethodGet, "/api/v1/admin/sync-log").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(engine, http.MethodGet, "/api/v1/downloads?token=x").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(engine, http.MethodGet, "/api/v1/orders/lookup").Code)
	assert.Equal(t, []string{"/api/v1/downloads", "/api/v1/orders/lookup"}, limited)

	// probes sit outside both guards
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/health").Code)
}

func TestCommerceRoutes_AdminWithoutAuthGuard(t *testing.T) {
	engine, _ := commerceEngine(t, Guards{})

	w := serve(engine, http.MethodPost, "/api/v1/admin/products/reconcile")
	assert.Equal(t, http.StatusOK, w.Code)
}
