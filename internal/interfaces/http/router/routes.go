package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/beizaplus/commerce-sync/internal/interfaces/http/handler"
)

// Handlers are the HTTP handlers of the commerce sync service
type Handlers struct {
	System       *handler.SystemHandler
	Webhook      *handler.WebhookHandler
	Download     *handler.DownloadHandler
	Order        *handler.OrderHandler
	Product      *handler.ProductHandler
	DigitalAsset *handler.DigitalAssetHandler
}

// Guards are the per-area middleware. A nil guard is skipped.
type Guards struct {
	// AdminAuth protects every /admin route
	AdminAuth gin.HandlerFunc
	// PublicRateLimit throttles the customer-facing lookup and download routes
	PublicRateLimit gin.HandlerFunc
}

// ProbeRoutes returns /health and, when metrics is non-nil, the metrics endpoint
func ProbeRoutes(system *handler.SystemHandler, metricsPath string, metrics http.Handler) *DomainGroup {
	g := NewDomainGroup("probes", "")
	g.GET("/health", system.Health)
	if metrics != nil {
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
		g.GET(metricsPath, gin.WrapH(metrics))
	}
	return g
}

// WebhookRoutes returns the platform webhook receiver. It reads the raw
// body itself, so no body-limit or JSON middleware sits in front of it.
func WebhookRoutes(webhook *handler.WebhookHandler) *DomainGroup {
	return NewDomainGroup("webhooks", "/webhooks").
		POST("/commerce", webhook.Receive)
}

// PublicRoutes returns the customer-facing routes
func PublicRoutes(h Handlers, guards Guards) *DomainGroup {
	g := NewDomainGroup("public", "").Use(guards.PublicRateLimit)
	g.GET("/downloads", h.Download.Download)
	g.GET("/orders/lookup", h.Order.Lookup)
	return g
}

// AdminRoutes returns the operator routes, all behind admin auth
func AdminRoutes(h Handlers, guards Guards) *DomainGroup {
	admin := NewDomainGroup("admin", "/admin").Use(guards.AdminAuth)

	admin.Group("products", "/products").
		POST("/push", h.Product.Push).
		POST("/reconcile", h.Product.Reconcile).
		GET("/reconcile/runs", h.Product.ReconcileRuns).
		DELETE("/mappings/:id", h.Product.DeleteMapping).
		PUT("/mappings/:id/inventory", h.Product.UpdateInventory)

	admin.GET("/sync-log", h.Product.SyncLog)
	admin.POST("/digital-assets", h.DigitalAsset.Issue)

	admin.Group("orders", "/orders").
		POST("/backfill", h.Order.Backfill).
		POST("/:id/resync", h.Order.Resync).
		GET("/:id/digital-assets", h.DigitalAsset.ListForOrder)

	return admin
}
