package ecommerce

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/beizaplus/commerce-sync/internal/domain/commerce"
)

// APIError is a non-2xx response from the Admin API
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return fmt.Sprintf("ecommerce: %s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, strings.TrimSpace(body))
}

// HTTPStatus returns the response status code
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// Retryable reports whether the platform may accept the same request later:
// throttling and server errors are, other client errors are not.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsNotFound reports whether the platform answered 404
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

type productEnvelope struct {
	Product *commerce.PlatformProduct `json:"product"`
}

type productsEnvelope struct {
	Products []commerce.PlatformProduct `json:"products"`
}

type ordersEnvelope struct {
	Orders []commerce.PlatformOrder `json:"orders"`
}

type variantEnvelope struct {
	Variant *commerce.PlatformVariant `json:"variant"`
}

// productWrite is the body of POST /products.json and PUT /products/{id}.json
type productWrite struct {
	Product productWriteBody `json:"product"`
}

type productWriteBody struct {
	ID          int64              `json:"id,omitempty"`
	Title       string             `json:"title"`
	BodyHTML    string             `json:"body_html,omitempty"`
	Vendor      string             `json:"vendor,omitempty"`
	ProductType string             `json:"product_type,omitempty"`
	Handle      string             `json:"handle,omitempty"`
	Status      string             `json:"status,omitempty"`
	Tags        string             `json:"tags,omitempty"`
	Variants    []variantWriteBody `json:"variants,omitempty"`
}

type variantWriteBody struct {
	ID    int64  `json:"id,omitempty"`
	Price string `json:"price,omitempty"`
	SKU   string `json:"sku,omitempty"`
}

type variantInventoryWrite struct {
	Variant variantInventoryBody `json:"variant"`
}

type variantInventoryBody struct {
	ID                int64 `json:"id"`
	InventoryQuantity int   `json:"inventory_quantity"`
}
