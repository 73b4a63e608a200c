package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/beizaplus/commerce-sync/internal/domain/commerce"
	"go.uber.org/zap"
)

// maxResponseSize caps how much of a response body is read
const maxResponseSize = 10 << 20

// ErrInvalidResponse is returned when a 2xx body lacks the expected object
var ErrInvalidResponse = errors.New("ecommerce: unexpected response body")

// ErrInvalidID is returned for ids that are not platform numeric ids
var ErrInvalidID = errors.New("ecommerce: invalid platform id")

// Client talks to the platform Admin REST API. It implements commerce.CommerceGateway.
type Client struct {
	cfg        AdminAPIConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client. Its timeout is left as given.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient validates cfg and creates a Client
func NewClient(cfg AdminAPIConfig, logger *zap.Logger, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Named("ecommerce"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ commerce.CommerceGateway = (*Client)(nil)

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

// GetProduct fetches GET /products/{id}.json
func (c *Client) GetProduct(ctx context.Context, productID string) (*commerce.PlatformProduct, error) {
	if _, err := parseID(productID); err != nil {
		return nil, err
	}
	var env productEnvelope
	if err := c.do(ctx, http.MethodGet, "/products/"+productID+".json", nil, nil, &env); err != nil {
		return nil, err
	}
	if env.Product == nil {
		return nil, fmt.Errorf("%w: missing product", ErrInvalidResponse)
	}
	return env.Product, nil
}

// ListProducts fetches GET /products.json
func (c *Client) ListProducts(ctx context.Context, query commerce.ProductListQuery) ([]commerce.PlatformProduct, error) {
	params := url.Values{}
	if query.Limit > 0 {
		params.Set("limit", strconv.Itoa(query.Limit))
	}
	if query.ProductType != "" {
		params.Set("product_type", query.ProductType)
	}
	if query.Status != "" {
		params.Set("status", query.Status)
	}
	if len(query.Tags) > 0 {
		params.Set("tags", strings.Join(query.Tags, ","))
	}
	if query.Page > 0 {
		params.Set("page", strconv.Itoa(query.Page))
	}

	var env productsEnvelope
	if err := c.do(ctx, http.MethodGet, "/products.json", params, nil, &env); err != nil {
		return nil, err
	}
	return env.Products, nil
}

// CreateProduct posts POST /products.json with a single default variant
func (c *Client) CreateProduct(ctx context.Context, input commerce.ProductInput) (*commerce.PlatformProduct, error) {
	body := productWrite{Product: toProductWriteBody(input)}

	var env productEnvelope
	if err := c.do(ctx, http.MethodPost, "/products.json", nil, body, &env); err != nil {
		return nil, err
	}
	if env.Product == nil {
		return nil, fmt.Errorf("%w: missing product", ErrInvalidResponse)
	}
	return env.Product, nil
}

// UpdateProduct puts PUT /products/{id}.json. The default variant is only
// touched when input.VariantID is known.
func (c *Client) UpdateProduct(ctx context.Context, productID string, input commerce.ProductInput) (*commerce.PlatformProduct, error) {
	id, err := parseID(productID)
	if err != nil {
		return nil, err
	}
	write := toProductWriteBody(input)
	write.ID = id
	write.Variants = nil
	if variantID, err := parseID(input.VariantID); err == nil {
		write.Variants = []variantWriteBody{{ID: variantID, Price: formatPrice(input), SKU: input.SKU}}
	}

	var env productEnvelope
	if err := c.do(ctx, http.MethodPut, "/products/"+productID+".json", nil, productWrite{Product: write}, &env); err != nil {
		return nil, err
	}
	if env.Product == nil {
		return nil, fmt.Errorf("%w: missing product", ErrInvalidResponse)
	}
	return env.Product, nil
}

// DeleteProduct sends DELETE /products/{id}.json
func (c *Client) DeleteProduct(ctx context.Context, productID string) error {
	if _, err := parseID(productID); err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, "/products/"+productID+".json", nil, nil, nil)
}

// UpdateVariantInventory puts PUT /variants/{id}.json
func (c *Client) UpdateVariantInventory(ctx context.Context, variantID string, quantity int) (*commerce.PlatformVariant, error) {
	id, err := parseID(variantID)
	if err != nil {
		return nil, err
	}
	body := variantInventoryWrite{Variant: variantInventoryBody{ID: id, InventoryQuantity: quantity}}

	var env variantEnvelope
	if err := c.do(ctx, http.MethodPut, "/variants/"+variantID+".json", nil, body, &env); err != nil {
		return nil, err
	}
	if env.Variant == nil {
		return nil, fmt.Errorf("%w: missing variant", ErrInvalidResponse)
	}
	return env.Variant, nil
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// GetOrder fetches GET /orders/{id}.json
func (c *Client) GetOrder(ctx context.Context, orderID string) (*commerce.PlatformOrder, error) {
	if _, err := parseID(orderID); err != nil {
		return nil, err
	}
	var raw struct {
		Order json.RawMessage `json:"order"`
	}
	if err := c.do(ctx, http.MethodGet, "/orders/"+orderID+".json", nil, nil, &raw); err != nil {
		return nil, err
	}
	if len(raw.Order) == 0 || string(raw.Order) == "null" {
		return nil, fmt.Errorf("%w: missing order", ErrInvalidResponse)
	}
	var order commerce.PlatformOrder
	if err := json.Unmarshal(raw.Order, &order); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	order.Raw = raw.Order
	return &order, nil
}

// ListOrders fetches GET /orders.json
func (c *Client) ListOrders(ctx context.Context, query commerce.OrderListQuery) ([]commerce.PlatformOrder, error) {
	params := url.Values{}
	if query.Limit > 0 {
		params.Set("limit", strconv.Itoa(query.Limit))
	}
	status := query.Status
	if status == "" {
		status = "any"
	}
	params.Set("status", status)
	if query.FinancialStatus != "" {
		params.Set("financial_status", query.FinancialStatus)
	}

	var env ordersEnvelope
	if err := c.do(ctx, http.MethodGet, "/orders.json", params, nil, &env); err != nil {
		return nil, err
	}
	return env.Orders, nil
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// do sends one request. Transport failures wrap commerce.ErrTransient,
// non-2xx answers become *APIError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	endpoint := c.cfg.Endpoint() + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("ecommerce: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("ecommerce: failed to create request: %w", err)
	}
	req.Header.Set("X-Shopify-Access-Token", c.cfg.AccessToken)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Admin API request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %s %s: %v", commerce.ErrTransient, method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: read %s %s: %v", commerce.ErrTransient, method, path, err)
	}

	c.logger.Debug("Admin API request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrInvalidResponse, method, path, err)
	}
	return nil
}

func toProductWriteBody(input commerce.ProductInput) productWriteBody {
	return productWriteBody{
		Title:       input.Title,
		BodyHTML:    input.BodyHTML,
		Vendor:      input.Vendor,
		ProductType: input.ProductType,
		Handle:      input.Handle,
		Status:      input.Status,
		Tags:        strings.Join(input.Tags, ", "),
		Variants:    []variantWriteBody{{Price: formatPrice(input), SKU: input.SKU}},
	}
}

func formatPrice(input commerce.ProductInput) string {
	return input.Price.StringFixed(2)
}

func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return n, nil
}
