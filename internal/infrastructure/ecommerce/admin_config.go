package ecommerce

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultAPIVersion is the Admin REST API version used when none is configured
const DefaultAPIVersion = "2024-01"

// Errors for Admin API configuration
var (
	ErrConfigMissingShopDomain  = errors.New("ecommerce: shop domain is required")
	ErrConfigMissingAccessToken = errors.New("ecommerce: access token is required")
)

// AdminAPIConfig holds the credentials and endpoint of the platform Admin REST API
type AdminAPIConfig struct {
	// ShopDomain is the shop host, e.g. memorial.myshopify.com
	ShopDomain string
	// AccessToken is sent as X-Shopify-Access-Token
	AccessToken string
	APIVersion  string
	Timeout     time.Duration
	// BaseURL overrides https://{shop}/admin/api/{version}
	BaseURL string
}

// Validate checks required fields and fills defaults
func (c *AdminAPIConfig) Validate() error {
	if c.BaseURL == "" && strings.TrimSpace(c.ShopDomain) == "" {
		return ErrConfigMissingShopDomain
	}
	if c.AccessToken == "" {
		return ErrConfigMissingAccessToken
	}
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return nil
}

// Endpoint returns the API root without a trailing slash
func (c *AdminAPIConfig) Endpoint() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	shop := strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(c.ShopDomain, "https://"), "http://"), "/")
	return fmt.Sprintf("https://%s/admin/api/%s", shop, c.APIVersion)
}
