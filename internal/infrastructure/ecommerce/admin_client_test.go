package ecommerce

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/beizaplus/commerce-sync/internal/domain/commerce"
)

// ---------------------------------------------------------------------------
// Config Tests
// ---------------------------------------------------------------------------

func TestAdminAPIConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  AdminAPIConfig
		wantErr error
	}{
		{
			name:   "valid config",
			config: AdminAPIConfig{ShopDomain: "memorial.myshopify.com", AccessToken: "shpat_test"},
		},
		{
			name:    "missing shop domain",
			config:  AdminAPIConfig{AccessToken: "shpat_test"},
			wantErr: ErrConfigMissingShopDomain,
		},
		{
			name:    "missing access token",
			config:  AdminAPIConfig{ShopDomain: "memorial.myshopify.com"},
			wantErr: ErrConfigMissingAccessToken,
		},
		{
			name:   "base url replaces shop domain",
			config: AdminAPIConfig{BaseURL: "http://localhost:9999", AccessToken: "shpat_test"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, DefaultAPIVersion, tt.config.APIVersion)
			assert.Equal(t, 30*time.Second, tt.config.Timeout)
		})
	}
}

func TestAdminAPIConfig_Endpoint(t *testing.T) {
	cfg := AdminAPIConfig{ShopDomain: "https://memorial.myshopify.com/", AccessToken: "x"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "https://memorial.myshopify.com/admin/api/2024-01", cfg.Endpoint())

	cfg.BaseURL = "http://127.0.0.1:8080/admin/"
	assert.Equal(t, "http://127.0.0.1:8080/admin", cfg.Endpoint())
}

// ---------------------------------------------------------------------------
// Client Tests
// ---------------------------------------------------------------------------

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(AdminAPIConfig{
		BaseURL:     server.URL,
		AccessToken: "shpat_test",
		Timeout:     2 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func TestClient_CreateProduct(t *testing.T) {
	var received map[string]map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/products.json", r.URL.Path)
		assert.Equal(t, "shpat_test", r.Header.Get("X-Shopify-Access-Token"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))

		writeJSON(t, w, http.StatusCreated, map[string]any{
			"product": map[string]any{
				"id":       632910392,
				"title":    "Tribute Page",
				"status":   "active",
				"variants": []map[string]any{{"id": 808950810, "price": "49.00"}},
			},
		})
	})

	product, err := client.CreateProduct(context.Background(), commerce.ProductInput{
		Title:       "Tribute Page",
		ProductType: "tribute",
		Status:      "active",
		Tags:        []string{"digital", "tribute"},
		Price:       decimal.RequireFromString("49"),
		SKU:         "TRIB-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "632910392", product.PlatformProductID())
	assert.Equal(t, "808950810", product.FirstVariantID())

	p := received["product"]
	assert.Equal(t, "Tribute Page", p["title"])
	assert.Equal(t, "digital, tribute", p["tags"])
	assert.NotContains(t, p, "id")
	variants := p["variants"].([]any)
	require.Len(t, variants, 1)
	variant := variants[0].(map[string]any)
	assert.Equal(t, "49.00", variant["price"])
	assert.Equal(t, "TRIB-1", variant["sku"])
	assert.NotContains(t, variant, "id")
}

func TestClient_UpdateProduct(t *testing.T) {
	t.Run("targets known variant", func(t *testing.T) {
		var received map[string]map[string]any
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "/products/632910392.json", r.URL.Path)
			body, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(body, &received))
			writeJSON(t, w, http.StatusOK, map[string]any{"product": map[string]any{"id": 632910392}})
		})

		_, err := client.UpdateProduct(context.Background(), "632910392", commerce.ProductInput{
			Title:     "Archive",
			Price:     decimal.RequireFromString("19.5"),
			VariantID: "808950810",
		})
		require.NoError(t, err)

		p := received["product"]
		assert.EqualValues(t, 632910392, p["id"])
		variants := p["variants"].([]any)
		require.Len(t, variants, 1)
		variant := variants[0].(map[string]any)
		assert.EqualValues(t, 808950810, variant["id"])
		assert.Equal(t, "19.50", variant["price"])
	})

	t.Run("leaves variants alone without id", func(t *testing.T) {
		var received map[string]map[string]any
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(body, &received))
			writeJSON(t, w, http.StatusOK, map[string]any{"product": map[string]any{"id": 632910392}})
		})

		_, err := client.UpdateProduct(context.Background(), "632910392", commerce.ProductInput{Title: "Archive"})
		require.NoError(t, err)
		assert.NotContains(t, received["product"], "variants")
	})

	t.Run("rejects non numeric id", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})
		_, err := client.UpdateProduct(context.Background(), "abc", commerce.ProductInput{Title: "x"})
		assert.ErrorIs(t, err, ErrInvalidID)
	})
}

func TestClient_DeleteProduct_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		writeJSON(t, w, http.StatusNotFound, map[string]string{"errors": "Not Found"})
	})

	err := client.DeleteProduct(context.Background(), "632910392")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.HTTPStatus())
	assert.True(t, apiErr.IsNotFound())
	assert.False(t, apiErr.Retryable())
	assert.False(t, commerce.IsRetryable(err))
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusInternalServerError, true},
		{http.StatusUnprocessableEntity, false},
		{http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, tt.status, map[string]any{"errors": map[string][]string{"title": {"can't be blank"}}})
			})

			_, err := client.GetProduct(context.Background(), "1")
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.retryable, commerce.IsRetryable(err))
		})
	}
}

func TestClient_TransportErrorIsTransient(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(block) })

	client, err := NewClient(AdminAPIConfig{
		BaseURL:     server.URL,
		AccessToken: "shpat_test",
		Timeout:     50 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)

	_, err = client.GetOrder(context.Background(), "450789469")
	require.Error(t, err)
	assert.ErrorIs(t, err, commerce.ErrTransient)
	assert.True(t, commerce.IsRetryable(err))
}

func TestClient_GetOrder_KeepsRawSnapshot(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/450789469.json", r.URL.Path)
		writeJSON(t, w, http.StatusOK, map[string]any{
			"order": map[string]any{
				"id":                 450789469,
				"order_number":       1042,
				"financial_status":   "paid",
				"fulfillment_status": nil,
				"total_price":        "89.00",
			},
		})
	})

	order, err := client.GetOrder(context.Background(), "450789469")
	require.NoError(t, err)
	assert.Equal(t, "450789469", order.PlatformOrderID())
	assert.Equal(t, "1042", order.DisplayNumber())
	assert.Equal(t, "", order.Fulfillment())
	assert.Contains(t, string(order.Raw), `"financial_status":"paid"`)
}

func TestClient_GetOrder_MissingBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{})
	})

	_, err := client.GetOrder(context.Background(), "450789469")
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestClient_ListQueries(t *testing.T) {
	t.Run("products", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "50", q.Get("limit"))
			assert.Equal(t, "tribute", q.Get("product_type"))
			assert.Equal(t, "active", q.Get("status"))
			writeJSON(t, w, http.StatusOK, map[string]any{
				"products": []map[string]any{{"id": 1}, {"id": 2}},
			})
		})

		products, err := client.ListProducts(context.Background(), commerce.ProductListQuery{
			Limit:       50,
			ProductType: "tribute",
			Status:      "active",
		})
		require.NoError(t, err)
		assert.Len(t, products, 2)
	})

	t.Run("orders default to any status", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "any", r.URL.Query().Get("status"))
			assert.Equal(t, "paid", r.URL.Query().Get("financial_status"))
			writeJSON(t, w, http.StatusOK, map[string]any{"orders": []map[string]any{{"id": 7}}})
		})

		orders, err := client.ListOrders(context.Background(), commerce.OrderListQuery{FinancialStatus: "paid"})
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, "7", orders[0].PlatformOrderID())
	})
}

func TestClient_UpdateVariantInventory(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/variants/808950810.json", r.URL.Path)
		var body map[string]map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 808950810, body["variant"]["id"])
		assert.EqualValues(t, 0, body["variant"]["inventory_quantity"])
		writeJSON(t, w, http.StatusOK, map[string]any{
			"variant": map[string]any{"id": 808950810, "inventory_quantity": 0},
		})
	})

	variant, err := client.UpdateVariantInventory(context.Background(), "808950810", 0)
	require.NoError(t, err)
	assert.EqualValues(t, 808950810, variant.ID)
}
