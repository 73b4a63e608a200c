package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/beizaplus/commerce-sync/internal/infrastructure/auth"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/config"
	"github.com/beizaplus/commerce-sync/internal/interfaces/http/dto"
)

const testAdminSecret = "test-admin-secret-at-least-32-chars"

func newTestJWTService() *auth.JWTService {
	return auth.NewJWTService(config.AdminConfig{JWTSecret: testAdminSecret, Issuer: "commerce-sync"})
}

func newAdminRouter(svc *auth.JWTService) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), AdminAuth(AdminAuthConfig{Validator: svc, Logger: zap.NewNop()}))
	router.POST("/api/v1/admin/products/reconcile", func(c *gin.Context) {
		c.String(http.StatusOK, GetJWTSubject(c))
	})
	return router
}

func serveAdmin(t *testing.T, router *gin.Engine, header string) (*httptest.ResponseRecorder, dto.Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/products/reconcile", nil)
	if header != "" {
		req.Header.Set(AuthHeaderKey, header)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp dto.Response
	if w.Code != http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestAdminAuth_ValidToken(t *testing.T) {
	svc := newTestJWTService()
	token, _, err := svc.IssueAdminToken("ops@example.com", time.Hour)
	require.NoError(t, err)

	w, _ := serveAdmin(t, newAdminRouter(svc), "Bearer "+token)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ops@example.com", w.Body.String())
}

func TestAdminAuth_Rejections(t *testing.T) {
	svc := newTestJWTService()

	viewer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "commerce-sync",
			Subject:   "viewer",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "viewer",
	}).SignedString([]byte(testAdminSecret))
	require.NoError(t, err)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "commerce-sync",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		Role: auth.RoleAdmin,
	}).SignedString([]byte(testAdminSecret))
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{"missing header", "", http.StatusUnauthorized, dto.ErrCodeUnauthorized},
		{"basic scheme", "Basic b3BzOnNlY3JldA==", http.StatusUnauthorized, dto.ErrCodeUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized, dto.ErrCodeUnauthorized},
		{"garbage token", "Bearer not-a-token", http.StatusUnauthorized, dto.ErrCodeTokenInvalid},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized, dto.ErrCodeTokenExpired},
		{"wrong role", "Bearer " + viewer, http.StatusForbidden, dto.ErrCodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := serveAdmin(t, newAdminRouter(svc), tt.header)

			assert.Equal(t, tt.wantStatus, w.Code)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.RequestID)
		})
	}
}

func TestAdminAuth_UnconfiguredSecretRejectsEverything(t *testing.T) {
	issuer := newTestJWTService()
	token, _, err := issuer.IssueAdminToken("ops", time.Hour)
	require.NoError(t, err)

	unconfigured := auth.NewJWTService(config.AdminConfig{Issuer: "commerce-sync"})
	w, resp := serveAdmin(t, newAdminRouter(unconfigured), "Bearer "+token)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, dto.ErrCodeUnauthorized, resp.Error.Code)
}
