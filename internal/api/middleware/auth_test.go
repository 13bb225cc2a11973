package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/catering-cart/internal/auth"
)

func newTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key", 15*time.Minute)
}

func testCustomers() []auth.Customer {
	return []auth.Customer{{ID: "school-12", Name: "North School Kitchen"}}
}

func captureClaims(out **auth.Claims) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := r.Context().Value(UserContextKey).(*auth.Claims); ok {
			*out = claims
		}
		w.WriteHeader(http.StatusOK)
	})
}

// ============================================================================
// Auth Middleware Tests
// ============================================================================

func TestAuthMiddleware_ValidToken_Header(t *testing.T) {
	jwtService := newTestJWTService()
	middleware := AuthMiddleware(jwtService)

	token, _, err := jwtService.GenerateAccessToken("user-123", "cook@example.com", testCustomers())
	require.NoError(t, err)

	var captured *auth.Claims
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	middleware(captureClaims(&captured)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	assert.Equal(t, "user-123", captured.UserID)
	assert.Equal(t, "cook@example.com", captured.Email)
	assert.Equal(t, testCustomers(), captured.Customers)
}

func TestAuthMiddleware_ValidToken_Cookie(t *testing.T) {
	jwtService := newTestJWTService()
	middleware := AuthMiddleware(jwtService)

	token, _, err := jwtService.GenerateAccessToken("user-456", "cookie@example.com", nil)
	require.NoError(t, err)

	var captured *auth.Claims
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: token})
	rec := httptest.NewRecorder()

	middleware(captureClaims(&captured)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	assert.Equal(t, "user-456", captured.UserID)
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	jwtService := newTestJWTService()
	expired, _, err := auth.NewJWTService("test-secret-key", -time.Minute).GenerateAccessToken("u", "", nil)
	require.NoError(t, err)
	foreign, _, err := auth.NewJWTService("another-secret", time.Minute).GenerateAccessToken("u", "", nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"no token", ""},
		{"garbage", "Bearer not-a-jwt"},
		{"expired", "Bearer " + expired},
		{"wrong signature", "Bearer " + foreign},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			AuthMiddleware(jwtService)(handler).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
			assert.False(t, called)
		})
	}
}

func TestAuthMiddleware_CookieTakesPrecedence(t *testing.T) {
	jwtService := newTestJWTService()

	cookieToken, _, err := jwtService.GenerateAccessToken("cookie-user", "", nil)
	require.NoError(t, err)
	headerToken, _, err := jwtService.GenerateAccessToken("header-user", "", nil)
	require.NoError(t, err)

	var captured *auth.Claims
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: cookieToken})
	req.Header.Set("Authorization", "Bearer "+headerToken)
	rec := httptest.NewRecorder()

	AuthMiddleware(jwtService)(captureClaims(&captured)).ServeHTTP(rec, req)

	require.NotNil(t, captured)
	assert.Equal(t, "cookie-user", captured.UserID)
}

// ============================================================================
// Require Customer Middleware Tests
// ============================================================================

func withClaims(req *http.Request, claims *auth.Claims) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), UserContextKey, claims))
}

func TestRequireCustomer(t *testing.T) {
	claims := &auth.Claims{UserID: "user-1", Customers: testCustomers()}

	tests := []struct {
		name       string
		target     string
		claims     *auth.Claims
		wantStatus int
	}{
		{"granted", "/draft-orders?customer=school-12", claims, http.StatusOK},
		{"not granted", "/draft-orders?customer=care-3", claims, http.StatusForbidden},
		{"missing", "/draft-orders", claims, http.StatusBadRequest},
		{"no claims", "/draft-orders?customer=school-12", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireCustomer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.claims != nil {
				req = withClaims(req, tt.claims)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

// ============================================================================
// Context Helper Tests
// ============================================================================

func TestGetUserFromContext(t *testing.T) {
	claims := &auth.Claims{UserID: "user-123", Email: "cook@example.com"}
	ctx := context.WithValue(context.Background(), UserContextKey, claims)

	got, ok := GetUserFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, claims, got)

	_, ok = GetUserFromContext(context.Background())
	assert.False(t, ok)
}

func TestGetUserID(t *testing.T) {
	ctx := context.WithValue(context.Background(), UserContextKey, &auth.Claims{UserID: "user-123"})

	assert.Equal(t, "user-123", GetUserID(ctx))
	assert.Empty(t, GetUserID(context.Background()))
}
