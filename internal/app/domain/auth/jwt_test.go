package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-runworld/internal/app/middleware"
)

func testConfig() JWTConfig {
	return JWTConfig{
		SecretKey:       "test-secret",
		TokenExpiration: time.Hour,
		Logger:          zap.NewNop(),
	}
}

func TestTokenRoundTrip(t *testing.T) {
	svc := NewJWTService()
	cfg := testConfig()

	token, err := svc.GenerateToken(cfg, "u_abc123")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, "u_abc123", claims.UserKey)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	svc := NewJWTService()
	token, err := svc.GenerateToken(testConfig(), "u_abc123")
	require.NoError(t, err)

	other := testConfig()
	other.SecretKey = "different"
	_, err = svc.ValidateToken(other, token)
	assert.Error(t, err)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	svc := NewJWTService()
	cfg := testConfig()
	cfg.TokenExpiration = -time.Minute

	token, err := svc.GenerateToken(cfg, "u_abc123")
	require.NoError(t, err)

	_, err = svc.ValidateToken(cfg, token)
	assert.Error(t, err)
}

func sessionRouter(cfg JWTConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SessionMiddleware(cfg))
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_key": middleware.GetUserKeyFromContext(c)})
	})
	return r
}

func TestSessionMiddlewareMintsIdentityAndCookie(t *testing.T) {
	r := sessionRouter(testConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-User-Key"))

	var sessionSet bool
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookie && c.Value != "" {
			sessionSet = true
			assert.True(t, c.HttpOnly)
		}
	}
	assert.True(t, sessionSet, "session cookie issued for anonymous visitor")
}

func TestSessionMiddlewareKeepsExistingIdentity(t *testing.T) {
	cfg := testConfig()
	r := sessionRouter(cfg)

	token, err := NewJWTService().GenerateToken(cfg, "u_existing")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "u_existing")
	assert.Empty(t, w.Header().Get("X-User-Key"), "no new identity minted")
}

func TestSessionMiddlewareAcceptsBearerHeader(t *testing.T) {
	cfg := testConfig()
	r := sessionRouter(cfg)

	token, err := NewJWTService().GenerateToken(cfg, "u_bearer")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Contains(t, w.Body.String(), "u_bearer")
}
