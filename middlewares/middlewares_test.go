package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
)

func setupRouter(tm *utils.TokenManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api", AuthMiddleware(tm))
	api.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": UserID(c), "role": c.GetString(CtxRole)})
	})
	api.GET("/debug", RequireRole(models.RoleOwner, models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func do(r http.Handler, path, auth string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	tm := utils.NewTokenManager("test-secret")
	r := setupRouter(tm)
	token, err := tm.GenerateToken(42, models.RoleStaff)
	require.NoError(t, err)

	t.Run("missing token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do(r, "/api/me", "").Code)
	})
	t.Run("bad scheme", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do(r, "/api/me", "Token "+token).Code)
	})
	t.Run("header", func(t *testing.T) {
		w := do(r, "/api/me", "Bearer "+token)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"user_id":42,"role":"staff"}`, w.Body.String())
	})
	t.Run("query for websocket", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, do(r, "/api/me?token="+token, "").Code)
	})
	t.Run("revoked", func(t *testing.T) {
		tm.Blacklist(token)
		assert.Equal(t, http.StatusUnauthorized, do(r, "/api/me", "Bearer "+token).Code)
	})
}

func TestRequireRole(t *testing.T) {
	tm := utils.NewTokenManager("test-secret")
	r := setupRouter(tm)

	staff, _ := tm.GenerateToken(1, models.RoleStaff)
	owner, _ := tm.GenerateToken(2, models.RoleOwner)

	assert.Equal(t, http.StatusForbidden, do(r, "/api/debug", "Bearer "+staff).Code)
	assert.Equal(t, http.StatusNoContent, do(r, "/api/debug", "Bearer "+owner).Code)
}

func TestRateLimiterIsPerIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/login", NewRateLimiter(time.Minute, 2).RateLimit(), func(c *gin.Context) { c.Status(http.StatusOK) })

	hit := func(ip string) int {
		req, _ := http.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, hit("10.0.0.1"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.2"))
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSMiddlewares("http://pos.local"), SecurityHeaders())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	req, _ := http.NewRequest(http.MethodOptions, "/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://pos.local", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(r, "/ping", "")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}
