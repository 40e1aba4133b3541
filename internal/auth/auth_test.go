package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"gamesfinder/backend/internal/config"
	"gamesfinder/backend/internal/models"
	"gamesfinder/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(middlewares ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middlewares...)
	r.GET("/", func(c *gin.Context) {
		id, _ := c.Get("userID")
		c.JSON(http.StatusOK, gin.H{"user": id, "role": c.GetString("userRole")})
	})
	return r
}

func request(t *testing.T, r *gin.Engine, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	config.AppConfig = &config.Config{JWTSecret: "test-secret"}
	token, err := jwt.GenerateToken(7, models.RoleUser)
	require.NoError(t, err)

	r := newRouter(AuthMiddleware())

	w := request(t, r, token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user": 7, "role": "user"}`, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, request(t, r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, request(t, r, "bogus").Code)
}

func TestOptionalAuthMiddleware(t *testing.T) {
	config.AppConfig = &config.Config{JWTSecret: "test-secret"}
	r := newRouter(OptionalAuthMiddleware())

	w := request(t, r, "bogus")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user": null, "role": ""}`, w.Body.String())
}

func TestAdminMiddlewareUsesRoleClaim(t *testing.T) {
	config.AppConfig = &config.Config{JWTSecret: "test-secret"}
	admin, err := jwt.GenerateToken(1, models.RoleAdmin)
	require.NoError(t, err)
	user, err := jwt.GenerateToken(2, models.RoleUser)
	require.NoError(t, err)

	r := newRouter(AuthMiddleware(), AdminMiddleware())

	assert.Equal(t, http.StatusOK, request(t, r, admin).Code)
	assert.Equal(t, http.StatusForbidden, request(t, r, user).Code)
}
