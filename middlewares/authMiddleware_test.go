package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendhub/vendhub_backend/models"
	"github.com/vendhub/vendhub_backend/utils"
)

func protectedRouter(required models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware())
	r.GET("/protected", RequireRole(required), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func doRequest(t *testing.T, r *gin.Engine, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireRoleWithoutTokenIsUnauthorized(t *testing.T) {
	r := protectedRouter(models.UserRoleManager)
	w := doRequest(t, r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRoleInvalidTokenIsUnauthorized(t *testing.T) {
	r := protectedRouter(models.UserRoleManager)
	w := doRequest(t, r, "bogus-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRoleEnforcesHierarchy(t *testing.T) {
	r := protectedRouter(models.UserRoleManager)

	operator, err := utils.JwtGenerate(1, string(models.UserRoleOperator))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, doRequest(t, r, operator).Code)

	manager, err := utils.JwtGenerate(2, string(models.UserRoleManager))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, doRequest(t, r, manager).Code)

	admin, err := utils.JwtGenerate(3, string(models.UserRoleAdmin))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, doRequest(t, r, admin).Code)
}

func TestAdminOnlyRejectsManager(t *testing.T) {
	r := protectedRouter(models.UserRoleAdmin)

	manager, err := utils.JwtGenerate(2, string(models.UserRoleManager))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, doRequest(t, r, manager).Code)
}
