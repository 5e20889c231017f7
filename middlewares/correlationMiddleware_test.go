package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendhub/vendhub_backend/utils"
)

func correlationRouter(capture *string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CorrelationMiddleware())
	r.GET("/", func(c *gin.Context) {
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		*capture = cid
		c.Status(http.StatusOK)
	})
	return r
}

func TestCorrelationMiddlewareReusesHeader(t *testing.T) {
	var got string
	r := correlationRouter(&got)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("x-correlation-id", "cid-from-gateway")
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "cid-from-gateway", got)
}

func TestCorrelationMiddlewareGeneratesId(t *testing.T) {
	var got string
	r := correlationRouter(&got)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.NotEmpty(t, got)
}

func TestAuthMiddlewarePopulatesContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware())

	var gotId int
	var gotRole string
	r.GET("/", func(c *gin.Context) {
		gotId, _ = utils.GetUserIdFromContext(c.Request.Context())
		gotRole, _ = utils.GetUserRoleFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	token, err := utils.JwtGenerate(42, "MANAGER")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 42, gotId)
	assert.Equal(t, "MANAGER", gotRole)
}
