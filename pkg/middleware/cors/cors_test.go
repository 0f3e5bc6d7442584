package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func request(allowed []string, method, origin string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(allowed))
	r.GET("/api/v1/admin/exports/payments", func(c *gin.Context) { c.Status(http.StatusOK) })
	req := httptest.NewRequest(method, "/api/v1/admin/exports/payments", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAllowedOriginGetsCredentialsAndExposedHeaders(t *testing.T) {
	w := request([]string{"https://admin.creche.example/"}, http.MethodGet, "https://admin.creche.example")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://admin.creche.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
}

func TestWildcardSubdomain(t *testing.T) {
	allowed := []string{"https://*.creche.example"}
	w := request(allowed, http.MethodOptions, "https://staging.creche.example")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")

	w = request(allowed, http.MethodOptions, "https://creche.example.evil.test")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = request(allowed, http.MethodOptions, "http://staging.creche.example")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUnknownOriginStillServedWithoutHeaders(t *testing.T) {
	w := request([]string{"https://admin.creche.example"}, http.MethodGet, "https://other.example")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestEmptyListAllowsAnyOriginWithoutCredentials(t *testing.T) {
	w := request(nil, http.MethodGet, "https://anywhere.example")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}
