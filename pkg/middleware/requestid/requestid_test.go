package requestid

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, inbound string) (header, fromGin, fromCtx string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/", func(c *gin.Context) {
		fromGin = Value(c)
		fromCtx = FromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if inbound != "" {
		req.Header.Set(Header, inbound)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Header().Get(Header), fromGin, fromCtx
}

func TestInboundIDIsKept(t *testing.T) {
	header, fromGin, fromCtx := serve(t, "mobile-42.a")
	assert.Equal(t, "mobile-42.a", header)
	assert.Equal(t, header, fromGin)
	assert.Equal(t, header, fromCtx)
}

func TestMissingOrUnsafeIDIsReplaced(t *testing.T) {
	for _, inbound := range []string{"", "bad id\nwith newline", string(make([]byte, 65))} {
		header, _, fromCtx := serve(t, inbound)
		_, err := uuid.Parse(header)
		require.NoError(t, err, "inbound %q", inbound)
		assert.Equal(t, header, fromCtx)
	}
}
