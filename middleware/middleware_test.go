package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"atpkiosk/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func ok(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"subject": c.GetString("subject")})
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRendererAuthMiddleware(t *testing.T) {
	const secret = "s3cret"
	r := gin.New()
	r.GET("/state", RendererAuthMiddleware(secret), ok)

	token, err := utils.GenerateToken(secret, utils.RendererSubject, time.Hour)
	require.NoError(t, err)
	foreign, err := utils.GenerateToken(secret, "someone-else", time.Hour)
	require.NoError(t, err)
	wrongKey, err := utils.GenerateToken("other", utils.RendererSubject, time.Hour)
	require.NoError(t, err)
	expired, err := utils.GenerateToken(secret, utils.RendererSubject, -time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/state", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := serve(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), utils.RendererSubject)

	// EventSource clients pass the token as a query parameter.
	w = serve(r, httptest.NewRequest(http.MethodGet, "/state?token="+token, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/state", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	for _, bad := range []string{foreign, wrongKey, expired, "garbage"} {
		req := httptest.NewRequest(http.MethodGet, "/state", nil)
		req.Header.Set("Authorization", "Bearer "+bad)
		assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
	}
}

func TestRendererAuthMiddleware_Disabled(t *testing.T) {
	r := gin.New()
	r.GET("/state", RendererAuthMiddleware(""), ok)
	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/state", nil)).Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(2))
	r.GET("/health", ok)

	fromIP := func(ip string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Forwarded-For", ip)
		return req
	}
	assert.Equal(t, http.StatusOK, serve(r, fromIP("10.0.0.1")).Code)
	assert.Equal(t, http.StatusOK, serve(r, fromIP("10.0.0.1")).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, fromIP("10.0.0.1")).Code)

	// Other clients keep their own budget.
	assert.Equal(t, http.StatusOK, serve(r, fromIP("10.0.0.2")).Code)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "198.51.100.4"},
		{"peer", nil, "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				c.Request.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(c))
		})
	}
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/state", func(c *gin.Context) {
		l, exists := c.Get("logger")
		require.True(t, exists)
		_, isZap := l.(*zap.Logger)
		assert.True(t, isZap)
		c.Status(http.StatusNoContent)
	})
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	req := httptest.NewRequest(http.MethodGet, "/state", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := serve(r, req)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))

	w = serve(r, httptest.NewRequest(http.MethodGet, "/state", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "req-42", entries[0].ContextMap()["requestID"])
	assert.EqualValues(t, http.StatusNoContent, entries[0].ContextMap()["status"])
	assert.Equal(t, zap.ErrorLevel, entries[2].Level)
}
