package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"creatorhub/config"
	"creatorhub/models"
	"creatorhub/utils"
)

func init() { gin.SetMode(gin.TestMode) }

func newAuthRouter(store utils.RevocationStore, roles ...string) *gin.Engine {
	r := gin.New()
	chain := []gin.HandlerFunc{JWTAuthMiddleware(store)}
	if len(roles) > 0 {
		chain = append(chain, RequireRole(roles...))
	}
	chain = append(chain, func(c *gin.Context) {
		actor, _ := ActorFrom(c)
		c.JSON(http.StatusOK, actor)
	})
	r.GET("/me", chain...)
	return r
}

func doGet(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuthMiddleware(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"
	t.Cleanup(func() { config.AppConfig.JWTSecret = "" })

	store := utils.NewMemoryRevocationStore()
	r := newAuthRouter(store)

	good, _ := utils.GenerateToken("c1", models.RoleCreator, time.Hour)
	if w := doGet(r, good); w.Code != http.StatusOK {
		t.Fatalf("valid token: %d %s", w.Code, w.Body)
	}
	if w := doGet(r, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("missing token: %d", w.Code)
	}
	odd, _ := utils.GenerateToken("c1", "superuser", time.Hour)
	if w := doGet(r, odd); w.Code != http.StatusUnauthorized {
		t.Errorf("unknown role: %d", w.Code)
	}

	_ = store.Revoke(context.Background(), utils.HashToken(good), time.Hour)
	if w := doGet(r, good); w.Code != http.StatusUnauthorized {
		t.Errorf("revoked token: %d", w.Code)
	}
}

func TestRequireRole(t *testing.T) {
	config.AppConfig.JWTSecret = "test-secret"
	t.Cleanup(func() { config.AppConfig.JWTSecret = "" })

	r := newAuthRouter(nil, models.RoleAdmin)
	client, _ := utils.GenerateToken("u1", models.RoleClient, time.Hour)
	admin, _ := utils.GenerateToken("ops", models.RoleAdmin, time.Hour)

	if w := doGet(r, client); w.Code != http.StatusForbidden {
		t.Errorf("client on admin route: %d", w.Code)
	}
	if w := doGet(r, admin); w.Code != http.StatusOK {
		t.Errorf("admin: %d", w.Code)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(2))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := []int{}
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusNoContent || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}

	// another client has its own bucket
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Real-IP", "198.51.100.1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("second client: %d", w.Code)
	}
}

func TestRequestLogger(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger(zap.NewNop()), utils.ErrorHandler())
	var scoped bool
	r.GET("/ok", func(c *gin.Context) {
		_, scoped = c.Get(utils.ContextLoggerKey)
		c.Status(http.StatusNoContent)
	})
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("X-Request-ID", "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if !scoped {
		t.Error("request logger not set")
	}
	if got := w.Header().Get("X-Request-ID"); got != "req-1" {
		t.Errorf("request id = %q", got)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("panic: %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("generated request id missing")
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": " 203.0.113.7 , 10.0.0.1"}, "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.1"}, "198.51.100.1"},
		{"peer", nil, "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				c.Request.Header.Set(k, v)
			}
			if got := getClientIP(c); got != tt.want {
				t.Errorf("getClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
