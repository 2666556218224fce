package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"care-hub/backend/config"
	"care-hub/backend/pkg/jwt"
	"care-hub/backend/pkg/redis"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSpace = "11111111-1111-1111-1111-111111111111"

func newJWT() *jwt.Manager {
	return jwt.NewManager(&config.AuthConfig{
		JWTSecret:      "test-secret-at-least-16",
		AccessTokenTTL: 15 * time.Minute,
	})
}

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return redis.NewClientWithRedis(rdb, zap.NewNop()), mr
}

// echoActor 回写中间件注入的上下文
func echoActor(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"user_id":       c.GetString("user_id"),
		"role":          c.GetString("role"),
		"care_space_id": c.GetString("care_space_id"),
	})
}

func TestJWTAuth(t *testing.T) {
	mgr := newJWT()
	rdb, _ := newRedis(t)

	valid, _ := mgr.GenerateAccessToken("user-1", "coordinator", testSpace)
	noSpace, _ := mgr.GenerateAccessToken("user-1", "coordinator", "")
	expired, _ := mgr.GenerateAccessTokenWithTTL("user-1", "coordinator", testSpace, -time.Minute)

	revoked, _ := mgr.GenerateAccessToken("user-2", "carer", testSpace)
	claims, err := mgr.ParseToken(revoked)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := rdb.BlacklistToken(context.Background(), claims.ID, time.Minute); err != nil {
		t.Fatalf("blacklist: %v", err)
	}

	r := gin.New()
	r.GET("/me", JWTAuth(mgr, rdb), echoActor)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"Valid", "Bearer " + valid, http.StatusOK},
		{"MissingHeader", "", http.StatusUnauthorized},
		{"BadScheme", "Basic " + valid, http.StatusUnauthorized},
		{"Garbage", "Bearer not-a-token", http.StatusUnauthorized},
		{"Expired", "Bearer " + expired, http.StatusUnauthorized},
		{"NoCareSpace", "Bearer " + noSpace, http.StatusUnauthorized},
		{"Blacklisted", "Bearer " + revoked, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestJWTAuth_NoRedis(t *testing.T) {
	mgr := newJWT()
	token, _ := mgr.GenerateAccessToken("user-1", "carer", testSpace)

	r := gin.New()
	r.GET("/me", JWTAuth(mgr, nil), echoActor)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(testSpace)) {
		t.Errorf("care_space_id not injected: %s", w.Body.String())
	}
}

func TestRoleAuth(t *testing.T) {
	tests := []struct {
		role string
		want int
	}{
		{"coordinator", http.StatusOK},
		{"admin", http.StatusOK},
		{"carer", http.StatusForbidden},
		{"", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			r := gin.New()
			r.Use(func(c *gin.Context) {
				if tt.role != "" {
					c.Set("role", tt.role)
				}
				c.Next()
			})
			r.POST("/approve", RoleAuth("coordinator", "admin"), func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest("POST", "/approve", nil))
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	rdb, _ := newRedis(t)

	r := gin.New()
	r.GET("/ping", RateLimit(rdb, 2, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/ping", nil))
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("unexpected codes: %v", codes)
	}
}

func TestRateLimit_PerMember(t *testing.T) {
	rdb, _ := newRedis(t)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ctxUserID, c.GetHeader("X-Member"))
		c.Next()
	})
	r.GET("/ping", RateLimit(rdb, 1, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(member string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/ping", nil)
		req.Header.Set("X-Member", member)
		r.ServeHTTP(w, req)
		return w
	}

	if w := do("m-1"); w.Code != http.StatusOK {
		t.Fatalf("m-1 first call: %d", w.Code)
	}
	w := do("m-1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("m-1 second call should be limited, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", w.Header().Get("Retry-After"))
	}
	if w := do("m-2"); w.Code != http.StatusOK {
		t.Errorf("m-2 has its own budget, got %d", w.Code)
	}
}

func TestRateLimit_RedisDown(t *testing.T) {
	rdb, mr := newRedis(t)
	mr.Close()

	r := gin.New()
	r.GET("/ping", RateLimit(rdb, 1, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/ping", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected fail-open 200, got %d", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(requestIDKey)) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	r.ServeHTTP(w, req)
	if w.Header().Get("X-Request-ID") != "abc-123" || w.Body.String() != "abc-123" {
		t.Errorf("incoming id not kept: %q", w.Header().Get("X-Request-ID"))
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", string(bytes.Repeat([]byte("x"), requestIDMaxLen+1)))
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); len(got) != 36 {
		t.Errorf("oversized id should be replaced by uuid, got %q", got)
	}
}

func TestValidRequestID(t *testing.T) {
	tests := []struct {
		rid  string
		want bool
	}{
		{"abc-123", true},
		{"", false},
		{"has space", false},
		{"line\nbreak", false},
		{"中文", false},
		{string(bytes.Repeat([]byte("a"), requestIDMaxLen)), true},
	}
	for _, tt := range tests {
		if got := validRequestID(tt.rid); got != tt.want {
			t.Errorf("validRequestID(%q) = %v, want %v", tt.rid, got, tt.want)
		}
	}
}

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(8))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/", bytes.NewReader([]byte(`{"a":"0123456789"}`))))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/", bytes.NewReader([]byte(`{}`))))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Header().Get("Cache-Control") != "no-store" || w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("missing headers: %v", w.Header())
	}
}

func TestCORS_Preflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:5173/"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Errorf("origin not allowed: %q", w.Header().Get("Access-Control-Allow-Origin"))
	}
	if w.Header().Get("Access-Control-Expose-Headers") != corsExposeHeaders {
		t.Errorf("export filename header not exposed: %q", w.Header().Get("Access-Control-Expose-Headers"))
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	r.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Errorf("unknown origin should not be allowed")
	}
}
