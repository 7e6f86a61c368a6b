package httpapi

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/positonic/go-message-gateway/internal/config"
	"github.com/positonic/go-message-gateway/internal/repo"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "router.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// testConfig returns a minimal but valid wiring config.
func testConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		RateRPS:     100,
		RateBurst:   10,
		CORS:        config.CORSConfig{AllowedOrigins: nil}, // triggers AllowAllOrigins branch
		Security:    config.SecurityConfig{EnableHSTS: false, HSTSMaxAge: 0},
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
		JWTSecret:   "test-secret",
		BreakerAPI:  config.BreakerConfig{Threshold: 5, Timeout: time.Minute, ResetTimeout: 30 * time.Second},
		BreakerAI:   config.BreakerConfig{Threshold: 3, Timeout: 30 * time.Second, ResetTimeout: 30 * time.Second},
		BreakerDatabase: config.BreakerConfig{
			Threshold: 5, Timeout: time.Minute, ResetTimeout: 30 * time.Second,
		},
		Queue: config.QueueConfig{
			MaxAttempts: 5,
			BackoffMin:  time.Second,
			BackoffMax:  5 * time.Minute,
			BatchSize:   25,
			Durable:     true,
		},
		UserCache:         config.CacheConfig{Capacity: 100, TTL: time.Minute},
		ConfigCache:       config.CacheConfig{Capacity: 100, TTL: time.Minute},
		ModelCache:        config.CacheConfig{Capacity: 100, TTL: time.Minute},
		ConversationCache: config.CacheConfig{Capacity: 100, TTL: time.Minute},
		RetentionDays:     90,
		OutboundTimeout:   5 * time.Second,
		AgentURL:          "http://agent.invalid",
		WhatsAppAPIURL:    "http://whatsapp.invalid",
		TelegramAPIURL:    "http://telegram.invalid",
	}
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	svcs := RegisterRoutes(r, newTestDB(t), testConfig())
	if svcs == nil || svcs.Refresh == nil || svcs.Dispatch == nil || svcs.Analytics == nil {
		t.Fatalf("expected all services wired, got %+v", svcs)
	}

	// /health works
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept-Encoding", "identity")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (POST /health)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	cfg := testConfig()
	cfg.CORS.AllowedOrigins = []string{"http://example.com"}
	RegisterRoutes(r, newTestDB(t), cfg)

	// Any request runs through CORS middleware; header should reflect origin.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected origin echo, got %q", got)
	}
}

func TestRegisterRoutes_WorkerAndWebhookEndpointsWired(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, newTestDB(t), testConfig())

	// Worker status reads real queue stats from the migrated DB.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/worker/status", nil)
	req.Header.Set("Accept-Encoding", "identity")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /worker/status = %d body=%s", w.Code, w.Body.String())
	}

	// Webhook with a bad body hits the handler (400), not a 404.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/whatsapp", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("POST webhook without body = %d", w.Code)
	}

	// Refresh endpoint is mounted under the base path.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/gateway/whatsapp/refresh-token", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("POST refresh without body = %d", w.Code)
	}
}

func TestRegisterRoutes_SwaggerBehindFlag(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	RegisterRoutes(r, newTestDB(t), testConfig())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("swagger should be off by default, got %d", w.Code)
	}

	r = gin.New()
	cfg := testConfig()
	cfg.SwaggerEnabled = true
	RegisterRoutes(r, newTestDB(t), cfg)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("swagger should serve when enabled, got %d", w.Code)
	}
}
