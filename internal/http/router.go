// Package httpapi wires the Gin engine: middleware stack, route registration,
// and the dependency-injection seam between transport and services.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/positonic/go-message-gateway/internal/agent"
	"github.com/positonic/go-message-gateway/internal/breaker"
	"github.com/positonic/go-message-gateway/internal/cache"
	"github.com/positonic/go-message-gateway/internal/config"
	"github.com/positonic/go-message-gateway/internal/domain"
	"github.com/positonic/go-message-gateway/internal/http/handlers"
	"github.com/positonic/go-message-gateway/internal/http/middleware"
	"github.com/positonic/go-message-gateway/internal/platform"
	"github.com/positonic/go-message-gateway/internal/queue"
	"github.com/positonic/go-message-gateway/internal/repo"
	"github.com/positonic/go-message-gateway/internal/services"
	"github.com/positonic/go-message-gateway/internal/token"
)

// sessionRepoShim adapts the repository free functions to the
// services.SessionRepo interface expected by RefreshService. This keeps
// services decoupled from the concrete repo package while reusing existing
// functions.
type sessionRepoShim struct{}

// GetSession proxies repo.GetSession.
func (sessionRepoShim) GetSession(ctx context.Context, db *gorm.DB, id string) (*domain.GatewaySession, error) {
	return repo.GetSession(ctx, db, id)
}

// GetUser proxies repo.GetUser.
func (sessionRepoShim) GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	return repo.GetUser(ctx, db, id)
}

// TouchSessionPing proxies repo.TouchSessionPing.
func (sessionRepoShim) TouchSessionPing(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	return repo.TouchSessionPing(ctx, db, id, at)
}

// TouchUserActive proxies repo.TouchUserActive.
func (sessionRepoShim) TouchUserActive(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	return repo.TouchUserActive(ctx, db, id, at)
}

// dispatchRepoShim adapts the repository free functions to the
// services.DispatchRepo interface expected by DispatchService.
type dispatchRepoShim struct{}

// FindUserBySender proxies repo.FindUserBySender.
func (dispatchRepoShim) FindUserBySender(ctx context.Context, db *gorm.DB, platform, senderID string) (string, error) {
	return repo.FindUserBySender(ctx, db, platform, senderID)
}

// GetPlatformConfig proxies repo.GetPlatformConfig.
func (dispatchRepoShim) GetPlatformConfig(ctx context.Context, db *gorm.DB, platform, phoneID string) (*domain.PlatformConfig, error) {
	return repo.GetPlatformConfig(ctx, db, platform, phoneID)
}

// RecordMessageEvent proxies repo.RecordMessageEvent.
func (dispatchRepoShim) RecordMessageEvent(ctx context.Context, db *gorm.DB, ev domain.MessageEvent) error {
	return repo.RecordMessageEvent(ctx, db, ev)
}

// RecordPerformanceMetric proxies repo.RecordPerformanceMetric.
func (dispatchRepoShim) RecordPerformanceMetric(ctx context.Context, db *gorm.DB, name string, value float64, at time.Time) error {
	return repo.RecordPerformanceMetric(ctx, db, name, value, at)
}

// analyticsRepoShim adapts the repository free functions to the
// services.AnalyticsRepo interface expected by AnalyticsService.
type analyticsRepoShim struct{}

// ActivePlatformConfigs proxies repo.ActivePlatformConfigs.
func (analyticsRepoShim) ActivePlatformConfigs(ctx context.Context, db *gorm.DB) ([]domain.PlatformConfig, error) {
	return repo.ActivePlatformConfigs(ctx, db)
}

// AggregateHour proxies repo.AggregateHour.
func (analyticsRepoShim) AggregateHour(ctx context.Context, db *gorm.DB, configID string, hour time.Time) (*domain.AnalyticsBucket, error) {
	return repo.AggregateHour(ctx, db, configID, hour)
}

// PruneOlderThan proxies repo.PruneOlderThan.
func (analyticsRepoShim) PruneOlderThan(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, int64, error) {
	return repo.PruneOlderThan(ctx, db, cutoff)
}

// Services bundles the application services built by RegisterRoutes. The
// scheduler reuses the same instances so the process holds exactly one queue,
// one cache set, and one breaker per dependency.
type Services struct {
	Refresh   *services.RefreshService
	Dispatch  *services.DispatchService
	Analytics *services.AnalyticsService
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine, constructs the application services (singleton breakers, caches,
// and queue), and returns them for reuse by the in-process scheduler.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with secret masking
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Gzip compression
//  7. Metrics
//  8. CORS and security headers
//  9. Rate limiter (webhook group only: the platform edge is the abuse
//     surface; server-to-server endpoints authenticate with shared secrets)
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) *Services {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction. Gateway secrets and bearer tokens
	// must never reach the logs.
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-Gateway-Secret"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Compress responses (diagnostics payloads are repetitive JSON)
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Gateway-Secret"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Gateway-Secret"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Swagger UI (opt-in)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: one breaker per guarded dependency, one queue,
	// one cache set per process.
	minter := token.NewMinter(cfg.JWTSecret)
	caches := cache.New(cfg)
	breakers := services.Breakers{
		AI:       breaker.New("aiProcessing", cfg.BreakerAI.Threshold, cfg.BreakerAI.Timeout, cfg.BreakerAI.ResetTimeout),
		Platform: breaker.New("whatsappApi", cfg.BreakerAPI.Threshold, cfg.BreakerAPI.Timeout, cfg.BreakerAPI.ResetTimeout),
		Database: breaker.New("database", cfg.BreakerDatabase.Threshold, cfg.BreakerDatabase.Timeout, cfg.BreakerDatabase.ResetTimeout),
	}

	var backlog queue.Queue
	if cfg.Queue.Durable {
		backlog = queue.NewDurable(db)
	} else {
		backlog = queue.NewMemory()
	}

	refreshSvc := services.NewRefreshService(db, sessionRepoShim{}, minter, cfg.WhatsAppGatewaySecret, cfg.TelegramGatewaySecret)
	dispatchSvc := services.NewDispatchService(
		db, dispatchRepoShim{}, backlog, queue.NewPolicy(cfg.Queue), caches, breakers,
		agent.NewClient(cfg.AgentURL, cfg.OutboundTimeout),
		platform.NewClient(cfg.WhatsAppAPIURL, cfg.TelegramAPIURL, cfg.OutboundTimeout),
		minter,
	)
	analyticsSvc := services.NewAnalyticsService(db, analyticsRepoShim{}, cfg.RetentionDays)

	h := handlers.New(refreshSvc, dispatchSvc, analyticsSvc, cfg.CronSecret, cfg.Queue.BatchSize)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Gateway token refresh (server-to-server, shared-secret auth)
		api.POST("/gateway/whatsapp/refresh-token", h.RefreshWhatsAppToken)
		api.POST("/gateway/telegram/refresh-token", h.RefreshTelegramToken)

		// Inbound webhooks: the only unauthenticated surface, so it gets the
		// 9) token-bucket rate limiter.
		rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
		hooks := api.Group("/webhooks", rl.Handler())
		{
			hooks.POST("/whatsapp", h.WhatsAppWebhook)
			hooks.POST("/telegram", h.TelegramWebhook)
		}
	}

	// Worker and cron surface (root-mounted: invoked by schedulers, not apps)
	r.GET("/worker/status", h.WorkerStatus)
	r.POST("/worker/process", h.WorkerProcess)
	r.POST("/cron/analytics", h.RunAnalytics)
	r.GET("/cron/analytics", h.RunAnalytics)

	return &Services{Refresh: refreshSvc, Dispatch: dispatchSvc, Analytics: analyticsSvc}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
