// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, gateway shared secrets,
// JWT signing, circuit-breaker tuning, queue retry policy, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-message-gateway")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// BreakerConfig tunes one circuit breaker instance.
type BreakerConfig struct {
	Threshold    int           // consecutive failures before the breaker opens
	Timeout      time.Duration // how long OPEN blocks new attempts before probing
	ResetTimeout time.Duration // delay before the scheduled HALF_OPEN flip
}

// QueueConfig tunes message retry behavior for the dispatch queue.
type QueueConfig struct {
	MaxAttempts int           // retries before a message is dead-lettered
	BackoffMin  time.Duration // first retry delay
	BackoffMax  time.Duration // retry delay cap
	BatchSize   int           // default worker drain batch size
	Durable     bool          // use the database-backed queue (multi-instance safe)
}

// CacheConfig bounds one named cache.
type CacheConfig struct {
	Capacity int
	TTL      time.Duration
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath string // SQLite path

	// Secrets (all injected; empty means "unconfigured" and fails at first use)
	JWTSecret             string // signing secret for issued JWTs
	WhatsAppGatewaySecret string // X-Gateway-Secret expected from the WhatsApp bridge
	TelegramGatewaySecret string // X-Gateway-Secret expected from the Telegram bridge
	CronSecret            string // optional bearer secret for /cron endpoints

	// Outbound collaborators
	AgentURL        string        // AI agent backend base URL
	WhatsAppAPIURL  string        // WhatsApp Cloud API base URL
	TelegramAPIURL  string        // Telegram Bot API base URL
	OutboundTimeout time.Duration // HTTP client timeout for all outbound calls

	// Reliability
	BreakerAPI      BreakerConfig // guards outbound chat-platform calls
	BreakerAI       BreakerConfig // guards AI agent calls
	BreakerDatabase BreakerConfig // guards persistence writes on the hot path
	Queue           QueueConfig

	// Caches
	UserCache         CacheConfig
	ConfigCache       CacheConfig
	ModelCache        CacheConfig
	ConversationCache CacheConfig

	// Analytics
	RetentionDays int    // analytics/metric retention window
	CronSchedule  string // robfig/cron spec for the in-process analytics schedule

	// Rate limiting (webhook edge)
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath: getenv("DB_PATH", "gateway.db"),

		// Secrets
		JWTSecret:             getenv("JWT_SECRET", ""),
		WhatsAppGatewaySecret: getenv("WHATSAPP_GATEWAY_SECRET", ""),
		TelegramGatewaySecret: getenv("TELEGRAM_GATEWAY_SECRET", ""),
		CronSecret:            getenv("CRON_SECRET", ""),

		// Outbound collaborators
		AgentURL:        getenv("AGENT_URL", "http://localhost:9000"),
		WhatsAppAPIURL:  getenv("WHATSAPP_API_URL", "https://graph.facebook.com/v19.0"),
		TelegramAPIURL:  getenv("TELEGRAM_API_URL", "https://api.telegram.org"),
		OutboundTimeout: getdur("OUTBOUND_TIMEOUT", 15*time.Second),

		// Reliability. AI calls trip faster and probe sooner than plain I/O.
		BreakerAPI: BreakerConfig{
			Threshold:    getint("BREAKER_API_THRESHOLD", 5),
			Timeout:      getdur("BREAKER_API_TIMEOUT", 60*time.Second),
			ResetTimeout: getdur("BREAKER_API_RESET_TIMEOUT", 30*time.Second),
		},
		BreakerAI: BreakerConfig{
			Threshold:    getint("BREAKER_AI_THRESHOLD", 3),
			Timeout:      getdur("BREAKER_AI_TIMEOUT", 30*time.Second),
			ResetTimeout: getdur("BREAKER_AI_RESET_TIMEOUT", 30*time.Second),
		},
		BreakerDatabase: BreakerConfig{
			Threshold:    getint("BREAKER_DB_THRESHOLD", 5),
			Timeout:      getdur("BREAKER_DB_TIMEOUT", 60*time.Second),
			ResetTimeout: getdur("BREAKER_DB_RESET_TIMEOUT", 30*time.Second),
		},
		Queue: QueueConfig{
			MaxAttempts: getint("QUEUE_MAX_ATTEMPTS", 5),
			BackoffMin:  getdur("QUEUE_BACKOFF_MIN", time.Second),
			BackoffMax:  getdur("QUEUE_BACKOFF_MAX", 5*time.Minute),
			BatchSize:   getint("QUEUE_BATCH_SIZE", 25),
			Durable:     getbool("QUEUE_DURABLE", true),
		},

		// Caches
		UserCache:         CacheConfig{Capacity: getint("USER_CACHE_SIZE", 5000), TTL: getdur("USER_CACHE_TTL", 30*time.Minute)},
		ConfigCache:       CacheConfig{Capacity: getint("CONFIG_CACHE_SIZE", 1000), TTL: getdur("CONFIG_CACHE_TTL", 10*time.Minute)},
		ModelCache:        CacheConfig{Capacity: getint("MODEL_CACHE_SIZE", 1000), TTL: getdur("MODEL_CACHE_TTL", time.Hour)},
		ConversationCache: CacheConfig{Capacity: getint("CONVERSATION_CACHE_SIZE", 10000), TTL: getdur("CONVERSATION_CACHE_TTL", 15*time.Minute)},

		// Analytics
		RetentionDays: getint("RETENTION_DAYS", 90),
		CronSchedule:  getenv("ANALYTICS_CRON", "@hourly"),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 20.0),
		RateBurst: getint("RATE_BURST", 40),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-message-gateway"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.OutboundTimeout <= 0 {
		return cfg, errors.New("OUTBOUND_TIMEOUT must be > 0")
	}
	for _, b := range []BreakerConfig{cfg.BreakerAPI, cfg.BreakerAI, cfg.BreakerDatabase} {
		if b.Threshold < 1 {
			return cfg, errors.New("breaker thresholds must be >= 1")
		}
		if b.Timeout <= 0 || b.ResetTimeout <= 0 {
			return cfg, errors.New("breaker timeouts must be positive durations")
		}
	}
	if cfg.Queue.MaxAttempts < 1 {
		return cfg, errors.New("QUEUE_MAX_ATTEMPTS must be >= 1")
	}
	if cfg.Queue.BackoffMin <= 0 || cfg.Queue.BackoffMax < cfg.Queue.BackoffMin {
		return cfg, errors.New("queue backoff bounds must satisfy 0 < min <= max")
	}
	if cfg.Queue.BatchSize < 1 {
		return cfg, errors.New("QUEUE_BATCH_SIZE must be >= 1")
	}
	for _, cc := range []CacheConfig{cfg.UserCache, cfg.ConfigCache, cfg.ModelCache, cfg.ConversationCache} {
		if cc.Capacity < 1 {
			return cfg, errors.New("cache capacities must be >= 1")
		}
		if cc.TTL <= 0 {
			return cfg, errors.New("cache TTLs must be positive durations")
		}
	}
	if cfg.RetentionDays < 1 {
		return cfg, errors.New("RETENTION_DAYS must be >= 1")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
