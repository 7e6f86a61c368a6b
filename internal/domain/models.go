// Package domain defines the persistence models for the gateway dispatch
// layer: users and gateway sessions, per-platform configurations, the durable
// message backlog, and the analytics aggregates rolled up from raw message
// events. These types are mapped with GORM and form the core data layer
// of the application.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Platform identifiers accepted throughout the dispatch layer.
const (
	PlatformWhatsApp = "whatsapp"
	PlatformTelegram = "telegram"
)

// GatewaySession connection statuses. Only connected sessions may refresh
// tokens on behalf of their user.
const (
	SessionConnected    = "CONNECTED"
	SessionDisconnected = "DISCONNECTED"
	SessionPairing      = "PAIRING"
)

// User is the minimal account record the gateway core needs: enough to mint
// user-scoped JWTs and to resolve inbound chat identifiers.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Email / Name / Image: optional profile claims copied into issued tokens.
//   - LastActiveAt: liveness timestamp bumped by the telegram refresh endpoint.
type User struct {
	ID           string         `json:"id"             gorm:"type:char(36);primaryKey"`
	Email        string         `json:"email"          gorm:"type:varchar(255);index"`
	Name         string         `json:"name"           gorm:"type:varchar(255)"`
	Image        string         `json:"image"          gorm:"type:varchar(512)"`
	LastActiveAt *time.Time     `json:"last_active_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-"              gorm:"index"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// GatewaySession is the persisted record of a long-running external bridge
// process (one per connected WhatsApp account). The core reads it to validate
// refresh requests and writes LastPingAt as a liveness side effect; everything
// else about the session is owned by the bridge.
type GatewaySession struct {
	ID         string         `json:"id"           gorm:"type:char(36);primaryKey"`
	UserID     string         `json:"user_id"      gorm:"type:char(36);not null;index:idx_session_user"`
	Platform   string         `json:"platform"     gorm:"type:varchar(16);not null;default:'whatsapp'"`
	Status     string         `json:"status"       gorm:"type:varchar(16);not null;default:'DISCONNECTED'"`
	PhoneID    string         `json:"phone_id"     gorm:"type:varchar(64);index"`
	LastPingAt *time.Time     `json:"last_ping_at"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-"            gorm:"index"`

	// User is the account this session acts for. Sessions are cascade-deleted
	// with their user.
	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for GatewaySession.
func (GatewaySession) TableName() string { return "gateway_sessions" }

// PlatformConfig is one tenant's chat-platform integration (a WhatsApp
// phone-number-id or a Telegram bot). The analytics job iterates active
// configs; the dispatch path resolves them through the config cache.
type PlatformConfig struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string         `json:"user_id"    gorm:"type:char(36);not null;index"`
	Platform  string         `json:"platform"   gorm:"type:varchar(16);not null"`
	PhoneID   string         `json:"phone_id"   gorm:"type:varchar(64);uniqueIndex:ux_platform_phone"`
	Model     string         `json:"model"      gorm:"type:varchar(64)"` // preferred AI model, may be empty
	Active    bool           `json:"active"     gorm:"not null;default:true;index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for PlatformConfig.
func (PlatformConfig) TableName() string { return "platform_configs" }

// PendingMessage is one inbound chat message awaiting dispatch. Rows back the
// durable queue implementation: created on webhook receipt, attempts bumped on
// retry, deleted on success or dead-lettered after exhaustion.
type PendingMessage struct {
	ID            string    `json:"id"              gorm:"type:char(36);primaryKey"`
	Platform      string    `json:"platform"        gorm:"type:varchar(16);not null;index:idx_pending_next,priority:2"`
	SenderID      string    `json:"sender_id"       gorm:"type:varchar(64);not null"` // sessionId (whatsapp) or chat id (telegram)
	Payload       string    `json:"payload"         gorm:"type:text;not null"`
	Attempts      int       `json:"attempts"        gorm:"not null;default:0"`
	EnqueuedAt    time.Time `json:"enqueued_at"     gorm:"not null"`
	NextAttemptAt time.Time `json:"next_attempt_at" gorm:"not null;index:idx_pending_next,priority:1"`
}

// TableName returns the database table name for PendingMessage.
func (PendingMessage) TableName() string { return "pending_messages" }

// DeadLetter is the final resting place of a message that exhausted its retry
// budget. Rows are append-only; nothing in the core reads them back except
// operators.
type DeadLetter struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	Platform   string    `json:"platform"    gorm:"type:varchar(16);not null"`
	SenderID   string    `json:"sender_id"   gorm:"type:varchar(64);not null"`
	Payload    string    `json:"payload"     gorm:"type:text;not null"`
	Attempts   int       `json:"attempts"    gorm:"not null"`
	Reason     string    `json:"reason"      gorm:"type:text"`
	EnqueuedAt time.Time `json:"enqueued_at" gorm:"not null"`
	FailedAt   time.Time `json:"failed_at"   gorm:"not null;index"`
}

// TableName returns the database table name for DeadLetter.
func (DeadLetter) TableName() string { return "dead_letters" }

// MessageEvent is a raw per-message fact recorded by the dispatch worker.
// Events are the input of the hourly analytics rollup and are never mutated.
type MessageEvent struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	ConfigID   string    `json:"config_id"   gorm:"type:char(36);not null;index:idx_event_config_time,priority:1"`
	Platform   string    `json:"platform"    gorm:"type:varchar(16);not null"`
	Direction  string    `json:"direction"   gorm:"type:varchar(8);not null;check:direction IN ('in','out')"`
	Status     string    `json:"status"      gorm:"type:varchar(16);not null"` // processed | failed
	LatencyMS  int64     `json:"latency_ms"  gorm:"not null;default:0"`
	OccurredAt time.Time `json:"occurred_at" gorm:"not null;index:idx_event_config_time,priority:2"`
}

// TableName returns the database table name for MessageEvent.
func (MessageEvent) TableName() string { return "message_events" }

// AnalyticsBucket is the hourly aggregate per platform configuration. The
// (ConfigID, Hour) pair is unique so re-running a rollup replaces rather than
// duplicates the bucket.
type AnalyticsBucket struct {
	ID           string    `json:"id"             gorm:"type:char(36);primaryKey"`
	ConfigID     string    `json:"config_id"      gorm:"type:char(36);not null;uniqueIndex:ux_bucket_config_hour,priority:1"`
	Hour         time.Time `json:"hour"           gorm:"not null;uniqueIndex:ux_bucket_config_hour,priority:2;index"`
	Inbound      int64     `json:"inbound"        gorm:"not null;default:0"`
	Outbound     int64     `json:"outbound"       gorm:"not null;default:0"`
	Failed       int64     `json:"failed"         gorm:"not null;default:0"`
	AvgLatencyMS int64     `json:"avg_latency_ms" gorm:"not null;default:0"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for AnalyticsBucket.
func (AnalyticsBucket) TableName() string { return "analytics_buckets" }

// PerformanceMetric is a point sample (queue depth, dispatch latency) recorded
// by the worker for dashboards. Samples share the 90-day retention window with
// analytics buckets.
type PerformanceMetric struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	Name       string    `json:"name"        gorm:"type:varchar(64);not null;index"`
	Value      float64   `json:"value"       gorm:"not null"`
	RecordedAt time.Time `json:"recorded_at" gorm:"not null;index"`
}

// TableName returns the database table name for PerformanceMetric.
func (PerformanceMetric) TableName() string { return "performance_metrics" }
