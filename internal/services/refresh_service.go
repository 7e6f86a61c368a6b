// Package services – RefreshService
//
// This file implements the token refresh flow for the external bridge
// processes. A bridge authenticates with its platform's shared secret
// (X-Gateway-Secret) and receives a fresh short-lived JWT scoped to the user
// its session or chat belongs to. Secret comparison happens before any
// database access so an unauthenticated caller learns nothing about which
// sessions exist, and it is constant-time so the secret cannot be probed
// byte by byte.
//
// Each successful refresh also records a liveness timestamp (session ping for
// WhatsApp, user activity for Telegram) as a side effect.
package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/positonic/go-message-gateway/internal/domain"
	"github.com/positonic/go-message-gateway/internal/token"
)

// SessionRepo defines the repository contract required by RefreshService.
type SessionRepo interface {
	// GetSession fetches a gateway session by ID with its user preloaded.
	GetSession(ctx context.Context, db *gorm.DB, id string) (*domain.GatewaySession, error)

	// GetUser fetches a user by ID.
	GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error)

	// TouchSessionPing updates a session's liveness timestamp.
	TouchSessionPing(ctx context.Context, db *gorm.DB, id string, at time.Time) error

	// TouchUserActive updates a user's liveness timestamp.
	TouchUserActive(ctx context.Context, db *gorm.DB, id string, at time.Time) error
}

// Minter is the token issuance contract required by RefreshService.
type Minter interface {
	Issue(user token.User, opts token.Options) (string, error)
}

// RefreshResult is the payload returned to the bridge on success.
type RefreshResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	UserID    string    `json:"userId"`
}

// RefreshService issues fresh gateway JWTs to authenticated bridges.
type RefreshService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the session/user repository used by this service.
	Repo SessionRepo
	// Tokens mints the JWTs handed back to bridges.
	Tokens Minter

	// WhatsAppSecret and TelegramSecret are the per-platform shared secrets
	// expected in X-Gateway-Secret. Empty means unconfigured: every request
	// for that platform fails with ErrSecretUnconfigured.
	WhatsAppSecret string
	TelegramSecret string

	// TokenTTL is the lifetime of issued gateway tokens.
	TokenTTL time.Duration

	now func() time.Time
}

// NewRefreshService constructs a RefreshService with a one-hour token TTL.
func NewRefreshService(db *gorm.DB, r SessionRepo, m Minter, whatsappSecret, telegramSecret string) *RefreshService {
	return &RefreshService{
		DB:             db,
		Repo:           r,
		Tokens:         m,
		WhatsAppSecret: whatsappSecret,
		TelegramSecret: telegramSecret,
		TokenTTL:       time.Hour,
		now:            time.Now,
	}
}

// WithClock overrides the service clock; used by tests.
func (s *RefreshService) WithClock(now func() time.Time) *RefreshService {
	s.now = now
	return s
}

// RefreshWhatsApp validates the shared secret, resolves the session to its
// user, mints a gateway-whatsapp token, and bumps the session's ping
// timestamp.
func (s *RefreshService) RefreshWhatsApp(ctx context.Context, providedSecret, sessionID string) (*RefreshResult, error) {
	if err := checkSecret(s.WhatsAppSecret, providedSecret); err != nil {
		return nil, err
	}

	sess, err := s.Repo.GetSession(ctx, s.DB, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if sess.Status != domain.SessionConnected {
		return nil, ErrSessionNotConnected
	}

	result, err := s.issue(sess.User, token.TypeGatewayWhatsApp)
	if err != nil {
		return nil, err
	}

	// Liveness bookkeeping; a refresh proves the bridge is alive.
	if err := s.Repo.TouchSessionPing(ctx, s.DB, sess.ID, s.now().UTC()); err != nil {
		return nil, err
	}
	return result, nil
}

// RefreshTelegram validates the shared secret, loads the user directly (the
// Telegram bridge is keyed by user, not session), mints a gateway-telegram
// token, and bumps the user's activity timestamp.
func (s *RefreshService) RefreshTelegram(ctx context.Context, providedSecret, userID string) (*RefreshResult, error) {
	if err := checkSecret(s.TelegramSecret, providedSecret); err != nil {
		return nil, err
	}

	user, err := s.Repo.GetUser(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	result, err := s.issue(*user, token.TypeGatewayTelegram)
	if err != nil {
		return nil, err
	}

	if err := s.Repo.TouchUserActive(ctx, s.DB, user.ID, s.now().UTC()); err != nil {
		return nil, err
	}
	return result, nil
}

// issue mints a token of the given type for user.
func (s *RefreshService) issue(user domain.User, tokenType string) (*RefreshResult, error) {
	minutes := int(s.TokenTTL.Minutes())
	raw, err := s.Tokens.Issue(token.User{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Image: user.Image,
	}, token.Options{TokenType: tokenType, ExpiryMinutes: minutes})
	if err != nil {
		return nil, err
	}
	return &RefreshResult{
		Token:     raw,
		ExpiresAt: s.now().UTC().Add(s.TokenTTL),
		UserID:    user.ID,
	}, nil
}

// checkSecret compares the provided secret to the expected one in constant
// time. An unconfigured secret rejects everything.
func checkSecret(expected, provided string) error {
	if expected == "" {
		return ErrSecretUnconfigured
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) != 1 {
		return ErrBadSecret
	}
	return nil
}
