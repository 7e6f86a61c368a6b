// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides lookups and liveness updates for users
// and gateway sessions, used by the token refresh endpoints and the dispatch
// worker's identity resolution.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/positonic/go-message-gateway/internal/domain"
)

// GetSession fetches a gateway session by ID with its user preloaded.
func GetSession(ctx context.Context, db *gorm.DB, id string) (*domain.GatewaySession, error) {
	var s domain.GatewaySession
	if err := db.WithContext(ctx).Preload("User").Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// GetUser fetches a user by ID.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// FindUserBySender resolves a platform sender identifier to a user id by
// walking session (whatsapp) or config (telegram) records. Used to backfill
// the user-mapping cache on a miss.
func FindUserBySender(ctx context.Context, db *gorm.DB, platform, senderID string) (string, error) {
	if platform == domain.PlatformWhatsApp {
		var s domain.GatewaySession
		err := db.WithContext(ctx).
			Where("id = ? OR phone_id = ?", senderID, senderID).
			First(&s).Error
		if err != nil {
			return "", err
		}
		return s.UserID, nil
	}

	var cfg domain.PlatformConfig
	err := db.WithContext(ctx).
		Where("platform = ? AND phone_id = ?", platform, senderID).
		First(&cfg).Error
	if err != nil {
		return "", err
	}
	return cfg.UserID, nil
}

// GetPlatformConfig fetches the active configuration for a platform
// identifier (phone-number-id or bot id).
func GetPlatformConfig(ctx context.Context, db *gorm.DB, platform, phoneID string) (*domain.PlatformConfig, error) {
	var cfg domain.PlatformConfig
	err := db.WithContext(ctx).
		Where("platform = ? AND phone_id = ? AND active = ?", platform, phoneID, true).
		First(&cfg).Error
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// TouchSessionPing updates a session's liveness timestamp. Single-row update,
// intentionally outside any larger transaction.
func TouchSessionPing(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.GatewaySession{}).
		Where("id = ?", id).
		Update("last_ping_at", at).Error
}

// TouchUserActive updates a user's liveness timestamp.
func TouchUserActive(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Update("last_active_at", at).Error
}
