// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the analytics queries: raw message-event
// recording, the idempotent hourly rollup, and retention pruning.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/positonic/go-message-gateway/internal/domain"
)

// RecordMessageEvent inserts one raw event row. Events feed the hourly rollup
// and are append-only.
func RecordMessageEvent(ctx context.Context, db *gorm.DB, ev domain.MessageEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	return db.WithContext(ctx).Create(&ev).Error
}

// ActivePlatformConfigs returns every active configuration. The aggregation
// job iterates these independently.
func ActivePlatformConfigs(ctx context.Context, db *gorm.DB) ([]domain.PlatformConfig, error) {
	var out []domain.PlatformConfig
	err := db.WithContext(ctx).Where("active = ?", true).Order("created_at ASC").Find(&out).Error
	return out, err
}

// AggregateHour recomputes the analytics bucket for (configID, hour) from the
// raw events in [hour, hour+1h). The operation is idempotent: the existing
// bucket is replaced inside a transaction, so re-running for an already
// aggregated hour yields identical stored totals rather than double counts.
func AggregateHour(ctx context.Context, db *gorm.DB, configID string, hour time.Time) (*domain.AnalyticsBucket, error) {
	hour = hour.Truncate(time.Hour)
	end := hour.Add(time.Hour)

	var bucket *domain.AnalyticsBucket
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row struct {
			Inbound    int64
			Outbound   int64
			Failed     int64
			AvgLatency float64
		}
		err := tx.Model(&domain.MessageEvent{}).
			Select(
				"COALESCE(SUM(CASE WHEN direction = 'in' THEN 1 ELSE 0 END), 0) AS inbound, "+
					"COALESCE(SUM(CASE WHEN direction = 'out' THEN 1 ELSE 0 END), 0) AS outbound, "+
					"COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0) AS failed, "+
					"COALESCE(AVG(latency_ms), 0) AS avg_latency").
			Where("config_id = ? AND occurred_at >= ? AND occurred_at < ?", configID, hour, end).
			Scan(&row).Error
		if err != nil {
			return err
		}

		// Delete-then-recompute keeps the (config, hour) bucket unique.
		if err := tx.Where("config_id = ? AND hour = ?", configID, hour).
			Delete(&domain.AnalyticsBucket{}).Error; err != nil {
			return err
		}

		b := domain.AnalyticsBucket{
			ID:           uuid.NewString(),
			ConfigID:     configID,
			Hour:         hour,
			Inbound:      row.Inbound,
			Outbound:     row.Outbound,
			Failed:       row.Failed,
			AvgLatencyMS: int64(row.AvgLatency),
		}
		if err := tx.Create(&b).Error; err != nil {
			return err
		}
		bucket = &b
		return nil
	})
	return bucket, err
}

// GetBucket fetches the bucket for (configID, hour), if present.
func GetBucket(ctx context.Context, db *gorm.DB, configID string, hour time.Time) (*domain.AnalyticsBucket, error) {
	var b domain.AnalyticsBucket
	err := db.WithContext(ctx).
		Where("config_id = ? AND hour = ?", configID, hour.Truncate(time.Hour)).
		First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// RecordPerformanceMetric inserts one point sample.
func RecordPerformanceMetric(ctx context.Context, db *gorm.DB, name string, value float64, at time.Time) error {
	m := domain.PerformanceMetric{
		ID:         uuid.NewString(),
		Name:       name,
		Value:      value,
		RecordedAt: at,
	}
	return db.WithContext(ctx).Create(&m).Error
}

// PruneOlderThan deletes analytics buckets and performance metrics strictly
// older than cutoff. Rows at exactly the cutoff are retained. Returns the
// deleted row counts (buckets, metrics).
func PruneOlderThan(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, int64, error) {
	res := db.WithContext(ctx).Where("hour < ?", cutoff).Delete(&domain.AnalyticsBucket{})
	if res.Error != nil {
		return 0, 0, res.Error
	}
	buckets := res.RowsAffected

	res = db.WithContext(ctx).Where("recorded_at < ?", cutoff).Delete(&domain.PerformanceMetric{})
	if res.Error != nil {
		return buckets, 0, res.Error
	}
	return buckets, res.RowsAffected, nil
}
