// Package services – AnalyticsService
//
// This file implements the scheduled analytics job: an idempotent hourly
// rollup of raw message events into per-config buckets, followed by retention
// pruning of aggregates older than the configured window. Each active config
// is aggregated independently so one bad config cannot starve the rest; its
// failure is reported in the run result instead of aborting the job.
package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/positonic/go-message-gateway/internal/domain"
)

// AnalyticsRepo defines the repository contract required by AnalyticsService.
type AnalyticsRepo interface {
	// ActivePlatformConfigs returns every active configuration.
	ActivePlatformConfigs(ctx context.Context, db *gorm.DB) ([]domain.PlatformConfig, error)

	// AggregateHour recomputes the bucket for (configID, hour) idempotently.
	AggregateHour(ctx context.Context, db *gorm.DB, configID string, hour time.Time) (*domain.AnalyticsBucket, error)

	// PruneOlderThan deletes aggregates strictly older than cutoff and returns
	// the deleted row counts (buckets, metrics).
	PruneOlderThan(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, int64, error)
}

// ConfigRunResult reports the rollup outcome for one platform config.
type ConfigRunResult struct {
	ConfigID string `json:"configId"`
	Status   string `json:"status"` // "ok" | "error"
	Error    string `json:"error,omitempty"`
	Inbound  int64  `json:"inbound"`
	Outbound int64  `json:"outbound"`
	Failed   int64  `json:"failed"`
}

// RunReport summarizes one analytics run.
type RunReport struct {
	Hour          time.Time         `json:"hour"`
	Configs       []ConfigRunResult `json:"configs"`
	Succeeded     int               `json:"succeeded"`
	Failed        int               `json:"failed"`
	PrunedBuckets int64             `json:"prunedBuckets"`
	PrunedMetrics int64             `json:"prunedMetrics"`
}

// AnalyticsService runs the hourly rollup and retention pruning.
type AnalyticsService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the analytics repository used by this service.
	Repo AnalyticsRepo
	// RetentionDays is the aggregate retention window.
	RetentionDays int

	now func() time.Time
}

// NewAnalyticsService constructs an AnalyticsService.
func NewAnalyticsService(db *gorm.DB, r AnalyticsRepo, retentionDays int) *AnalyticsService {
	return &AnalyticsService{
		DB:            db,
		Repo:          r,
		RetentionDays: retentionDays,
		now:           time.Now,
	}
}

// WithClock overrides the service clock; used by tests.
func (s *AnalyticsService) WithClock(now func() time.Time) *AnalyticsService {
	s.now = now
	return s
}

// Run aggregates the previous (completed) hour for every active config and
// then prunes aggregates past the retention window. The per-config loop is
// failure-isolated; the returned error covers only the surrounding steps.
func (s *AnalyticsService) Run(ctx context.Context) (*RunReport, error) {
	hour := s.now().UTC().Truncate(time.Hour).Add(-time.Hour)

	configs, err := s.Repo.ActivePlatformConfigs(ctx, s.DB)
	if err != nil {
		return nil, err
	}

	report := &RunReport{Hour: hour, Configs: make([]ConfigRunResult, 0, len(configs))}
	for _, cfg := range configs {
		bucket, err := s.Repo.AggregateHour(ctx, s.DB, cfg.ID, hour)
		if err != nil {
			report.Failed++
			report.Configs = append(report.Configs, ConfigRunResult{
				ConfigID: cfg.ID,
				Status:   "error",
				Error:    err.Error(),
			})
			continue
		}
		report.Succeeded++
		report.Configs = append(report.Configs, ConfigRunResult{
			ConfigID: cfg.ID,
			Status:   "ok",
			Inbound:  bucket.Inbound,
			Outbound: bucket.Outbound,
			Failed:   bucket.Failed,
		})
	}

	cutoff := s.now().UTC().AddDate(0, 0, -s.RetentionDays)
	buckets, metrics, err := s.Repo.PruneOlderThan(ctx, s.DB, cutoff)
	if err != nil {
		return report, err
	}
	report.PrunedBuckets = buckets
	report.PrunedMetrics = metrics
	return report, nil
}
