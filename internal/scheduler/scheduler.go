// Package scheduler runs the in-process background jobs: periodic backlog
// drains and the hourly analytics rollup. Both jobs are also reachable over
// HTTP (worker/cron endpoints) for externally-driven deployments; the
// scheduler exists so a single-process install needs no outside trigger.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/positonic/go-message-gateway/internal/services"
)

// drainSpec is how often the backlog is drained between webhook bursts.
const drainSpec = "@every 30s"

// jobTimeout bounds a single scheduled run.
const jobTimeout = 5 * time.Minute

// Drainer processes due messages from the backlog.
type Drainer interface {
	Drain(ctx context.Context, batchSize int) (services.DrainResult, error)
}

// AnalyticsRunner performs the hourly rollup and retention pruning.
type AnalyticsRunner interface {
	Run(ctx context.Context) (*services.RunReport, error)
}

// Scheduler wraps a cron runner with the gateway's two background jobs.
type Scheduler struct {
	cron      *cron.Cron
	dispatch  Drainer
	analytics AnalyticsRunner
	batch     int
}

// New constructs a Scheduler draining batch messages per pass.
func New(dispatch Drainer, analytics AnalyticsRunner, batch int) *Scheduler {
	if batch < 1 {
		batch = 25
	}
	return &Scheduler{
		cron:      cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		dispatch:  dispatch,
		analytics: analytics,
		batch:     batch,
	}
}

// Start registers both jobs and starts the cron runner. analyticsSpec is a
// robfig/cron expression (e.g. "@hourly"). Returns an error if a spec does
// not parse; nothing is started in that case.
func (s *Scheduler) Start(analyticsSpec string) error {
	if _, err := s.cron.AddFunc(drainSpec, s.runDrain); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(analyticsSpec, s.runAnalytics); err != nil {
		return err
	}
	s.cron.Start()
	log.Info().Str("analytics_schedule", analyticsSpec).Str("drain_schedule", drainSpec).Msg("scheduler started")
	return nil
}

// Stop halts the cron runner and returns a context that is done once all
// in-flight jobs have finished. Callers should wait on it during shutdown.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// runDrain is the scheduled backlog drain pass.
func (s *Scheduler) runDrain() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	res, err := s.dispatch.Drain(ctx, s.batch)
	if err != nil {
		log.Error().Err(err).Msg("scheduled drain failed")
		return
	}
	if res.Dequeued == 0 {
		return // idle pass, keep the logs quiet
	}
	log.Info().
		Int("dequeued", res.Dequeued).
		Int("processed", res.Processed).
		Int("failed", res.Failed).
		Int("requeued", res.Requeued).
		Int("dead_lettered", res.DeadLettered).
		Msg("scheduled drain completed")
}

// runAnalytics is the scheduled hourly rollup.
func (s *Scheduler) runAnalytics() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	report, err := s.analytics.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("scheduled analytics run failed")
		return
	}
	evt := log.Info()
	if report.Failed > 0 {
		evt = log.Warn()
	}
	evt.
		Time("hour", report.Hour).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int64("pruned_buckets", report.PrunedBuckets).
		Int64("pruned_metrics", report.PrunedMetrics).
		Msg("scheduled analytics run completed")
}
