// Package services – DispatchService
//
// This file implements the inbound message pipeline: webhook handlers enqueue
// raw messages, and the worker drains the queue in batches. Processing one
// message means resolving the sender to a user and platform config (cache-aside
// over the bounded caches), asking the AI agent for a reply, and delivering
// that reply back to the chat platform.
//
// Every suspension point runs through its own circuit breaker (aiProcessing,
// whatsappApi, database). Failed messages are requeued with bounded
// exponential backoff and dead-lettered once the attempt budget is exhausted;
// nothing is silently dropped.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/positonic/go-message-gateway/internal/agent"
	"github.com/positonic/go-message-gateway/internal/breaker"
	"github.com/positonic/go-message-gateway/internal/cache"
	"github.com/positonic/go-message-gateway/internal/domain"
	"github.com/positonic/go-message-gateway/internal/platform"
	"github.com/positonic/go-message-gateway/internal/queue"
	"github.com/positonic/go-message-gateway/internal/token"
)

// DispatchRepo defines the repository contract required by DispatchService.
type DispatchRepo interface {
	// FindUserBySender resolves a platform sender identifier to a user id.
	FindUserBySender(ctx context.Context, db *gorm.DB, platform, senderID string) (string, error)

	// GetPlatformConfig fetches the active config for a platform identifier.
	GetPlatformConfig(ctx context.Context, db *gorm.DB, platform, phoneID string) (*domain.PlatformConfig, error)

	// RecordMessageEvent inserts one raw analytics event.
	RecordMessageEvent(ctx context.Context, db *gorm.DB, ev domain.MessageEvent) error

	// RecordPerformanceMetric inserts one point sample.
	RecordPerformanceMetric(ctx context.Context, db *gorm.DB, name string, value float64, at time.Time) error
}

// Breakers bundles the three per-dependency circuit breakers the dispatch
// pipeline routes through. All three must be non-nil.
type Breakers struct {
	AI       *breaker.Breaker // guards agent calls ("aiProcessing")
	Platform *breaker.Breaker // guards outbound platform delivery ("whatsappApi")
	Database *breaker.Breaker // guards hot-path persistence ("database")
}

// Stats returns snapshots for all three breakers, including the ones that are
// CLOSED and have never tripped.
func (b Breakers) Stats() []breaker.Stats {
	return []breaker.Stats{b.AI.GetStats(), b.Platform.GetStats(), b.Database.GetStats()}
}

// DrainResult summarizes one worker drain pass.
type DrainResult struct {
	Dequeued     int `json:"dequeued"`
	Processed    int `json:"processed"`
	Failed       int `json:"failed"`
	Requeued     int `json:"requeued"`
	DeadLettered int `json:"dead_lettered"`
}

// StatusReport is the diagnostics payload surfaced by the worker status
// endpoint.
type StatusReport struct {
	Queue    queue.Stats            `json:"queue"`
	Caches   map[string]cache.Stats `json:"caches"`
	Breakers []breaker.Stats        `json:"breakers"`
}

// DispatchService owns the webhook-to-reply pipeline.
type DispatchService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the lookup/analytics repository used by this service.
	Repo DispatchRepo
	// Queue is the inbound backlog between webhook receipt and dispatch.
	Queue queue.Queue
	// Policy is the bounded retry schedule for failed messages.
	Policy *queue.Policy
	// Caches are the four bounded namespaces on the hot path.
	Caches *cache.Caches
	// Breakers guard the pipeline's suspension points.
	Breakers Breakers
	// Agent produces replies for inbound messages.
	Agent agent.Processor
	// Sender delivers replies back to the chat platforms.
	Sender platform.Sender
	// Tokens mints the agent-context JWT attached to agent calls.
	Tokens Minter

	now func() time.Time
}

// NewDispatchService constructs a DispatchService.
func NewDispatchService(
	db *gorm.DB,
	r DispatchRepo,
	q queue.Queue,
	p *queue.Policy,
	c *cache.Caches,
	b Breakers,
	proc agent.Processor,
	send platform.Sender,
	m Minter,
) *DispatchService {
	return &DispatchService{
		DB:       db,
		Repo:     r,
		Queue:    q,
		Policy:   p,
		Caches:   c,
		Breakers: b,
		Agent:    proc,
		Sender:   send,
		Tokens:   m,
		now:      time.Now,
	}
}

// WithClock overrides the service clock; used by tests.
func (s *DispatchService) WithClock(now func() time.Time) *DispatchService {
	s.now = now
	return s
}

// EnqueueInbound validates and enqueues one webhook message for later
// dispatch. The webhook handler returns to the platform as soon as this
// succeeds; all heavy work happens in Drain.
func (s *DispatchService) EnqueueInbound(ctx context.Context, plat, senderID, payload string) (string, error) {
	if plat != domain.PlatformWhatsApp && plat != domain.PlatformTelegram {
		return "", ErrUnknownPlatform
	}
	msg := queue.NewMessage(plat, senderID, payload)
	if err := s.Queue.Enqueue(ctx, msg); err != nil {
		return "", err
	}
	return msg.ID, nil
}

// Drain claims up to batchSize due messages and processes them sequentially.
// Failures never abort the batch: each failed message is either requeued with
// backoff or dead-lettered, and the pass continues with the next message.
// Even a failed requeue or dead-letter write only logs; aborting mid-batch
// would strand the remaining claimed messages.
func (s *DispatchService) Drain(ctx context.Context, batchSize int) (DrainResult, error) {
	msgs, err := s.Queue.DequeueBatch(ctx, batchSize)
	if err != nil {
		return DrainResult{}, err
	}

	res := DrainResult{Dequeued: len(msgs)}
	for _, msg := range msgs {
		procErr := s.processOne(ctx, msg)
		if procErr == nil {
			res.Processed++
			continue
		}
		res.Failed++

		// A sender nobody owns will never succeed; retrying is pointless.
		if errors.Is(procErr, ErrUnknownSender) {
			if err := s.Queue.DeadLetter(ctx, msg, procErr.Error()); err != nil {
				log.Error().Err(err).Str("message_id", msg.ID).Msg("dead-letter failed")
				continue
			}
			res.DeadLettered++
			continue
		}

		attempts := msg.Attempts + 1
		if s.Policy.Exhausted(attempts) {
			if err := s.Queue.DeadLetter(ctx, msg, procErr.Error()); err != nil {
				log.Error().Err(err).Str("message_id", msg.ID).Msg("dead-letter failed")
				continue
			}
			res.DeadLettered++
			continue
		}
		if err := s.Queue.Requeue(ctx, msg, s.Policy.NextDelay(attempts)); err != nil {
			log.Error().Err(err).Str("message_id", msg.ID).Msg("requeue failed")
			continue
		}
		res.Requeued++
	}

	// Best-effort depth sample for dashboards; a failed sample must not fail
	// the drain.
	if stats, err := s.Queue.GetStats(ctx); err == nil {
		_ = s.Repo.RecordPerformanceMetric(ctx, s.DB, "queue_depth", float64(stats.Size), s.now().UTC())
	}
	return res, nil
}

// Status reports queue, cache, and breaker state for diagnostics.
func (s *DispatchService) Status(ctx context.Context) (StatusReport, error) {
	qs, err := s.Queue.GetStats(ctx)
	if err != nil {
		return StatusReport{}, err
	}
	return StatusReport{
		Queue:    qs,
		Caches:   s.Caches.GetStats(),
		Breakers: s.Breakers.Stats(),
	}, nil
}

// processOne runs the full pipeline for a single message.
func (s *DispatchService) processOne(ctx context.Context, msg queue.Message) error {
	started := s.now()

	userID, err := s.resolveUser(ctx, msg.Platform, msg.SenderID)
	if err != nil {
		return err
	}
	cfg := s.resolveConfig(ctx, msg.Platform, msg.SenderID)

	model := ""
	if cfg != nil {
		model = s.resolveModel(cfg)
	}
	convKey := msg.Platform + ":" + msg.SenderID
	conversationID, _ := s.Caches.Conversations.Get(convKey)

	agentToken, err := s.Tokens.Issue(token.User{ID: userID}, token.Options{TokenType: token.TypeAgentContext})
	if err != nil {
		return err
	}

	var reply *agent.Reply
	err = s.Breakers.AI.Execute(ctx, func(ctx context.Context) error {
		var aerr error
		reply, aerr = s.Agent.Process(ctx, agentToken, agent.Request{
			UserID:         userID,
			Platform:       msg.Platform,
			Message:        msg.Payload,
			Model:          model,
			ConversationID: conversationID,
		})
		return aerr
	})
	if err != nil {
		s.recordOutcome(ctx, cfg, msg.Platform, "failed", started)
		return err
	}
	if reply.ConversationID != "" {
		s.Caches.Conversations.Set(convKey, reply.ConversationID)
	}

	err = s.Breakers.Platform.Execute(ctx, func(ctx context.Context) error {
		return s.Sender.Send(ctx, msg.Platform, msg.SenderID, reply.Text)
	})
	if err != nil {
		s.recordOutcome(ctx, cfg, msg.Platform, "failed", started)
		return err
	}

	return s.recordOutcome(ctx, cfg, msg.Platform, "processed", started)
}

// resolveUser maps a platform sender to a user id, cache-aside over the
// userMappings namespace. A database miss is ErrUnknownSender.
func (s *DispatchService) resolveUser(ctx context.Context, plat, senderID string) (string, error) {
	key := plat + ":" + senderID
	if id, ok := s.Caches.Users.Get(key); ok {
		return id, nil
	}

	var id string
	err := s.Breakers.Database.Execute(ctx, func(ctx context.Context) error {
		var rerr error
		id, rerr = s.Repo.FindUserBySender(ctx, s.DB, plat, senderID)
		return rerr
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUnknownSender
		}
		return "", err
	}
	s.Caches.Users.Set(key, id)
	return id, nil
}

// resolveConfig looks up the platform config for analytics attribution and
// model selection, cache-aside over the platformConfigs namespace. A missing
// config is tolerated: the message still flows, it just goes unattributed.
func (s *DispatchService) resolveConfig(ctx context.Context, plat, senderID string) *domain.PlatformConfig {
	key := plat + ":" + senderID
	if cfg, ok := s.Caches.Configs.Get(key); ok {
		return &cfg
	}

	var cfg *domain.PlatformConfig
	err := s.Breakers.Database.Execute(ctx, func(ctx context.Context) error {
		var rerr error
		cfg, rerr = s.Repo.GetPlatformConfig(ctx, s.DB, plat, senderID)
		return rerr
	})
	if err != nil || cfg == nil {
		return nil
	}
	s.Caches.Configs.Set(key, *cfg)
	return cfg
}

// resolveModel returns the AI model for a config, cache-aside over the
// modelSelection namespace.
func (s *DispatchService) resolveModel(cfg *domain.PlatformConfig) string {
	if model, ok := s.Caches.Models.Get(cfg.ID); ok {
		return model
	}
	if cfg.Model != "" {
		s.Caches.Models.Set(cfg.ID, cfg.Model)
	}
	return cfg.Model
}

// recordOutcome writes the inbound and (on success) outbound analytics events
// through the database breaker. Event recording failures propagate for the
// processed path so the message is retried rather than lost to analytics.
func (s *DispatchService) recordOutcome(ctx context.Context, cfg *domain.PlatformConfig, plat, status string, started time.Time) error {
	if cfg == nil {
		return nil
	}
	latency := s.now().Sub(started).Milliseconds()
	at := s.now().UTC()

	err := s.Breakers.Database.Execute(ctx, func(ctx context.Context) error {
		if err := s.Repo.RecordMessageEvent(ctx, s.DB, domain.MessageEvent{
			ConfigID:   cfg.ID,
			Platform:   plat,
			Direction:  "in",
			Status:     status,
			LatencyMS:  latency,
			OccurredAt: at,
		}); err != nil {
			return err
		}
		if status != "processed" {
			return nil
		}
		return s.Repo.RecordMessageEvent(ctx, s.DB, domain.MessageEvent{
			ConfigID:   cfg.ID,
			Platform:   plat,
			Direction:  "out",
			Status:     status,
			LatencyMS:  latency,
			OccurredAt: at,
		})
	})
	if status != "processed" {
		// The message already failed; the event write is best-effort.
		return nil
	}
	return err
}
