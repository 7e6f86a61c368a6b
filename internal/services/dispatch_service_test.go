package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/positonic/go-message-gateway/internal/agent"
	"github.com/positonic/go-message-gateway/internal/breaker"
	"github.com/positonic/go-message-gateway/internal/cache"
	"github.com/positonic/go-message-gateway/internal/config"
	"github.com/positonic/go-message-gateway/internal/domain"
	"github.com/positonic/go-message-gateway/internal/queue"
)

// ----- Fake collaborators -----

type fakeDispatchRepo struct {
	userID    string
	userErr   error
	findCalls int

	cfg    *domain.PlatformConfig
	cfgErr error

	events  []domain.MessageEvent
	metrics []string
}

func (r *fakeDispatchRepo) FindUserBySender(ctx context.Context, db *gorm.DB, platform, senderID string) (string, error) {
	r.findCalls++
	return r.userID, r.userErr
}

func (r *fakeDispatchRepo) GetPlatformConfig(ctx context.Context, db *gorm.DB, platform, phoneID string) (*domain.PlatformConfig, error) {
	if r.cfgErr != nil {
		return nil, r.cfgErr
	}
	return r.cfg, nil
}

func (r *fakeDispatchRepo) RecordMessageEvent(ctx context.Context, db *gorm.DB, ev domain.MessageEvent) error {
	r.events = append(r.events, ev)
	return nil
}

func (r *fakeDispatchRepo) RecordPerformanceMetric(ctx context.Context, db *gorm.DB, name string, value float64, at time.Time) error {
	r.metrics = append(r.metrics, name)
	return nil
}

type fakeProcessor struct {
	calls int
	reply *agent.Reply
	err   error

	lastToken string
	lastReq   agent.Request
}

func (p *fakeProcessor) Process(ctx context.Context, token string, req agent.Request) (*agent.Reply, error) {
	p.calls++
	p.lastToken, p.lastReq = token, req
	return p.reply, p.err
}

type fakeSender struct {
	calls int
	err   error

	lastPlatform  string
	lastRecipient string
	lastText      string
}

func (s *fakeSender) Send(ctx context.Context, platform, recipientID, text string) error {
	s.calls++
	s.lastPlatform, s.lastRecipient, s.lastText = platform, recipientID, text
	return s.err
}

// ----- Test wiring -----

func testCaches() *cache.Caches {
	return &cache.Caches{
		Users:         cache.NewStore[string]("userMappings", 100, time.Minute),
		Configs:       cache.NewStore[domain.PlatformConfig]("platformConfigs", 100, time.Minute),
		Models:        cache.NewStore[string]("modelSelection", 100, time.Minute),
		Conversations: cache.NewStore[string]("conversationState", 100, time.Minute),
	}
}

func testBreakers(aiThreshold int) Breakers {
	return Breakers{
		AI:       breaker.New("aiProcessing", aiThreshold, 30*time.Second, 30*time.Second),
		Platform: breaker.New("whatsappApi", 5, time.Minute, 30*time.Second),
		Database: breaker.New("database", 5, time.Minute, 30*time.Second),
	}
}

func testPolicy(maxAttempts int) *queue.Policy {
	return queue.NewPolicy(config.QueueConfig{
		MaxAttempts: maxAttempts,
		BackoffMin:  time.Second,
		BackoffMax:  time.Minute,
		BatchSize:   10,
	})
}

type dispatchFixture struct {
	svc   *DispatchService
	repo  *fakeDispatchRepo
	proc  *fakeProcessor
	send  *fakeSender
	queue *queue.Memory
	clock *time.Time
}

func newDispatchFixture(t *testing.T, maxAttempts, aiThreshold int) *dispatchFixture {
	t.Helper()

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &at
	now := func() time.Time { return *clock }

	repo := &fakeDispatchRepo{
		userID: "u1",
		cfg:    &domain.PlatformConfig{ID: "cfg-1", UserID: "u1", Platform: domain.PlatformWhatsApp, PhoneID: "phone-1", Model: "gpt-4o-mini"},
	}
	proc := &fakeProcessor{reply: &agent.Reply{Text: "hello back", ConversationID: "conv-1"}}
	send := &fakeSender{}
	q := queue.NewMemory().WithClock(now)

	svc := NewDispatchService(
		nil, repo, q, testPolicy(maxAttempts), testCaches(), testBreakers(aiThreshold),
		proc, send, &fakeMinter{},
	).WithClock(now)

	return &dispatchFixture{svc: svc, repo: repo, proc: proc, send: send, queue: q, clock: clock}
}

func (f *dispatchFixture) enqueue(t *testing.T, sender, payload string) {
	t.Helper()
	if _, err := f.svc.EnqueueInbound(context.Background(), domain.PlatformWhatsApp, sender, payload); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
}

// ----- Tests -----

func TestEnqueueInbound_UnknownPlatform(t *testing.T) {
	f := newDispatchFixture(t, 3, 3)
	_, err := f.svc.EnqueueInbound(context.Background(), "smoke-signal", "s1", "hi")
	if !errors.Is(err, ErrUnknownPlatform) {
		t.Fatalf("expected ErrUnknownPlatform, got %v", err)
	}
}

func TestDrain_HappyPath(t *testing.T) {
	f := newDispatchFixture(t, 3, 3)
	f.enqueue(t, "phone-1", "what is on my agenda?")
	f.enqueue(t, "phone-1", "thanks")

	res, err := f.svc.Drain(context.Background(), 10)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if res.Dequeued != 2 || res.Processed != 2 || res.Failed != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if f.send.calls != 2 || f.send.lastText != "hello back" {
		t.Fatalf("replies not delivered: calls=%d text=%q", f.send.calls, f.send.lastText)
	}
	if f.proc.lastToken == "" {
		t.Fatalf("agent call missing context token")
	}
	if f.proc.lastReq.Model != "gpt-4o-mini" {
		t.Fatalf("model selection not applied: %q", f.proc.lastReq.Model)
	}

	// Two messages, each recording an in and an out event.
	if len(f.repo.events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(f.repo.events))
	}

	// Same sender twice: the second resolution must come from the cache.
	if f.repo.findCalls != 1 {
		t.Fatalf("expected 1 repo lookup (cache-aside), got %d", f.repo.findCalls)
	}
}

func TestDrain_ConversationStateCarriesOver(t *testing.T) {
	f := newDispatchFixture(t, 3, 3)
	f.enqueue(t, "phone-1", "first")
	if _, err := f.svc.Drain(context.Background(), 10); err != nil {
		t.Fatalf("drain 1: %v", err)
	}

	f.enqueue(t, "phone-1", "second")
	if _, err := f.svc.Drain(context.Background(), 10); err != nil {
		t.Fatalf("drain 2: %v", err)
	}
	if f.proc.lastReq.ConversationID != "conv-1" {
		t.Fatalf("conversation id not carried over, got %q", f.proc.lastReq.ConversationID)
	}
}

func TestDrain_FailureRequeuesWithBackoff(t *testing.T) {
	f := newDispatchFixture(t, 3, 5)
	f.proc.err = errors.New("agent down")
	f.enqueue(t, "phone-1", "hi")

	res, err := f.svc.Drain(context.Background(), 10)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if res.Failed != 1 || res.Requeued != 1 || res.DeadLettered != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	// The retry is not due yet, so an immediate second pass sees nothing.
	res, err = f.svc.Drain(context.Background(), 10)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if res.Dequeued != 0 {
		t.Fatalf("retry became due too early: %+v", res)
	}

	// After the first backoff delay it becomes eligible again.
	*f.clock = f.clock.Add(1100 * time.Millisecond)
	res, err = f.svc.Drain(context.Background(), 10)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if res.Dequeued != 1 {
		t.Fatalf("retry not dequeued after backoff: %+v", res)
	}
}

func TestDrain_ExhaustionDeadLetters(t *testing.T) {
	f := newDispatchFixture(t, 1, 5)
	f.proc.err = errors.New("agent down")
	f.enqueue(t, "phone-1", "hi")

	res, err := f.svc.Drain(context.Background(), 10)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if res.DeadLettered != 1 || res.Requeued != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	stats, err := f.queue.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.DeadLetters != 1 || stats.Size != 0 {
		t.Fatalf("unexpected queue stats: %+v", stats)
	}
}

func TestDrain_UnknownSenderDeadLettersImmediately(t *testing.T) {
	f := newDispatchFixture(t, 5, 5)
	f.repo.userErr = gorm.ErrRecordNotFound
	f.enqueue(t, "stranger", "hi")

	res, err := f.svc.Drain(context.Background(), 10)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if res.DeadLettered != 1 || res.Requeued != 0 {
		t.Fatalf("unknown sender should skip the retry budget: %+v", res)
	}
	if f.proc.calls != 0 {
		t.Fatalf("agent must not be called for unresolvable senders")
	}
}

// flakyQueue wraps a queue and fails a configurable number of Requeue and
// DeadLetter calls.
type flakyQueue struct {
	queue.Queue
	requeueFails    int
	deadLetterFails int
}

func (q *flakyQueue) Requeue(ctx context.Context, msg queue.Message, delay time.Duration) error {
	if q.requeueFails > 0 {
		q.requeueFails--
		return errors.New("requeue write failed")
	}
	return q.Queue.Requeue(ctx, msg, delay)
}

func (q *flakyQueue) DeadLetter(ctx context.Context, msg queue.Message, reason string) error {
	if q.deadLetterFails > 0 {
		q.deadLetterFails--
		return errors.New("dead-letter write failed")
	}
	return q.Queue.DeadLetter(ctx, msg, reason)
}

func TestDrain_RequeueErrorDoesNotAbortBatch(t *testing.T) {
	f := newDispatchFixture(t, 3, 10)
	f.proc.err = errors.New("agent down")
	for i := 0; i < 3; i++ {
		f.enqueue(t, "phone-1", "hi")
	}
	f.svc.Queue = &flakyQueue{Queue: f.queue, requeueFails: 1}

	res, err := f.svc.Drain(context.Background(), 10)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	// The first requeue write fails; the remaining claimed messages must
	// still be handled instead of being stranded.
	if res.Dequeued != 3 || res.Failed != 3 || res.Requeued != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestDrain_DeadLetterErrorDoesNotAbortBatch(t *testing.T) {
	f := newDispatchFixture(t, 1, 10)
	f.proc.err = errors.New("agent down")
	f.enqueue(t, "phone-1", "hi")
	f.enqueue(t, "phone-1", "hi again")
	f.svc.Queue = &flakyQueue{Queue: f.queue, deadLetterFails: 1}

	res, err := f.svc.Drain(context.Background(), 10)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if res.Dequeued != 2 || res.Failed != 2 || res.DeadLettered != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestDrain_BreakerOpensAndShortCircuits(t *testing.T) {
	f := newDispatchFixture(t, 10, 2)
	f.proc.err = errors.New("agent down")
	for i := 0; i < 3; i++ {
		f.enqueue(t, "phone-1", "hi")
	}

	res, err := f.svc.Drain(context.Background(), 10)
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if res.Failed != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}

	// Threshold 2: the third message is rejected by the open breaker without
	// reaching the agent.
	if f.proc.calls != 2 {
		t.Fatalf("expected 2 agent calls before the breaker opened, got %d", f.proc.calls)
	}
	if got := f.svc.Breakers.AI.State(); got != breaker.StateOpen {
		t.Fatalf("ai breaker state = %s, want OPEN", got)
	}
}

func TestStatus_ReportsAllBreakersAndCaches(t *testing.T) {
	f := newDispatchFixture(t, 3, 3)

	report, err := f.svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(report.Breakers) != 3 {
		t.Fatalf("expected 3 breaker snapshots, got %d", len(report.Breakers))
	}
	for _, b := range report.Breakers {
		if b.State != breaker.StateClosed {
			t.Fatalf("breaker %s should start CLOSED, got %s", b.Name, b.State)
		}
	}
	if len(report.Caches) != 4 {
		t.Fatalf("expected 4 cache namespaces, got %d", len(report.Caches))
	}
	if _, ok := report.Caches["userMappings"]; !ok {
		t.Fatalf("userMappings namespace missing: %v", report.Caches)
	}
}

func TestDrain_RecordsQueueDepthMetric(t *testing.T) {
	f := newDispatchFixture(t, 3, 3)
	f.enqueue(t, "phone-1", "hi")

	if _, err := f.svc.Drain(context.Background(), 10); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(f.repo.metrics) != 1 || f.repo.metrics[0] != "queue_depth" {
		t.Fatalf("expected queue_depth sample, got %v", f.repo.metrics)
	}
}
