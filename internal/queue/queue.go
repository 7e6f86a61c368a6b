// Package queue holds the inbound message backlog between webhook receipt and
// worker dispatch. Two implementations exist behind the Queue interface: an
// in-memory FIFO that is only correct for a single long-lived process, and a
// database-backed queue for multi-instance or serverless deployments where
// the process can be recycled between cron invocations.
//
// Retry policy: a failed message is rescheduled with bounded exponential
// backoff and a persisted attempt counter; once the attempt budget is
// exhausted it is dead-lettered, never silently dropped and never retried
// indefinitely.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"

	"github.com/positonic/go-message-gateway/internal/config"
)

// Message is one inbound chat message awaiting processing.
type Message struct {
	ID         string    `json:"id"`
	Platform   string    `json:"platform"`  // "whatsapp" | "telegram"
	SenderID   string    `json:"sender_id"` // sessionId (whatsapp) or chat id (telegram)
	Payload    string    `json:"payload"`
	Attempts   int       `json:"attempts"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewMessage builds a Message with a fresh id and enqueue timestamp.
func NewMessage(platform, senderID, payload string) Message {
	return Message{
		ID:         uuid.NewString(),
		Platform:   platform,
		SenderID:   senderID,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Stats is the queue introspection payload surfaced by the worker endpoints.
type Stats struct {
	Size        int64 `json:"size"`         // total backlog, including not-yet-due retries
	Ready       int64 `json:"ready"`        // messages eligible for dequeue now
	DeadLetters int64 `json:"dead_letters"` // messages that exhausted their retry budget
}

// Queue is the backlog contract consumed by webhook handlers (producers) and
// the dispatch worker (consumer). Call sites must not depend on in-memory
// behavior; production wiring selects the durable implementation.
type Queue interface {
	// Enqueue appends a message, eligible for immediate dequeue.
	Enqueue(ctx context.Context, msg Message) error
	// DequeueBatch claims and returns up to n due messages in FIFO order.
	DequeueBatch(ctx context.Context, n int) ([]Message, error)
	// Requeue puts a failed message back with its attempt counter bumped,
	// not eligible again until delay has passed.
	Requeue(ctx context.Context, msg Message, delay time.Duration) error
	// DeadLetter records a message that exhausted its retry budget.
	DeadLetter(ctx context.Context, msg Message, reason string) error
	// GetStats reports backlog counts.
	GetStats(ctx context.Context) (Stats, error)
}

// Policy is the bounded retry schedule applied by the dispatch worker.
// The zero value is unusable; construct via NewPolicy.
type Policy struct {
	maxAttempts int
	backoff     *backoff.Backoff
}

// NewPolicy builds the retry policy from configuration: maxAttempts total
// tries with exponential delays growing from min to max (factor 2, no jitter
// so retry timing stays deterministic in tests).
func NewPolicy(cfg config.QueueConfig) *Policy {
	return &Policy{
		maxAttempts: cfg.MaxAttempts,
		backoff: &backoff.Backoff{
			Min:    cfg.BackoffMin,
			Max:    cfg.BackoffMax,
			Factor: 2,
			Jitter: false,
		},
	}
}

// Exhausted reports whether a message that has already been attempted
// `attempts` times is out of budget.
func (p *Policy) Exhausted(attempts int) bool {
	return attempts >= p.maxAttempts
}

// NextDelay returns the backoff delay before retry number `attempts`
// (1-based: the first retry waits the minimum delay).
func (p *Policy) NextDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	return p.backoff.ForAttempt(float64(attempts - 1))
}

// MaxAttempts returns the configured attempt budget.
func (p *Policy) MaxAttempts() int { return p.maxAttempts }

// Memory is the in-process Queue used for tests and single-instance dev
// deployments. State is lost on process recycle; see Durable for the
// production-grade variant.
type Memory struct {
	mu          sync.Mutex
	ready       []entry
	deadLetters int64

	now func() time.Time
}

type entry struct {
	msg Message
	due time.Time
}

// NewMemory constructs an empty in-memory queue.
func NewMemory() *Memory {
	return &Memory{now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the queue clock; used by tests to control due times.
func (q *Memory) WithClock(now func() time.Time) *Memory {
	q.now = now
	return q
}

// Enqueue implements Queue.
func (q *Memory) Enqueue(_ context.Context, msg Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ready = append(q.ready, entry{msg: msg, due: q.now()})
	return nil
}

// DequeueBatch implements Queue. Due messages are returned oldest-first and
// removed from the backlog; not-yet-due retries stay put.
func (q *Memory) DequeueBatch(_ context.Context, n int) ([]Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	out := make([]Message, 0, n)
	rest := q.ready[:0]
	for _, e := range q.ready {
		if len(out) < n && !e.due.After(now) {
			out = append(out, e.msg)
			continue
		}
		rest = append(rest, e)
	}
	q.ready = rest
	return out, nil
}

// Requeue implements Queue.
func (q *Memory) Requeue(_ context.Context, msg Message, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	msg.Attempts++
	q.ready = append(q.ready, entry{msg: msg, due: q.now().Add(delay)})
	return nil
}

// DeadLetter implements Queue. The in-memory variant only counts; the durable
// variant persists the full message for operators.
func (q *Memory) DeadLetter(_ context.Context, _ Message, _ string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deadLetters++
	return nil
}

// GetStats implements Queue.
func (q *Memory) GetStats(_ context.Context) (Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var ready int64
	for _, e := range q.ready {
		if !e.due.After(now) {
			ready++
		}
	}
	return Stats{
		Size:        int64(len(q.ready)),
		Ready:       ready,
		DeadLetters: q.deadLetters,
	}, nil
}
