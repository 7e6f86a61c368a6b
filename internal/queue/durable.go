package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/positonic/go-message-gateway/internal/domain"
)

// Durable is the database-backed Queue. The backlog lives in the
// pending_messages table so it survives process recycling and is shared
// across instances; dead letters are persisted in dead_letters.
//
// DequeueBatch claims rows by deleting them inside a transaction, which is
// sufficient for the externally-triggered worker model (one drain invocation
// at a time per deployment). A worker crash between claim and completion
// loses at most one batch; redelivery from the platform webhook covers that
// window.
type Durable struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDurable constructs a Durable queue over db.
func NewDurable(db *gorm.DB) *Durable {
	return &Durable{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the queue clock; used by tests to control due times.
func (q *Durable) WithClock(now func() time.Time) *Durable {
	q.now = now
	return q
}

// Enqueue implements Queue.
func (q *Durable) Enqueue(ctx context.Context, msg Message) error {
	row := domain.PendingMessage{
		ID:            msg.ID,
		Platform:      msg.Platform,
		SenderID:      msg.SenderID,
		Payload:       msg.Payload,
		Attempts:      msg.Attempts,
		EnqueuedAt:    msg.EnqueuedAt,
		NextAttemptAt: q.now(),
	}
	return q.db.WithContext(ctx).Create(&row).Error
}

// DequeueBatch implements Queue.
func (q *Durable) DequeueBatch(ctx context.Context, n int) ([]Message, error) {
	var out []Message
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []domain.PendingMessage
		if err := tx.
			Where("next_attempt_at <= ?", q.now()).
			Order("next_attempt_at ASC, enqueued_at ASC").
			Limit(n).
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		ids := make([]string, 0, len(rows))
		out = make([]Message, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.ID)
			out = append(out, Message{
				ID:         r.ID,
				Platform:   r.Platform,
				SenderID:   r.SenderID,
				Payload:    r.Payload,
				Attempts:   r.Attempts,
				EnqueuedAt: r.EnqueuedAt,
			})
		}
		return tx.Where("id IN ?", ids).Delete(&domain.PendingMessage{}).Error
	})
	return out, err
}

// Requeue implements Queue.
func (q *Durable) Requeue(ctx context.Context, msg Message, delay time.Duration) error {
	row := domain.PendingMessage{
		ID:            msg.ID,
		Platform:      msg.Platform,
		SenderID:      msg.SenderID,
		Payload:       msg.Payload,
		Attempts:      msg.Attempts + 1,
		EnqueuedAt:    msg.EnqueuedAt,
		NextAttemptAt: q.now().Add(delay),
	}
	return q.db.WithContext(ctx).Create(&row).Error
}

// DeadLetter implements Queue.
func (q *Durable) DeadLetter(ctx context.Context, msg Message, reason string) error {
	row := domain.DeadLetter{
		ID:         uuid.NewString(),
		Platform:   msg.Platform,
		SenderID:   msg.SenderID,
		Payload:    msg.Payload,
		Attempts:   msg.Attempts,
		Reason:     reason,
		EnqueuedAt: msg.EnqueuedAt,
		FailedAt:   q.now(),
	}
	return q.db.WithContext(ctx).Create(&row).Error
}

// GetStats implements Queue.
func (q *Durable) GetStats(ctx context.Context) (Stats, error) {
	var s Stats
	db := q.db.WithContext(ctx)

	if err := db.Model(&domain.PendingMessage{}).Count(&s.Size).Error; err != nil {
		return Stats{}, err
	}
	if err := db.Model(&domain.PendingMessage{}).
		Where("next_attempt_at <= ?", q.now()).
		Count(&s.Ready).Error; err != nil {
		return Stats{}, err
	}
	if err := db.Model(&domain.DeadLetter{}).Count(&s.DeadLetters).Error; err != nil {
		return Stats{}, err
	}
	return s, nil
}
