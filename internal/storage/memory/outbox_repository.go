package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type outboxEntry struct {
	msg         domain.OutboxMessage
	seq         uint64
	status      domain.OutboxStatus
	lockedUntil time.Time
	lastError   string
}

// OutboxRepository — outbox в памяти процесса. Семантика аренды та же, что у
// PostgreSQL-реализации, поэтому worker ведёт себя одинаково на обоих драйверах.
type OutboxRepository struct {
	mu      sync.Mutex
	entries map[string]*outboxEntry
	seq     uint64
	lease   time.Duration
	now     func() time.Time
}

// NewOutboxRepository создаёт пустой outbox с арендой domain.OutboxLease.
func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{
		entries: make(map[string]*outboxEntry),
		lease:   domain.OutboxLease,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *OutboxRepository) Enqueue(_ context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if _, ok := r.entries[msg.ID]; ok {
		return domain.OutboxMessage{}, fmt.Errorf("outbox message %s already exists", msg.ID)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = r.now()
	}
	msg.Attempts = 0
	msg.Payload = append([]byte(nil), msg.Payload...)

	r.seq++
	r.entries[msg.ID] = &outboxEntry{msg: msg, seq: r.seq, status: domain.OutboxPending}
	return msg, nil
}

// PullPending выдаёт сообщения в порядке постановки в очередь.
func (r *OutboxRepository) PullPending(_ context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var claimed []domain.OutboxMessage
	for _, e := range r.pendingLocked() {
		if len(claimed) == limit {
			break
		}
		if e.lockedUntil.After(now) {
			continue
		}
		e.lockedUntil = now.Add(r.lease)
		e.msg.Attempts++
		out := e.msg
		out.Payload = append([]byte(nil), e.msg.Payload...)
		claimed = append(claimed, out)
	}
	return claimed, nil
}

func (r *OutboxRepository) Stats(_ context.Context) (domain.OutboxStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stats domain.OutboxStats
	for _, e := range r.entries {
		switch e.status {
		case domain.OutboxFailed:
			stats.FailedCount++
		case domain.OutboxPending:
			stats.PendingCount++
			if stats.OldestPendingAt.IsZero() || e.msg.CreatedAt.Before(stats.OldestPendingAt) {
				stats.OldestPendingAt = e.msg.CreatedAt
			}
		}
	}
	return stats, nil
}

func (r *OutboxRepository) MarkSent(_ context.Context, id string) error {
	return r.settle(id, domain.OutboxSent, "")
}

func (r *OutboxRepository) MarkFailed(_ context.Context, id, reason string) error {
	return r.settle(id, domain.OutboxFailed, reason)
}

// LastError возвращает причину, сохранённую MarkFailed.
func (r *OutboxRepository) LastError(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[id]; ok {
		return e.lastError
	}
	return ""
}

func (r *OutboxRepository) settle(id string, status domain.OutboxStatus, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrOutboxMessageNotFound, id)
	}
	e.status = status
	e.lastError = reason
	e.lockedUntil = time.Time{}
	return nil
}

func (r *OutboxRepository) pendingLocked() []*outboxEntry {
	pending := make([]*outboxEntry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.status == domain.OutboxPending {
			pending = append(pending, e)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].seq < pending[j].seq })
	return pending
}

var _ domain.OutboxRepository = (*OutboxRepository)(nil)
