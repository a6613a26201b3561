package domain

import "time"

// OutboxLease — на сколько PullPending закрепляет сообщение за одним worker'ом.
const OutboxLease = 30 * time.Second

// OutboxStatus — состояние сообщения в outbox.
type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxSent    OutboxStatus = "sent"
	OutboxFailed  OutboxStatus = "failed"
)

// OutboxMessage — уведомление, ожидающее доставки брокеру.
// Attempts — сколько раз сообщение выдавалось на доставку, включая текущую.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Attempts      int
	CreatedAt     time.Time
}

// PartitionKey — ключ, сохраняющий порядок событий одного заказа.
func (m OutboxMessage) PartitionKey() string {
	if m.AggregateID != "" {
		return m.AggregateID
	}
	return m.ID
}

// OutboxStats — размер backlog.
type OutboxStats struct {
	PendingCount    int
	FailedCount     int
	OldestPendingAt time.Time
}

// OldestPendingAge возвращает возраст самого старого ожидающего сообщения.
func (s OutboxStats) OldestPendingAge(now time.Time) time.Duration {
	if s.PendingCount == 0 || s.OldestPendingAt.IsZero() || now.Before(s.OldestPendingAt) {
		return 0
	}
	return now.Sub(s.OldestPendingAt)
}
