// Package outbox доставляет уведомления о заказах из outbox брокеру.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	defaultPollInterval   = time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
	defaultConcurrency    = 4
	maxRetryDelay         = 30 * time.Second
)

// Исходы доставки для метрик.
const (
	outcomeSent      = "sent"
	outcomeRetry     = "retry"
	outcomeFailed    = "failed"
	outcomeDLQFailed = "dlq_failed"
)

// Option настраивает Worker.
type Option func(*Worker)

func WithLogger(logger *log.Entry) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithDLQPublisher задаёт получателя сообщений, исчерпавших попытки.
func WithDLQPublisher(publisher domain.OutboxPublisher) Option {
	return func(w *Worker) { w.dlq = publisher }
}

func WithMetrics(m *metrics.StoreMetrics) Option {
	return func(w *Worker) { w.metrics = m }
}

func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.pollInterval = interval
		}
	}
}

func WithBatchSize(size int) Option {
	return func(w *Worker) {
		if size > 0 {
			w.batchSize = size
		}
	}
}

// WithMaxAttempts задаёт число попыток публикации за одну выдачу сообщения.
func WithMaxAttempts(attempts int) Option {
	return func(w *Worker) {
		if attempts > 0 {
			w.maxAttempts = attempts
		}
	}
}

// WithRetryBaseDelay задаёт первую паузу между попытками; дальше она удваивается.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(w *Worker) {
		if delay >= 0 {
			w.retryBaseDelay = delay
		}
	}
}

// WithConcurrency ограничивает число заказов, доставляемых параллельно.
// События одного заказа всегда уходят последовательно.
func WithConcurrency(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// BatchResult — итог одного цикла опроса.
type BatchResult struct {
	Sent   int
	Failed int
}

// Worker периодически забирает outbox и публикует сообщения.
type Worker struct {
	repo      domain.OutboxRepository
	publisher domain.OutboxPublisher
	dlq       domain.OutboxPublisher
	logger    *log.Entry
	metrics   *metrics.StoreMetrics

	pollInterval   time.Duration
	batchSize      int
	maxAttempts    int
	retryBaseDelay time.Duration
	concurrency    int
	now            func() time.Time
}

func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, opts ...Option) *Worker {
	w := &Worker{
		repo:           repo,
		publisher:      publisher,
		logger:         log.WithField("component", "outbox-worker"),
		pollInterval:   defaultPollInterval,
		batchSize:      defaultBatchSize,
		maxAttempts:    defaultMaxAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
		concurrency:    defaultConcurrency,
		now:            func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run опрашивает outbox раз в pollInterval до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn("outbox repository or publisher is not configured, delivery disabled")
		return
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		w.ProcessOnce(ctx)
		select {
		case <-ctx.Done():
			w.logger.Info("outbox worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// ProcessOnce забирает одну пачку и доставляет её. Сообщения разных заказов
// публикуются параллельно, одного заказа — в порядке постановки.
func (w *Worker) ProcessOnce(ctx context.Context) BatchResult {
	defer w.refreshBacklog(ctx)

	if ctx.Err() != nil {
		return BatchResult{}
	}
	batch, err := w.repo.PullPending(ctx, w.batchSize)
	if err != nil {
		w.logger.WithError(err).Warn("failed to claim outbox messages")
		return BatchResult{}
	}

	var (
		mu     sync.Mutex
		result BatchResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, chain := range groupByPartition(batch) {
		g.Go(func() error {
			for _, msg := range chain {
				sent, ok := w.deliver(gctx, msg)
				if !ok {
					// Отмена: остаток цепочки вернётся после истечения аренды.
					return nil
				}
				mu.Lock()
				if sent {
					result.Sent++
				} else {
					result.Failed++
				}
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return result
}

// deliver публикует сообщение и фиксирует исход. ok=false означает, что
// исход не зафиксирован из-за отмены ctx.
func (w *Worker) deliver(ctx context.Context, msg domain.OutboxMessage) (sent, ok bool) {
	entry := w.logger.WithFields(log.Fields{
		"outbox_id":  msg.ID,
		"event_type": msg.EventType,
		"order_id":   msg.AggregateID,
		"delivery":   msg.Attempts,
	})
	if msg.Attempts > 1 {
		entry.Info("redelivering outbox message after expired lease")
	}

	err := w.publishWithRetry(ctx, msg)
	if ctx.Err() != nil {
		return false, false
	}
	if err == nil {
		w.metrics.RecordOutboxDelivery(msg.EventType, outcomeSent)
		if markErr := w.repo.MarkSent(ctx, msg.ID); markErr != nil {
			entry.WithError(markErr).Warn("message published but not marked as sent, it will be redelivered")
		}
		return true, true
	}

	entry.WithError(err).Error("giving up on outbox message")
	w.metrics.RecordOutboxDelivery(msg.EventType, outcomeFailed)
	if dlqErr := w.publishToDLQ(ctx, msg, err); dlqErr != nil {
		w.metrics.RecordOutboxDelivery(msg.EventType, outcomeDLQFailed)
		entry.WithError(dlqErr).Warn("failed to publish to dead letter topic")
	}
	if markErr := w.repo.MarkFailed(ctx, msg.ID, err.Error()); markErr != nil {
		entry.WithError(markErr).Warn("failed to mark outbox message as failed")
	}
	return false, true
}

func (w *Worker) publishWithRetry(ctx context.Context, msg domain.OutboxMessage) error {
	var lastErr error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		if lastErr = w.publisher.Publish(ctx, msg); lastErr == nil {
			return nil
		}
		if attempt == w.maxAttempts {
			break
		}
		w.metrics.RecordOutboxDelivery(msg.EventType, outcomeRetry)

		if delay := w.retryBackoff(attempt); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", domain.ErrOutboxPublish, w.maxAttempts, lastErr)
}

// retryBackoff удваивает базовую паузу с каждой попыткой, не превышая maxRetryDelay.
func (w *Worker) retryBackoff(attempt int) time.Duration {
	delay := w.retryBaseDelay
	for i := 1; i < attempt && delay > 0 && delay < maxRetryDelay; i++ {
		delay *= 2
	}
	return min(delay, maxRetryDelay)
}

// deadLetter — тело сообщения в DLQ.
type deadLetter struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	Deliveries    int             `json:"deliveries"`
	PublishError  string          `json:"publish_error"`
	FailedAt      time.Time       `json:"failed_at"`
}

func (w *Worker) publishToDLQ(ctx context.Context, msg domain.OutboxMessage, cause error) error {
	if w.dlq == nil {
		return nil
	}

	payload := json.RawMessage(msg.Payload)
	if !json.Valid(payload) {
		quoted, _ := json.Marshal(string(msg.Payload))
		payload = quoted
	}
	body, err := json.Marshal(deadLetter{
		OutboxID:      msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       payload,
		Deliveries:    msg.Attempts,
		PublishError:  cause.Error(),
		FailedAt:      w.now(),
	})
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}

	dead := msg
	dead.Payload = body
	return w.dlq.Publish(ctx, dead)
}

func (w *Worker) refreshBacklog(ctx context.Context) {
	if w.metrics == nil || ctx.Err() != nil {
		return
	}
	stats, err := w.repo.Stats(ctx)
	if err != nil {
		w.logger.WithError(err).Warn("failed to read outbox backlog")
		return
	}
	w.metrics.SetOutboxBacklog(stats.PendingCount, stats.FailedCount, stats.OldestPendingAge(w.now()))
}

// groupByPartition разбивает пачку на цепочки по ключу партиционирования,
// сохраняя порядок внутри цепочки и порядок первых появлений ключей.
func groupByPartition(batch []domain.OutboxMessage) [][]domain.OutboxMessage {
	index := make(map[string]int, len(batch))
	var chains [][]domain.OutboxMessage
	for _, msg := range batch {
		key := msg.PartitionKey()
		i, ok := index[key]
		if !ok {
			i = len(chains)
			index[key] = i
			chains = append(chains, nil)
		}
		chains[i] = append(chains[i], msg)
	}
	return chains
}
