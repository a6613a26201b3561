package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// DefaultTTL — сколько хранится ответ на запрос с ключом идемпотентности.
const DefaultTTL = 24 * time.Hour

// ErrRequestInProgress — запрос с тем же ключом ещё выполняется.
var ErrRequestInProgress = errors.New("request with the same idempotency key is already processing")

// Response — сохранённый HTTP-ответ.
type Response struct {
	Status int
	Body   []byte
}

// Guard повторно отдаёт сохранённый ответ на повторный запрос с тем же ключом
// (двойное нажатие "Оформить заказ", повтор после обрыва соединения).
type Guard struct {
	repo    domain.IdempotencyRepository
	ttl     time.Duration
	logger  *log.Entry
	metrics *metrics.StoreMetrics
	now     func() time.Time
}

// GuardOption настраивает Guard.
type GuardOption func(*Guard)

// WithReplayMetrics учитывает повторные запросы в Prometheus.
func WithReplayMetrics(m *metrics.StoreMetrics) GuardOption {
	return func(g *Guard) {
		g.metrics = m
	}
}

// NewGuard создаёт Guard. ttl <= 0 означает DefaultTTL.
func NewGuard(repo domain.IdempotencyRepository, ttl time.Duration, logger *log.Entry, opts ...GuardOption) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = log.WithField("component", "idempotency-guard")
	}
	g := &Guard{
		repo:   repo,
		ttl:    ttl,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ScopedKey привязывает ключ клиента к его идентификатору, чтобы ключи разных
// клиентов не пересекались.
func ScopedKey(customerID, key string) string {
	return customerID + ":" + strings.TrimSpace(key)
}

// HashRequest считает отпечаток запроса: метод, путь и тело.
func HashRequest(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{' '})
	h.Write([]byte(path))
	h.Write([]byte{':'})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Do выполняет handler один раз на ключ. Повтор с тем же ключом и тем же телом
// получает сохранённый ответ (replayed=true); с другим телом —
// ErrIdempotencyHashMismatch; пока первый запрос не завершён — ErrRequestInProgress.
// Ответы 2xx сохраняются как done, остальные как failed. Ответ 4xx отдаётся
// повторно, после 5xx тот же ключ выполняет handler заново.
func (g *Guard) Do(ctx context.Context, key, requestHash string, handler func(context.Context) Response) (resp Response, replayed bool, err error) {
	record, err := g.repo.CreateProcessing(ctx, key, requestHash, g.now().Add(g.ttl))
	if err != nil {
		stored, replayErr := g.replay(err, record)
		return stored, replayErr == nil, replayErr
	}

	resp = handler(ctx)

	store := g.repo.MarkDone
	if resp.Status < 200 || resp.Status >= 300 {
		store = g.repo.MarkFailed
	}
	if err := store(ctx, key, resp.Body, resp.Status); err != nil {
		g.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotent response")
	}
	return resp, false, nil
}

func (g *Guard) replay(createErr error, record domain.IdempotencyRecord) (Response, error) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		g.metrics.RecordIdempotencyReplay("mismatch")
		return Response{}, createErr
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		if record.Finished() {
			g.metrics.RecordIdempotencyReplay("replayed")
			return Response{Status: record.HTTPStatus, Body: record.ResponseBody}, nil
		}
		if record.Status == domain.IdempotencyStatusProcessing {
			g.metrics.RecordIdempotencyReplay("in_progress")
			return Response{}, ErrRequestInProgress
		}
		return Response{}, fmt.Errorf("idempotency record %s has no stored response (status %q)", record.Key, record.Status)
	default:
		g.logger.WithError(createErr).Warn("failed to create idempotency record")
		return Response{}, createErr
	}
}
