// Package health отдаёт /healthz и /readyz по зарегистрированным проверкам зависимостей.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	// checkTimeout ограничивает одну проверку: зависшая зависимость не держит probe.
	checkTimeout = 2 * time.Second
	// defaultCacheTTL — сколько переиспользуется результат последнего прогона.
	defaultCacheTTL = time.Second
)

// Status — состояние компонента или сервиса целиком.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) worse(other Status) bool {
	rank := map[Status]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	return rank[s] > rank[other]
}

// Check — результат одной проверки.
type Check struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Report — тело /healthz и /readyz.
type Report struct {
	Status        Status           `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	Checks        map[string]Check `json:"checks,omitempty"`
	Failing       []string         `json:"failing,omitempty"`
	Version       string           `json:"version,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
}

// Checker проверяет одну зависимость.
type Checker interface {
	Check(ctx context.Context) Check
}

// Handler опрашивает проверки параллельно и кеширует результат на cacheTTL,
// чтобы частые probe не нагружали базу.
type Handler struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	version  string
	started  time.Time
	now      func() time.Time
	cacheTTL time.Duration

	cacheMu sync.Mutex
	cached  *Report
}

// Option настраивает Handler.
type Option func(*Handler)

// WithCacheTTL задаёт время жизни кеша; 0 отключает кеш.
func WithCacheTTL(ttl time.Duration) Option {
	return func(h *Handler) {
		if ttl >= 0 {
			h.cacheTTL = ttl
		}
	}
}

// NewHandler создаёт обработчик без проверок.
func NewHandler(version string, opts ...Option) *Handler {
	h := &Handler{
		checkers: make(map[string]Checker),
		version:  version,
		started:  time.Now(),
		now:      time.Now,
		cacheTTL: defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterChecker добавляет или заменяет проверку и сбрасывает кеш.
func (h *Handler) RegisterChecker(name string, checker Checker) {
	h.mu.Lock()
	h.checkers[name] = checker
	h.mu.Unlock()

	h.cacheMu.Lock()
	h.cached = nil
	h.cacheMu.Unlock()
}

// Evaluate возвращает отчёт по всем проверкам.
func (h *Handler) Evaluate(ctx context.Context) Report {
	h.cacheMu.Lock()
	defer h.cacheMu.Unlock()

	now := h.now()
	if h.cached != nil && now.Sub(h.cached.Timestamp) < h.cacheTTL {
		return *h.cached
	}

	h.mu.RLock()
	checkers := make(map[string]Checker, len(h.checkers))
	for name, c := range h.checkers {
		checkers[name] = c
	}
	h.mu.RUnlock()

	var (
		resultsMu sync.Mutex
		g         errgroup.Group
		checks    = make(map[string]Check, len(checkers))
	)
	for name, checker := range checkers {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			check := checker.Check(checkCtx)
			resultsMu.Lock()
			checks[name] = check
			resultsMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Status:        StatusHealthy,
		Timestamp:     now,
		Checks:        checks,
		Version:       h.version,
		UptimeSeconds: int64(now.Sub(h.started).Seconds()),
	}
	for name, check := range checks {
		if check.Status.worse(report.Status) {
			report.Status = check.Status
		}
		if check.Status != StatusHealthy {
			report.Failing = append(report.Failing, name)
		}
	}
	sort.Strings(report.Failing)

	h.cached = &report
	return report
}

// ServeHTTP отвечает 503 только при unhealthy; degraded остаётся 200.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := h.Evaluate(r.Context())
	code := http.StatusOK
	if report.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, report)
}

// ReadinessHandler снимает инстанс с балансировки, только если упала критичная
// зависимость. Без брокера корзина и оформление продолжают работать.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	report := h.Evaluate(r.Context())
	if report.Status == StatusUnhealthy {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false, "failing": report.Failing})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}

// LivenessHandler отвечает 200, пока процесс обслуживает HTTP.
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// FuncChecker оборачивает функцию проверки.
type FuncChecker struct {
	name      string
	fn        func(ctx context.Context) error
	onFailure Status
}

// NewSimpleChecker — критичная зависимость: ошибка даёт unhealthy.
func NewSimpleChecker(name string, fn func(ctx context.Context) error) *FuncChecker {
	return &FuncChecker{name: name, fn: fn, onFailure: StatusUnhealthy}
}

// NewOptionalChecker — некритичная зависимость: ошибка даёт degraded.
func NewOptionalChecker(name string, fn func(ctx context.Context) error) *FuncChecker {
	return &FuncChecker{name: name, fn: fn, onFailure: StatusDegraded}
}

// Check выполняет проверку и замеряет её длительность.
func (c *FuncChecker) Check(ctx context.Context) Check {
	start := time.Now()
	err := c.fn(ctx)
	check := Check{Name: c.name, Status: StatusHealthy, DurationMs: time.Since(start).Milliseconds()}
	if err != nil {
		check.Status = c.onFailure
		check.Message = err.Error()
	}
	return check
}

// OutboxStatsSource отдаёт размер backlog outbox.
type OutboxStatsSource interface {
	Stats(ctx context.Context) (domain.OutboxStats, error)
}

// NewOutboxChecker переводит сервис в degraded, когда самое старое
// недоставленное уведомление ждёт дольше maxLag или появились сообщения в failed.
func NewOutboxChecker(source OutboxStatsSource, maxLag time.Duration) *FuncChecker {
	return NewOptionalChecker("outbox", func(ctx context.Context) error {
		stats, err := source.Stats(ctx)
		if err != nil {
			return fmt.Errorf("read outbox stats: %w", err)
		}
		if lag := stats.OldestPendingAge(time.Now()); lag > maxLag {
			return fmt.Errorf("%d pending messages, oldest waits %s", stats.PendingCount, lag.Truncate(time.Second))
		}
		if stats.FailedCount > 0 {
			return fmt.Errorf("%d messages moved to failed", stats.FailedCount)
		}
		return nil
	})
}
