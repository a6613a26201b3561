package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты операций для меток.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// StoreMetrics содержит метрики витрины: корзина, избранное, заказы,
// доставка outbox и ключи идемпотентности.
// Методы безопасно вызывать на nil-получателе.
type StoreMetrics struct {
	// Мутации корзины/избранного по операции и результату
	cartMutations     *prometheus.CounterVec
	wishlistMutations *prometheus.CounterVec

	// Деградации загрузки и нормализация старых записей
	loadDegradations *prometheus.CounterVec
	normalizations   *prometheus.CounterVec

	// Заказы
	ordersCreated     prometheus.Counter
	orderTotal        prometheus.Histogram
	statusTransitions *prometheus.CounterVec

	timelineEvents prometheus.Counter

	// Очистка ключей идемпотентности
	idempotencyCleanupRuns *prometheus.CounterVec
	idempotencyKeysDeleted prometheus.Counter
	idempotencyReplays     *prometheus.CounterVec

	// Доставка outbox
	outboxDeliveries *prometheus.CounterVec
	outboxPending    prometheus.Gauge
	outboxFailed     prometheus.Gauge
	outboxOldestAge  prometheus.Gauge
}

// NewStoreMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewStoreMetrics() *StoreMetrics {
	return NewStoreMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewStoreMetricsWithRegisterer регистрирует метрики в переданном registerer.
func NewStoreMetricsWithRegisterer(registerer prometheus.Registerer) *StoreMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &StoreMetrics{
		cartMutations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_cart_mutations_total",
			Help: "Total number of cart mutations grouped by operation and result",
		}, []string{"op", "result"}),
		wishlistMutations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_wishlist_mutations_total",
			Help: "Total number of wishlist mutations grouped by operation and result",
		}, []string{"op", "result"}),
		loadDegradations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_state_load_degraded_total",
			Help: "Loads that fell back to an empty cart or wishlist",
		}, []string{"store"}),
		normalizations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_legacy_records_normalized_total",
			Help: "Persisted records rewritten into the current shape",
		}, []string{"store"}),
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_orders_created_total",
			Help: "Total number of orders created",
		}),
		orderTotal: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_order_total_amount",
			Help:    "Distribution of order totals",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}),
		statusTransitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_order_status_transitions_total",
			Help: "Order status transitions grouped by source and target status",
		}, []string{"from", "to"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		idempotencyCleanupRuns: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_idempotency_cleanup_runs_total",
			Help: "Expired idempotency key cleanup runs grouped by result",
		}, []string{"result"}),
		idempotencyKeysDeleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_idempotency_keys_deleted_total",
			Help: "Expired idempotency keys deleted by the cleanup worker",
		}),
		idempotencyReplays: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_idempotency_replays_total",
			Help: "Repeated requests answered from stored responses grouped by outcome",
		}, []string{"outcome"}),
		outboxDeliveries: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_outbox_deliveries_total",
			Help: "Outbox publish attempts grouped by event type and outcome",
		}, []string{"event_type", "outcome"}),
		outboxPending: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_outbox_pending_messages",
			Help: "Order notifications waiting for delivery",
		}),
		outboxFailed: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_outbox_failed_messages",
			Help: "Order notifications that exhausted their delivery attempts",
		}),
		outboxOldestAge: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_outbox_oldest_pending_age_seconds",
			Help: "Age of the oldest pending order notification",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

// RecordCartMutation учитывает операцию над корзиной.
func (m *StoreMetrics) RecordCartMutation(op string, err error) {
	if m == nil {
		return
	}
	m.cartMutations.WithLabelValues(op, result(err)).Inc()
}

// RecordWishlistMutation учитывает операцию над избранным.
func (m *StoreMetrics) RecordWishlistMutation(op string, err error) {
	if m == nil {
		return
	}
	m.wishlistMutations.WithLabelValues(op, result(err)).Inc()
}

// RecordLoadDegraded учитывает загрузку, завершившуюся пустым состоянием.
func (m *StoreMetrics) RecordLoadDegraded(store string) {
	if m == nil {
		return
	}
	m.loadDegradations.WithLabelValues(store).Inc()
}

// RecordNormalized учитывает перезапись записи старого формата.
func (m *StoreMetrics) RecordNormalized(store string) {
	if m == nil {
		return
	}
	m.normalizations.WithLabelValues(store).Inc()
}

// RecordOrderCreated учитывает новый заказ и его сумму.
func (m *StoreMetrics) RecordOrderCreated(total float64) {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
	m.orderTotal.Observe(total)
}

// RecordStatusTransition учитывает смену статуса заказа.
func (m *StoreMetrics) RecordStatusTransition(from, to string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(from, to).Inc()
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *StoreMetrics) RecordTimelineEvent() {
	if m == nil {
		return
	}
	m.timelineEvents.Inc()
}

// RecordIdempotencyCleanup учитывает прогон очистки и число удалённых ключей.
func (m *StoreMetrics) RecordIdempotencyCleanup(deleted int, err error) {
	if m == nil {
		return
	}
	m.idempotencyCleanupRuns.WithLabelValues(result(err)).Inc()
	if deleted > 0 {
		m.idempotencyKeysDeleted.Add(float64(deleted))
	}
}

// RecordIdempotencyReplay учитывает повторный запрос: replayed, in_progress или mismatch.
func (m *StoreMetrics) RecordIdempotencyReplay(outcome string) {
	if m == nil {
		return
	}
	m.idempotencyReplays.WithLabelValues(outcome).Inc()
}

// RecordOutboxDelivery учитывает попытку доставки: sent, retry, failed или dlq_failed.
func (m *StoreMetrics) RecordOutboxDelivery(eventType, outcome string) {
	if m == nil {
		return
	}
	m.outboxDeliveries.WithLabelValues(eventType, outcome).Inc()
}

// SetOutboxBacklog обновляет gauges backlog'а outbox.
func (m *StoreMetrics) SetOutboxBacklog(pending, failed int, oldestAge time.Duration) {
	if m == nil {
		return
	}
	m.outboxPending.Set(float64(pending))
	m.outboxFailed.Set(float64(failed))
	m.outboxOldestAge.Set(oldestAge.Seconds())
}
