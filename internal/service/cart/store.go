// Package cart хранит корзины клиентов: позиции, кеш стоимости строк и
// сохранение в StateStore.
package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/events"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/platform/keylock"
	"github.com/vladislavdragonenkov/storefront/internal/pricing"
	"github.com/vladislavdragonenkov/storefront/internal/session"
)

const storeName = "cart"

// Store обслуживает корзины всех клиентов. Корзина каждого клиента защищена
// собственной блокировкой, поэтому операции разных клиентов не мешают друг другу.
type Store struct {
	state     domain.StateStore
	catalog   domain.Catalog
	publisher events.Publisher
	metrics   *metrics.StoreMetrics
	logger    *log.Entry
	now       func() time.Time

	locks *keylock.Map
	// carts — загруженные корзины для чтения; запись в map только под блокировкой клиента.
	carts *cartMap
}

// Option настраивает Store.
type Option func(*Store)

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPublisher задаёт получателя событий cart.changed.
func WithPublisher(p events.Publisher) Option {
	return func(s *Store) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithMetrics задаёт метрики.
func WithMetrics(m *metrics.StoreMetrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithClock подменяет часы (для тестов).
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore создаёт хранилище корзин.
func NewStore(state domain.StateStore, catalog domain.Catalog, opts ...Option) *Store {
	s := &Store{
		state:     state,
		catalog:   catalog,
		publisher: events.Nop{},
		logger:    log.WithField("component", "cart-store"),
		now:       func() time.Time { return time.Now().UTC() },
		locks:     keylock.New(),
		carts:     newCartMap(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load перечитывает корзину клиента из хранилища (начало сессии).
// Устаревшие формы записи нормализуются и записываются обратно.
// Повторный вызов даёт то же состояние.
func (s *Store) Load(ctx context.Context) (domain.Cart, error) {
	customer, err := session.CustomerFromContext(ctx)
	if err != nil {
		return domain.Cart{}, err
	}

	unlock := s.locks.Lock(customer.ID)
	defer unlock()

	s.carts.delete(customer.ID)
	c, _ := s.loadLocked(ctx, customer)
	return c.Clone(), nil
}

// Snapshot возвращает копию текущей корзины.
func (s *Store) Snapshot(ctx context.Context) (domain.Cart, error) {
	customer, err := session.CustomerFromContext(ctx)
	if err != nil {
		return domain.Cart{}, err
	}
	return s.view(ctx, customer), nil
}

// Totals считает итоги корзины с персональной скидкой клиента.
func (s *Store) Totals(ctx context.Context) (pricing.Totals, error) {
	customer, err := session.CustomerFromContext(ctx)
	if err != nil {
		return pricing.Totals{}, err
	}
	c := s.view(ctx, customer)
	return pricing.CartTotals(linesOf(c), customer.DiscountPercentage), nil
}

// Drain вызывает fn с копией корзины под блокировкой клиента и очищает корзину,
// только если fn завершилась успешно. Пока fn выполняется, корзину нельзя изменить.
// Если fn успешна, а очистка не удалась, возвращается ошибка ErrPersistence.
func (s *Store) Drain(ctx context.Context, fn func(domain.Cart) error) error {
	customer, err := session.CustomerFromContext(ctx)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(customer.ID)
	c, err := s.loadForWrite(ctx, customer)
	if err != nil {
		unlock()
		return err
	}

	if err := fn(c.Clone()); err != nil {
		unlock()
		return err
	}

	err = s.clearLocked(ctx, customer.ID)
	unlock()
	s.metrics.RecordCartMutation("drain", err)
	if err != nil {
		return err
	}
	s.publishChanged(ctx, customer.ID, "drain", domain.Cart{CustomerID: customer.ID})
	return nil
}

// Forget выбрасывает корзину клиента из памяти (выход из сессии).
// Сохранённое состояние не трогается.
func (s *Store) Forget(customerID string) {
	unlock := s.locks.Lock(customerID)
	defer unlock()
	s.carts.delete(customerID)
}

// view возвращает копию корзины, загружая её при первом обращении.
func (s *Store) view(ctx context.Context, customer domain.Customer) domain.Cart {
	runlock := s.locks.RLock(customer.ID)
	if c, ok := s.carts.get(customer.ID); ok {
		runlock()
		return c.Clone()
	}
	runlock()

	unlock := s.locks.Lock(customer.ID)
	defer unlock()
	c, _ := s.loadLocked(ctx, customer)
	return c.Clone()
}

// loadForWrite перечитывает корзину из хранилища: её могла изменить другая реплика,
// поэтому кеш служит только для чтения. В отличие от чтения, ошибка хранилища не
// превращается в пустую корзину: иначе запись затёрла бы сохранённые позиции.
func (s *Store) loadForWrite(ctx context.Context, customer domain.Customer) (domain.Cart, error) {
	s.carts.delete(customer.ID)
	c, err := s.loadLocked(ctx, customer)
	if err != nil {
		return domain.Cart{}, domain.PersistenceError("load cart", err)
	}
	return c, nil
}

// loadLocked вызывается под блокировкой клиента. При ошибке хранилища возвращает
// пустую корзину и ошибку, ничего не кешируя. Нечитаемая запись заменяется пустой
// корзиной и кешируется: следующая запись её перезапишет.
func (s *Store) loadLocked(ctx context.Context, customer domain.Customer) (domain.Cart, error) {
	if c, ok := s.carts.get(customer.ID); ok {
		return c, nil
	}

	empty := domain.Cart{CustomerID: customer.ID}

	data, err := s.state.Get(ctx, customer.ID, stateKey)
	if errors.Is(err, domain.ErrStateNotFound) {
		s.carts.set(customer.ID, empty)
		return empty, nil
	}
	if err != nil {
		s.logger.WithError(err).WithField("customer_id", customer.ID).Warn("cart load failed, serving empty cart")
		s.metrics.RecordLoadDegraded(storeName)
		return empty, err
	}

	raw, legacy, err := decodeRecord(data)
	if err != nil {
		s.logger.WithError(err).WithField("customer_id", customer.ID).Warn("cart record is unreadable, starting with empty cart")
		s.metrics.RecordLoadDegraded(storeName)
		s.carts.set(customer.ID, empty)
		return empty, nil
	}

	c, changed, rewritable := s.rebuild(ctx, customer, raw)
	if (legacy || changed) && rewritable {
		if err := s.persist(ctx, c); err != nil {
			s.logger.WithError(err).WithField("customer_id", customer.ID).Warn("normalized cart was not written back")
		} else {
			s.metrics.RecordNormalized(storeName)
			s.logger.WithField("customer_id", customer.ID).Info("cart record normalized")
		}
	}

	s.carts.set(customer.ID, c)
	return c, nil
}

// rebuild собирает корзину из сохранённых строк: нормализует, склеивает дубликаты,
// пересчитывает кеш стоимости строк.
func (s *Store) rebuild(ctx context.Context, customer domain.Customer, raw []storedLine) (c domain.Cart, changed, rewritable bool) {
	c = domain.Cart{CustomerID: customer.ID, Items: make([]domain.CartLineItem, 0, len(raw))}
	rewritable = true

	for _, r := range raw {
		item, lineChanged, err := s.normalize(ctx, r)
		if errors.Is(err, errUnusableLine) {
			changed = true
			continue
		}
		if err != nil {
			s.logger.WithError(err).WithField("customer_id", customer.ID).Warn("catalog unavailable during cart normalization")
			rewritable = false
		}
		changed = changed || lineChanged

		if idx := c.Find(item.ID); idx >= 0 {
			c.Items[idx].Quantity += item.Quantity
			changed = true
			continue
		}
		c.Items = append(c.Items, item)
	}

	for i := range c.Items {
		c.Items[i].LineTotal = lineTotal(c.Items[i], customer)
	}
	return c, changed, rewritable
}

func (s *Store) persist(ctx context.Context, c domain.Cart) error {
	data, err := encodeRecord(c)
	if err != nil {
		return domain.PersistenceError("encode cart", err)
	}
	if err := s.state.Set(ctx, c.CustomerID, stateKey, data); err != nil {
		return domain.PersistenceError("save cart", err)
	}
	return nil
}

func (s *Store) clearLocked(ctx context.Context, customerID string) error {
	if err := s.state.Delete(ctx, customerID, stateKey); err != nil && !errors.Is(err, domain.ErrStateNotFound) {
		s.logger.WithError(err).WithField("customer_id", customerID).Error("failed to clear cart")
		return domain.PersistenceError("clear cart", err)
	}
	s.carts.set(customerID, domain.Cart{CustomerID: customerID, UpdatedAt: s.now()})
	return nil
}

func (s *Store) publishChanged(ctx context.Context, customerID, op string, c domain.Cart) {
	s.publisher.Publish(ctx, events.Event{
		Name:        events.CartChanged,
		AggregateID: customerID,
		CustomerID:  customerID,
		Payload: map[string]any{
			"op":         op,
			"item_count": c.ItemCount(),
		},
		OccurredAt: s.now(),
	})
}

func lineTotal(item domain.CartLineItem, customer domain.Customer) decimal.Decimal {
	return pricing.LineTotal(item.Product.Price, customer.DiscountPercentage, item.Quantity)
}

func linesOf(c domain.Cart) []pricing.Line {
	lines := make([]pricing.Line, 0, len(c.Items))
	for _, item := range c.Items {
		lines = append(lines, pricing.Line{Price: item.Product.Price, Quantity: item.Quantity})
	}
	return lines
}

type cartMap struct {
	mu    sync.RWMutex
	carts map[string]domain.Cart
}

func newCartMap() *cartMap {
	return &cartMap{carts: make(map[string]domain.Cart)}
}

func (m *cartMap) get(customerID string) (domain.Cart, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.carts[customerID]
	return c, ok
}

func (m *cartMap) set(customerID string, c domain.Cart) {
	m.mu.Lock()
	m.carts[customerID] = c
	m.mu.Unlock()
}

func (m *cartMap) delete(customerID string) {
	m.mu.Lock()
	delete(m.carts, customerID)
	m.mu.Unlock()
}
