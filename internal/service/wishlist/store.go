// Package wishlist хранит избранные товары клиентов.
package wishlist

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/events"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/platform/keylock"
	"github.com/vladislavdragonenkov/storefront/internal/session"
)

const storeName = "wishlist"

// Store обслуживает избранное всех клиентов с блокировкой на клиента.
type Store struct {
	state     domain.StateStore
	catalog   domain.Catalog
	publisher events.Publisher
	metrics   *metrics.StoreMetrics
	logger    *log.Entry
	now       func() time.Time

	locks *keylock.Map
	mu    sync.RWMutex
	lists map[string]domain.Wishlist
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

// WithPublisher задаёт получателя событий wishlist.changed.
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

// WithClock подменяет часы.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore создаёт хранилище избранного.
func NewStore(state domain.StateStore, catalog domain.Catalog, opts ...Option) *Store {
	s := &Store{
		state:     state,
		catalog:   catalog,
		publisher: events.Nop{},
		logger:    log.WithField("component", "wishlist-store"),
		now:       func() time.Time { return time.Now().UTC() },
		locks:     keylock.New(),
		lists:     make(map[string]domain.Wishlist),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load перечитывает избранное клиента из хранилища.
func (s *Store) Load(ctx context.Context) (domain.Wishlist, error) {
	customer, err := session.CustomerFromContext(ctx)
	if err != nil {
		return domain.Wishlist{}, err
	}

	unlock := s.locks.Lock(customer.ID)
	defer unlock()

	s.forget(customer.ID)
	w, _ := s.loadLocked(ctx, customer.ID)
	return w.Clone(), nil
}

// List возвращает копию избранного.
func (s *Store) List(ctx context.Context) (domain.Wishlist, error) {
	customer, err := session.CustomerFromContext(ctx)
	if err != nil {
		return domain.Wishlist{}, err
	}
	return s.view(ctx, customer.ID), nil
}

// Contains сообщает, есть ли товар в избранном.
func (s *Store) Contains(ctx context.Context, productID string) (bool, error) {
	customer, err := session.CustomerFromContext(ctx)
	if err != nil {
		return false, err
	}
	return s.view(ctx, customer.ID).Contains(strings.TrimSpace(productID)), nil
}

// Add добавляет товар; повторное добавление ничего не меняет.
func (s *Store) Add(ctx context.Context, productID string) (domain.Wishlist, error) {
	productID = strings.TrimSpace(productID)
	w, _, err := s.mutate(ctx, "add", productID, func(w *domain.Wishlist, snapshot func() (domain.ProductSnapshot, error)) (bool, error) {
		if w.Contains(productID) {
			return false, nil
		}
		return s.insert(w, productID, snapshot)
	})
	return w, err
}

// Remove удаляет товар из избранного.
func (s *Store) Remove(ctx context.Context, productID string) (domain.Wishlist, error) {
	productID = strings.TrimSpace(productID)
	w, _, err := s.mutate(ctx, "remove", productID, func(w *domain.Wishlist, _ func() (domain.ProductSnapshot, error)) (bool, error) {
		return removeItem(w, productID), nil
	})
	return w, err
}

// Toggle удаляет товар, если он есть, иначе добавляет. Проверка и запись выполняются
// под одной блокировкой клиента. Возвращает признак присутствия после операции.
func (s *Store) Toggle(ctx context.Context, productID string) (bool, error) {
	productID = strings.TrimSpace(productID)
	_, present, err := s.mutate(ctx, "toggle", productID, func(w *domain.Wishlist, snapshot func() (domain.ProductSnapshot, error)) (bool, error) {
		if removeItem(w, productID) {
			return true, nil
		}
		return s.insert(w, productID, snapshot)
	})
	return present, err
}

// Clear очищает избранное.
func (s *Store) Clear(ctx context.Context) error {
	customer, err := session.CustomerFromContext(ctx)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(customer.ID)
	err = s.state.Delete(ctx, customer.ID, stateKey)
	if err != nil && !errors.Is(err, domain.ErrStateNotFound) {
		unlock()
		err = domain.PersistenceError("clear wishlist", err)
		s.metrics.RecordWishlistMutation("clear", err)
		return err
	}
	s.store(customer.ID, domain.Wishlist{CustomerID: customer.ID, UpdatedAt: s.now()})
	unlock()

	s.metrics.RecordWishlistMutation("clear", nil)
	s.publishChanged(ctx, customer.ID, "clear", 0)
	return nil
}

// Forget выбрасывает избранное клиента из памяти.
func (s *Store) Forget(customerID string) {
	unlock := s.locks.Lock(customerID)
	defer unlock()
	s.forget(customerID)
}

func (s *Store) insert(w *domain.Wishlist, productID string, snapshot func() (domain.ProductSnapshot, error)) (bool, error) {
	p, err := snapshot()
	if err != nil {
		return false, err
	}
	w.Items = append(w.Items, domain.WishlistItem{ProductID: productID, Product: p, AddedAt: s.now()})
	return true, nil
}

func removeItem(w *domain.Wishlist, productID string) bool {
	for i := range w.Items {
		if w.Items[i].ProductID == productID {
			w.Items = append(w.Items[:i], w.Items[i+1:]...)
			return true
		}
	}
	return false
}

// mutate выполняет чтение-изменение-запись под блокировкой клиента.
// Снимок товара запрашивается у каталога лениво, только если apply его требует.
func (s *Store) mutate(
	ctx context.Context,
	op, productID string,
	apply func(w *domain.Wishlist, snapshot func() (domain.ProductSnapshot, error)) (bool, error),
) (domain.Wishlist, bool, error) {
	customer, err := session.CustomerFromContext(ctx)
	if err != nil {
		return domain.Wishlist{}, false, err
	}
	if productID == "" {
		return domain.Wishlist{}, false, domain.ErrProductIDRequired
	}

	snapshot := func() (domain.ProductSnapshot, error) {
		p, err := s.catalog.GetProduct(ctx, productID)
		if err != nil {
			return domain.ProductSnapshot{}, err
		}
		return p.Snapshot(), nil
	}

	unlock := s.locks.Lock(customer.ID)
	// Запись строится от сохранённого состояния, а не от кеша: его могла изменить другая реплика.
	s.forget(customer.ID)
	base, err := s.loadLocked(ctx, customer.ID)
	if err != nil {
		unlock()
		err = domain.PersistenceError("load wishlist", err)
		s.metrics.RecordWishlistMutation(op, err)
		return domain.Wishlist{}, false, err
	}

	next := base.Clone()
	changed, err := apply(&next, snapshot)
	if err != nil {
		unlock()
		s.metrics.RecordWishlistMutation(op, err)
		return domain.Wishlist{}, false, err
	}
	if !changed {
		unlock()
		return base.Clone(), base.Contains(productID), nil
	}

	next.UpdatedAt = s.now()
	if err := s.persist(ctx, next); err != nil {
		unlock()
		s.logger.WithError(err).WithFields(log.Fields{
			"customer_id": customer.ID,
			"op":          op,
		}).Error("wishlist mutation was not persisted")
		s.metrics.RecordWishlistMutation(op, err)
		return domain.Wishlist{}, false, err
	}
	s.store(customer.ID, next)
	unlock()

	s.metrics.RecordWishlistMutation(op, nil)
	s.publishChanged(ctx, customer.ID, op, len(next.Items))
	return next.Clone(), next.Contains(productID), nil
}

func (s *Store) view(ctx context.Context, customerID string) domain.Wishlist {
	runlock := s.locks.RLock(customerID)
	if w, ok := s.cached(customerID); ok {
		runlock()
		return w.Clone()
	}
	runlock()

	unlock := s.locks.Lock(customerID)
	defer unlock()
	w, _ := s.loadLocked(ctx, customerID)
	return w.Clone()
}

// loadLocked загружает избранное под блокировкой клиента; поведение при ошибках
// совпадает с корзиной.
func (s *Store) loadLocked(ctx context.Context, customerID string) (domain.Wishlist, error) {
	if w, ok := s.cached(customerID); ok {
		return w, nil
	}

	empty := domain.Wishlist{CustomerID: customerID}
	data, err := s.state.Get(ctx, customerID, stateKey)
	if errors.Is(err, domain.ErrStateNotFound) {
		s.store(customerID, empty)
		return empty, nil
	}
	if err != nil {
		s.logger.WithError(err).WithField("customer_id", customerID).Warn("wishlist load failed, serving empty wishlist")
		s.metrics.RecordLoadDegraded(storeName)
		return empty, err
	}

	raw, legacy, err := decodeRecord(data)
	if err != nil {
		s.logger.WithError(err).WithField("customer_id", customerID).Warn("wishlist record is unreadable, starting with empty wishlist")
		s.metrics.RecordLoadDegraded(storeName)
		s.store(customerID, empty)
		return empty, nil
	}

	w := domain.Wishlist{CustomerID: customerID, Items: make([]domain.WishlistItem, 0, len(raw))}
	changed, rewritable := legacy, true
	for _, r := range raw {
		item, lineChanged, err := s.normalize(ctx, r)
		if errors.Is(err, errUnusableEntry) {
			changed = true
			continue
		}
		if err != nil {
			s.logger.WithError(err).WithField("customer_id", customerID).Warn("catalog unavailable during wishlist normalization")
			rewritable = false
		}
		if w.Contains(item.ProductID) {
			changed = true
			continue
		}
		changed = changed || lineChanged
		w.Items = append(w.Items, item)
	}

	if changed && rewritable {
		if err := s.persist(ctx, w); err != nil {
			s.logger.WithError(err).WithField("customer_id", customerID).Warn("normalized wishlist was not written back")
		} else {
			s.metrics.RecordNormalized(storeName)
		}
	}

	s.store(customerID, w)
	return w, nil
}

func (s *Store) persist(ctx context.Context, w domain.Wishlist) error {
	data, err := encodeRecord(w)
	if err != nil {
		return domain.PersistenceError("encode wishlist", err)
	}
	if err := s.state.Set(ctx, w.CustomerID, stateKey, data); err != nil {
		return domain.PersistenceError("save wishlist", err)
	}
	return nil
}

func (s *Store) publishChanged(ctx context.Context, customerID, op string, size int) {
	s.publisher.Publish(ctx, events.Event{
		Name:        events.WishlistChanged,
		AggregateID: customerID,
		CustomerID:  customerID,
		Payload:     map[string]any{"op": op, "size": size},
		OccurredAt:  s.now(),
	})
}

func (s *Store) cached(customerID string) (domain.Wishlist, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.lists[customerID]
	return w, ok
}

func (s *Store) store(customerID string, w domain.Wishlist) {
	s.mu.Lock()
	s.lists[customerID] = w
	s.mu.Unlock()
}

func (s *Store) forget(customerID string) {
	s.mu.Lock()
	delete(s.lists, customerID)
	s.mu.Unlock()
}
