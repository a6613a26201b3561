package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// StateStore — in-memory key-value хранилище в пространстве клиента.
type StateStore struct {
	mu     sync.RWMutex
	values map[string]map[string][]byte
}

// NewStateStore создаёт пустое хранилище состояния.
func NewStateStore() *StateStore {
	return &StateStore{values: make(map[string]map[string][]byte)}
}

// Get возвращает копию значения или ErrStateNotFound.
func (s *StateStore) Get(_ context.Context, customerID, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[customerID][key]
	if !ok {
		return nil, domain.ErrStateNotFound
	}
	return append([]byte(nil), value...), nil
}

// Set сохраняет копию значения.
func (s *StateStore) Set(_ context.Context, customerID, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.values[customerID]
	if !ok {
		bucket = make(map[string][]byte)
		s.values[customerID] = bucket
	}
	bucket[key] = append([]byte(nil), value...)
	return nil
}

// Delete удаляет значение; отсутствие ключа не ошибка.
func (s *StateStore) Delete(_ context.Context, customerID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.values[customerID]
	if !ok {
		return nil
	}
	delete(bucket, key)
	if len(bucket) == 0 {
		delete(s.values, customerID)
	}
	return nil
}

var _ domain.StateStore = (*StateStore)(nil)
