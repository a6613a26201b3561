// Package redis содержит Redis-реализацию хранилища состояния клиента.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const keyPrefix = "storefront"

// StateStore хранит записи клиента (корзина, избранное) в Redis.
type StateStore struct {
	client *goredis.Client
	ttl    time.Duration
}

// Option настраивает StateStore.
type Option func(*StateStore)

// WithTTL задаёт срок жизни записей; 0 — без истечения.
func WithTTL(ttl time.Duration) Option {
	return func(s *StateStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewStateStore создаёт Redis-хранилище поверх готового клиента.
func NewStateStore(client *goredis.Client, opts ...Option) *StateStore {
	s := &StateStore{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get возвращает значение или ErrStateNotFound.
func (s *StateStore) Get(ctx context.Context, customerID, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, stateKey(customerID, key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

// Set сохраняет значение.
func (s *StateStore) Set(ctx context.Context, customerID, key string, value []byte) error {
	if err := s.client.Set(ctx, stateKey(customerID, key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete удаляет значение.
func (s *StateStore) Delete(ctx context.Context, customerID, key string) error {
	if err := s.client.Del(ctx, stateKey(customerID, key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Ping проверяет доступность Redis (для health-check).
func (s *StateStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func stateKey(customerID, key string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, customerID, key)
}

var _ domain.StateStore = (*StateStore)(nil)
