package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// StateStore хранит записи клиента (корзина, избранное) в таблице customer_state.
type StateStore struct {
	db *sql.DB
}

// NewStateStore создаёт PostgreSQL-реализацию StateStore.
func NewStateStore(store *Store) *StateStore {
	return &StateStore{db: store.DB()}
}

func (s *StateStore) Get(ctx context.Context, customerID, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var value []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT value
		FROM customer_state
		WHERE customer_id = $1 AND key = $2
	`, customerID, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrStateNotFound
		}
		return nil, fmt.Errorf("select customer state: %w", err)
	}
	return value, nil
}

func (s *StateStore) Set(ctx context.Context, customerID, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO customer_state (customer_id, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (customer_id, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, customerID, key, value); err != nil {
		return fmt.Errorf("upsert customer state: %w", err)
	}
	return nil
}

func (s *StateStore) Delete(ctx context.Context, customerID, key string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM customer_state
		WHERE customer_id = $1 AND key = $2
	`, customerID, key); err != nil {
		return fmt.Errorf("delete customer state: %w", err)
	}
	return nil
}

var _ domain.StateStore = (*StateStore)(nil)
