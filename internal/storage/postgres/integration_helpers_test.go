package postgres

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

// envTestDSN указывает на одноразовую базу: тесты очищают все таблицы.
const envTestDSN = "STOREFRONT_POSTGRES_TEST_DSN"

// storefrontTables перечислены в порядке, безопасном для TRUNCATE ... CASCADE.
var storefrontTables = []string{
	"idempotency_keys",
	"customer_state",
	"products",
	"outbox_messages",
	"timeline_events",
	"order_items",
	"orders",
}

func openRawPostgresStoreForIntegrationTest(t *testing.T) *Store {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv(envTestDSN))
	if dsn == "" {
		t.Skipf("%s is not set", envTestDSN)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	store, err := Open(ctx, dsn)
	if err != nil {
		t.Skipf("postgres is not available for integration tests: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func openPostgresStoreForIntegrationTest(t *testing.T) *Store {
	t.Helper()

	store := openRawPostgresStoreForIntegrationTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.MigrateUp(ctx, 0); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	if _, err := store.DB().ExecContext(ctx,
		"TRUNCATE TABLE "+strings.Join(storefrontTables, ", ")+" RESTART IDENTITY CASCADE",
	); err != nil {
		t.Fatalf("truncate integration tables: %v", err)
	}
	return store
}
