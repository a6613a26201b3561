package app

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/session"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

const envPostgresTestDSN = "STOREFRONT_POSTGRES_TEST_DSN"

// postgresTestConfig пропускает тест, если база для интеграционных тестов не задана.
func postgresTestConfig(t *testing.T) Config {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv(envPostgresTestDSN))
	if dsn == "" {
		t.Skipf("%s is not set", envPostgresTestDSN)
	}
	cfg := testRunConfig()
	cfg.StorageDriver = StorageDriverPostgres
	cfg.StateDriver = StateDriverPostgres
	cfg.PostgresDSN = dsn
	cfg.PostgresAutoMigrate = true
	return cfg
}

func seedPostgresCatalog(t *testing.T, dsn string) {
	t.Helper()
	ctx := context.Background()
	store, err := postgres.Open(ctx, dsn)
	require.NoError(t, err)
	defer store.Close()

	catalog := postgres.NewCatalog(store)
	for _, p := range memory.DemoProducts() {
		require.NoError(t, catalog.Upsert(ctx, p))
	}
}

func TestPostgresCheckoutPersistsEverything(t *testing.T) {
	cfg := postgresTestConfig(t)
	logger := log.WithField("test", "postgres-app")

	deps, err := initRuntimeDependencies(context.Background(), cfg, logger)
	if err != nil {
		t.Skipf("postgres is not available: %v", err)
	}
	t.Cleanup(func() { _ = deps.closeFn() })
	seedPostgresCatalog(t, cfg.PostgresDSN)

	check := deps.checkers["postgres"].Check(context.Background())
	require.Equal(t, healthcheck.StatusHealthy, check.Status, check.Message)

	svc, err := buildServices(cfg, deps, prometheus.NewRegistry(), logger)
	require.NoError(t, err)
	t.Cleanup(svc.detachRelay)

	customer := domain.Customer{ID: "it-" + uuid.NewString(), DiscountPercentage: decimal.NewFromInt(10)}
	ctx := session.WithCustomer(context.Background(), customer)

	_, err = svc.cart.Add(ctx, "p-1001", 2)
	require.NoError(t, err)
	result, err := svc.checkout.PlaceOrder(ctx, domain.Address{FullName: "IT", Line1: "1 Main St", City: "Riga", Country: "LV"}, "card")
	require.NoError(t, err)

	stored, err := deps.repo.Get(context.Background(), result.Order.ID)
	require.NoError(t, err)
	assert.True(t, stored.Total.Equal(result.Order.Total), "total %s", stored.Total)
	assert.Len(t, stored.Items, 1)

	listed, err := svc.orders.List(context.Background(), domain.OrderQuery{CustomerID: customer.ID})
	require.NoError(t, err)
	require.Len(t, listed, 1)

	history, err := svc.orders.History(context.Background(), result.Order.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.TimelineOrderCreated, history[0].Type)

	stats, err := deps.outboxRepo.Stats(context.Background())
	require.NoError(t, err)
	assert.Positive(t, stats.PendingCount)

	// корзина очищена и в хранилище состояния
	cart, err := svc.cart.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestRun_PostgresGracefulShutdown(t *testing.T) {
	cfg := postgresTestConfig(t)
	cfg.StateDriver = StateDriverMemory

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err := Run(ctx, cfg)
	require.True(t, errors.Is(err, context.DeadlineExceeded), "unexpected error: %v", err)
}
