package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/events"
	"github.com/vladislavdragonenkov/storefront/internal/session"
)

func newMemoryServices(t *testing.T, cfg Config) (*services, *runtimeDependencies) {
	t.Helper()

	cfg.SeedDemoCatalog = true
	deps, err := initRuntimeDependencies(context.Background(), cfg, log.WithField("test", "services"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.closeFn() })

	svc, err := buildServices(cfg, deps, prometheus.NewRegistry(), log.WithField("test", "services"))
	require.NoError(t, err)
	t.Cleanup(svc.detachRelay)
	return svc, deps
}

func TestBuildServices_RequiresJWTSecret(t *testing.T) {
	deps, err := initRuntimeDependencies(context.Background(), DefaultConfig(), nil)
	require.NoError(t, err)

	_, err = buildServices(DefaultConfig(), deps, prometheus.NewRegistry(), nil)
	require.True(t, errors.Is(err, errJWTSecretRequired), "unexpected error: %v", err)
}

func TestBuildServices_CheckoutEnqueuesOrderEvent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JWTSecret = "test-secret"
	svc, deps := newMemoryServices(t, cfg)

	customer := domain.Customer{ID: "c-1", Email: "c1@example.com", DiscountPercentage: decimal.NewFromInt(10)}
	ctx := session.WithCustomer(context.Background(), customer)

	_, err := svc.cart.Add(ctx, "p-1001", 2)
	require.NoError(t, err)

	result, err := svc.checkout.PlaceOrder(ctx, domain.Address{
		FullName: "Alice Example",
		Line1:    "1 Main St",
		City:     "Berlin",
		Country:  "DE",
	}, "card")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, result.Order.Status)

	pending, err := deps.outboxRepo.PullPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, events.OrderCreated, pending[0].EventType)
	assert.Equal(t, result.Order.ID, pending[0].AggregateID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(pending[0].Payload, &payload))
	assert.Equal(t, "c-1", payload["customer_id"])

	remaining, err := svc.cart.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, remaining.Items)

	history, err := svc.orders.History(context.Background(), result.Order.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, history)
}

func TestBuildServices_CartEventsStayOutOfOutbox(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JWTSecret = "test-secret"
	svc, deps := newMemoryServices(t, cfg)

	ctx := session.WithCustomer(context.Background(), domain.Customer{ID: "c-2"})
	_, err := svc.cart.Add(ctx, "p-1003", 1)
	require.NoError(t, err)
	_, err = svc.wishlist.Toggle(ctx, "p-1002")
	require.NoError(t, err)

	stats, err := deps.outboxRepo.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.PendingCount)
}
