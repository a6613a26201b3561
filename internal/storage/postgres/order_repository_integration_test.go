package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestOrderRepository_CreateAndGet(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()
	repo := NewOrderRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	want := sampleOrder("order-1", "customer-1", now)
	require.NoError(t, repo.Create(ctx, want))

	got, err := repo.Get(ctx, want.ID)
	require.NoError(t, err)
	assert.Equal(t, want.CustomerID, got.CustomerID)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.ShippingAddress, got.ShippingAddress)
	assert.True(t, got.Total.Equal(want.Total), "total %s", got.Total)
	assert.True(t, got.DiscountAmount.Equal(want.DiscountAmount), "discount %s", got.DiscountAmount)
	assert.True(t, got.CreatedAt.Equal(now))

	require.Len(t, got.Items, 2)
	assert.Equal(t, "Bearing 6204", got.Items[0].Name)
	assert.True(t, got.Items[0].UnitPrice.Equal(decimal.RequireFromString("45.00")))
	assert.Equal(t, "BLT-SPZ", got.Items[1].SKU)

	assert.ErrorIs(t, repo.Create(ctx, want), domain.ErrOrderExists)
	_, err = repo.Get(ctx, "missing-order")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestOrderRepository_ListPagesWithCursor(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()
	repo := NewOrderRepository(store)

	base := time.Now().UTC().Round(time.Microsecond)
	for i, id := range []string{"order-a", "order-b", "order-c"} {
		order := sampleOrder(id, "customer-1", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Create(ctx, order))
	}
	// тот же момент, что у order-c: порядок решает id
	require.NoError(t, repo.Create(ctx, sampleOrder("order-d", "customer-1", base.Add(2*time.Minute))))
	require.NoError(t, repo.Create(ctx, sampleOrder("order-x", "customer-2", base)))

	first, err := repo.List(ctx, domain.OrderQuery{CustomerID: "customer-1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "order-d", first[0].ID)
	assert.Equal(t, "order-c", first[1].ID)
	assert.Len(t, first[0].Items, 2)

	cursor := domain.CursorOf(first[1])
	second, err := repo.List(ctx, domain.OrderQuery{CustomerID: "customer-1", Limit: 2, After: &cursor})
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, "order-b", second[0].ID)
	assert.Equal(t, "order-a", second[1].ID)

	empty, err := repo.List(ctx, domain.OrderQuery{CustomerID: "nobody"})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestOrderRepository_ListFiltersByStatus(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()
	repo := NewOrderRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	shipped := sampleOrder("order-shipped", "customer-1", now)
	require.NoError(t, repo.Create(ctx, shipped))
	require.NoError(t, repo.Create(ctx, sampleOrder("order-pending", "customer-1", now.Add(time.Second))))

	shipped.Status = domain.OrderStatusShipped
	require.NoError(t, repo.Save(ctx, shipped))

	orders, err := repo.List(ctx, domain.OrderQuery{CustomerID: "customer-1", Status: domain.OrderStatusShipped})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, shipped.ID, orders[0].ID)
}

func TestOrderRepository_SaveOptimisticLock(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()
	repo := NewOrderRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	order := sampleOrder("order-lock", "customer-2", now)
	assert.ErrorIs(t, repo.Save(ctx, order), domain.ErrOrderNotFound)
	require.NoError(t, repo.Create(ctx, order))

	order.Status = domain.OrderStatusProcessing
	order.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, repo.Save(ctx, order))

	stored, err := repo.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, stored.Status)
	assert.Equal(t, order.Version+1, stored.Version)
	assert.True(t, stored.UpdatedAt.Equal(order.UpdatedAt))

	// повтор с той же версией проигрывает
	assert.ErrorIs(t, repo.Save(ctx, order), domain.ErrOrderVersionConflict)
}

func sampleOrder(id, customerID string, createdAt time.Time) domain.Order {
	return domain.Order{
		ID:                 id,
		CustomerID:         customerID,
		CustomerEmail:      customerID + "@example.com",
		CustomerName:       "Test Customer",
		Status:             domain.OrderStatusPending,
		Subtotal:           decimal.RequireFromString("128.50"),
		DiscountAmount:     decimal.RequireFromString("12.85"),
		DiscountPercentage: decimal.NewFromInt(10),
		Total:              decimal.RequireFromString("115.65"),
		Items: []domain.OrderItem{
			{ProductID: "p-1", Name: "Bearing 6204", SKU: "BRG-6204", CatalogCode: "CAT-1", UnitPrice: decimal.RequireFromString("45.00"), Quantity: 2},
			{ProductID: "p-2", Name: "V-belt SPZ", SKU: "BLT-SPZ", CatalogCode: "CAT-2", UnitPrice: decimal.RequireFromString("38.50"), Quantity: 1},
		},
		ShippingAddress: domain.Address{FullName: "Test Customer", Line1: "Main st 1", City: "Riga", Country: "LV"},
		PaymentMethod:   "invoice",
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
}
