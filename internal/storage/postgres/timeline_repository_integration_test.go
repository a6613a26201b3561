package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestTimelineRepository_AppendAndList(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()
	orders := NewOrderRepository(store)
	timeline := NewTimelineRepository(store)

	createdAt := time.Now().UTC().Add(-time.Minute).Round(time.Microsecond)
	order := sampleOrder("ORD-TIMELINE", "customer-timeline", createdAt)
	require.NoError(t, orders.Create(ctx, order))

	require.NoError(t, timeline.Append(ctx, domain.OrderCreatedEvent(order)))
	changedAt := createdAt.Add(10 * time.Second)
	require.NoError(t, timeline.Append(ctx,
		domain.StatusChangedEvent(order.ID, domain.OrderStatusPending, domain.OrderStatusProcessing, changedAt)))
	require.NoError(t, timeline.Append(ctx,
		domain.StatusChangedEvent(order.ID, domain.OrderStatusProcessing, domain.OrderStatusShipped, changedAt)))

	history, err := timeline.List(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)

	require.Equal(t, domain.TimelineOrderCreated, history[0].Type)
	require.Empty(t, history[0].From)
	require.Equal(t, "total "+order.Total.StringFixed(2), history[0].Note)
	require.True(t, history[0].Occurred.Equal(createdAt))

	require.Equal(t, domain.OrderStatusProcessing, history[1].To)
	require.Equal(t, domain.OrderStatusShipped, history[2].To, "equal timestamps keep insertion order")
	require.Equal(t, domain.OrderStatusProcessing, history[2].From)
}

func TestTimelineRepository_FillsOccurred(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()
	order := sampleOrder("ORD-TIMELINE-NOW", "customer-timeline", time.Now().UTC())
	require.NoError(t, NewOrderRepository(store).Create(ctx, order))

	timeline := NewTimelineRepository(store)
	require.NoError(t, timeline.Append(ctx, domain.TimelineEvent{OrderID: order.ID, Type: domain.TimelineOrderCreated}))

	history, err := timeline.List(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.False(t, history[0].Occurred.IsZero())
}

func TestTimelineRepository_RejectsUnknownOrder(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()
	timeline := NewTimelineRepository(store)

	err := timeline.Append(ctx, domain.StatusChangedEvent("ORD-404", domain.OrderStatusPending, domain.OrderStatusCancelled, time.Now()))
	require.Error(t, err)

	history, err := timeline.List(ctx, "ORD-404")
	require.NoError(t, err)
	require.Empty(t, history)
}
