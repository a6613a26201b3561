package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestListOrdersQuery(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	query, args := listOrdersQuery(domain.OrderQuery{CustomerID: "c-1"})
	assert.Contains(t, query, "WHERE customer_id = $1 ORDER BY created_at DESC, id DESC")
	assert.NotContains(t, query, "LIMIT")
	assert.Equal(t, []any{"c-1"}, args)

	query, args = listOrdersQuery(domain.OrderQuery{
		CustomerID: "c-1",
		Status:     domain.OrderStatusShipped,
		Limit:      20,
		After:      &domain.OrderCursor{CreatedAt: at, ID: "ORD-9"},
	})
	assert.Contains(t, query, "customer_id = $1 AND status = $2 AND (created_at, id) < ($3, $4)")
	assert.Contains(t, query, "LIMIT $5")
	assert.Equal(t, []any{"c-1", "shipped", at, "ORD-9", 20}, args)
}

func TestInsertItemsQuery(t *testing.T) {
	items := []domain.OrderItem{
		{ProductID: "p-1", Name: "Bearing", UnitPrice: decimal.RequireFromString("45.00"), Quantity: 2},
		{ProductID: "p-2", Name: "Belt", UnitPrice: decimal.RequireFromString("38.50"), Quantity: 1},
	}

	query, args := insertItemsQuery("ORD-1", items)
	assert.Contains(t, query, "($1,$2,$3,$4,$5,$6,$7,$8),($9,$10,$11,$12,$13,$14,$15,$16)")
	assert.Len(t, args, 16)
	assert.Equal(t, "ORD-1", args[8])
	assert.Equal(t, 1, args[9])
	assert.Equal(t, "p-2", args[10])
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "22001"}))
	assert.False(t, isUniqueViolation(errors.New("plain error")))
	assert.False(t, isUniqueViolation(nil))
}
