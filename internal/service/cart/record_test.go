package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type brokenCatalog struct{ domain.Catalog }

func (brokenCatalog) GetProduct(context.Context, string) (domain.Product, error) {
	return domain.Product{}, errors.New("catalog timeout")
}

func TestDecodeRecordShapes(t *testing.T) {
	lines, legacy, err := decodeRecord([]byte(`{"version":2,"items":[{"id":"p-1","product":{"id":"p-1","name":"A","price":"1.50","in_stock":true},"quantity":2}]}`))
	require.NoError(t, err)
	assert.False(t, legacy)
	require.Len(t, lines, 1)
	assert.Equal(t, "p-1", lines[0].Product.ID)

	lines, legacy, err = decodeRecord([]byte(`[{"productId":"p-1","price":1.5,"quantity":2}]`))
	require.NoError(t, err)
	assert.True(t, legacy)
	assert.Equal(t, "p-1", lines[0].ProductID)

	_, legacy, err = decodeRecord([]byte(`{"items":[]}`))
	require.NoError(t, err)
	assert.True(t, legacy)

	_, _, err = decodeRecord([]byte(`"cart"`))
	assert.Error(t, err)
}

func TestDecodeRecordKeepsLinesWithBadQuantity(t *testing.T) {
	lines, legacy, err := decodeRecord([]byte(`[{"productId":"p-1","quantity":2.5},{"productId":"p-2","quantity":"3"},{"productId":"p-3","quantity":null},{"productId":"p-4","quantity":4.0}]`))
	require.NoError(t, err)
	assert.True(t, legacy)
	require.Len(t, lines, 4)
	assert.Equal(t, storedQuantity(0), lines[0].Quantity)
	assert.Equal(t, storedQuantity(3), lines[1].Quantity)
	assert.Equal(t, storedQuantity(0), lines[2].Quantity)
	assert.Equal(t, storedQuantity(4), lines[3].Quantity)
}

func TestLoadDropsOnlyFractionalLine(t *testing.T) {
	state := memory.NewStateStore()
	ctx := customerCtx("c-1", 0)
	legacy := []byte(`[{"productId":"p-1001","quantity":2.5},{"productId":"p-1002","quantity":1}]`)
	require.NoError(t, state.Set(ctx, "c-1", stateKey, legacy))

	store := newTestStore(state)
	c, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "p-1002", c.Items[0].ID)
	assert.Equal(t, 1, c.Items[0].Quantity)
}

func TestNormalizeCurrentShapeIsUntouched(t *testing.T) {
	store := NewStore(memory.NewStateStore(), brokenCatalog{})
	raw := storedLine{
		ID:       "p-1",
		Product:  &storedProduct{ID: "p-1", Name: "A", Price: decimal.RequireFromString("1.50")},
		Quantity: 2,
	}

	item, changed, err := store.normalize(context.Background(), raw)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "A", item.Product.Name)
	assert.Equal(t, 2, item.Quantity)
}

func TestNormalizeCatalogFailureKeepsLegacyData(t *testing.T) {
	store := NewStore(memory.NewStateStore(), brokenCatalog{})
	price := decimal.RequireFromString("7.25")

	item, changed, err := store.normalize(context.Background(), storedLine{ProductID: "p-9", Name: "Seal kit", Price: &price, Quantity: 1})
	require.Error(t, err)
	assert.NotErrorIs(t, err, errUnusableLine)
	assert.True(t, changed)
	assert.True(t, item.Product.Placeholder)
	assert.Equal(t, "Seal kit", item.Product.Name)
	assert.True(t, item.Product.Price.Equal(price))
}

func TestLoadDoesNotRewriteWhenCatalogIsDown(t *testing.T) {
	state := memory.NewStateStore()
	ctx := customerCtx("c-1", 0)
	legacy := []byte(`[{"productId":"p-9","name":"Seal kit","price":"7.25","quantity":1}]`)
	require.NoError(t, state.Set(ctx, "c-1", stateKey, legacy))

	store := NewStore(state, brokenCatalog{})
	c, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.True(t, c.Items[0].Product.Placeholder)

	raw, err := state.Get(ctx, "c-1", stateKey)
	require.NoError(t, err)
	assert.JSONEq(t, string(legacy), string(raw))
}
