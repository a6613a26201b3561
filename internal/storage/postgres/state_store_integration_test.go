package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestStateStore_PostgresUpsertAndDelete(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()
	state := NewStateStore(store)

	if _, err := state.Get(ctx, "c-1", "cart"); !errors.Is(err, domain.ErrStateNotFound) {
		t.Fatalf("expected ErrStateNotFound, got %v", err)
	}

	if err := state.Set(ctx, "c-1", "cart", []byte(`[]`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := state.Set(ctx, "c-1", "cart", []byte(`{"version":2}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	got, err := state.Get(ctx, "c-1", "cart")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `{"version":2}` {
		t.Fatalf("unexpected value: %s", got)
	}

	if err := state.Delete(ctx, "c-1", "cart"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := state.Get(ctx, "c-1", "cart"); !errors.Is(err, domain.ErrStateNotFound) {
		t.Fatalf("expected ErrStateNotFound after delete, got %v", err)
	}
}

func TestCatalog_PostgresUpsertGetList(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()
	catalog := NewCatalog(store)

	products := []domain.Product{
		{ID: "p-1", Name: "Bearing 6204", SKU: "BRG-6204", CatalogCode: "CAT-BR", Price: decimal.RequireFromString("45.00"), StockQty: 10},
		{ID: "p-2", Name: "V-belt SPZ", SKU: "BLT-SPZ", CatalogCode: "CAT-BT", Price: decimal.RequireFromString("38.50"), StockQty: 0},
	}
	for _, p := range products {
		if err := catalog.Upsert(ctx, p); err != nil {
			t.Fatalf("upsert %s: %v", p.ID, err)
		}
	}

	got, err := catalog.GetProduct(ctx, "p-1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if !got.InStock || !got.Price.Equal(decimal.RequireFromString("45.00")) {
		t.Fatalf("unexpected product: %+v", got)
	}

	if _, err := catalog.GetProduct(ctx, "missing"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}

	inStock, err := catalog.ListProducts(ctx, domain.ProductFilter{InStockOnly: true})
	if err != nil {
		t.Fatalf("list in stock: %v", err)
	}
	if len(inStock) != 1 || inStock[0].ID != "p-1" {
		t.Fatalf("unexpected in-stock list: %+v", inStock)
	}

	byQuery, err := catalog.ListProducts(ctx, domain.ProductFilter{Query: "spz", IDs: []string{"p-1", "p-2"}, Limit: 5})
	if err != nil {
		t.Fatalf("list by query: %v", err)
	}
	if len(byQuery) != 1 || byQuery[0].ID != "p-2" {
		t.Fatalf("unexpected query list: %+v", byQuery)
	}
}
