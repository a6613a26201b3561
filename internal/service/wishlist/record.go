package wishlist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	stateKey      = "wishlist"
	recordVersion = 2
)

var errUnusableEntry = errors.New("unusable wishlist entry")

type storedProduct struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	SKU         string          `json:"sku,omitempty"`
	CatalogCode string          `json:"catalog_code,omitempty"`
	Price       decimal.Decimal `json:"price"`
	InStock     bool            `json:"in_stock"`
	Placeholder bool            `json:"placeholder,omitempty"`
}

// storedEntry — текущая форма записи или плоская legacy-форма {productId, name, price}.
// Голая строка в legacy-массиве разбирается в LegacyID.
type storedEntry struct {
	ID      string         `json:"product_id,omitempty"`
	Product *storedProduct `json:"product,omitempty"`
	AddedAt time.Time      `json:"added_at,omitempty"`

	LegacyID  string           `json:"productId,omitempty"`
	Name      string           `json:"name,omitempty"`
	Price     *decimal.Decimal `json:"price,omitempty"`
}

func (e *storedEntry) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var id string
		if err := json.Unmarshal(trimmed, &id); err != nil {
			return err
		}
		*e = storedEntry{LegacyID: id}
		return nil
	}
	type plain storedEntry
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*e = storedEntry(p)
	return nil
}

type storedWishlist struct {
	Version int           `json:"version"`
	Items   []storedEntry `json:"items"`
}

func decodeRecord(data []byte) (entries []storedEntry, legacy bool, err error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, true, nil
	}

	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, false, fmt.Errorf("decode legacy wishlist array: %w", err)
		}
		return entries, true, nil
	}

	var rec storedWishlist
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return nil, false, fmt.Errorf("decode wishlist record: %w", err)
	}
	return rec.Items, rec.Version != recordVersion, nil
}

func encodeRecord(w domain.Wishlist) ([]byte, error) {
	rec := storedWishlist{Version: recordVersion, Items: make([]storedEntry, 0, len(w.Items))}
	for _, item := range w.Items {
		rec.Items = append(rec.Items, storedEntry{
			ID: item.ProductID,
			Product: &storedProduct{
				ID:          item.Product.ID,
				Name:        item.Product.Name,
				SKU:         item.Product.SKU,
				CatalogCode: item.Product.CatalogCode,
				Price:       item.Product.Price,
				InStock:     item.Product.InStock,
				Placeholder: item.Product.Placeholder,
			},
			AddedAt: item.AddedAt,
		})
	}
	return json.Marshal(rec)
}

// normalize приводит сохранённую запись избранного к текущей форме.
// Правила те же, что у корзины: текущая форма не трогается, legacy дополняется из каталога.
func (s *Store) normalize(ctx context.Context, raw storedEntry) (domain.WishlistItem, bool, error) {
	if raw.Product != nil && raw.Product.ID != "" {
		id := raw.ID
		changed := false
		if id == "" {
			id = raw.Product.ID
			changed = true
		}
		return domain.WishlistItem{
			ProductID: id,
			Product: domain.ProductSnapshot{
				ID:          raw.Product.ID,
				Name:        raw.Product.Name,
				SKU:         raw.Product.SKU,
				CatalogCode: raw.Product.CatalogCode,
				Price:       raw.Product.Price,
				InStock:     raw.Product.InStock,
				Placeholder: raw.Product.Placeholder,
			},
			AddedAt: raw.AddedAt,
		}, changed, nil
	}

	id := strings.TrimSpace(raw.LegacyID)
	if id == "" {
		id = strings.TrimSpace(raw.ID)
	}
	if id == "" {
		return domain.WishlistItem{}, true, errUnusableEntry
	}

	price := decimal.Zero
	if raw.Price != nil {
		price = *raw.Price
	}

	item := domain.WishlistItem{ProductID: id, AddedAt: raw.AddedAt}
	product, err := s.catalog.GetProduct(ctx, id)
	switch {
	case err == nil:
		item.Product = product.Snapshot()
		return item, true, nil
	case errors.Is(err, domain.ErrProductNotFound):
		item.Product = domain.PlaceholderSnapshot(id, raw.Name, price)
		return item, true, nil
	default:
		item.Product = domain.PlaceholderSnapshot(id, raw.Name, price)
		return item, true, fmt.Errorf("rehydrate product %s: %w", id, err)
	}
}
