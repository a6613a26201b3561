package cart

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
	stateKey      = "cart"
	recordVersion = 2
)

// errUnusableLine — строку нельзя восстановить (нет id или целого количества), она отбрасывается.
var errUnusableLine = errors.New("unusable cart line")

type storedProduct struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	SKU         string          `json:"sku,omitempty"`
	CatalogCode string          `json:"catalog_code,omitempty"`
	Price       decimal.Decimal `json:"price"`
	InStock     bool            `json:"in_stock"`
	Placeholder bool            `json:"placeholder,omitempty"`
}

// storedLine принимает и текущую форму строки, и плоскую legacy-форму
// {productId, name, price, quantity}.
type storedLine struct {
	ID        string           `json:"id,omitempty"`
	Product   *storedProduct   `json:"product,omitempty"`
	Quantity  storedQuantity   `json:"quantity"`
	LineTotal *decimal.Decimal `json:"line_total,omitempty"`
	AddedAt   time.Time        `json:"added_at,omitempty"`

	ProductID string           `json:"productId,omitempty"`
	Name      string           `json:"name,omitempty"`
	Price     *decimal.Decimal `json:"price,omitempty"`
}

// storedQuantity читает количество любой сохранённой формы. Нецелое или
// нечисловое значение даёт 0, и строка отбрасывается без потери всей записи.
type storedQuantity int

func (q *storedQuantity) UnmarshalJSON(data []byte) error {
	*q = 0
	d, err := decimal.NewFromString(strings.Trim(string(bytes.TrimSpace(data)), `"`))
	if err != nil || !d.IsInteger() {
		return nil
	}
	*q = storedQuantity(d.IntPart())
	return nil
}

type storedCart struct {
	Version int          `json:"version"`
	Items   []storedLine `json:"items"`
}

// decodeRecord разбирает сохранённую запись. legacy=true, если запись не в текущей форме
// (голый массив или объект без версии).
func decodeRecord(data []byte) (lines []storedLine, legacy bool, err error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, true, nil
	}

	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &lines); err != nil {
			return nil, false, fmt.Errorf("decode legacy cart array: %w", err)
		}
		return lines, true, nil
	}

	var rec storedCart
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return nil, false, fmt.Errorf("decode cart record: %w", err)
	}
	return rec.Items, rec.Version != recordVersion, nil
}

func encodeRecord(c domain.Cart) ([]byte, error) {
	rec := storedCart{Version: recordVersion, Items: make([]storedLine, 0, len(c.Items))}
	for _, item := range c.Items {
		total := item.LineTotal
		rec.Items = append(rec.Items, storedLine{
			ID: item.ID,
			Product: &storedProduct{
				ID:          item.Product.ID,
				Name:        item.Product.Name,
				SKU:         item.Product.SKU,
				CatalogCode: item.Product.CatalogCode,
				Price:       item.Product.Price,
				InStock:     item.Product.InStock,
				Placeholder: item.Product.Placeholder,
			},
			Quantity:  storedQuantity(item.Quantity),
			LineTotal: &total,
			AddedAt:   item.AddedAt,
		})
	}
	return json.Marshal(rec)
}

// normalize — единственное место, знающее исторические формы строк корзины.
// Строка текущей формы возвращается без изменений (changed=false) и без обращения к каталогу.
// Плоская legacy-строка дополняется данными из каталога; если товара в каталоге нет,
// строится placeholder из сохранённых имени и цены. Ошибка каталога, отличная от
// ErrProductNotFound, возвращается вместе с placeholder-строкой: её можно показать,
// но нельзя записывать обратно.
func (s *Store) normalize(ctx context.Context, raw storedLine) (domain.CartLineItem, bool, error) {
	if raw.Quantity < 1 {
		return domain.CartLineItem{}, true, errUnusableLine
	}

	if raw.Product != nil && raw.Product.ID != "" {
		id := raw.ID
		changed := false
		if id == "" {
			id = raw.Product.ID
			changed = true
		}
		return domain.CartLineItem{
			ID: id,
			Product: domain.ProductSnapshot{
				ID:          raw.Product.ID,
				Name:        raw.Product.Name,
				SKU:         raw.Product.SKU,
				CatalogCode: raw.Product.CatalogCode,
				Price:       raw.Product.Price,
				InStock:     raw.Product.InStock,
				Placeholder: raw.Product.Placeholder,
			},
			Quantity: int(raw.Quantity),
			AddedAt:  raw.AddedAt,
		}, changed, nil
	}

	id := strings.TrimSpace(raw.ProductID)
	if id == "" {
		id = strings.TrimSpace(raw.ID)
	}
	if id == "" {
		return domain.CartLineItem{}, true, errUnusableLine
	}

	item := domain.CartLineItem{ID: id, Quantity: int(raw.Quantity), AddedAt: raw.AddedAt}
	product, err := s.catalog.GetProduct(ctx, id)
	switch {
	case err == nil:
		item.Product = product.Snapshot()
		return item, true, nil
	case errors.Is(err, domain.ErrProductNotFound):
		item.Product = domain.PlaceholderSnapshot(id, raw.Name, legacyPrice(raw.Price))
		return item, true, nil
	default:
		item.Product = domain.PlaceholderSnapshot(id, raw.Name, legacyPrice(raw.Price))
		return item, true, fmt.Errorf("rehydrate product %s: %w", id, err)
	}
}

func legacyPrice(p *decimal.Decimal) decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	return *p
}
