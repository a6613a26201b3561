package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/session"
)

// AddOption настраивает Add.
type AddOption func(*addOptions)

type addOptions struct {
	placeholder bool
}

// WithPlaceholder разрешает добавить товар, которого нет в каталоге: вместо
// ErrProductNotFound в корзину попадает placeholder с нулевой ценой.
func WithPlaceholder() AddOption {
	return func(o *addOptions) { o.placeholder = true }
}

// Add добавляет товар в корзину. Если позиция уже есть, количество суммируется.
func (s *Store) Add(ctx context.Context, productID string, quantity int, opts ...AddOption) (domain.Cart, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Cart{}, domain.ErrProductIDRequired
	}
	if quantity < 1 {
		return domain.Cart{}, domain.ErrInvalidQuantity
	}
	if _, err := session.CustomerFromContext(ctx); err != nil {
		return domain.Cart{}, err
	}

	var o addOptions
	for _, opt := range opts {
		opt(&o)
	}

	snapshot, err := s.resolve(ctx, productID, o)
	if err != nil {
		s.metrics.RecordCartMutation("add", err)
		return domain.Cart{}, err
	}

	return s.mutate(ctx, "add", func(c *domain.Cart) bool {
		if idx := c.Find(productID); idx >= 0 {
			c.Items[idx].Quantity += quantity
			if !snapshot.Placeholder {
				c.Items[idx].Product = snapshot
			}
			return true
		}
		c.Items = append(c.Items, domain.CartLineItem{
			ID:       productID,
			Product:  snapshot,
			Quantity: quantity,
			AddedAt:  s.now(),
		})
		return true
	})
}

// UpdateQuantity задаёт количество позиции. Количество меньше 1 удаляет позицию.
// Отсутствующая позиция не создаётся.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) (domain.Cart, error) {
	if quantity < 1 {
		return s.Remove(ctx, productID)
	}
	productID = strings.TrimSpace(productID)
	return s.mutate(ctx, "update_quantity", func(c *domain.Cart) bool {
		idx := c.Find(productID)
		if idx < 0 || c.Items[idx].Quantity == quantity {
			return false
		}
		c.Items[idx].Quantity = quantity
		return true
	})
}

// Remove удаляет позицию. Удаление отсутствующей позиции ничего не пишет.
func (s *Store) Remove(ctx context.Context, productID string) (domain.Cart, error) {
	productID = strings.TrimSpace(productID)
	return s.mutate(ctx, "remove", func(c *domain.Cart) bool {
		idx := c.Find(productID)
		if idx < 0 {
			return false
		}
		c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
		return true
	})
}

// Clear очищает корзину и удаляет сохранённую запись.
func (s *Store) Clear(ctx context.Context) error {
	customer, err := session.CustomerFromContext(ctx)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(customer.ID)
	err = s.clearLocked(ctx, customer.ID)
	unlock()

	s.metrics.RecordCartMutation("clear", err)
	if err != nil {
		return err
	}
	s.publishChanged(ctx, customer.ID, "clear", domain.Cart{CustomerID: customer.ID})
	return nil
}

// resolve находит товар в каталоге. Без WithPlaceholder отсутствующий товар даёт ErrProductNotFound.
func (s *Store) resolve(ctx context.Context, productID string, o addOptions) (domain.ProductSnapshot, error) {
	product, err := s.catalog.GetProduct(ctx, productID)
	switch {
	case err == nil:
		return product.Snapshot(), nil
	case errors.Is(err, domain.ErrProductNotFound):
		if !o.placeholder {
			return domain.ProductSnapshot{}, err
		}
		s.logger.WithField("product_id", productID).Warn("product missing from catalog, adding placeholder")
		return domain.PlaceholderSnapshot(productID, "", decimal.Zero), nil
	default:
		return domain.ProductSnapshot{}, fmt.Errorf("lookup product %s: %w", productID, err)
	}
}

// mutate применяет apply к копии корзины, сохраняет результат и только потом
// подменяет состояние в памяти. apply возвращает false, если менять нечего.
func (s *Store) mutate(ctx context.Context, op string, apply func(c *domain.Cart) bool) (domain.Cart, error) {
	customer, err := session.CustomerFromContext(ctx)
	if err != nil {
		return domain.Cart{}, err
	}

	unlock := s.locks.Lock(customer.ID)
	base, err := s.loadForWrite(ctx, customer)
	if err != nil {
		unlock()
		s.metrics.RecordCartMutation(op, err)
		return domain.Cart{}, err
	}

	next := base.Clone()
	if !apply(&next) {
		unlock()
		return base.Clone(), nil
	}

	for i := range next.Items {
		next.Items[i].LineTotal = lineTotal(next.Items[i], customer)
	}
	next.UpdatedAt = s.now()

	if err := s.persist(ctx, next); err != nil {
		unlock()
		s.logger.WithError(err).WithFields(log.Fields{
			"customer_id": customer.ID,
			"op":          op,
		}).Error("cart mutation was not persisted")
		s.metrics.RecordCartMutation(op, err)
		return domain.Cart{}, err
	}
	s.carts.set(customer.ID, next)
	unlock()

	s.metrics.RecordCartMutation(op, nil)
	s.publishChanged(ctx, customer.ID, op, next)
	return next.Clone(), nil
}
