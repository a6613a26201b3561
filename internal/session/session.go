// Package session переносит аутентифицированного клиента через context.Context.
package session

import (
	"context"
	"strings"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/pricing"
)

type ctxKey struct{}

// WithCustomer кладёт клиента в контекст. Скидка приводится к [0, 100].
func WithCustomer(ctx context.Context, c domain.Customer) context.Context {
	c.ID = strings.TrimSpace(c.ID)
	c.DiscountPercentage = pricing.ClampPercentage(c.DiscountPercentage)
	return context.WithValue(ctx, ctxKey{}, c)
}

// CustomerFromContext возвращает клиента или ErrNotAuthenticated.
func CustomerFromContext(ctx context.Context) (domain.Customer, error) {
	c, ok := ctx.Value(ctxKey{}).(domain.Customer)
	if !ok || c.ID == "" {
		return domain.Customer{}, domain.ErrNotAuthenticated
	}
	return c, nil
}
