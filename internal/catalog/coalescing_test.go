package catalog

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type slowCatalog struct {
	calls   atomic.Int32
	release chan struct{}
}

func (s *slowCatalog) GetProduct(_ context.Context, id string) (domain.Product, error) {
	s.calls.Add(1)
	<-s.release
	if id == "missing" {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return domain.Product{ID: id, Price: decimal.NewFromInt(10)}, nil
}

func (s *slowCatalog) ListProducts(context.Context, domain.ProductFilter) ([]domain.Product, error) {
	return []domain.Product{{ID: "a"}}, nil
}

func TestCoalescing_SharesConcurrentLookups(t *testing.T) {
	next := &slowCatalog{release: make(chan struct{})}
	c := NewCoalescing(next)

	const callers = 10
	var wg sync.WaitGroup
	results := make([]domain.Product, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := c.GetProduct(context.Background(), "p-1")
			assert.NoError(t, err)
			results[i] = p
		}(i)
	}

	// Даём горутинам встать в очередь за первым запросом.
	time.Sleep(50 * time.Millisecond)
	close(next.release)
	wg.Wait()

	assert.Equal(t, int32(1), next.calls.Load())
	for _, p := range results {
		assert.Equal(t, "p-1", p.ID)
	}
}

func TestCoalescing_PropagatesErrors(t *testing.T) {
	next := &slowCatalog{release: make(chan struct{})}
	close(next.release)
	c := NewCoalescing(next)

	_, err := c.GetProduct(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrProductNotFound)

	list, err := c.ListProducts(context.Background(), domain.ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
