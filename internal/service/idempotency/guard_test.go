package idempotency

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func TestGuardReplaysStoredResponse(t *testing.T) {
	g := NewGuard(memory.NewIdempotencyRepository(), 0, nil)
	ctx := context.Background()
	key := ScopedKey("c-1", " checkout-42 ")
	hash := HashRequest(http.MethodPost, "/api/v1/checkout", []byte(`{"payment_method":"card"}`))

	calls := 0
	handler := func(context.Context) Response {
		calls++
		return Response{Status: http.StatusCreated, Body: []byte(`{"id":"ORD-1"}`)}
	}

	first, replayed, err := g.Do(ctx, key, hash, handler)
	require.NoError(t, err)
	assert.False(t, replayed)

	second, replayed, err := g.Do(ctx, key, hash, handler)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestGuardRejectsDifferentPayload(t *testing.T) {
	g := NewGuard(memory.NewIdempotencyRepository(), 0, nil)
	ctx := context.Background()
	ok := func(context.Context) Response { return Response{Status: http.StatusCreated} }

	_, _, err := g.Do(ctx, "c-1:k", HashRequest("POST", "/checkout", []byte("a")), ok)
	require.NoError(t, err)

	_, _, err = g.Do(ctx, "c-1:k", HashRequest("POST", "/checkout", []byte("b")), ok)
	assert.ErrorIs(t, err, domain.ErrIdempotencyHashMismatch)
}

func TestGuardReplaysClientErrors(t *testing.T) {
	g := NewGuard(memory.NewIdempotencyRepository(), 0, nil)
	ctx := context.Background()
	calls := 0
	failing := func(context.Context) Response {
		calls++
		return Response{Status: http.StatusUnprocessableEntity, Body: []byte(`{"error":"cart is empty"}`)}
	}

	_, _, err := g.Do(ctx, "c-1:k", "h", failing)
	require.NoError(t, err)
	resp, replayed, err := g.Do(ctx, "c-1:k", "h", failing)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Status)
	assert.Equal(t, 1, calls)
}

func TestGuardRetriesAfterServerError(t *testing.T) {
	g := NewGuard(memory.NewIdempotencyRepository(), 0, nil)
	ctx := context.Background()

	statuses := []int{http.StatusServiceUnavailable, http.StatusCreated}
	calls := 0
	handler := func(context.Context) Response {
		status := statuses[calls]
		calls++
		return Response{Status: status, Body: []byte(`{}`)}
	}

	resp, replayed, err := g.Do(ctx, "c-1:k", "h", handler)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Status)

	resp, replayed, err = g.Do(ctx, "c-1:k", "h", handler)
	require.NoError(t, err)
	assert.False(t, replayed, "server error must not be replayed")
	assert.Equal(t, http.StatusCreated, resp.Status)

	resp, replayed, err = g.Do(ctx, "c-1:k", "h", handler)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, http.StatusCreated, resp.Status)
	assert.Equal(t, 2, calls)
}

func TestGuardReportsInProgress(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	g := NewGuard(repo, 0, nil)
	ctx := context.Background()

	_, err := repo.CreateProcessing(ctx, "c-1:k", "h", g.now().Add(DefaultTTL))
	require.NoError(t, err)

	_, _, err = g.Do(ctx, "c-1:k", "h", func(context.Context) Response {
		t.Fatal("handler must not run")
		return Response{}
	})
	assert.ErrorIs(t, err, ErrRequestInProgress)
}
