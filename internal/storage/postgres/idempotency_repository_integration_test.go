package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestIdempotencyRepository_ClaimFinishAndReplay(t *testing.T) {
	repo := newIdempotencyRepoForTest(t)
	ctx := context.Background()
	ttl := time.Now().UTC().Add(2 * time.Hour).Round(time.Second)

	created, err := repo.CreateProcessing(ctx, "c-1:checkout-1", "hash-1", ttl)
	require.NoError(t, err)
	require.Equal(t, domain.IdempotencyStatusProcessing, created.Status)
	require.False(t, created.Finished())

	require.NoError(t, repo.MarkDone(ctx, "c-1:checkout-1", []byte(`{"order":{"id":"ORD-1"}}`), 201))

	existing, err := repo.CreateProcessing(ctx, "c-1:checkout-1", "hash-1", ttl)
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyAlreadyExists)
	require.True(t, existing.Finished())
	require.Equal(t, 201, existing.HTTPStatus)
	require.JSONEq(t, `{"order":{"id":"ORD-1"}}`, string(existing.ResponseBody))
	require.True(t, existing.TTLAt.Equal(ttl), "ttl mismatch: expected %s, got %s", ttl, existing.TTLAt)

	_, err = repo.CreateProcessing(ctx, "c-1:checkout-1", "hash-2", ttl)
	require.ErrorIs(t, err, domain.ErrIdempotencyHashMismatch)
}

func TestIdempotencyRepository_ReclaimsExpiredKey(t *testing.T) {
	repo := newIdempotencyRepoForTest(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := repo.CreateProcessing(ctx, "c-1:stale", "hash-old", now.Add(-time.Minute))
	require.NoError(t, err)
	require.NoError(t, repo.MarkFailed(ctx, "c-1:stale", []byte(`{"error":"conflict"}`), 409))

	reclaimed, err := repo.CreateProcessing(ctx, "c-1:stale", "hash-new", now.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, "hash-new", reclaimed.RequestHash)
	require.Equal(t, domain.IdempotencyStatusProcessing, reclaimed.Status)
	require.Zero(t, reclaimed.HTTPStatus)
	require.Empty(t, reclaimed.ResponseBody)
}

func TestIdempotencyRepository_ReclaimsKeyAfterServerError(t *testing.T) {
	repo := newIdempotencyRepoForTest(t)
	ctx := context.Background()
	ttl := time.Now().UTC().Add(time.Hour)

	_, err := repo.CreateProcessing(ctx, "c-1:retry", "hash-1", ttl)
	require.NoError(t, err)
	require.NoError(t, repo.MarkFailed(ctx, "c-1:retry", []byte(`{"error":"Service Unavailable"}`), 503))

	reclaimed, err := repo.CreateProcessing(ctx, "c-1:retry", "hash-1", ttl)
	require.NoError(t, err)
	require.Equal(t, domain.IdempotencyStatusProcessing, reclaimed.Status)
	require.Zero(t, reclaimed.HTTPStatus)

	require.NoError(t, repo.MarkFailed(ctx, "c-1:retry", []byte(`{"error":"conflict"}`), 409))
	_, err = repo.CreateProcessing(ctx, "c-1:retry", "hash-1", ttl)
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyAlreadyExists)
}

func TestIdempotencyRepository_DeleteExpiredInBatches(t *testing.T) {
	repo := newIdempotencyRepoForTest(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, key := range []string{"old-1", "old-2", "old-3"} {
		_, err := repo.CreateProcessing(ctx, key, "h", now.Add(-time.Duration(5-i)*time.Minute))
		require.NoError(t, err)
	}
	_, err := repo.CreateProcessing(ctx, "active", "h", now.Add(time.Hour))
	require.NoError(t, err)

	removed, err := repo.DeleteExpired(ctx, now, 2)
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	_, err = repo.Get(ctx, "old-3")
	require.NoError(t, err, "newest expired key must survive the first batch")

	removed, err = repo.DeleteExpired(ctx, now, 0)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, err = repo.Get(ctx, "active")
	require.NoError(t, err)
	_, err = repo.Get(ctx, "old-1")
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)
}

func TestIdempotencyRepository_FinishUnknownKey(t *testing.T) {
	repo := newIdempotencyRepoForTest(t)

	err := repo.MarkDone(context.Background(), "missing", nil, 200)
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)
}

func newIdempotencyRepoForTest(t *testing.T) *IdempotencyRepository {
	t.Helper()
	return NewIdempotencyRepository(openPostgresStoreForIntegrationTest(t))
}
