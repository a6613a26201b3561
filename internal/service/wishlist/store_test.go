package wishlist

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/session"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type failingSet struct {
	*memory.StateStore
	err error
}

func (f *failingSet) Set(ctx context.Context, customerID, key string, value []byte) error {
	if f.err != nil {
		return f.err
	}
	return f.StateStore.Set(ctx, customerID, key, value)
}

func ctxFor(id string) context.Context {
	return session.WithCustomer(context.Background(), domain.Customer{ID: id})
}

func newTestStore(state domain.StateStore) *Store {
	return NewStore(state, memory.NewCatalog(memory.DemoProducts()...))
}

func TestAddRemoveContains(t *testing.T) {
	store := newTestStore(memory.NewStateStore())
	ctx := ctxFor("c-1")

	w, err := store.Add(ctx, "p-1002")
	require.NoError(t, err)
	require.Len(t, w.Items, 1)
	assert.Equal(t, "V-belt SPZ 1250", w.Items[0].Product.Name)

	w, err = store.Add(ctx, "p-1002")
	require.NoError(t, err)
	assert.Len(t, w.Items, 1)

	ok, err := store.Contains(ctx, "p-1002")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = store.Add(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	w, err = store.Remove(ctx, "p-1002")
	require.NoError(t, err)
	assert.Empty(t, w.Items)
}

func TestRequiresSession(t *testing.T) {
	store := newTestStore(memory.NewStateStore())
	_, err := store.Toggle(context.Background(), "p-1001")
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
	_, err = store.Contains(context.Background(), "p-1001")
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
}

func TestDoubleToggleRestoresState(t *testing.T) {
	store := newTestStore(memory.NewStateStore())
	ctx := ctxFor("c-1")

	present, err := store.Toggle(ctx, "p-1001")
	require.NoError(t, err)
	assert.True(t, present)

	present, err = store.Toggle(ctx, "p-1001")
	require.NoError(t, err)
	assert.False(t, present)

	ok, err := store.Contains(ctx, "p-1001")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConcurrentTogglesNeverDuplicate(t *testing.T) {
	store := newTestStore(memory.NewStateStore())
	ctx := ctxFor("c-1")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Toggle(ctx, "p-1005")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	w, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, w.Items, "even number of toggles must leave the item absent")
}

func TestTogglesBuildOnSharedState(t *testing.T) {
	state := memory.NewStateStore()
	first := newTestStore(state)
	second := newTestStore(state)
	ctx := ctxFor("c-1")

	_, err := first.Add(ctx, "p-1001")
	require.NoError(t, err)
	_, err = second.Add(ctx, "p-1002")
	require.NoError(t, err)
	present, err := first.Toggle(ctx, "p-1003")
	require.NoError(t, err)
	assert.True(t, present)

	w, err := newTestStore(state).List(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(w.Items))
	for _, item := range w.Items {
		ids = append(ids, item.ProductID)
	}
	assert.ElementsMatch(t, []string{"p-1001", "p-1002", "p-1003"}, ids)
}

func TestFailedWriteKeepsWishlist(t *testing.T) {
	state := &failingSet{StateStore: memory.NewStateStore()}
	store := newTestStore(state)
	ctx := ctxFor("c-1")

	_, err := store.Add(ctx, "p-1001")
	require.NoError(t, err)

	state.err = errors.New("write timeout")
	_, err = store.Toggle(ctx, "p-1001")
	require.Error(t, err)
	assert.True(t, domain.IsPersistence(err))

	ok, err := store.Contains(ctx, "p-1001")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLoadNormalizesLegacyShapes(t *testing.T) {
	state := memory.NewStateStore()
	ctx := ctxFor("c-1")
	legacy := `["p-1003", {"productId":"gone-2","name":"Old filter","price":"3.10"}, "p-1003", ""]`
	require.NoError(t, state.Set(ctx, "c-1", stateKey, []byte(legacy)))

	store := newTestStore(state)
	w, err := store.Load(ctx)
	require.NoError(t, err)

	require.Len(t, w.Items, 2)
	assert.Equal(t, "p-1003", w.Items[0].ProductID)
	assert.False(t, w.Items[0].Product.Placeholder)
	assert.Equal(t, "gone-2", w.Items[1].ProductID)
	assert.True(t, w.Items[1].Product.Placeholder)
	assert.Equal(t, "Old filter", w.Items[1].Product.Name)

	raw, err := state.Get(ctx, "c-1", stateKey)
	require.NoError(t, err)
	var rec storedWishlist
	require.NoError(t, json.Unmarshal(raw, &rec))
	assert.Equal(t, recordVersion, rec.Version)
	require.Len(t, rec.Items, 2)
	assert.Equal(t, "p-1003", rec.Items[0].ID)

	again, err := NewStore(state, memory.NewCatalog()).Load(ctx)
	require.NoError(t, err)
	require.Len(t, again.Items, 2)
	assert.Equal(t, w.Items[0].Product.Name, again.Items[0].Product.Name)
}

func TestClearAndForget(t *testing.T) {
	state := memory.NewStateStore()
	store := newTestStore(state)
	ctx := ctxFor("c-1")

	_, err := store.Add(ctx, "p-1001")
	require.NoError(t, err)

	store.Forget("c-1")
	ok, err := store.Contains(ctx, "p-1001")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Clear(ctx))
	ok, err = store.Contains(ctx, "p-1001")
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = state.Get(ctx, "c-1", stateKey)
	assert.ErrorIs(t, err, domain.ErrStateNotFound)
}
