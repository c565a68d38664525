package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockStoreRoundTrip(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &Object{Key: "k.html", Data: []byte("v")}))
	got, err := store.Get(ctx, "k.html")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got.Data))

	// Returned data is a copy.
	got.Data[0] = 'x'
	again, err := store.Get(ctx, "k.html")
	require.NoError(t, err)
	assert.Equal(t, "v", string(again.Data))

	calls := store.Calls()
	assert.Equal(t, 1, calls.Put)
	assert.Equal(t, 2, calls.Get)
}

func TestMockStoreInjectedFailures(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()
	boom := errors.New("boom")

	store.Seed("a", []byte("a"))
	store.Seed("b", []byte("b"))
	store.DeleteErrors["b"] = boom
	store.PutErrors["c"] = boom
	store.GetErrors["a"] = boom

	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, store.Put(ctx, &Object{Key: "c"}), boom)

	failures := store.DeleteBatch(ctx, []string{"a", "b"})
	require.Len(t, failures, 1)
	assert.Equal(t, "b", failures[0].Key)
	assert.ErrorIs(t, failures[0], boom)

	assert.Equal(t, []string{"b"}, store.Keys())
	assert.Equal(t, []string{"a"}, store.Calls().Deleted)
}

func TestMockStoreListPrefix(t *testing.T) {
	store := NewMockStore()
	store.Seed("docs/manifest/b.json", nil)
	store.Seed("docs/manifest/a.json", nil)
	store.Seed("docs/index.html", nil)

	infos, err := store.List(context.Background(), "docs/manifest/")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "docs/manifest/a.json", infos[0].Key)
	assert.Equal(t, "docs/manifest/b.json", infos[1].Key)

	store.ListError = errors.New("denied")
	_, err = store.List(context.Background(), "")
	assert.Error(t, err)
}

func TestMockStoreRecordsOperationOrder(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()
	store.Seed("site/old.html", []byte("old"))

	_, _ = store.Get(ctx, "site/manifest/api.json")
	_, _ = store.List(ctx, "site/manifest")
	store.DeleteBatch(ctx, []string{"site/old.html", "site/gone.html"})
	require.NoError(t, store.Put(ctx, &Object{Key: "site/new.html", Data: []byte("new")}))

	assert.Equal(t, []string{
		"get site/manifest/api.json",
		"list site/manifest",
		"delete site/old.html,site/gone.html",
		"put site/new.html",
	}, store.Calls().Ops)
}
