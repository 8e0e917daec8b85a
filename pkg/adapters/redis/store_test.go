package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/barter/pkg/adapters/redis"
	"github.com/aretw0/barter/pkg/domain"
	"github.com/aretw0/barter/pkg/ports"
	"github.com/aretw0/barter/pkg/ports/tests"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, opts ...redis.Option) (*redis.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	store := redis.NewFromClient(client, opts...)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStore_Contract(t *testing.T) {
	store, _ := newStore(t)
	ports.RunStoreContract(t, store)
}

func TestRedisStore_TransactorContract(t *testing.T) {
	store, _ := newStore(t)
	tests.TransactorContractTest(t, store)
}

func TestRedisStore_Prefix(t *testing.T) {
	store, mr := newStore(t, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	err := store.CreateItem(ctx, &domain.Item{ID: "g1", Title: "Zelda", Owner: "alice"})
	assert.NoError(t, err)

	// Verify keys in Redis directly
	assert.True(t, mr.Exists("custom:app:item:g1"), "Expected item key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:items"), "Expected item index with custom prefix to exist")

	now := time.Now()
	_, err = store.InsertProposal(ctx, &domain.Proposal{
		ID: "p1", Initiator: "alice", Counterparty: "bob",
		OfferedItems: []string{"g1"}, RequestedItems: []string{"g2"},
		Status: domain.StatusPending, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.True(t, mr.Exists("custom:app:proposal:p1"))
	assert.True(t, mr.Exists("custom:app:account:bob:proposals"))
}

func TestRedisStore_Unavailable(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateItem(ctx, &domain.Item{ID: "g1", Owner: "alice"}))

	mr.Close()

	_, err := store.GetItem(ctx, "g1")
	require.Error(t, err)
	assert.False(t, domain.IsKnown(err), "connection failures must not look like domain outcomes")
}

func TestRedisStore_DecodeItemHash(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	mr.HSet("barter:item:raw", "id", "raw", "title", "Doom", "owner", "carol", "version", "4", "year", "1993")
	item, err := store.GetItemRecord(ctx, "raw")
	require.NoError(t, err)
	assert.Equal(t, 1993, item.Year)
	assert.Equal(t, int64(4), item.OwnerVersion)
	assert.Empty(t, item.Platform)

	mr.HSet("barter:item:bad", "id", "bad", "owner", "carol", "version", "x")
	_, err = store.GetItemRecord(ctx, "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt item bad")
}

func TestRedisStore_DeleteKeepsRetiredVersion(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateItem(ctx, &domain.Item{ID: "g1", Title: "Zelda", Owner: "alice"}))
	require.NoError(t, store.DeleteItem(ctx, "g1"))
	assert.False(t, mr.Exists("barter:item:g1"))
	got, err := mr.Get("barter:retired:g1")
	require.NoError(t, err)
	assert.Equal(t, "1", got)

	item := &domain.Item{ID: "g1", Title: "Zelda", Owner: "dave"}
	require.NoError(t, store.CreateItem(ctx, item))
	assert.Equal(t, int64(2), item.OwnerVersion)
	own, err := store.GetItem(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, domain.Ownership{Owner: "dave", Version: 2}, own)
}
