package testutils

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/barter/pkg/adapters/redis"
	"github.com/aretw0/barter/pkg/adapters/sqlite"
	"github.com/aretw0/barter/pkg/domain"
	"github.com/aretw0/barter/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// OpenSQLite creates a store backed by a file in a temporary directory.
// It fails the test immediately on error.
func OpenSQLite(t *testing.T) *sqlite.Store {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "barter.db"))
	require.NoError(t, err, "Failed to open sqlite store")
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// OpenRedis creates a store backed by an in-process miniredis server.
func OpenRedis(t *testing.T) (*redis.Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	store := redis.NewFromClient(backend.NewClient(&backend.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

// SeedItems creates one item per id, owned by the mapped account.
func SeedItems(t *testing.T, store ports.ItemCatalog, owners map[string]string) {
	t.Helper()

	for id, owner := range owners {
		err := store.CreateItem(context.Background(), &domain.Item{ID: id, Title: "Game " + id, Owner: owner})
		require.NoError(t, err, "Failed to seed item %s", id)
	}
}
