package cli

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/barter/internal/config"
	"github.com/aretw0/barter/internal/logging"
	"github.com/aretw0/barter/pkg/adapters/memory"
	"github.com/aretw0/barter/pkg/adapters/redis"
	"github.com/aretw0/barter/pkg/adapters/sqlite"
	"github.com/aretw0/barter/pkg/catalog"
	"github.com/aretw0/barter/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Memory", func(t *testing.T) {
		store, err := OpenStore(ctx, baseConfig(t))
		require.NoError(t, err)
		assert.IsType(t, &memory.Store{}, store)
	})

	t.Run("SQLite", func(t *testing.T) {
		cfg := baseConfig(t)
		cfg.Store = config.StoreSQLite
		cfg.SQLitePath = filepath.Join(t.TempDir(), "barter.db")
		store, err := OpenStore(ctx, cfg)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &sqlite.Store{}, store)
	})

	t.Run("Redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := baseConfig(t)
		cfg.Store = config.StoreRedis
		cfg.RedisAddr = mr.Addr()
		store, err := OpenStore(ctx, cfg)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &redis.Store{}, store)
	})

	t.Run("RedisUnreachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()
		cfg := baseConfig(t)
		cfg.Store = config.StoreRedis
		cfg.RedisAddr = addr
		_, err := OpenStore(ctx, cfg)
		assert.Error(t, err)
	})

	t.Run("Unknown", func(t *testing.T) {
		cfg := baseConfig(t)
		cfg.Store = "etcd"
		_, err := OpenStore(ctx, cfg)
		assert.Error(t, err)
	})
}

func TestSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
items:
  - id: g1
    title: Zelda
    owner: alice
  - id: g2
    title: Mario
    owner: bob
`), 0o600))

	cfg := baseConfig(t)
	cfg.Store = config.StoreSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "barter.db")

	res, err := Seed(context.Background(), cfg, path, logging.NewNop())
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Created: 2}, res)

	// Second run is idempotent.
	res, err = Seed(context.Background(), cfg, path, logging.NewNop())
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Skipped: 2}, res)
}

func TestSeedCatalog_Invalid(t *testing.T) {
	cat := catalog.New(memory.NewStore())
	_, err := SeedCatalog(context.Background(), cat, &config.Seed{Items: []domain.Item{{Title: "Zelda", Owner: "alice", Year: -3}}}, logging.NewNop())
	assert.ErrorIs(t, err, domain.ErrInvalidItem)
}

func TestNewServer(t *testing.T) {
	cfg := baseConfig(t)
	cfg.InstanceName = "node-1"
	store := memory.NewStore()
	logger := logging.NewNop()
	ex := newExchange(cfg, store, logger, createDebugHooks(logger))

	srv := NewServer(cfg, ex, prometheus.NewRegistry(), logger)
	assert.Equal(t, cfg.Addr, srv.Addr)

	req := httptest.NewRequest(http.MethodGet, "/info", nil)
	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "node-1", w.Header().Get("X-API-Instance"))
	assert.Contains(t, w.Body.String(), `"store":"memory"`)
}

func TestCreateLogger(t *testing.T) {
	_, err := CreateLogger("debug")
	assert.NoError(t, err)
	_, err = CreateLogger("chatty")
	assert.Error(t, err)
}
