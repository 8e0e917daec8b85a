package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, "barter:", cfg.RedisPrefix)
	assert.Equal(t, 30*time.Second, cfg.RollbackPolicy().MaxElapsed)
	assert.False(t, cfg.DisableTransactions)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("BARTER_STORE", " SQLite ")
	t.Setenv("BARTER_SQLITE_PATH", "/tmp/x.db")
	t.Setenv("BARTER_REDIS_DB", "3")
	t.Setenv("BARTER_DISABLE_TRANSACTIONS", "true")
	t.Setenv("BARTER_ROLLBACK_MAX_ELAPSED", "5s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, "/tmp/x.db", cfg.SQLitePath)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.True(t, cfg.DisableTransactions)
	assert.Equal(t, 5*time.Second, cfg.RollbackMaxElapsed)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("UnknownStore", func(t *testing.T) {
		t.Setenv("BARTER_STORE", "postgres")
		_, err := Load()
		assert.ErrorContains(t, err, "unknown store")
	})
	t.Run("BadDuration", func(t *testing.T) {
		t.Setenv("BARTER_ROLLBACK_MAX_ELAPSED", "soon")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("Intervals", func(t *testing.T) {
		t.Setenv("BARTER_ROLLBACK_INITIAL_INTERVAL", "3s")
		t.Setenv("BARTER_ROLLBACK_MAX_INTERVAL", "1s")
		_, err := Load()
		assert.ErrorContains(t, err, "invalid rollback intervals")
	})
}

func TestParseSeed(t *testing.T) {
	seed, err := ParseSeed([]byte(`
items:
  - id: g1
    title: The Legend of Zelda
    platform: Switch
    year: 2017
    owner: alice
  - title: Mario Kart
    owner: bob
`))
	require.NoError(t, err)
	require.Len(t, seed.Items, 2)
	assert.Equal(t, "g1", seed.Items[0].ID)
	assert.Equal(t, 2017, seed.Items[0].Year)
	assert.Equal(t, "bob", seed.Items[1].Owner)

	_, err = ParseSeed([]byte("items:\n  - title: Zelda\n"))
	assert.ErrorContains(t, err, "owner are required")

	_, err = ParseSeed([]byte("items:\n  - title: Zelda\n    owner: a\n    colour: red\n"))
	assert.Error(t, err)
}

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("items:\n  - title: Zelda\n    owner: alice\n"), 0o600))

	seed, err := LoadSeed(path)
	require.NoError(t, err)
	assert.Len(t, seed.Items, 1)

	_, err = LoadSeed(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
