package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata/dialect"
	dsql "github.com/syssam/strata/dialect/sql"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, dialect.SQLite, cfg.Database.Driver)
	assert.Equal(t, "always-new", cfg.Database.Behavior)
	assert.Equal(t, 10, cfg.Database.PoolSize)
	assert.Equal(t, time.Second, cfg.Database.PollInterval)
	assert.Zero(t, cfg.Database.AcquireTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Database.SlowThreshold)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "strata.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: postgres
  dsn: postgres://app@localhost/shop
  behavior: pooled
  pool_size: 4
  statement_cache: 10
  poll_interval: 250ms
  acquire_timeout: 5s
log:
  level: debug
  format: json
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://app@localhost/shop", cfg.Database.DSN)
	assert.Equal(t, 4, cfg.Database.PoolSize)
	assert.Equal(t, 10, cfg.Database.StatementCache)
	assert.Equal(t, 250*time.Millisecond, cfg.Database.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.Database.AcquireTimeout)
	assert.Equal(t, "json", cfg.Log.Format)

	b, err := dsql.ParseBehavior(cfg.Database.Behavior)
	require.NoError(t, err)
	assert.Equal(t, dsql.Pooled, b)
}

func TestLoadEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STRATA_DATABASE_DRIVER", "mysql")
	t.Setenv("STRATA_DATABASE_DSN", "app@tcp(localhost)/shop")
	t.Setenv("STRATA_DATABASE_BEHAVIOR", "Persistent")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "app@tcp(localhost)/shop", cfg.Database.DSN)
	assert.Equal(t, "Persistent", cfg.Database.Behavior)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	tests := map[string]string{
		"driver":   "database:\n  driver: oracle\n",
		"behavior": "database:\n  behavior: sometimes\n",
		"pool":     "database:\n  pool_size: 0\n",
		"level":    "log:\n  level: loud\n",
		"format":   "log:\n  format: xml\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "strata.yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
			_, err := Load(path)
			require.Error(t, err)
		})
	}
}

func TestDialect(t *testing.T) {
	tests := map[string]string{
		"sqlite":     dialect.SQLite,
		"sqlite3":    dialect.SQLite,
		"mysql":      dialect.MySQL,
		"postgresql": dialect.Postgres,
		"pgx":        dialect.Postgres,
		"SQLServer":  dialect.SQLServer,
		"azuresql":   dialect.SQLServer,
	}
	for driver, name := range tests {
		d, err := Dialect(driver)
		require.NoError(t, err, driver)
		assert.Equal(t, name, d.Name(), driver)
	}
	d, err := Dialect("sqlite3")
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", d.Driver())
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{Log: LogConfig{Level: "warn", Format: "json"}}
	log := cfg.Logger(&buf)
	log.Info("hidden")
	log.Warn("shown", "table", "Customer")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"table":"Customer"`)
}

func TestOpen(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{
			Driver:         "sqlite",
			DSN:            "file:" + filepath.Join(t.TempDir(), "shop.db"),
			Behavior:       "hold-maintenance",
			PoolSize:       2,
			StatementCache: 5,
		},
		Log: LogConfig{Level: "error", Format: "text"},
	}
	s, err := Open(cfg)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, dsql.HoldMaintenance, s.Behavior())

	names, err := s.TableNames(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)

	_, err = Open(&Config{Database: DatabaseConfig{Driver: "sqlite"}})
	require.Error(t, err)
}
