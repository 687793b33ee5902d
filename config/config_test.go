package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ReadsYAML(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, StorePostgres, cfg.Store.Backend)
	assert.Equal(t, TransportInline, cfg.Events.Transport)
	assert.Equal(t, DispatchAuto, cfg.Dispatch.Mode)
	assert.Equal(t, time.Second, cfg.Dispatch.AsyncTimeout)
	assert.Equal(t, 5*time.Second, cfg.Dispatch.SyncTimeout)
	assert.Equal(t, 10*time.Second, cfg.Dispatch.TestTimeout)
	assert.Equal(t, 30, cfg.Dispatch.MaxPerMinute)
	assert.Equal(t, "@every 10m", cfg.Ledger.SweepSchedule)
	assert.Equal(t, "CF-IPCountry", cfg.Geo.CountryHeader)
	assert.Equal(t, int32(10), cfg.Postgres.MaxConns)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PG_HOST", "db.internal")
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("DISPATCH_MODE", "sync")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, StoreSQLite, cfg.Store.Backend)
	assert.Equal(t, DispatchSync, cfg.Dispatch.Mode)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "etcd")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store backend")
}

func TestValidate_RedisBackendNeedsRedis(t *testing.T) {
	cfg := Config{
		Store:    StoreConfig{Backend: StoreRedis},
		Events:   EventsConfig{Transport: TransportInline},
		Dispatch: DispatchConfig{Mode: DispatchSync},
	}
	require.Error(t, cfg.validate())

	cfg.Redis.Enabled = true
	require.NoError(t, cfg.validate())
}
