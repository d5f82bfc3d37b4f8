package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestFromLookup_Defaults(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, int64(10<<20), cfg.MaxDocumentBytes)
	assert.Equal(t, int64(2<<20), cfg.MaxImageBytes)
	assert.Equal(t, 12*time.Hour, cfg.DocumentTTL)
	assert.Equal(t, 2*time.Second, cfg.StorePollInterval)
	assert.False(t, cfg.SharedStore())
	assert.True(t, cfg.SeedPatients)
}

func TestFromLookup_Overrides(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(map[string]string{
		"PORT":          "9090",
		"STORE_DRIVER":  "SQLite",
		"SQLITE_PATH":   "/tmp/x.db",
		"SEED_PATIENTS": "no",
		"DOCUMENT_TTL":  "5m",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.True(t, cfg.SharedStore())
	assert.Equal(t, "/tmp/x.db", cfg.SQLitePath)
	assert.False(t, cfg.SeedPatients)
	assert.Equal(t, 5*time.Minute, cfg.DocumentTTL)
}

func TestFromLookup_Errors(t *testing.T) {
	_, err := FromLookup(lookupFrom(map[string]string{"STORE_DRIVER": "postgres"}))
	assert.Error(t, err)

	_, err = FromLookup(lookupFrom(map[string]string{"STORE_DRIVER": "redis"}))
	assert.Error(t, err)

	_, err = FromLookup(lookupFrom(map[string]string{"MAX_IMAGE_BYTES": "-1"}))
	assert.Error(t, err)

	_, err = FromLookup(lookupFrom(map[string]string{"STORE_POLL_INTERVAL": "-1s"}))
	assert.Error(t, err)
}
