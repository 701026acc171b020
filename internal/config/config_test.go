package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.False(t, cfg.SeedDemo)
	assert.Equal(t, "@every 5m", cfg.AuditSchedule)
	assert.Empty(t, cfg.AlertEmail)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("STORE", StoreMemory)
	t.Setenv("SEED_DEMO", "true")
	t.Setenv("AUDIT_SCHEDULE", "@every 30s")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.True(t, cfg.SeedDemo)
	assert.Equal(t, "@every 30s", cfg.AuditSchedule)
}

func TestRejectsUnknownStore(t *testing.T) {
	t.Setenv("STORE", "cassandra")

	_, err := NewConfig()
	assert.Error(t, err)
}
