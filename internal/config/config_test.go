package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, 4, cfg.Compaction.L0CompactionTrigger)
	assert.Equal(t, 4, cfg.Repair.MaxConcurrentSessions)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	require.NoError(t, cfg.Validate())
}

func TestLoadReadsEnvOverrides(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "s3")
	t.Setenv("COMPACTION_L0_TRIGGER", "8")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "s3", cfg.Storage.Backend)
	assert.Equal(t, 8, cfg.Compaction.L0CompactionTrigger)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	cfg.Storage.Backend = "ftp"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveL0Trigger(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	cfg.Compaction.L0CompactionTrigger = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveMaxConcurrentSessions(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	cfg.Repair.MaxConcurrentSessions = -1
	assert.Error(t, cfg.Validate())
}

func TestStringProducesJSON(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Contains(t, cfg.String(), "\"storage\"")
}
