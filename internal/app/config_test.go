package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/odyssey-erp/depot/internal/testing/guard"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PG_DSN", "postgres://localhost/depot")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 120, cfg.AppRateLimit)
	assert.Equal(t, int32(10), cfg.PGMaxConns)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyRetention)
	assert.Equal(t, "depot.events", cfg.KafkaTopic)
	assert.False(t, cfg.KafkaEnabled())
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigTrimsKafkaBrokers(t *testing.T) {
	t.Setenv("PG_DSN", "postgres://localhost/depot")
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	t.Setenv("PG_DSN", "postgres://localhost/depot")
	t.Setenv("APP_RATE_LIMIT", "0")
	_, err := LoadConfig()
	assert.ErrorContains(t, err, "APP_RATE_LIMIT")

	t.Setenv("APP_RATE_LIMIT", "60")
	t.Setenv("PG_MAX_CONNS", "0")
	_, err = LoadConfig()
	assert.ErrorContains(t, err, "PG_MAX_CONNS")

	t.Setenv("PG_MAX_CONNS", "4")
	t.Setenv("CACHE_TTL", "soon")
	_, err = LoadConfig()
	assert.Error(t, err)
}

func TestParseFlag(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", " on "} {
		assert.True(t, parseFlag(v), v)
	}
	for _, v := range []string{"", "0", "false", "maybe"} {
		assert.False(t, parseFlag(v), v)
	}
}

func TestGuardEnablesTestMode(t *testing.T) {
	assert.True(t, InTestMode())
}
