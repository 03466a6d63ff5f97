package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("COLLABHUB_ADDR", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("PRESENCE_LEASE_TTL", "")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.NotEmpty(t, cfg.Server.JWTSigningKey)
	assert.Equal(t, 90*time.Second, cfg.Presence.LeaseTTL)
	assert.Equal(t, "collabhub-producers", cfg.Server.JWTProducerAudience)
	assert.False(t, cfg.Kafka.Enabled())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("COLLABHUB_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", " broker-1:9092, ,broker-2:9092 ")
	t.Setenv("PRESENCE_LEASE_TTL", "2m")
	t.Setenv("PRESENCE_REFRESH_INTERVAL", "40s")
	t.Setenv("DISPATCH_CONCURRENCY", "4")
	t.Setenv("REDIS_POOL_SIZE", "not-a-number")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, 2*time.Minute, cfg.Presence.LeaseTTL)
	assert.Equal(t, 4, cfg.Presence.DispatchConcurrency)
	assert.Equal(t, 20, cfg.Redis.PoolSize, "malformed ints fall back to defaults")
}

func TestValidate_RefreshMustBeShorterThanLease(t *testing.T) {
	t.Setenv("PRESENCE_LEASE_TTL", "30s")
	t.Setenv("PRESENCE_REFRESH_INTERVAL", "30s")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRESENCE_REFRESH_INTERVAL")
}

func TestFromEnv_ConnectLimit(t *testing.T) {
	t.Setenv("WS_CONNECT_LIMIT", "5")
	t.Setenv("WS_CONNECT_WINDOW", "10s")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.RateLimit.ConnectLimit)
	assert.Equal(t, 10*time.Second, cfg.RateLimit.ConnectWindow)

	t.Setenv("WS_CONNECT_WINDOW", "0s")
	_, err = FromEnv()
	require.Error(t, err)
}

func TestValidate_NameCacheTTLMustBePositive(t *testing.T) {
	t.Setenv("NAME_CACHE_TTL", "0s")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NAME_CACHE_TTL")
}

func TestValidate_ProducerAudienceMustDifferFromUserAudience(t *testing.T) {
	t.Setenv("JWT_AUDIENCE", "collabhub")
	t.Setenv("JWT_PRODUCER_AUDIENCE", "collabhub")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_PRODUCER_AUDIENCE")
}
