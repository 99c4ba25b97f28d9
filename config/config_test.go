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
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "clover", cfg.AppName)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "orders", cfg.KafkaOrdersTopic)
	assert.Equal(t, "duplicate-alerts", cfg.KafkaAlertsTopic)
	assert.Equal(t, 30*time.Second, cfg.EvaluationLockTTL)
	assert.Equal(t, 200*time.Millisecond, cfg.KafkaRetryBackoff)
	assert.False(t, cfg.EvaluationUseDefaultSettings)
	assert.Equal(t, []string{"GET", "POST", "PUT", "DELETE"}, cfg.AllowMethods)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("KAFKA_ORDERS_TOPIC=from-file\nREDIS_PORT=6380\n"), 0o600))

	t.Setenv("REDIS_PORT", "6390")
	t.Cleanup(func() { os.Unsetenv("KAFKA_ORDERS_TOPIC") })

	cfg, err := Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.KafkaOrdersTopic)
	assert.Equal(t, 6390, cfg.RedisPort)
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " , ")
	t.Setenv("OTLP_PROTOCOL", "udp")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
	assert.Contains(t, err.Error(), "OTLP_PROTOCOL")
}

func TestBrokers(t *testing.T) {
	cfg := Config{KafkaBrokers: "kafka-1:9092, kafka-2:9092,"}
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Brokers())
}
