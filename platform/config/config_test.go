package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/erp")
	t.Setenv("JWT_ACCESS_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadMemoryStoreDoesNotNeedDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("CLIENT_STORE", "memory")
	t.Setenv("IDENTITY_LOCK_TTL", "3s")
	t.Setenv("PHONE_DEFAULT_REGION", "be")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.GetClientStore())
	assert.Equal(t, 3*time.Second, cfg.GetIdentityLockTTL())
	assert.Equal(t, "BE", cfg.GetPhoneRegion())
}

func TestLoadRejectsUnknownStore(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/erp")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("CLIENT_STORE", "mongo")

	_, err := Load()
	require.Error(t, err)
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitCSV(" a , ,b "))
	assert.True(t, containsWildcard([]string{"http://x", "*"}))
}

func TestLoadTracingAndKafka(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("CLIENT_STORE", "memory")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "collector:4318", cfg.GetOTLPEndpoint())
	assert.True(t, cfg.GetOTLPInsecure())
	assert.Equal(t, "erp-clients", cfg.GetServiceName())
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.GetKafkaBrokers())
	assert.Equal(t, "erp.clients.events", cfg.GetKafkaEventsTopic())
}
