package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "mongodb-orm/internal/shared/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_Defaults(t *testing.T) {
	defaults := &Settings{MongoURI: "mongodb://localhost:27017", DatabaseName: "app"}
	cfg := Resolve("User", defaults)

	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	assert.Equal(t, "app", cfg.DatabaseName)
	assert.Equal(t, "User", cfg.CollectionName)
	assert.NoError(t, cfg.Validate())
}

func TestResolve_OverridePriority(t *testing.T) {
	defaults := &Settings{MongoURI: "mongodb://default", DatabaseName: "app"}
	fromType := &Override{CollectionName: "users"}
	fromFile := &Override{CollectionName: "people", DatabaseName: "crm"}

	cfg := Resolve("User", defaults, fromType, fromFile)

	assert.Equal(t, "users", cfg.CollectionName, "first override wins")
	assert.Equal(t, "crm", cfg.DatabaseName, "lower override fills fields the higher one leaves empty")
	assert.Equal(t, "mongodb://default", cfg.MongoURI)
}

func TestResolve_NilInputs(t *testing.T) {
	cfg := Resolve("Post", nil, nil)
	assert.Equal(t, "Post", cfg.CollectionName)
	assert.Empty(t, cfg.MongoURI)
}

func TestModelConfig_Validate(t *testing.T) {
	err := ModelConfig{DatabaseName: "app", CollectionName: "User"}.Validate()
	require.Error(t, err)
	assert.True(t, apperrors.IsConfiguration(err))
	assert.Contains(t, err.Error(), "MONGO_URI")

	err = ModelConfig{MongoURI: "mongodb://x", CollectionName: "User"}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONGO_DATABASE")
}

func TestLoadSettings_FromEnvironment(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://env:27017")
	t.Setenv("MONGO_DATABASE", "envdb")
	t.Setenv("ODM_SEQUENCE_BACKEND", "redis")
	t.Setenv("REDIS_PORT", "6380")

	cfg, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, "mongodb://env:27017", cfg.MongoURI)
	assert.Equal(t, "envdb", cfg.DatabaseName)
	assert.Equal(t, SequenceBackendRedis, cfg.SequenceBackend)
	assert.Equal(t, "localhost:6380", cfg.Redis.GetAddr())
	assert.False(t, cfg.BusConfig().AsyncProcessing)
	assert.Equal(t, 0, cfg.BusConfig().MaxRetries)
}

func TestSettings_BusConfig(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://env:27017")
	t.Setenv("ODM_EVENTS_ASYNC", "true")
	t.Setenv("ODM_EVENT_RETRIES", "2")
	t.Setenv("ODM_EVENT_RETRY_BACKOFF", "5ms")

	cfg, err := LoadSettings()
	require.NoError(t, err)
	bus := cfg.BusConfig()
	assert.True(t, bus.AsyncProcessing)
	assert.Equal(t, 2, bus.MaxRetries)
	assert.Equal(t, 5*time.Millisecond, bus.RetryDelay)
}

func TestLoadSettings_UnknownBackend(t *testing.T) {
	t.Setenv("ODM_SEQUENCE_BACKEND", "etcd")
	_, err := LoadSettings()
	require.Error(t, err)
	assert.True(t, apperrors.IsConfiguration(err))
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	content := `
User:
  collection_name: users
Audit:
  mongo_uri: mongodb://audit:27017
  database_name: audit
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	overrides, err := LoadOverrides(path)
	require.NoError(t, err)
	assert.Equal(t, "users", overrides["User"].CollectionName)
	assert.Equal(t, "audit", overrides["Audit"].DatabaseName)
	assert.Equal(t, "mongodb://audit:27017", overrides["Audit"].MongoURI)

	empty, err := LoadOverrides("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = LoadOverrides(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewRedisClient(t *testing.T) {
	client := NewRedisClient(RedisConfig{Host: "cache", Port: "6379", PoolSize: 4})
	defer client.Close()
	assert.Equal(t, "cache:6379", client.Options().Addr)
	assert.Equal(t, 30*60, int(client.Options().ConnMaxIdleTime.Seconds()))
}
