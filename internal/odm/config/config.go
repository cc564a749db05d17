package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	apperrors "mongodb-orm/internal/shared/errors"
	"mongodb-orm/internal/shared/eventbus"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Sequence backends
const (
	SequenceBackendMongo = "mongo"
	SequenceBackendRedis = "redis"
)

// Settings holds the process-wide defaults every model falls back to.
type Settings struct {
	MongoURI     string `env:"MONGO_URI" json:"mongo_uri"`
	DatabaseName string `env:"MONGO_DATABASE" json:"database_name"`

	// OverridesFile points at a YAML file of per-model overrides.
	OverridesFile string `env:"ODM_MODEL_OVERRIDES" json:"overrides_file"`

	// SequenceBackend selects where identities are minted: "mongo" or "redis".
	SequenceBackend string `env:"ODM_SEQUENCE_BACKEND" envDefault:"mongo" json:"sequence_backend"`

	// EventsAsync runs document event handlers concurrently; EventRetries
	// re-runs a failing handler before the failure is logged.
	EventsAsync       bool          `env:"ODM_EVENTS_ASYNC" envDefault:"false" json:"events_async"`
	EventRetries      int           `env:"ODM_EVENT_RETRIES" envDefault:"0" json:"event_retries"`
	EventRetryBackoff time.Duration `env:"ODM_EVENT_RETRY_BACKOFF" envDefault:"100ms" json:"event_retry_backoff"`

	Redis RedisConfig `json:"redis"`
}

// BusConfig maps the event settings onto the event bus configuration.
func (s *Settings) BusConfig() eventbus.BusConfig {
	cfg := eventbus.DefaultBusConfig()
	cfg.AsyncProcessing = s.EventsAsync
	if s.EventRetries > 0 {
		cfg.MaxRetries = s.EventRetries
	}
	if s.EventRetryBackoff > 0 {
		cfg.RetryDelay = s.EventRetryBackoff
	}
	return cfg
}

// RedisConfig configures the optional Redis sequence backend.
type RedisConfig struct {
	Host            string `env:"REDIS_HOST" envDefault:"localhost" json:"host"`
	Port            string `env:"REDIS_PORT" envDefault:"6379" json:"port"`
	Password        string `env:"REDIS_PASSWORD" json:"-"`
	Database        int    `env:"REDIS_DB" envDefault:"0" json:"database"`
	MaxRetries      int    `env:"REDIS_MAX_RETRIES" envDefault:"3" json:"max_retries"`
	PoolSize        int    `env:"REDIS_POOL_SIZE" envDefault:"10" json:"pool_size"`
	EnableTLS       bool   `env:"REDIS_TLS" envDefault:"false" json:"enable_tls"`
	ConnMaxIdleTime string `env:"REDIS_CONN_MAX_IDLE_TIME" envDefault:"30m" json:"conn_max_idle_time"`
}

// GetAddr returns host:port.
func (c RedisConfig) GetAddr() string {
	return c.Host + ":" + c.Port
}

// Override replaces individual defaults for one model. Empty fields fall back.
type Override struct {
	MongoURI       string `yaml:"mongo_uri" json:"mongo_uri,omitempty"`
	DatabaseName   string `yaml:"database_name" json:"database_name,omitempty"`
	CollectionName string `yaml:"collection_name" json:"collection_name,omitempty"`
}

// Overrider is implemented by model types that carry their own connection settings.
type Overrider interface {
	ODMOverride() Override
}

// ModelConfig is the resolved connection triple for one model type.
type ModelConfig struct {
	MongoURI       string `json:"-"`
	DatabaseName   string `json:"database_name"`
	CollectionName string `json:"collection_name"`
}

// Validate fails with a configuration error instead of letting a connection
// be attempted against empty settings.
func (c ModelConfig) Validate() error {
	if c.MongoURI == "" {
		return apperrors.NewConfigurationError(fmt.Sprintf("MONGO_URI is not set and no override was given for collection %q", c.CollectionName))
	}
	if c.DatabaseName == "" {
		return apperrors.NewConfigurationError(fmt.Sprintf("MONGO_DATABASE is not set and no override was given for collection %q", c.CollectionName))
	}
	if c.CollectionName == "" {
		return apperrors.NewConfigurationError("collection name resolved to an empty string")
	}
	return nil
}

// LoadSettings loads an optional .env file and parses the environment.
func LoadSettings() (*Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Settings{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.New("failed to load odm configuration from environment: " + err.Error())
	}
	if err := env.Parse(&cfg.Redis); err != nil {
		return nil, errors.New("failed to load redis configuration from environment: " + err.Error())
	}

	switch cfg.SequenceBackend {
	case SequenceBackendMongo, SequenceBackendRedis:
	case "":
		cfg.SequenceBackend = SequenceBackendMongo
	default:
		return nil, apperrors.NewConfigurationError(fmt.Sprintf("unknown ODM_SEQUENCE_BACKEND %q", cfg.SequenceBackend))
	}

	return cfg, nil
}

// LoadOverrides reads a YAML document mapping model names to Override values.
// An empty path yields no overrides.
func LoadOverrides(path string) (map[string]Override, error) {
	if path == "" {
		return map[string]Override{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model overrides: %w", err)
	}
	overrides := map[string]Override{}
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse model overrides %s: %w", path, err)
	}
	return overrides, nil
}

// Resolve merges defaults with the given overrides, highest priority first.
// It is pure: no environment access, no I/O.
func Resolve(modelName string, defaults *Settings, overrides ...*Override) ModelConfig {
	cfg := ModelConfig{CollectionName: modelName}
	if defaults != nil {
		cfg.MongoURI = defaults.MongoURI
		cfg.DatabaseName = defaults.DatabaseName
	}

	// Apply lowest priority first so higher ones win.
	for i := len(overrides) - 1; i >= 0; i-- {
		o := overrides[i]
		if o == nil {
			continue
		}
		if o.MongoURI != "" {
			cfg.MongoURI = o.MongoURI
		}
		if o.DatabaseName != "" {
			cfg.DatabaseName = o.DatabaseName
		}
		if o.CollectionName != "" {
			cfg.CollectionName = o.CollectionName
		}
	}
	return cfg
}
