package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Store kinds
const (
	KindMemory   = "memory"
	KindSQLite   = "sqlite"
	KindPostgres = "postgres"
	KindRedis    = "redis"
	KindFile     = "file"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "DOCMAP"

// Config represents the docmap configuration
type Config struct {
	Store  StoreConfig  `mapstructure:"store"`
	Schema SchemaConfig `mapstructure:"schema"`
	Log    LogConfig    `mapstructure:"log"`
}

// StoreConfig selects and configures the document store
type StoreConfig struct {
	Kind string `mapstructure:"kind"`
	// DSN is the data source name of the sqlite and postgres stores
	DSN        string      `mapstructure:"dsn"`
	MaxRetries int         `mapstructure:"max_retries"`
	Redis      RedisConfig `mapstructure:"redis"`
	File       FileConfig  `mapstructure:"file"`
}

// RedisConfig represents redis store configuration
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// FileConfig represents JSON file store configuration
type FileConfig struct {
	Path string `mapstructure:"path"`
}

// SchemaConfig points at the schema definition file
type SchemaConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load loads the configuration. An empty path searches for docmap.yaml or
// docmap.yml in the working directory; a missing file means defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("docmap")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// DOCMAP_STORE_KIND overrides store.kind
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Every key needs a default so AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("store.kind", KindMemory)
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.max_retries", 3)
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "docmap:")
	v.SetDefault("store.file.path", "docmap.json")
	v.SetDefault("schema.path", "schema.yaml")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	cfg.Store.Kind = strings.ToLower(strings.TrimSpace(cfg.Store.Kind))

	switch cfg.Store.Kind {
	case KindMemory:
	case KindSQLite, KindPostgres:
		if cfg.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the %s store", cfg.Store.Kind)
		}
	case KindRedis:
		if cfg.Store.Redis.Addr == "" {
			return fmt.Errorf("store.redis.addr is required for the redis store")
		}
	case KindFile:
		if cfg.Store.File.Path == "" {
			return fmt.Errorf("store.file.path is required for the file store")
		}
	default:
		return fmt.Errorf("store.kind must be one of memory, sqlite, postgres, redis, file, got: %s", cfg.Store.Kind)
	}

	if cfg.Store.MaxRetries < 0 {
		return fmt.Errorf("store.max_retries must not be negative, got: %d", cfg.Store.MaxRetries)
	}

	if _, err := parseLevel(cfg.Log.Level); err != nil {
		return err
	}
	return nil
}

func parseLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return l, fmt.Errorf("log.level %q is not a valid level", level)
	}
	return l, nil
}

// NewLogger builds the logger described by the configuration
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stderr"}

	return zcfg.Build()
}
