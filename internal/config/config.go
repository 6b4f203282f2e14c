// Package config handles loading and parsing of the pipeline configuration
// file, with environment variables taking precedence over file values.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BartekS5/marketload/pkg/database"
	"github.com/BartekS5/marketload/pkg/models"
	"github.com/spf13/viper"
)

// Config is the immutable run configuration, read once at startup.
type Config struct {
	API         APIConfig              `mapstructure:"api" yaml:"api"`
	Destination DestinationConfig      `mapstructure:"destination" yaml:"destination"`
	Embedded    EmbeddedConfig         `mapstructure:"embedded" yaml:"embedded"`
	Warehouse   WarehouseConfig        `mapstructure:"warehouse" yaml:"warehouse"`
	Validation  models.ValidationRules `mapstructure:"validation" yaml:"validation"`
	Mongo       MongoConfig            `mapstructure:"mongo" yaml:"mongo"`
	Cache       CacheConfig            `mapstructure:"cache" yaml:"cache"`
	Metrics     MetricsConfig          `mapstructure:"metrics" yaml:"metrics"`
	Log         LogConfig              `mapstructure:"log" yaml:"log"`
}

type APIConfig struct {
	models.FetchParams `mapstructure:",squash" yaml:",inline"`

	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Key     string        `mapstructure:"key" yaml:"key,omitempty"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type DestinationConfig struct {
	// Backend is "embedded" or "warehouse".
	Backend string `mapstructure:"backend" yaml:"backend"`
}

type EmbeddedConfig struct {
	Database string `mapstructure:"database" yaml:"database"`
	Table    string `mapstructure:"table" yaml:"table"`
}

type WarehouseConfig struct {
	database.WarehouseConfig `mapstructure:",squash" yaml:",inline"`

	Table string `mapstructure:"table" yaml:"table"`
}

// MongoConfig enables the run ledger when URI is set.
type MongoConfig struct {
	URI        string `mapstructure:"uri" yaml:"uri,omitempty"`
	Database   string `mapstructure:"database" yaml:"database"`
	Collection string `mapstructure:"collection" yaml:"collection"`
}

// CacheConfig enables the Redis fetch cache when RedisAddr is set.
type CacheConfig struct {
	RedisAddr string        `mapstructure:"redis_addr" yaml:"redis_addr,omitempty"`
	Password  string        `mapstructure:"password" yaml:"password,omitempty"`
	DB        int           `mapstructure:"db" yaml:"db"`
	TTL       time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// MetricsConfig enables a Pushgateway push when PushgatewayURL is set.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url" yaml:"pushgateway_url,omitempty"`
	Job            string `mapstructure:"job" yaml:"job"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file,omitempty"`
}

// EnvPrefix namespaces environment overrides, e.g. MARKETLOAD_WAREHOUSE_PASSWORD.
const EnvPrefix = "MARKETLOAD"

// Load reads the YAML file at path, applies environment overrides and
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Credentials keep the variable names the deployment already uses.
	_ = v.BindEnv("warehouse.user", EnvPrefix+"_WAREHOUSE_USER", "SNOWFLAKE_USER")
	_ = v.BindEnv("warehouse.password", EnvPrefix+"_WAREHOUSE_PASSWORD", "SNOWFLAKE_PASSWORD")
	_ = v.BindEnv("mongo.uri", EnvPrefix+"_MONGO_URI", "MONGO_URI")
	_ = v.BindEnv("cache.redis_addr", EnvPrefix+"_CACHE_REDIS_ADDR", "REDIS_ADDR")
	_ = v.BindEnv("log.level", EnvPrefix+"_LOG_LEVEL", "LOG_LEVEL")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file '%s': %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Table returns the destination table of the selected backend.
func (c *Config) Table() string {
	if c.Destination.Backend == BackendWarehouse {
		return c.Warehouse.Table
	}
	return c.Embedded.Table
}
