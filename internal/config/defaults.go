package config

import (
	"time"

	"github.com/BartekS5/marketload/pkg/models"
	"github.com/spf13/viper"
)

// Backend names accepted by destination.backend.
const (
	BackendEmbedded  = "embedded"
	BackendWarehouse = "warehouse"
)

// Default values for optional configuration fields.
const (
	DefaultBaseURL          = "https://api.coingecko.com/api/v3"
	DefaultCoinID           = "bitcoin"
	DefaultVsCurrency       = "usd"
	DefaultDays             = "30"
	DefaultInterval         = "daily"
	DefaultAPITimeout       = 30 * time.Second
	DefaultBackend          = BackendEmbedded
	DefaultEmbeddedDatabase = "data/market.db"
	DefaultTable            = "crypto_prices"
	DefaultWarehouseDriver  = "snowflake"
	DefaultMongoDatabase    = "marketload"
	DefaultMongoCollection  = "runs"
	DefaultCacheTTL         = 15 * time.Minute
	DefaultMetricsJob       = "marketload"
	DefaultLogLevel         = "info"
)

// setDefaults registers every key with viper so environment overrides reach
// keys the file leaves out.
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", DefaultBaseURL)
	v.SetDefault("api.coin_id", DefaultCoinID)
	v.SetDefault("api.vs_currency", DefaultVsCurrency)
	v.SetDefault("api.days", DefaultDays)
	v.SetDefault("api.interval", DefaultInterval)
	v.SetDefault("api.key", "")
	v.SetDefault("api.timeout", DefaultAPITimeout)

	v.SetDefault("destination.backend", DefaultBackend)

	v.SetDefault("embedded.database", DefaultEmbeddedDatabase)
	v.SetDefault("embedded.table", DefaultTable)

	v.SetDefault("warehouse.driver", DefaultWarehouseDriver)
	for _, key := range []string{"account", "host", "user", "password", "database", "schema", "warehouse", "role", "sslmode"} {
		v.SetDefault("warehouse."+key, "")
	}
	v.SetDefault("warehouse.port", 0)
	v.SetDefault("warehouse.table", DefaultTable)

	v.SetDefault("validation.required_columns", models.Columns)
	v.SetDefault("validation.min_price", 0.0)

	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", DefaultMongoDatabase)
	v.SetDefault("mongo.collection", DefaultMongoCollection)

	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", DefaultCacheTTL)

	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", DefaultMetricsJob)

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.file", "")
}

// applyDefaults fills fields an explicit empty value in the file blanked out.
func (c *Config) applyDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.Destination.Backend == "" {
		c.Destination.Backend = DefaultBackend
	}
	if c.Embedded.Database == "" {
		c.Embedded.Database = DefaultEmbeddedDatabase
	}
	if c.Embedded.Table == "" {
		c.Embedded.Table = DefaultTable
	}
	if c.Warehouse.Driver == "" {
		c.Warehouse.Driver = DefaultWarehouseDriver
	}
	if c.Warehouse.Table == "" {
		c.Warehouse.Table = DefaultTable
	}
	if len(c.Validation.RequiredColumns) == 0 {
		c.Validation.RequiredColumns = append([]string(nil), models.Columns...)
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = DefaultMongoDatabase
	}
	if c.Mongo.Collection == "" {
		c.Mongo.Collection = DefaultMongoCollection
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = DefaultCacheTTL
	}
	if c.Metrics.Job == "" {
		c.Metrics.Job = DefaultMetricsJob
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}
