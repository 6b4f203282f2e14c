package config

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/BartekS5/marketload/pkg/database"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.API.CoinID == "" {
		return errors.New("api.coin_id is required")
	}
	if c.API.VsCurrency == "" {
		return errors.New("api.vs_currency is required")
	}
	if c.API.Days == "" {
		return errors.New("api.days is required")
	}

	switch c.Destination.Backend {
	case BackendEmbedded:
		if !identRe.MatchString(c.Embedded.Table) {
			return fmt.Errorf("embedded.table %q is not a valid table name", c.Embedded.Table)
		}
	case BackendWarehouse:
		if err := c.Warehouse.validate("warehouse"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("destination.backend must be %q or %q, got %q", BackendEmbedded, BackendWarehouse, c.Destination.Backend)
	}

	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative, got %s", c.Cache.TTL)
	}

	for _, col := range c.Validation.RequiredColumns {
		if col == "" {
			return errors.New("validation.required_columns must not contain empty names")
		}
	}
	return nil
}

func (w *WarehouseConfig) validate(prefix string) error {
	if !identRe.MatchString(w.Table) {
		return fmt.Errorf("%s.table %q is not a valid table name", prefix, w.Table)
	}
	switch w.Driver {
	case database.DriverSnowflake:
		if w.Account == "" {
			return fmt.Errorf("%s.account is required for snowflake", prefix)
		}
	case database.DriverSQLServer, database.DriverPostgres:
		if w.Host == "" {
			return fmt.Errorf("%s.host is required for %s", prefix, w.Driver)
		}
	default:
		return fmt.Errorf("%s.driver must be one of snowflake, sqlserver, postgres, got %q", prefix, w.Driver)
	}
	if w.Database == "" {
		return fmt.Errorf("%s.database is required", prefix)
	}
	if w.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if w.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if w.Port < 0 || w.Port > 65535 {
		return fmt.Errorf("%s.port must be between 0 and 65535, got %d", prefix, w.Port)
	}
	return nil
}
