package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/microsoft/go-mssqldb"
	"github.com/snowflakedb/gosnowflake"

	"github.com/BartekS5/marketload/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Warehouse driver identifiers accepted in configuration.
const (
	DriverSnowflake = "snowflake"
	DriverSQLServer = "sqlserver"
	DriverPostgres  = "postgres"
)

// WarehouseConfig holds connection parameters for the cloud/server warehouse.
// Not every field applies to every driver: account, warehouse and role are
// Snowflake concepts, host and port are not.
type WarehouseConfig struct {
	Driver    string `mapstructure:"driver" yaml:"driver"`
	Account   string `mapstructure:"account" yaml:"account,omitempty"`
	Host      string `mapstructure:"host" yaml:"host,omitempty"`
	Port      int    `mapstructure:"port" yaml:"port,omitempty"`
	User      string `mapstructure:"user" yaml:"user"`
	Password  string `mapstructure:"password" yaml:"password"`
	Database  string `mapstructure:"database" yaml:"database"`
	Schema    string `mapstructure:"schema" yaml:"schema,omitempty"`
	Warehouse string `mapstructure:"warehouse" yaml:"warehouse,omitempty"`
	Role      string `mapstructure:"role" yaml:"role,omitempty"`
	SSLMode   string `mapstructure:"sslmode" yaml:"sslmode,omitempty"`
}

// SQLDriverName maps a configured driver to its database/sql registration.
func SQLDriverName(driver string) (string, error) {
	switch driver {
	case DriverSnowflake:
		return "snowflake", nil
	case DriverSQLServer:
		return "sqlserver", nil
	case DriverPostgres:
		return "pgx", nil
	default:
		return "", fmt.Errorf("unsupported warehouse driver %q", driver)
	}
}

// BuildDSN renders the connection string for the configured driver.
func BuildDSN(cfg WarehouseConfig) (string, error) {
	switch cfg.Driver {
	case DriverSnowflake:
		return gosnowflake.DSN(&gosnowflake.Config{
			Account:   cfg.Account,
			User:      cfg.User,
			Password:  cfg.Password,
			Database:  cfg.Database,
			Schema:    cfg.Schema,
			Warehouse: cfg.Warehouse,
			Role:      cfg.Role,
		})
	case DriverSQLServer:
		q := url.Values{}
		q.Set("database", cfg.Database)
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(cfg.User, cfg.Password),
			Host:     hostPort(cfg.Host, cfg.Port),
			RawQuery: q.Encode(),
		}
		return u.String(), nil
	case DriverPostgres:
		sslMode := cfg.SSLMode
		if sslMode == "" {
			sslMode = "prefer"
		}
		q := url.Values{}
		q.Set("sslmode", sslMode)
		if cfg.Schema != "" {
			q.Set("search_path", cfg.Schema)
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(cfg.User, cfg.Password),
			Host:     hostPort(cfg.Host, cfg.Port),
			Path:     "/" + cfg.Database,
			RawQuery: q.Encode(),
		}
		return u.String(), nil
	default:
		return "", fmt.Errorf("unsupported warehouse driver %q", cfg.Driver)
	}
}

func hostPort(host string, port int) string {
	if port == 0 {
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// ConnectSQL opens a database/sql handle and verifies it with a ping.
func ConnectSQL(driverName, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening %s database: %w", driverName, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to %s database (ping failed): %w", driverName, err)
	}

	logger.Infof("Successfully connected to %s database.", driverName)
	return db, nil
}

// ConnectWarehouse opens the warehouse described by cfg.
func ConnectWarehouse(cfg WarehouseConfig) (*sql.DB, error) {
	driverName, err := SQLDriverName(cfg.Driver)
	if err != nil {
		return nil, err
	}
	dsn, err := BuildDSN(cfg)
	if err != nil {
		return nil, fmt.Errorf("error building %s dsn: %w", cfg.Driver, err)
	}
	return ConnectSQL(driverName, dsn)
}

// ConnectSQLite opens the embedded database file, creating its directory first.
func ConnectSQLite(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
	}

	db, err := ConnectSQL("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// One writer at a time keeps the replace transaction on a single connection.
	db.SetMaxOpenConns(1)
	return db, nil
}

func ConnectMongo(connString string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(connString))
	if err != nil {
		return nil, fmt.Errorf("error creating MongoDB client: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()

	err = client.Ping(pingCtx, readpref.Primary())
	if err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)

		return nil, fmt.Errorf("error connecting to MongoDB (ping failed): %w", err)
	}

	logger.Info("Successfully connected to MongoDB.")
	return client, nil
}

// ConnectRedis opens a Redis client and verifies it with a ping.
func ConnectRedis(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("error connecting to Redis at %s: %w", addr, err)
	}

	logger.Infof("Successfully connected to Redis at %s.", addr)
	return rdb, nil
}
