package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/BartekS5/marketload/internal/config"
	"github.com/BartekS5/marketload/internal/etl"
	"github.com/BartekS5/marketload/pkg/database"
	"github.com/BartekS5/marketload/pkg/logger"
)

// newSource returns the CSV source when input is set, otherwise the CoinGecko
// API, fronted by the Redis cache when one is configured and reachable.
func newSource(cfg *config.Config, input string) (etl.DataSource, func()) {
	if input != "" {
		return etl.NewCSVSource(input), func() {}
	}

	var src etl.DataSource = etl.NewCoinGeckoSource(cfg.API.BaseURL,
		etl.WithAPIKey(cfg.API.Key),
		etl.WithTimeout(cfg.API.Timeout),
	)
	if cfg.Cache.RedisAddr == "" {
		return src, func() {}
	}

	client, err := database.ConnectRedis(cfg.Cache.RedisAddr, cfg.Cache.Password, cfg.Cache.DB)
	if err != nil {
		logger.Warnf("Fetch cache disabled: %v", err)
		return src, func() {}
	}
	return etl.NewCachedSource(src, client, cfg.Cache.TTL), func() { client.Close() }
}

// newSink connects to the selected backend and returns it with its table.
func newSink(cfg *config.Config) (etl.StorageSink, string, error) {
	switch cfg.Destination.Backend {
	case config.BackendEmbedded:
		sink, err := etl.NewEmbeddedSink(cfg.Embedded.Database)
		if err != nil {
			return nil, "", err
		}
		return sink, cfg.Embedded.Table, nil
	case config.BackendWarehouse:
		sink, err := etl.NewWarehouseSink(cfg.Warehouse.WarehouseConfig)
		if err != nil {
			return nil, "", err
		}
		return sink, cfg.Warehouse.Table, nil
	default:
		return nil, "", fmt.Errorf("unknown backend %q", cfg.Destination.Backend)
	}
}

// newRecorder returns the Mongo run ledger when configured. A ledger that
// cannot be reached is skipped with a warning.
func newRecorder(cfg *config.Config) (etl.RunRecorder, func()) {
	if cfg.Mongo.URI == "" {
		return etl.NopRecorder{}, func() {}
	}

	client, err := database.ConnectMongo(cfg.Mongo.URI)
	if err != nil {
		logger.Warnf("Run ledger disabled: %v", err)
		return etl.NopRecorder{}, func() {}
	}

	rec := etl.NewMongoRecorder(client, cfg.Mongo.Database, cfg.Mongo.Collection)
	return rec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = rec.Close(ctx)
	}
}

func pushMetrics(cfg *config.Config, m *etl.Metrics) {
	if cfg.Metrics.PushgatewayURL == "" {
		return
	}
	if err := m.Push(cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
		logger.Warnf("%v", err)
	}
}
