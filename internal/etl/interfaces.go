package etl

import (
	"context"

	"github.com/BartekS5/marketload/pkg/models"
)

// DataSource produces the raw batch for one run.
type DataSource interface {
	Name() string
	Fetch(ctx context.Context, params models.FetchParams) (*models.RawBatch, error)
}

// StorageSink persists a validated batch to a named table.
// Write closes the sink's connection when it returns, whatever the outcome.
type StorageSink interface {
	Backend() string
	TableExists(ctx context.Context, table string) (bool, error)
	EnsureSchema(ctx context.Context, table string) error
	Write(ctx context.Context, batch []models.Record, table string) (int64, error)
	Close() error
}

// RunRecorder keeps a ledger of pipeline runs.
type RunRecorder interface {
	Record(ctx context.Context, summary *RunSummary) error
}

// NopRecorder discards summaries.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, *RunSummary) error { return nil }
