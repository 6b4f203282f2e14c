package etl

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/BartekS5/marketload/pkg/database"
	"github.com/BartekS5/marketload/pkg/logger"
	"github.com/BartekS5/marketload/pkg/models"
)

const BackendWarehouse = "warehouse"

// WarehouseSink appends to a warehouse table. Rows already stored are never
// compared against the batch, so re-running a window duplicates it; the table
// is an accumulating log. A failed append is rolled back.
type WarehouseSink struct {
	sqlTable
}

// NewWarehouseSink connects to the warehouse described by cfg.
func NewWarehouseSink(cfg database.WarehouseConfig) (*WarehouseSink, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, &SinkError{Kind: ErrConnectionFailed, Backend: BackendWarehouse, Err: err}
	}
	db, err := database.ConnectWarehouse(cfg)
	if err != nil {
		return nil, &SinkError{Kind: ErrConnectionFailed, Backend: BackendWarehouse, Err: err}
	}
	return NewWarehouseSinkFromDB(db, dialect), nil
}

// NewWarehouseSinkFromDB wraps an open handle speaking the given dialect. The sink owns it.
func NewWarehouseSinkFromDB(db *sql.DB, dialect Dialect) *WarehouseSink {
	return &WarehouseSink{sqlTable{DB: db, Dialect: dialect, backend: BackendWarehouse}}
}

// Write appends batch to the table and returns the table's total row count.
func (s *WarehouseSink) Write(ctx context.Context, batch []models.Record, table string) (int64, error) {
	if err := s.begin(table); err != nil {
		return 0, err
	}
	defer s.Close()

	if err := s.ensureSchema(ctx, s.DB, table); err != nil {
		return 0, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, s.sinkErr(ErrConnectionFailed, table, fmt.Errorf("beginning transaction: %w", err))
	}
	defer tx.Rollback()

	if err := s.insertRecords(ctx, tx, table, batch); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, s.sinkErr(ErrWriteFailed, table, fmt.Errorf("committing transaction: %w", err))
	}

	count, err := s.countRows(ctx, s.DB, table)
	if err != nil {
		return 0, err
	}
	logger.Infof("Data successfully appended to %s table %s: %d new rows, %d total", s.Dialect.Name, table, len(batch), count)
	return count, nil
}
