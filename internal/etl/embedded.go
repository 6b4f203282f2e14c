package etl

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/BartekS5/marketload/pkg/database"
	"github.com/BartekS5/marketload/pkg/logger"
	"github.com/BartekS5/marketload/pkg/models"
)

const BackendEmbedded = "embedded"

// EmbeddedSink writes to a local SQLite file with replace semantics: each
// Write leaves the table holding exactly the incoming batch.
//
// The replace runs inside one SQLite transaction, so a failed Write leaves the
// previous contents in place. That guarantee comes from SQLite alone. Two runs
// replacing the same table concurrently are not coordinated; the last commit wins.
type EmbeddedSink struct {
	sqlTable
}

// NewEmbeddedSink opens (creating if needed) the database file at path.
func NewEmbeddedSink(path string) (*EmbeddedSink, error) {
	db, err := database.ConnectSQLite(path)
	if err != nil {
		return nil, &SinkError{Kind: ErrConnectionFailed, Backend: BackendEmbedded, Err: err}
	}
	return NewEmbeddedSinkFromDB(db), nil
}

// NewEmbeddedSinkFromDB wraps an already open SQLite handle. The sink owns it.
func NewEmbeddedSinkFromDB(db *sql.DB) *EmbeddedSink {
	return &EmbeddedSink{sqlTable{DB: db, Dialect: SQLiteDialect, backend: BackendEmbedded}}
}

// Write replaces the table contents with batch and returns the verified row count.
func (s *EmbeddedSink) Write(ctx context.Context, batch []models.Record, table string) (int64, error) {
	if err := s.begin(table); err != nil {
		return 0, err
	}
	defer s.Close()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, s.sinkErr(ErrConnectionFailed, table, fmt.Errorf("beginning transaction: %w", err))
	}
	defer tx.Rollback()

	if err := s.ensureSchema(ctx, tx, table); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, s.Dialect.deleteAllSQL(table)); err != nil {
		return 0, s.sinkErr(ErrWriteFailed, table, fmt.Errorf("clearing table: %w", err))
	}
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
	logger.Infof("Data successfully loaded to embedded table %s: %d rows", table, count)
	return count, nil
}
