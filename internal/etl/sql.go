package etl

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/BartekS5/marketload/pkg/logger"
	"github.com/BartekS5/marketload/pkg/models"
)

// execQueryer is satisfied by both *sql.DB and *sql.Tx.
type execQueryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// sqlTable holds the connection and dialect shared by the SQL-backed sinks.
type sqlTable struct {
	DB      *sql.DB
	Dialect Dialect
	backend string
	closed  bool
}

func (s *sqlTable) Backend() string { return s.backend }

func (s *sqlTable) sinkErr(kind error, table string, err error) *SinkError {
	return &SinkError{Kind: kind, Backend: s.backend, Table: table, Err: err}
}

// begin rejects closed sinks and bad table names before any SQL is issued.
func (s *sqlTable) begin(table string) error {
	if s.closed || s.DB == nil {
		return s.sinkErr(ErrConnectionFailed, table, ErrSinkClosed)
	}
	if !ValidTableName(table) {
		return s.sinkErr(ErrWriteFailed, table, fmt.Errorf("%w: %q", ErrInvalidTableName, table))
	}
	return nil
}

func (s *sqlTable) TableExists(ctx context.Context, table string) (bool, error) {
	if err := s.begin(table); err != nil {
		return false, err
	}
	return s.tableExists(ctx, s.DB, table)
}

func (s *sqlTable) EnsureSchema(ctx context.Context, table string) error {
	if err := s.begin(table); err != nil {
		return err
	}
	return s.ensureSchema(ctx, s.DB, table)
}

func (s *sqlTable) tableExists(ctx context.Context, q execQueryer, table string) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, s.Dialect.ExistsQuery, table).Scan(&n); err != nil {
		return false, s.sinkErr(ErrConnectionFailed, table, fmt.Errorf("checking table existence: %w", err))
	}
	return n > 0, nil
}

// ensureSchema creates the table only after an explicit existence check.
func (s *sqlTable) ensureSchema(ctx context.Context, q execQueryer, table string) error {
	exists, err := s.tableExists(ctx, q, table)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if _, err := q.ExecContext(ctx, s.Dialect.createTableSQL(table)); err != nil {
		return s.sinkErr(ErrTableCreateFailed, table, err)
	}
	logger.Infof("%s: created table %s", s.backend, table)
	return nil
}

func (s *sqlTable) insertRecords(ctx context.Context, q execQueryer, table string, batch []models.Record) error {
	stmt, err := q.PrepareContext(ctx, s.Dialect.insertSQL(table))
	if err != nil {
		return s.sinkErr(ErrWriteFailed, table, fmt.Errorf("preparing insert: %w", err))
	}
	defer stmt.Close()

	for i, rec := range batch {
		if _, err := stmt.ExecContext(ctx, rec.Timestamp, rec.Price, rec.Volume, rec.MarketCap); err != nil {
			return s.sinkErr(ErrWriteFailed, table, fmt.Errorf("inserting row %d: %w", i, err))
		}
	}
	return nil
}

func (s *sqlTable) countRows(ctx context.Context, q execQueryer, table string) (int64, error) {
	var n int64
	if err := q.QueryRowContext(ctx, s.Dialect.countSQL(table)).Scan(&n); err != nil {
		return 0, s.sinkErr(ErrWriteFailed, table, fmt.Errorf("verifying row count: %w", err))
	}
	return n, nil
}

func (s *sqlTable) Close() error {
	if s.closed || s.DB == nil {
		return nil
	}
	s.closed = true
	return s.DB.Close()
}
