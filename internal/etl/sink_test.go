package etl

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/BartekS5/marketload/pkg/database"
	"github.com/BartekS5/marketload/pkg/models"
)

func records(fromSec, n int) []models.Record {
	out := make([]models.Record, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.Record{
			Timestamp: ts(fromSec + i),
			Price:     float64(100 + i),
			Volume:    10,
			MarketCap: 1e9,
		})
	}
	return out
}

func openSQLite(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := database.ConnectSQLite(path)
	if err != nil {
		t.Fatalf("ConnectSQLite failed: %v", err)
	}
	return db
}

func countTable(t *testing.T, path, table string) int64 {
	t.Helper()
	db := openSQLite(t, path)
	defer db.Close()

	var n int64
	if err := db.QueryRow(`SELECT COUNT(*) FROM "` + table + `"`).Scan(&n); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return n
}

// seed writes n rows through a fresh embedded sink.
func seed(t *testing.T, path, table string, n int) {
	t.Helper()
	count, err := NewEmbeddedSinkFromDB(openSQLite(t, path)).Write(context.Background(), records(10000, n), table)
	if err != nil {
		t.Fatalf("seeding failed: %v", err)
	}
	if count != int64(n) {
		t.Fatalf("seeded count = %d, want %d", count, n)
	}
}

func TestSinkModeDivergence(t *testing.T) {
	ctx := context.Background()
	batch := records(0, 5)

	t.Run("embedded replaces", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "market.db")
		seed(t, path, "prices", 10)

		count, err := NewEmbeddedSinkFromDB(openSQLite(t, path)).Write(ctx, batch, "prices")
		if err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if count != 5 {
			t.Errorf("returned count = %d, want 5", count)
		}
		if got := countTable(t, path, "prices"); got != 5 {
			t.Errorf("table count = %d, want 5", got)
		}
	})

	t.Run("warehouse appends", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "market.db")
		seed(t, path, "prices", 10)

		count, err := NewWarehouseSinkFromDB(openSQLite(t, path), SQLiteDialect).Write(ctx, batch, "prices")
		if err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if count != 15 {
			t.Errorf("returned count = %d, want 15", count)
		}
		if got := countTable(t, path, "prices"); got != 15 {
			t.Errorf("table count = %d, want 15", got)
		}
	})
}

func TestWarehouseAppendDoesNotDeduplicate(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "market.db")

	for i := 1; i <= 2; i++ {
		count, err := NewWarehouseSinkFromDB(openSQLite(t, path), SQLiteDialect).Write(ctx, records(0, 3), "log")
		if err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
		if count != int64(3*i) {
			t.Errorf("after write %d count = %d, want %d", i, count, 3*i)
		}
	}
}

func TestSinkCreatesTableLazily(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dir", "market.db")

	sink, err := NewEmbeddedSink(path)
	if err != nil {
		t.Fatalf("NewEmbeddedSink failed: %v", err)
	}

	exists, err := sink.TableExists(ctx, "fresh")
	if err != nil {
		t.Fatalf("TableExists failed: %v", err)
	}
	if exists {
		t.Fatal("table exists before first write")
	}

	if err := sink.EnsureSchema(ctx, "fresh"); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	// A second call must see the table and not try to create it again.
	if err := sink.EnsureSchema(ctx, "fresh"); err != nil {
		t.Fatalf("second EnsureSchema failed: %v", err)
	}
	if exists, _ := sink.TableExists(ctx, "fresh"); !exists {
		t.Error("table missing after EnsureSchema")
	}

	count, err := sink.Write(ctx, records(0, 2), "fresh")
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestSinkWriteClosesConnection(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "market.db")

	sink := NewEmbeddedSinkFromDB(openSQLite(t, path))
	if _, err := sink.Write(ctx, records(0, 1), "prices"); err != nil {
		t.Fatalf("first Write failed: %v", err)
	}

	_, err := sink.Write(ctx, records(0, 1), "prices")
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("second Write err = %v, want ErrConnectionFailed", err)
	}
	if !errors.Is(err, ErrSinkClosed) {
		t.Errorf("second Write err = %v, want to wrap ErrSinkClosed", err)
	}
}

func TestSinkRejectsInvalidTableName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "market.db")
	sink := NewWarehouseSinkFromDB(openSQLite(t, path), SQLiteDialect)
	defer sink.Close()

	_, err := sink.Write(context.Background(), records(0, 1), "prices; DROP TABLE x")
	if !errors.Is(err, ErrWriteFailed) || !errors.Is(err, ErrInvalidTableName) {
		t.Errorf("err = %v, want WriteFailed wrapping ErrInvalidTableName", err)
	}
}

func TestEmbeddedFailedWriteKeepsPriorRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "market.db")
	seed(t, path, "prices", 4)

	ctx, cancel := context.WithCancel(ctx)
	cancel()

	_, err := NewEmbeddedSinkFromDB(openSQLite(t, path)).Write(ctx, records(0, 2), "prices")
	if err == nil {
		t.Fatal("Write with cancelled context succeeded")
	}
	var serr *SinkError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %T, want *SinkError", err)
	}
	if got := countTable(t, path, "prices"); got != 4 {
		t.Errorf("table count = %d, want prior 4", got)
	}
}

func TestTableCreateFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "market.db")
	broken := SQLiteDialect
	broken.TimestampType = "TIMESTAMP,,"

	_, err := NewWarehouseSinkFromDB(openSQLite(t, path), broken).Write(context.Background(), records(0, 1), "prices")
	if !errors.Is(err, ErrTableCreateFailed) {
		t.Errorf("err = %v, want ErrTableCreateFailed", err)
	}
}

func TestDialectSQL(t *testing.T) {
	tests := []struct {
		dialect Dialect
		insert  string
	}{
		{SQLiteDialect, `INSERT INTO "t" ("timestamp", "price", "volume", "market_cap") VALUES (?, ?, ?, ?)`},
		{PostgresDialect, `INSERT INTO "t" ("timestamp", "price", "volume", "market_cap") VALUES ($1, $2, $3, $4)`},
		{SQLServerDialect, `INSERT INTO [t] ([timestamp], [price], [volume], [market_cap]) VALUES (@p1, @p2, @p3, @p4)`},
		{SnowflakeDialect, `INSERT INTO "T" ("TIMESTAMP", "PRICE", "VOLUME", "MARKET_CAP") VALUES (?, ?, ?, ?)`},
	}

	for _, tt := range tests {
		t.Run(tt.dialect.Name, func(t *testing.T) {
			if got := tt.dialect.insertSQL("t"); got != tt.insert {
				t.Errorf("insertSQL =\n %s\nwant\n %s", got, tt.insert)
			}
		})
	}

	for _, driver := range []string{database.DriverSnowflake, database.DriverSQLServer, database.DriverPostgres} {
		if _, err := DialectFor(driver); err != nil {
			t.Errorf("DialectFor(%q) failed: %v", driver, err)
		}
	}
	if _, err := DialectFor("oracle"); err == nil {
		t.Error("DialectFor(oracle) succeeded, want error")
	}
}
