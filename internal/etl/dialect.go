package etl

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/BartekS5/marketload/pkg/database"
	"github.com/BartekS5/marketload/pkg/models"
)

// Dialect captures the SQL differences between supported backends.
type Dialect struct {
	Name string

	// ExistsQuery counts tables with the given name; its single parameter is the name.
	ExistsQuery string

	TimestampType string
	FloatType     string

	// Quote renders a column or table identifier.
	Quote func(ident string) string

	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
}

func questionMark(int) string { return "?" }

func doubleQuote(ident string) string { return `"` + ident + `"` }

var SQLiteDialect = Dialect{
	Name:          "sqlite",
	ExistsQuery:   `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`,
	TimestampType: "TIMESTAMP",
	FloatType:     "DOUBLE",
	Quote:         doubleQuote,
	Placeholder:   questionMark,
}

// Snowflake folds unquoted identifiers to upper case, so quoting does the same.
var SnowflakeDialect = Dialect{
	Name:          database.DriverSnowflake,
	ExistsQuery:   `SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = CURRENT_SCHEMA() AND TABLE_NAME = UPPER(?)`,
	TimestampType: "TIMESTAMP_NTZ",
	FloatType:     "DOUBLE",
	Quote:         func(ident string) string { return `"` + strings.ToUpper(ident) + `"` },
	Placeholder:   questionMark,
}

var SQLServerDialect = Dialect{
	Name:          database.DriverSQLServer,
	ExistsQuery:   `SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = SCHEMA_NAME() AND TABLE_NAME = @p1`,
	TimestampType: "DATETIME2",
	FloatType:     "FLOAT",
	Quote:         func(ident string) string { return "[" + ident + "]" },
	Placeholder:   func(n int) string { return fmt.Sprintf("@p%d", n) },
}

var PostgresDialect = Dialect{
	Name:          database.DriverPostgres,
	ExistsQuery:   `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1`,
	TimestampType: "TIMESTAMPTZ",
	FloatType:     "DOUBLE PRECISION",
	Quote:         doubleQuote,
	Placeholder:   func(n int) string { return fmt.Sprintf("$%d", n) },
}

// DialectFor returns the dialect of a configured warehouse driver.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case database.DriverSnowflake:
		return SnowflakeDialect, nil
	case database.DriverSQLServer:
		return SQLServerDialect, nil
	case database.DriverPostgres:
		return PostgresDialect, nil
	default:
		return Dialect{}, fmt.Errorf("no dialect for driver %q", driver)
	}
}

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidTableName reports whether name is safe to interpolate into SQL.
func ValidTableName(name string) bool {
	return tableNameRe.MatchString(name)
}

func (d Dialect) createTableSQL(table string) string {
	return fmt.Sprintf("CREATE TABLE %s (%s %s NOT NULL, %s %s NOT NULL, %s %s, %s %s)",
		d.Quote(table),
		d.Quote(models.ColTimestamp), d.TimestampType,
		d.Quote(models.ColPrice), d.FloatType,
		d.Quote(models.ColVolume), d.FloatType,
		d.Quote(models.ColMarketCap), d.FloatType,
	)
}

func (d Dialect) insertSQL(table string) string {
	cols := make([]string, 0, len(models.Columns))
	for _, c := range models.Columns {
		cols = append(cols, d.Quote(c))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s, %s, %s, %s)",
		d.Quote(table), strings.Join(cols, ", "),
		d.Placeholder(1), d.Placeholder(2), d.Placeholder(3), d.Placeholder(4),
	)
}

func (d Dialect) deleteAllSQL(table string) string {
	return "DELETE FROM " + d.Quote(table)
}

func (d Dialect) countSQL(table string) string {
	return "SELECT COUNT(*) FROM " + d.Quote(table)
}
