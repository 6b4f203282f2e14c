package etl

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BartekS5/marketload/pkg/models"
	"github.com/BartekS5/marketload/pkg/utils"
)

// ReadRawCSV reads an interchange file. The header row declares the batch
// columns; empty cells are left out of the row so they read as null.
func ReadRawCSV(r io.Reader) (*models.RawBatch, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("reading csv header: empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	batch := &models.RawBatch{Columns: header}
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv line %d: %w", line, err)
		}

		rec := make(models.RawRecord, len(header))
		for i, col := range header {
			if i < len(row) && row[i] != "" {
				rec[col] = row[i]
			}
		}
		batch.Rows = append(batch.Rows, rec)
	}
	return batch, nil
}

// ReadRawCSVFile opens path and reads it with ReadRawCSV.
func ReadRawCSVFile(path string) (*models.RawBatch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening csv %s: %w", path, err)
	}
	defer f.Close()
	return ReadRawCSV(f)
}

// WriteRawCSV writes a raw batch under its declared columns.
func WriteRawCSV(w io.Writer, batch *models.RawBatch) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(batch.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, rec := range batch.Rows {
		row := make([]string, len(batch.Columns))
		for j, col := range batch.Columns {
			row[j] = formatCell(rec[col])
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteRecordsCSV writes validated records in schema column order.
func WriteRecordsCSV(w io.Writer, records []models.Record) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(models.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, rec := range records {
		row := []string{
			rec.Timestamp.UTC().Format(time.RFC3339Nano),
			strconv.FormatFloat(rec.Price, 'f', -1, 64),
			strconv.FormatFloat(rec.Volume, 'f', -1, 64),
			strconv.FormatFloat(rec.MarketCap, 'f', -1, 64),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// ReadRecordsCSV reads a validated file back into records. Unlike the
// validator it performs no rule checks, only type conversion.
func ReadRecordsCSV(r io.Reader) ([]models.Record, error) {
	raw, err := ReadRawCSV(r)
	if err != nil {
		return nil, err
	}
	for _, col := range models.Columns {
		if !raw.HasColumn(col) {
			return nil, fmt.Errorf("csv is missing column %q", col)
		}
	}

	records := make([]models.Record, 0, len(raw.Rows))
	for i, row := range raw.Rows {
		rec, err := toRecord(row, i)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// WriteFile creates path (and its directory) and hands the file to write.
func WriteFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatCell(val interface{}) string {
	if utils.IsNull(val) {
		return ""
	}
	switch v := val.(type) {
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// CSVSource serves a raw interchange file as a data source. Fetch params are ignored.
type CSVSource struct {
	Path string
}

func NewCSVSource(path string) *CSVSource {
	return &CSVSource{Path: path}
}

func (s *CSVSource) Name() string { return "csv:" + s.Path }

func (s *CSVSource) Fetch(ctx context.Context, _ models.FetchParams) (*models.RawBatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Source: s.Name(), Err: err}
	}
	batch, err := ReadRawCSVFile(s.Path)
	if err != nil {
		return nil, &FetchError{Source: s.Name(), Err: err}
	}
	return batch, nil
}
