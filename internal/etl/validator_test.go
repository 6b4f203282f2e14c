package etl

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/BartekS5/marketload/pkg/models"
)

var baseTime = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func ts(sec int) time.Time {
	return baseTime.Add(time.Duration(sec) * time.Second)
}

func rawRow(sec int, price float64) models.RawRecord {
	return models.RawRecord{
		models.ColTimestamp: ts(sec),
		models.ColPrice:     price,
		models.ColVolume:    1000.0,
		models.ColMarketCap: 5e9,
	}
}

func rawBatch(rows ...models.RawRecord) *models.RawBatch {
	return &models.RawBatch{Columns: append([]string(nil), models.Columns...), Rows: rows}
}

func TestValidateSortsByTimestamp(t *testing.T) {
	v := NewValidator(models.DefaultValidationRules())

	got, err := v.Validate(rawBatch(rawRow(300, 3), rawRow(100, 1), rawRow(200, 2)))
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i := 0; i+1 < len(got); i++ {
		if !got[i].Timestamp.Before(got[i+1].Timestamp) {
			t.Errorf("records %d and %d out of order: %v >= %v", i, i+1, got[i].Timestamp, got[i+1].Timestamp)
		}
	}
	if got[0].Price != 1 || got[2].Price != 3 {
		t.Errorf("prices = %v, %v; want 1, 3", got[0].Price, got[2].Price)
	}
}

func TestValidateIsIdentityOnValidInput(t *testing.T) {
	v := NewValidator(models.DefaultValidationRules())

	first, err := v.Validate(rawBatch(rawRow(20, 2), rawRow(10, 1), rawRow(30, 3)))
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	again := &models.RawBatch{Columns: models.Columns}
	for _, rec := range first {
		again.Rows = append(again.Rows, models.RawRecord{
			models.ColTimestamp: rec.Timestamp,
			models.ColPrice:     rec.Price,
			models.ColVolume:    rec.Volume,
			models.ColMarketCap: rec.MarketCap,
		})
	}

	second, err := v.Validate(again)
	if err != nil {
		t.Fatalf("re-Validate failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("re-validation changed the batch:\n got %v\nwant %v", second, first)
	}
}

func TestValidatePriceBoundary(t *testing.T) {
	rules := models.ValidationRules{RequiredColumns: models.Columns, MinPrice: 10}
	v := NewValidator(rules)

	if _, err := v.Validate(rawBatch(rawRow(1, 10))); err != nil {
		t.Errorf("price == min_price rejected: %v", err)
	}

	_, err := v.Validate(rawBatch(rawRow(1, 10), rawRow(2, 9.999999)))
	if !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("err = %v, want ErrInvalidPrice", err)
	}
}

func TestValidateRejectsNegativeWithDefaultRules(t *testing.T) {
	v := NewValidator(models.DefaultValidationRules())

	_, err := v.Validate(rawBatch(rawRow(100, -1), rawRow(200, 5)))
	if !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("err = %v, want ErrInvalidPrice", err)
	}

	if _, err := v.Validate(rawBatch(rawRow(100, 0))); err != nil {
		t.Errorf("zero price with min_price 0 rejected: %v", err)
	}
}

func TestValidateRejectsNaNPrice(t *testing.T) {
	v := NewValidator(models.DefaultValidationRules())

	tests := []struct {
		name  string
		price interface{}
	}{
		{"native", math.NaN()},
		{"text", "NaN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := rawRow(2, 1)
			row[models.ColPrice] = tt.price
			_, err := v.Validate(rawBatch(rawRow(1, 1), row))
			if !errors.Is(err, ErrInvalidPrice) {
				t.Errorf("err = %v, want ErrInvalidPrice", err)
			}
		})
	}
}

func TestValidateDuplicateTimestamps(t *testing.T) {
	v := NewValidator(models.DefaultValidationRules())

	tests := []struct {
		name string
		rows []models.RawRecord
	}{
		{"pair", []models.RawRecord{rawRow(1, 1), rawRow(1, 2)}},
		{"different fields", []models.RawRecord{
			rawRow(5, 1),
			{models.ColTimestamp: ts(5), models.ColPrice: 99.0, models.ColVolume: 1.0, models.ColMarketCap: 2.0},
		}},
		{"large batch", func() []models.RawRecord {
			rows := make([]models.RawRecord, 0, 1001)
			for i := 0; i < 1000; i++ {
				rows = append(rows, rawRow(i, 1))
			}
			return append(rows, rawRow(777, 3))
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(rawBatch(tt.rows...))
			if !errors.Is(err, ErrDuplicateTimestamps) {
				t.Errorf("err = %v, want ErrDuplicateTimestamps", err)
			}
		})
	}
}

func TestValidateDuplicateAcrossFormats(t *testing.T) {
	v := NewValidator(models.DefaultValidationRules())

	batch := rawBatch(
		models.RawRecord{models.ColTimestamp: "2024-03-01T00:00:00Z", models.ColPrice: "1", models.ColVolume: "1", models.ColMarketCap: "1"},
		models.RawRecord{models.ColTimestamp: "2024-03-01 00:00:00", models.ColPrice: "2", models.ColVolume: "1", models.ColMarketCap: "1"},
	)
	if _, err := v.Validate(batch); !errors.Is(err, ErrDuplicateTimestamps) {
		t.Errorf("err = %v, want ErrDuplicateTimestamps", err)
	}
}

func TestValidateMissingColumnShortCircuits(t *testing.T) {
	v := NewValidator(models.DefaultValidationRules())

	// Rows also carry a negative price and a duplicate; neither may be reported.
	batch := &models.RawBatch{
		Columns: []string{models.ColTimestamp, models.ColPrice, models.ColMarketCap},
		Rows: []models.RawRecord{
			{models.ColTimestamp: ts(1), models.ColPrice: -5.0, models.ColMarketCap: 1.0},
			{models.ColTimestamp: ts(1), models.ColPrice: -5.0, models.ColMarketCap: nil},
		},
	}

	_, err := v.Validate(batch)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if verr.Kind != ErrMissingColumns {
		t.Fatalf("Kind = %v, want ErrMissingColumns", verr.Kind)
	}
	if !reflect.DeepEqual(verr.Columns, []string{models.ColVolume}) {
		t.Errorf("Columns = %v, want [volume]", verr.Columns)
	}
}

func TestValidateNullValuesReportsFirstDeclaredColumn(t *testing.T) {
	rules := models.ValidationRules{
		RequiredColumns: []string{models.ColTimestamp, models.ColVolume, models.ColPrice, models.ColMarketCap},
	}
	v := NewValidator(rules)

	batch := rawBatch(
		models.RawRecord{models.ColTimestamp: ts(1), models.ColPrice: nil, models.ColVolume: 1.0, models.ColMarketCap: 1.0},
		models.RawRecord{models.ColTimestamp: ts(2), models.ColPrice: 1.0, models.ColMarketCap: 1.0},
	)

	_, err := v.Validate(batch)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Kind != ErrNullValues {
		t.Fatalf("err = %v, want NullValues", err)
	}
	if verr.Column != models.ColVolume {
		t.Errorf("Column = %q, want %q (declared before price)", verr.Column, models.ColVolume)
	}
}

func TestValidateNullBeatsPriceAndDuplicates(t *testing.T) {
	v := NewValidator(models.DefaultValidationRules())

	batch := rawBatch(
		rawRow(1, -1),
		models.RawRecord{models.ColTimestamp: ts(1), models.ColPrice: -1.0, models.ColVolume: "", models.ColMarketCap: 1.0},
	)
	if _, err := v.Validate(batch); !errors.Is(err, ErrNullValues) {
		t.Errorf("err = %v, want ErrNullValues", err)
	}
}

func TestValidatePriceBeatsDuplicates(t *testing.T) {
	v := NewValidator(models.DefaultValidationRules())

	if _, err := v.Validate(rawBatch(rawRow(1, 1), rawRow(1, -1))); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("err = %v, want ErrInvalidPrice", err)
	}
}

func TestValidateMalformedValue(t *testing.T) {
	v := NewValidator(models.DefaultValidationRules())

	batch := rawBatch(
		rawRow(1, 1),
		models.RawRecord{models.ColTimestamp: ts(2), models.ColPrice: "abc", models.ColVolume: 1.0, models.ColMarketCap: 1.0},
	)

	_, err := v.Validate(batch)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Kind != ErrMalformedValue {
		t.Fatalf("err = %v, want MalformedValue", err)
	}
	if verr.Column != models.ColPrice || verr.Row != 1 {
		t.Errorf("Column, Row = %q, %d; want price, 1", verr.Column, verr.Row)
	}
}

func TestValidateOptionalColumnMayBeNull(t *testing.T) {
	rules := models.ValidationRules{RequiredColumns: []string{models.ColTimestamp, models.ColPrice}}
	v := NewValidator(rules)

	batch := &models.RawBatch{
		Columns: []string{models.ColTimestamp, models.ColPrice},
		Rows:    []models.RawRecord{{models.ColTimestamp: "1709251200000", models.ColPrice: "42.5"}},
	}

	got, err := v.Validate(batch)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !got[0].Timestamp.Equal(baseTime) {
		t.Errorf("Timestamp = %v, want %v", got[0].Timestamp, baseTime)
	}
	if got[0].Price != 42.5 || got[0].Volume != 0 {
		t.Errorf("Price, Volume = %v, %v; want 42.5, 0", got[0].Price, got[0].Volume)
	}
}

func TestValidateEmptyBatch(t *testing.T) {
	v := NewValidator(models.DefaultValidationRules())

	got, err := v.Validate(rawBatch())
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}
