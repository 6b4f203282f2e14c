package etl

import (
	"sort"

	"github.com/BartekS5/marketload/pkg/models"
	"github.com/BartekS5/marketload/pkg/utils"
)

type Validator struct {
	Rules models.ValidationRules
}

func NewValidator(rules models.ValidationRules) *Validator {
	return &Validator{Rules: rules}
}

// Validate checks a raw batch and returns it as records sorted by timestamp.
// Checks run in a fixed order (schema, nulls, coercion, price, duplicates) and
// the first failure is returned. No partial result is ever returned.
func (v *Validator) Validate(raw *models.RawBatch) ([]models.Record, error) {
	var missing []string
	for _, col := range v.Rules.RequiredColumns {
		if !raw.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Kind: ErrMissingColumns, Columns: missing}
	}

	for _, col := range v.Rules.RequiredColumns {
		for _, row := range raw.Rows {
			if utils.IsNull(row[col]) {
				return nil, &ValidationError{Kind: ErrNullValues, Column: col}
			}
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

	// Written as a negated >= so NaN prices are rejected too.
	for _, rec := range records {
		if !(rec.Price >= v.Rules.MinPrice) {
			return nil, &ValidationError{Kind: ErrInvalidPrice, MinPrice: v.Rules.MinPrice}
		}
	}

	seen := make(map[int64]struct{}, len(records))
	for _, rec := range records {
		key := rec.Timestamp.UnixNano()
		if _, dup := seen[key]; dup {
			return nil, &ValidationError{Kind: ErrDuplicateTimestamps}
		}
		seen[key] = struct{}{}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records, nil
}

// toRecord coerces one row. Null cells in optional columns become zero values.
func toRecord(row models.RawRecord, idx int) (models.Record, error) {
	var rec models.Record

	if val := row[models.ColTimestamp]; !utils.IsNull(val) {
		ts, err := utils.ConvertDateTime(val)
		if err != nil {
			return rec, &ValidationError{Kind: ErrMalformedValue, Column: models.ColTimestamp, Row: idx, Err: err}
		}
		rec.Timestamp = ts
	}

	fields := []struct {
		col string
		dst *float64
	}{
		{models.ColPrice, &rec.Price},
		{models.ColVolume, &rec.Volume},
		{models.ColMarketCap, &rec.MarketCap},
	}
	for _, f := range fields {
		val := row[f.col]
		if utils.IsNull(val) {
			continue
		}
		n, err := utils.ConvertToFloat(val)
		if err != nil {
			return rec, &ValidationError{Kind: ErrMalformedValue, Column: f.col, Row: idx, Err: err}
		}
		*f.dst = n
	}

	return rec, nil
}
