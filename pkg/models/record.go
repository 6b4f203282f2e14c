package models

import "time"

// Column names of the fixed destination schema.
const (
	ColTimestamp = "timestamp"
	ColPrice     = "price"
	ColVolume    = "volume"
	ColMarketCap = "market_cap"
)

// Columns lists the destination schema in storage order.
var Columns = []string{ColTimestamp, ColPrice, ColVolume, ColMarketCap}

// Record is one time-series observation of a market.
type Record struct {
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	Price     float64   `json:"price" bson:"price"`
	Volume    float64   `json:"volume" bson:"volume"`
	MarketCap float64   `json:"market_cap" bson:"market_cap"`
}

// RawRecord is an unvalidated row. A key that is absent or maps to nil is null.
type RawRecord map[string]interface{}

// RawBatch is what a data source hands to the validator.
// Columns declares which columns the batch carries, independent of row contents.
type RawBatch struct {
	Columns []string    `json:"columns"`
	Rows    []RawRecord `json:"rows"`
}

// HasColumn reports whether the batch declares the named column.
func (b *RawBatch) HasColumn(name string) bool {
	for _, c := range b.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// ValidationRules configures the validator.
type ValidationRules struct {
	RequiredColumns []string `mapstructure:"required_columns" yaml:"required_columns"`
	MinPrice        float64  `mapstructure:"min_price" yaml:"min_price"`
}

// DefaultValidationRules requires every schema column and a non-negative price.
func DefaultValidationRules() ValidationRules {
	return ValidationRules{
		RequiredColumns: append([]string(nil), Columns...),
		MinPrice:        0,
	}
}

// FetchParams selects the series a data source should return.
type FetchParams struct {
	CoinID     string `mapstructure:"coin_id" yaml:"coin_id"`
	VsCurrency string `mapstructure:"vs_currency" yaml:"vs_currency"`
	Days       string `mapstructure:"days" yaml:"days"`
	Interval   string `mapstructure:"interval" yaml:"interval"`
}
