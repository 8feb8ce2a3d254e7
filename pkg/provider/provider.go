package provider

import (
	"context"

	"github.com/marketlens/marketlens/internal/models"
)

// Canonical column names an adapter must map provider-native fields onto
// before returning a raw table. Date, open, high, low, close and volume
// are required; amount and pct_change are derived downstream when absent.
const (
	ColumnDate      = "date"
	ColumnOpen      = "open"
	ColumnHigh      = "high"
	ColumnLow       = "low"
	ColumnClose     = "close"
	ColumnVolume    = "volume"
	ColumnAmount    = "amount"
	ColumnPctChange = "pct_change"
)

// RequiredColumns lists the columns a raw table must carry to be
// structurally valid.
func RequiredColumns() []string {
	return []string{ColumnDate, ColumnOpen, ColumnHigh, ColumnLow, ColumnClose, ColumnVolume}
}

// RawRow is one unvalidated provider row keyed by canonical column name.
// Values stay as strings until the standardizer coerces them; anything
// non-numeric becomes a missing value, not an error.
type RawRow map[string]string

// RawTable is the unordered bag of rows an adapter returns. The adapter
// alone is responsible for renaming provider-native columns.
type RawTable struct {
	Columns []string
	Rows    []RawRow
}

// HasColumn reports whether the table declares the named column.
func (t *RawTable) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// MissingRequired returns the required columns absent from the table.
func (t *RawTable) MissingRequired() []string {
	var missing []string
	for _, c := range RequiredColumns() {
		if !t.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// Adapter is the boundary to one external market-data source. FetchRaw
// blocks until the provider answers, the context is done, or the
// adapter's own timeout fires.
type Adapter interface {
	Name() string
	FetchRaw(ctx context.Context, canonicalSymbol string, market models.Market, dateRange models.DateRange, timeframe models.Timeframe) (*RawTable, error)
}

// SyntheticGenerator produces a plausible substitute series when every
// real provider has failed and the caller opted into degraded mode. It
// must be a deterministic pure function of its inputs.
type SyntheticGenerator interface {
	GenerateSynthetic(canonicalSymbol string, market models.Market, dateRange models.DateRange) *models.Series
}
