package models

import "time"

// DocumentMetadata is the metadata block of an OutputDocument.
type DocumentMetadata struct {
	Symbol      string    `json:"symbol"`
	Timeframe   Timeframe `json:"timeframe"`
	DataPoints  int       `json:"data_points"`
	Period      [2]string `json:"period"`
	Indicators  []string  `json:"indicators"`
	GeneratedAt time.Time `json:"generated_at"`
	DataSource  string    `json:"data_source"`
}

// BarRecord is one per-bar entry of an OutputDocument. OHLCV is ordered
// [open, high, low, close, volume]. Indicators holds only the values that
// are defined at this bar; warm-up positions are omitted entirely rather
// than emitted as null or zero.
type BarRecord struct {
	Timestamp  string             `json:"timestamp"`
	OHLCV      [5]float64         `json:"ohlcv"`
	Indicators map[string]float64 `json:"indicators,omitempty"`
}

// OutputDocument is the machine-readable half of the dual output: a
// metadata block plus the ordered per-bar records, every numeric value
// already rounded by the generator's shared rounding function.
type OutputDocument struct {
	Metadata DocumentMetadata `json:"metadata"`
	Bars     []BarRecord      `json:"bars"`
}

// ChartArtifact is the opaque human-readable half of the dual output.
// The core never inspects its content beyond bookkeeping.
type ChartArtifact struct {
	Timeframe Timeframe `json:"timeframe"`
	Format    string    `json:"format"`
	Data      []byte    `json:"-"`
}
