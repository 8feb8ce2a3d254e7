package models

import "time"

// ConsistencyReport is the outcome of validating an OutputDocument against
// the in-memory series it was generated from, for one timeframe. It is a
// disposable artifact: the caller consumes it and discards it.
type ConsistencyReport struct {
	Timeframe       Timeframe `json:"timeframe"`
	OHLCVMatch      bool      `json:"ohlcv_match"`
	IndicatorsMatch bool      `json:"indicators_match"`
	TimestampMatch  bool      `json:"timestamp_match"`
	Discrepancies   []string  `json:"discrepancies,omitempty"`
	TotalMismatches int       `json:"total_mismatches"`
}

// Passed reports whether every check succeeded.
func (r *ConsistencyReport) Passed() bool {
	return r.OHLCVMatch && r.IndicatorsMatch && r.TimestampMatch
}

// Quality statuses. WARNING flags a syntactically valid but semantically
// poor series; FAIL means the series is structurally unusable.
const (
	QualityPass    = "PASS"
	QualityWarning = "WARNING"
	QualityFail    = "FAIL"
)

// QualityStats are summary statistics attached to a quality report.
type QualityStats struct {
	DataPoints int       `json:"data_points"`
	FirstDate  time.Time `json:"first_date"`
	LastDate   time.Time `json:"last_date"`
	CloseMean  float64   `json:"close_mean"`
	CloseStd   float64   `json:"close_std"`
	VolumeMean float64   `json:"volume_mean"`
}

// QualityReport describes the health of a fetched series: OHLC ordering
// violations are counted (the bars stay), completeness below 95% demotes
// the status to WARNING, and calendar gaps larger than one day are
// recorded as a signal rather than hidden.
type QualityReport struct {
	Status             string       `json:"status"`
	Issues             []string     `json:"issues,omitempty"`
	OrderingViolations int          `json:"ordering_violations"`
	Completeness       float64      `json:"completeness"`
	GapCount           int          `json:"gap_count"`
	Stats              QualityStats `json:"statistics"`
}
