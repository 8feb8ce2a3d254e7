package models

import (
	"math"
	"time"
)

// Bar is one time-bucketed open/high/low/close/volume record.
// Amount is turnover; PctChange is the percent change against the previous
// close. Both are NaN until derived. An OHLC ordering violation
// (low > min(open,close) or high < max(open,close)) is a data-quality
// defect, tracked by the quality report, not a structural error.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Amount    float64   `json:"amount"`
	PctChange float64   `json:"pct_change"`
}

// OrderingValid reports whether low <= min(open,close) and
// max(open,close) <= high.
func (b Bar) OrderingValid() bool {
	lo := math.Min(b.Open, b.Close)
	hi := math.Max(b.Open, b.Close)
	return b.Low <= lo && hi <= b.High
}

// DateRange is an inclusive calendar range for a fetch request.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Series is an ordered, timestamp-unique sequence of bars for one
// (symbol, timeframe) pair, sorted ascending. A series is created once per
// run and treated as immutable afterward; corrections produce a new series.
type Series struct {
	Symbol    Symbol    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
	Bars      []Bar     `json:"bars"`
}

// Len returns the number of bars.
func (s *Series) Len() int {
	return len(s.Bars)
}

// Empty reports whether the series holds no bars.
func (s *Series) Empty() bool {
	return len(s.Bars) == 0
}

// Closes returns the close column as a slice aligned with Bars.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Volumes returns the volume column as a slice aligned with Bars.
func (s *Series) Volumes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Volume
	}
	return out
}
