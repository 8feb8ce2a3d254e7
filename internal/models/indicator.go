package models

import "math"

// Indicator column names emitted by the calculator. Entries before an
// indicator's window has filled are NaN, never zero: zero is a legitimate
// computed value for MACD, OBV and others.
const (
	IndicatorMA5        = "MA5"
	IndicatorMA20       = "MA20"
	IndicatorMA60       = "MA60"
	IndicatorMACDDIF    = "MACD_DIF"
	IndicatorMACDDEA    = "MACD_DEA"
	IndicatorMACDHist   = "MACD_hist"
	IndicatorRSI14      = "RSI14"
	IndicatorBBUpper    = "BB_upper"
	IndicatorBBMiddle   = "BB_middle"
	IndicatorBBLower    = "BB_lower"
	IndicatorOBV        = "OBV"
	IndicatorVolumeMA5  = "Volume_MA5"
	IndicatorVolumeMA10 = "Volume_MA10"
	IndicatorVolumeMA20 = "Volume_MA20"
)

// IndicatorFrame maps indicator names to value series aligned one-to-one
// with the bars of the series they were computed from.
type IndicatorFrame map[string][]float64

// Value returns the indicator value at position i, or NaN when the
// indicator is absent or the position is before its window filled.
func (f IndicatorFrame) Value(name string, i int) float64 {
	vals, ok := f[name]
	if !ok || i < 0 || i >= len(vals) {
		return math.NaN()
	}
	return vals[i]
}

// Defined reports whether the indicator has a usable value at position i.
func (f IndicatorFrame) Defined(name string, i int) bool {
	return !math.IsNaN(f.Value(name, i))
}

// Names returns the indicator names present in the frame.
func (f IndicatorFrame) Names() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	return names
}

// TimeframeData pairs a series with the indicators computed from it.
type TimeframeData struct {
	Series     *Series        `json:"series"`
	Indicators IndicatorFrame `json:"indicators"`
	Signals    *SignalFlags   `json:"signals,omitempty"`
}

// ProcessedSeries is the full per-symbol unit of work handed to the dual
// output generator: one entry per derived timeframe. It is owned by the
// run that created it and never shared across symbols.
type ProcessedSeries struct {
	Symbol Symbol                       `json:"symbol"`
	Frames map[Timeframe]*TimeframeData `json:"frames"`
}

// SignalFlags are advisory technical events detected on the latest bar.
// They annotate output only and never influence validation.
type SignalFlags struct {
	GoldenCross   bool    `json:"golden_cross"`
	DeathCross    bool    `json:"death_cross"`
	VolumeSpike   bool    `json:"volume_spike"`
	VolumeRatio   float64 `json:"volume_ratio,omitempty"`
	UpperBreakout bool    `json:"upper_breakout"`
	LowerBreakout bool    `json:"lower_breakout"`
}
