package models

// Market identifies the exchange family a symbol trades on.
type Market string

const (
	DomesticEquity Market = "domestic"
	HongKongEquity Market = "hongkong"
	USEquity       Market = "us"
)

// String returns the market identifier.
func (m Market) String() string {
	return string(m)
}

// Valid reports whether the market is one of the known values.
func (m Market) Valid() bool {
	switch m {
	case DomesticEquity, HongKongEquity, USEquity:
		return true
	}
	return false
}

// Symbol pairs a raw user-supplied ticker with its canonical code and
// resolved market. Canonicalization is pure: the same raw string always
// yields the same canonical code.
type Symbol struct {
	Raw       string `json:"raw"`
	Canonical string `json:"canonical"`
	Market    Market `json:"market"`
}

// Timeframe is the time-bucketing granularity of a series. Daily is the
// only timeframe fetched from a provider; the rest are derived.
type Timeframe string

const (
	TimeframeDaily    Timeframe = "daily"
	TimeframeWeekly   Timeframe = "weekly"
	TimeframeMonthly  Timeframe = "monthly"
	TimeframeMinute60 Timeframe = "60min"
	TimeframeMinute30 Timeframe = "30min"
	TimeframeMinute5  Timeframe = "5min"
)

// AllTimeframes lists every supported timeframe in processing order.
func AllTimeframes() []Timeframe {
	return []Timeframe{
		TimeframeMonthly,
		TimeframeWeekly,
		TimeframeDaily,
		TimeframeMinute60,
		TimeframeMinute30,
		TimeframeMinute5,
	}
}

// ParseTimeframe maps a configuration string onto a known timeframe.
func ParseTimeframe(s string) (Timeframe, bool) {
	for _, tf := range AllTimeframes() {
		if string(tf) == s {
			return tf, true
		}
	}
	return "", false
}

// Intraday reports whether the timeframe is sub-daily. Intraday series
// require a provider with sub-daily resolution; resampling a daily series
// into one of these yields an empty series.
func (tf Timeframe) Intraday() bool {
	switch tf {
	case TimeframeMinute60, TimeframeMinute30, TimeframeMinute5:
		return true
	}
	return false
}

func (tf Timeframe) String() string {
	return string(tf)
}
