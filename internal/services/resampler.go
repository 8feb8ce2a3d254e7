package services

import (
	"math"
	"time"

	"github.com/marketlens/marketlens/internal/models"
)

// DefaultRetention caps every derived series at the most recent buckets,
// matching the rest of the pipeline's memory and output bounds.
const DefaultRetention = 100

// Resampler aggregates a canonical daily series into calendar
// timeframes. Daily-to-daily is the identity. Intraday timeframes cannot
// be derived from daily bars: with no sub-daily provider configured the
// result is an empty series, which is a valid terminal state and not an
// error.
type Resampler struct {
	retention int
}

// NewResampler creates a resampler keeping the most recent `retention`
// buckets per derived series; zero or negative means DefaultRetention.
func NewResampler(retention int) *Resampler {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Resampler{retention: retention}
}

// Resample derives the target timeframe from a daily series.
func (r *Resampler) Resample(daily *models.Series, target models.Timeframe) *models.Series {
	if target == models.TimeframeDaily {
		return daily
	}
	if target.Intraday() {
		return &models.Series{Symbol: daily.Symbol, Timeframe: target}
	}

	out := &models.Series{Symbol: daily.Symbol, Timeframe: target}
	if daily.Empty() {
		return out
	}

	var (
		bucketEnd time.Time
		current   *models.Bar
	)
	flush := func() {
		if current == nil {
			return
		}
		if !allMissing(*current) {
			out.Bars = append(out.Bars, *current)
		}
		current = nil
	}

	for _, b := range daily.Bars {
		end := bucketEndFor(b.Timestamp, target)
		if current == nil || !end.Equal(bucketEnd) {
			flush()
			bucketEnd = end
			bar := models.Bar{
				Timestamp: end,
				Open:      b.Open,
				High:      b.High,
				Low:       b.Low,
				Close:     b.Close,
				Volume:    0,
				Amount:    math.NaN(),
				PctChange: math.NaN(),
			}
			current = &bar
		} else {
			current.High = math.Max(current.High, b.High)
			current.Low = math.Min(current.Low, b.Low)
			current.Close = b.Close
		}
		if !math.IsNaN(b.Volume) {
			current.Volume += b.Volume
		}
		if !math.IsNaN(b.Amount) {
			if math.IsNaN(current.Amount) {
				current.Amount = 0
			}
			current.Amount += b.Amount
		}
	}
	flush()

	// Percent change is always recomputed from the aggregated closes,
	// never summed from daily values.
	for i := range out.Bars {
		if i > 0 && out.Bars[i-1].Close != 0 {
			out.Bars[i].PctChange = (out.Bars[i].Close - out.Bars[i-1].Close) / out.Bars[i-1].Close * 100
		}
	}

	if len(out.Bars) > r.retention {
		out.Bars = out.Bars[len(out.Bars)-r.retention:]
	}
	return out
}

// bucketEndFor returns the calendar bucket label: the Sunday ending the
// week for weekly bars, the last day of the month for monthly bars.
func bucketEndFor(ts time.Time, tf models.Timeframe) time.Time {
	day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	switch tf {
	case models.TimeframeWeekly:
		offset := (7 - int(day.Weekday())) % 7
		return day.AddDate(0, 0, offset)
	case models.TimeframeMonthly:
		firstOfNext := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
		return firstOfNext.AddDate(0, 0, -1)
	}
	return day
}

func allMissing(b models.Bar) bool {
	return math.IsNaN(b.Open) && math.IsNaN(b.High) && math.IsNaN(b.Low) && math.IsNaN(b.Close)
}
