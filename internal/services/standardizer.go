package services

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/marketlens/marketlens/internal/models"
	"github.com/marketlens/marketlens/internal/utils"
	"github.com/marketlens/marketlens/pkg/provider"
)

// dateLayouts are the timestamp formats providers are known to emit.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"20060102",
}

// Standardizer turns a provider raw table into a canonical series. The
// step order is load-bearing: deduplication runs before gap filling so a
// duplicate cannot mask a real gap, and forward fill runs before back
// fill so corrections bias toward the most recent known value.
type Standardizer struct {
	logger *logrus.Logger
}

// NewStandardizer creates a standardizer.
func NewStandardizer(logger *logrus.Logger) *Standardizer {
	return &Standardizer{logger: logger}
}

// Standardize converts a raw table into a canonical daily series for the
// symbol. It fails with a SchemaError when any of open/high/low/close/
// volume is absent. The input table is not modified.
func (s *Standardizer) Standardize(table *provider.RawTable, symbol models.Symbol, timeframe models.Timeframe) (*models.Series, error) {
	if missing := table.MissingRequired(); len(missing) > 0 {
		return nil, utils.NewSchemaError(missing...)
	}

	bars := make([]models.Bar, 0, len(table.Rows))
	for _, row := range table.Rows {
		ts, ok := parseDate(row[provider.ColumnDate])
		if !ok {
			continue
		}
		bar := models.Bar{
			Timestamp: ts,
			Open:      coerce(row, provider.ColumnOpen),
			High:      coerce(row, provider.ColumnHigh),
			Low:       coerce(row, provider.ColumnLow),
			Close:     coerce(row, provider.ColumnClose),
			Volume:    coerce(row, provider.ColumnVolume),
			Amount:    coerce(row, provider.ColumnAmount),
			PctChange: coerce(row, provider.ColumnPctChange),
		}
		bars = append(bars, bar)
	}

	cleaned := s.standardizeBars(bars)
	return &models.Series{Symbol: symbol, Timeframe: timeframe, Bars: cleaned}, nil
}

// Restandardize reapplies the canonical cleaning steps to an existing
// series, returning a new series. Standardization is idempotent, so
// restandardizing a canonical series reproduces it.
func (s *Standardizer) Restandardize(series *models.Series) *models.Series {
	bars := make([]models.Bar, len(series.Bars))
	copy(bars, series.Bars)
	return &models.Series{
		Symbol:    series.Symbol,
		Timeframe: series.Timeframe,
		Bars:      s.standardizeBars(bars),
	}
}

func (s *Standardizer) standardizeBars(bars []models.Bar) []models.Bar {
	// Sort ascending, then drop duplicate timestamps keeping the first.
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
	deduped := bars[:0]
	for _, b := range bars {
		if len(deduped) > 0 && deduped[len(deduped)-1].Timestamp.Equal(b.Timestamp) {
			continue
		}
		deduped = append(deduped, b)
	}

	// Infinite values are missing values.
	for i := range deduped {
		deduped[i].Open = finiteOrNaN(deduped[i].Open)
		deduped[i].High = finiteOrNaN(deduped[i].High)
		deduped[i].Low = finiteOrNaN(deduped[i].Low)
		deduped[i].Close = finiteOrNaN(deduped[i].Close)
		deduped[i].Volume = finiteOrNaN(deduped[i].Volume)
		deduped[i].Amount = finiteOrNaN(deduped[i].Amount)
		deduped[i].PctChange = finiteOrNaN(deduped[i].PctChange)
	}

	// Drop bars where every OHLCV field is missing.
	kept := make([]models.Bar, 0, len(deduped))
	for _, b := range deduped {
		if math.IsNaN(b.Open) && math.IsNaN(b.High) && math.IsNaN(b.Low) && math.IsNaN(b.Close) && math.IsNaN(b.Volume) {
			continue
		}
		kept = append(kept, b)
	}

	// Forward-fill, then back-fill, each OHLCV column independently.
	fillColumn(kept, func(b *models.Bar) *float64 { return &b.Open })
	fillColumn(kept, func(b *models.Bar) *float64 { return &b.High })
	fillColumn(kept, func(b *models.Bar) *float64 { return &b.Low })
	fillColumn(kept, func(b *models.Bar) *float64 { return &b.Close })
	fillColumn(kept, func(b *models.Bar) *float64 { return &b.Volume })

	// Derive turnover and percent change where the provider omitted them.
	for i := range kept {
		if math.IsNaN(kept[i].Amount) {
			kept[i].Amount = kept[i].Close * kept[i].Volume
		}
		if math.IsNaN(kept[i].PctChange) && i > 0 && kept[i-1].Close != 0 {
			kept[i].PctChange = (kept[i].Close - kept[i-1].Close) / kept[i-1].Close * 100
		}
	}

	return kept
}

func fillColumn(bars []models.Bar, field func(*models.Bar) *float64) {
	last := math.NaN()
	for i := range bars {
		v := field(&bars[i])
		if math.IsNaN(*v) {
			*v = last
		} else {
			last = *v
		}
	}
	next := math.NaN()
	for i := len(bars) - 1; i >= 0; i-- {
		v := field(&bars[i])
		if math.IsNaN(*v) {
			*v = next
		} else {
			next = *v
		}
	}
}

func parseDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func coerce(row provider.RawRow, column string) float64 {
	raw, ok := row[column]
	if !ok || raw == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func finiteOrNaN(v float64) float64 {
	if math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}
