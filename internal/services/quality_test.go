package services

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketlens/marketlens/internal/models"
)

func TestAnalyzeEmptySeriesFails(t *testing.T) {
	analyzer := NewQualityAnalyzer()
	report := analyzer.Analyze(&models.Series{Symbol: testSymbol(), Timeframe: models.TimeframeDaily})

	assert.Equal(t, models.QualityFail, report.Status)
	assert.NotEmpty(t, report.Issues)
}

func TestAnalyzeCleanSeriesPasses(t *testing.T) {
	analyzer := NewQualityAnalyzer()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := dailySeries(
		dailyBar(start, 10, 11, 9, 10.5, 1000),
		dailyBar(start.AddDate(0, 0, 1), 10.5, 11.5, 10, 11, 1500),
	)

	report := analyzer.Analyze(series)
	assert.Equal(t, models.QualityPass, report.Status)
	assert.Zero(t, report.OrderingViolations)
	assert.Equal(t, 1.0, report.Completeness)
	assert.Equal(t, 2, report.Stats.DataPoints)
	assert.InDelta(t, 10.75, report.Stats.CloseMean, 1e-9)
}

func TestAnalyzeCountsOrderingViolations(t *testing.T) {
	analyzer := NewQualityAnalyzer()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := dailySeries(
		// High below close: an ordering violation, but the bar stays.
		dailyBar(start, 10, 10.2, 9, 10.5, 1000),
		dailyBar(start.AddDate(0, 0, 1), 10.5, 11.5, 10, 11, 1500),
	)

	report := analyzer.Analyze(series)
	assert.Equal(t, 1, report.OrderingViolations)
	assert.Equal(t, 2, report.Stats.DataPoints)
}

func TestAnalyzeLowCompletenessWarns(t *testing.T) {
	analyzer := NewQualityAnalyzer()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, 0, 4)
	for i := 0; i < 4; i++ {
		bars = append(bars, dailyBar(start.AddDate(0, 0, i), 10, 11, 9, 10, 1000))
	}
	// Two missing values out of twenty puts completeness at 90%.
	bars[1].Volume = math.NaN()
	bars[2].Open = math.NaN()

	report := analyzer.Analyze(dailySeries(bars...))
	assert.Equal(t, models.QualityWarning, report.Status)
	assert.InDelta(t, 0.9, report.Completeness, 1e-9)
}

func TestAnalyzeCountsGaps(t *testing.T) {
	analyzer := NewQualityAnalyzer()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := dailySeries(
		dailyBar(start, 10, 11, 9, 10, 1000),
		dailyBar(start.AddDate(0, 0, 1), 10, 11, 9, 10, 1000),
		// Friday to Monday reads as a three-day gap.
		dailyBar(start.AddDate(0, 0, 4), 10, 11, 9, 10, 1000),
	)

	report := analyzer.Analyze(series)
	assert.Equal(t, 1, report.GapCount)
	// Gaps alone do not demote the status.
	assert.Equal(t, models.QualityPass, report.Status)
}

func TestAnalyzeFlagsAbnormalPrices(t *testing.T) {
	analyzer := NewQualityAnalyzer()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := dailySeries(
		dailyBar(start, 150000, 160000, 140000, 155000, 1000),
	)

	report := analyzer.Analyze(series)
	require.NotEmpty(t, report.Issues)
	found := false
	for _, issue := range report.Issues {
		if strings.Contains(issue, "abnormally high") {
			found = true
		}
	}
	assert.True(t, found)
}
