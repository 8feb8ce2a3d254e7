package services

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketlens/marketlens/internal/market"
	"github.com/marketlens/marketlens/internal/models"
	"github.com/marketlens/marketlens/pkg/provider"
)

// tableAdapter serves the same table for every symbol.
type tableAdapter struct {
	name  string
	table *provider.RawTable
	err   error
}

func (a *tableAdapter) Name() string { return a.name }

func (a *tableAdapter) FetchRaw(_ context.Context, _ string, _ models.Market, _ models.DateRange, _ models.Timeframe) (*provider.RawTable, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.table, nil
}

func monthOfDailyRows() *provider.RawTable {
	rows := make([]provider.RawRow, 0, 40)
	day := func(d string, base float64) provider.RawRow {
		return rawRow(d, floatStr(base), floatStr(base+1), floatStr(base-1), floatStr(base+0.5), "1000")
	}
	dates := []string{
		"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05",
		"2024-01-08", "2024-01-09", "2024-01-10", "2024-01-11", "2024-01-12",
		"2024-01-15", "2024-01-16", "2024-01-17", "2024-01-18", "2024-01-19",
		"2024-01-22", "2024-01-23", "2024-01-24", "2024-01-25", "2024-01-26",
		"2024-01-29", "2024-01-30", "2024-01-31", "2024-02-01", "2024-02-02",
	}
	for i, d := range dates {
		rows = append(rows, day(d, 10+float64(i)*0.2))
	}
	return &provider.RawTable{Columns: provider.RequiredColumns(), Rows: rows}
}

func floatStr(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func newTestPipeline(adapter provider.Adapter) *Pipeline {
	logger := testServiceLogger()
	precision := DefaultOutputPrecision()
	fetcher := NewSourceChainFetcher(FetcherOptions{
		Registry:     provider.NewRegistry(adapter),
		Standardizer: NewStandardizer(logger),
		Quality:      NewQualityAnalyzer(),
		Synthetic:    provider.NewGBMGenerator(),
		Policy:       fastPolicy(),
		Logger:       logger,
	})
	return NewPipeline(PipelineOptions{
		Detector:   market.NewDetector(logger, nil),
		Fetcher:    fetcher,
		Resampler:  NewResampler(DefaultRetention),
		Indicators: NewIndicatorCalculator(DefaultIndicatorConfig()),
		Signals:    NewSignalDetector(),
		Generator:  NewDualOutputGenerator(precision, nil, logger),
		Validator:  NewConsistencyValidator(0.0001, precision),
		Timeframes: models.AllTimeframes(),
		Logger:     logger,
	})
}

func TestProcessSymbolEndToEnd(t *testing.T) {
	adapter := &tableAdapter{name: "alpha", table: monthOfDailyRows()}
	pipeline := newTestPipeline(adapter)

	result, err := pipeline.ProcessSymbol(context.Background(), "0700.HK", fetchRange())
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, "00700", result.Symbol.Canonical)
	assert.Equal(t, models.HongKongEquity, result.Symbol.Market)
	assert.Equal(t, "alpha", result.Provider)
	assert.False(t, result.Degraded)
	require.NotNil(t, result.Quality)
	assert.Equal(t, models.QualityPass, result.Quality.Status)

	// Daily, weekly and monthly outputs exist; intraday is skipped.
	require.Contains(t, result.Outputs, models.TimeframeDaily)
	require.Contains(t, result.Outputs, models.TimeframeWeekly)
	require.Contains(t, result.Outputs, models.TimeframeMonthly)
	assert.NotContains(t, result.Outputs, models.TimeframeMinute60)

	for tf, output := range result.Outputs {
		assert.True(t, output.Consistency.Passed(),
			"%s failed consistency: %v", tf, output.Consistency.Discrepancies)
		assert.NotEmpty(t, output.Document.Bars)
	}

	daily := result.Outputs[models.TimeframeDaily]
	assert.Equal(t, 25, daily.Document.Metadata.DataPoints)
}

func TestProcessSymbolDistinctRunIDs(t *testing.T) {
	adapter := &tableAdapter{name: "alpha", table: monthOfDailyRows()}
	pipeline := newTestPipeline(adapter)

	first, err := pipeline.ProcessSymbol(context.Background(), "00700", fetchRange())
	require.NoError(t, err)
	second, err := pipeline.ProcessSymbol(context.Background(), "00700", fetchRange())
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestProcessBatch(t *testing.T) {
	adapter := &tableAdapter{name: "alpha", table: monthOfDailyRows()}
	pipeline := newTestPipeline(adapter)

	batch, err := pipeline.ProcessBatch(context.Background(), []string{"00700", "600519.SH", "AAPL.US"}, fetchRange(), 2)
	require.NoError(t, err)

	assert.Len(t, batch.Results, 3)
	assert.Empty(t, batch.Errors)
	assert.Equal(t, "600519", batch.Results["600519.SH"].Symbol.Canonical)

	reports := batch.ConsistencyReports()
	assert.Len(t, reports, 3)
}

func TestProcessBatchRecordsPerSymbolFailures(t *testing.T) {
	adapter := &tableAdapter{name: "alpha", err: errors.New("provider offline")}
	pipeline := newTestPipeline(adapter)

	batch, err := pipeline.ProcessBatch(context.Background(), []string{"00700"}, fetchRange(), 1)
	require.NoError(t, err)
	assert.Empty(t, batch.Results)
	require.Contains(t, batch.Errors, "00700")
}

func TestProcessBatchCancellationDropsResults(t *testing.T) {
	adapter := &tableAdapter{name: "alpha", table: monthOfDailyRows()}
	pipeline := newTestPipeline(adapter)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch, err := pipeline.ProcessBatch(ctx, []string{"00700", "600519"}, fetchRange(), 2)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, batch)
}
