package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketlens/marketlens/internal/models"
	"github.com/marketlens/marketlens/internal/utils"
	"github.com/marketlens/marketlens/pkg/provider"
)

// scriptedAdapter returns canned responses in sequence and records how
// often it was called.
type scriptedAdapter struct {
	name   string
	tables []*provider.RawTable
	errs   []error
	calls  int
}

func (a *scriptedAdapter) Name() string { return a.name }

func (a *scriptedAdapter) FetchRaw(_ context.Context, _ string, _ models.Market, _ models.DateRange, _ models.Timeframe) (*provider.RawTable, error) {
	i := a.calls
	a.calls++
	if i >= len(a.errs) {
		i = len(a.errs) - 1
	}
	if a.errs[i] != nil {
		return nil, a.errs[i]
	}
	return a.tables[i], nil
}

func goodTable() *provider.RawTable {
	return rawTable(
		rawRow("2024-01-01", "10", "11", "9", "10.5", "1000"),
		rawRow("2024-01-02", "10.5", "11.5", "10", "11", "1500"),
	)
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		BackoffFactor:  2.0,
	}
}

func newTestFetcher(allowDegraded bool, adapters ...provider.Adapter) *SourceChainFetcher {
	return NewSourceChainFetcher(FetcherOptions{
		Registry:      provider.NewRegistry(adapters...),
		Standardizer:  NewStandardizer(testServiceLogger()),
		Quality:       NewQualityAnalyzer(),
		Synthetic:     provider.NewGBMGenerator(),
		Policy:        fastPolicy(),
		AllowDegraded: allowDegraded,
		Logger:        testServiceLogger(),
	})
}

func fetchRange() models.DateRange {
	return models.DateRange{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestFetchFirstProviderWins(t *testing.T) {
	first := &scriptedAdapter{name: "alpha", tables: []*provider.RawTable{goodTable()}, errs: []error{nil}}
	second := &scriptedAdapter{name: "beta", tables: []*provider.RawTable{goodTable()}, errs: []error{nil}}
	fetcher := newTestFetcher(false, first, second)

	result, err := fetcher.Fetch(context.Background(), testSymbol(), fetchRange(), models.TimeframeDaily)
	require.NoError(t, err)
	assert.Equal(t, "alpha", result.Provider)
	assert.False(t, result.Degraded)
	assert.Equal(t, 2, result.Series.Len())
	// The chain short-circuits; the second provider is never contacted.
	assert.Zero(t, second.calls)
}

func TestFetchRetriesTransientErrors(t *testing.T) {
	flaky := &scriptedAdapter{
		name:   "alpha",
		tables: []*provider.RawTable{nil, nil, goodTable()},
		errs: []error{
			utils.NewTransientError(utils.KindTimeout, errors.New("deadline exceeded")),
			utils.NewTransientError(utils.KindConnection, errors.New("connection reset")),
			nil,
		},
	}
	fetcher := newTestFetcher(false, flaky)

	result, err := fetcher.Fetch(context.Background(), testSymbol(), fetchRange(), models.TimeframeDaily)
	require.NoError(t, err)
	assert.Equal(t, 3, flaky.calls)
	assert.Equal(t, "alpha", result.Provider)
}

func TestFetchDoesNotRetryFatalErrors(t *testing.T) {
	broken := &scriptedAdapter{
		name:   "alpha",
		tables: []*provider.RawTable{nil},
		errs:   []error{errors.New("malformed payload")},
	}
	backup := &scriptedAdapter{name: "beta", tables: []*provider.RawTable{goodTable()}, errs: []error{nil}}
	fetcher := newTestFetcher(false, broken, backup)

	result, err := fetcher.Fetch(context.Background(), testSymbol(), fetchRange(), models.TimeframeDaily)
	require.NoError(t, err)
	// A fatal error moves on immediately, no second attempt.
	assert.Equal(t, 1, broken.calls)
	assert.Equal(t, "beta", result.Provider)
}

func TestFetchSkipsOnSchemaError(t *testing.T) {
	missing := &scriptedAdapter{
		name: "alpha",
		tables: []*provider.RawTable{{
			Columns: []string{provider.ColumnDate, provider.ColumnClose},
		}},
		errs: []error{nil},
	}
	backup := &scriptedAdapter{name: "beta", tables: []*provider.RawTable{goodTable()}, errs: []error{nil}}
	fetcher := newTestFetcher(false, missing, backup)

	result, err := fetcher.Fetch(context.Background(), testSymbol(), fetchRange(), models.TimeframeDaily)
	require.NoError(t, err)
	assert.Equal(t, 1, missing.calls)
	assert.Equal(t, "beta", result.Provider)
}

func TestFetchSkipsOnEmptyResult(t *testing.T) {
	empty := &scriptedAdapter{
		name:   "alpha",
		tables: []*provider.RawTable{{Columns: provider.RequiredColumns()}},
		errs:   []error{nil},
	}
	backup := &scriptedAdapter{name: "beta", tables: []*provider.RawTable{goodTable()}, errs: []error{nil}}
	fetcher := newTestFetcher(false, empty, backup)

	result, err := fetcher.Fetch(context.Background(), testSymbol(), fetchRange(), models.TimeframeDaily)
	require.NoError(t, err)
	assert.Equal(t, "beta", result.Provider)
}

func TestFetchExhaustedWithoutDegradedMode(t *testing.T) {
	failing := &scriptedAdapter{
		name:   "alpha",
		tables: []*provider.RawTable{nil},
		errs:   []error{utils.NewTransientError(utils.KindRateLimit, errors.New("429"))},
	}
	fetcher := newTestFetcher(false, failing)

	_, err := fetcher.Fetch(context.Background(), testSymbol(), fetchRange(), models.TimeframeDaily)
	require.Error(t, err)

	var exhausted *utils.AllProvidersExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, "00700", exhausted.Symbol)
	assert.Contains(t, exhausted.Failures, "alpha")
	// Transient failures were retried to the attempt cap first.
	assert.Equal(t, 3, failing.calls)
}

func TestFetchDegradedModeFallsBackToSynthetic(t *testing.T) {
	failing := &scriptedAdapter{
		name:   "alpha",
		tables: []*provider.RawTable{nil},
		errs:   []error{errors.New("provider offline")},
	}
	fetcher := newTestFetcher(true, failing)

	result, err := fetcher.Fetch(context.Background(), testSymbol(), fetchRange(), models.TimeframeDaily)
	require.NoError(t, err)
	assert.True(t, result.Degraded)
	assert.Equal(t, "synthetic", result.Provider)
	assert.NotZero(t, result.Series.Len())

	// Degraded output is deterministic across runs.
	again, err := fetcher.Fetch(context.Background(), testSymbol(), fetchRange(), models.TimeframeDaily)
	require.NoError(t, err)
	assert.Equal(t, result.Series.Bars, again.Series.Bars)
}

func TestFetchHonorsContextCancellation(t *testing.T) {
	failing := &scriptedAdapter{
		name:   "alpha",
		tables: []*provider.RawTable{nil},
		errs:   []error{utils.NewTransientError(utils.KindTimeout, errors.New("slow"))},
	}
	fetcher := newTestFetcher(true, failing)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fetcher.Fetch(ctx, testSymbol(), fetchRange(), models.TimeframeDaily)
	assert.ErrorIs(t, err, context.Canceled)
}
