package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/marketlens/marketlens/internal/models"
	"github.com/marketlens/marketlens/internal/utils"
	"github.com/marketlens/marketlens/pkg/provider"
)

// RetryPolicy controls per-adapter retry behaviour. Backoff escalates
// geometrically and is capped by MaxBackoff.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

// DefaultRetryPolicy matches the upstream fetcher: three attempts per
// source with backoff doubling from half a second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		BackoffFactor:  2.0,
	}
}

// FetchResult carries the standardized series plus provenance: which
// provider produced it, its quality grade, and whether the pipeline fell
// back to synthetic data.
type FetchResult struct {
	Series   *models.Series
	Quality  *models.QualityReport
	Provider string
	Degraded bool
}

// SourceChainFetcher walks an ordered chain of provider adapters until
// one of them yields a valid, non-empty standardized series. Transient
// failures are retried per adapter with escalating backoff; schema
// errors and empty results skip straight to the next adapter. When the
// whole chain fails and degraded mode is enabled, a deterministic
// synthetic series stands in.
type SourceChainFetcher struct {
	registry      *provider.Registry
	standardizer  *Standardizer
	quality       *QualityAnalyzer
	synthetic     provider.SyntheticGenerator
	limiter       *rate.Limiter
	policy        RetryPolicy
	allowFallback bool
	logger        *logrus.Logger
}

// FetcherOptions bundles the wiring for NewSourceChainFetcher.
type FetcherOptions struct {
	Registry      *provider.Registry
	Standardizer  *Standardizer
	Quality       *QualityAnalyzer
	Synthetic     provider.SyntheticGenerator
	Limiter       *rate.Limiter
	Policy        RetryPolicy
	AllowDegraded bool
	Logger        *logrus.Logger
}

func NewSourceChainFetcher(opts FetcherOptions) *SourceChainFetcher {
	if opts.Policy.MaxAttempts < 1 {
		opts.Policy = DefaultRetryPolicy()
	}
	return &SourceChainFetcher{
		registry:      opts.Registry,
		standardizer:  opts.Standardizer,
		quality:       opts.Quality,
		synthetic:     opts.Synthetic,
		limiter:       opts.Limiter,
		policy:        opts.Policy,
		allowFallback: opts.AllowDegraded,
		logger:        opts.Logger,
	}
}

// Fetch resolves the series for one symbol at the requested timeframe.
// The chain is walked in registration order and short-circuits on the
// first success; the per-provider failure map is only surfaced when
// everything fails. The synthetic fallback covers daily fetches only,
// since the generator produces daily bars.
func (f *SourceChainFetcher) Fetch(ctx context.Context, symbol models.Symbol, dateRange models.DateRange, timeframe models.Timeframe) (*FetchResult, error) {
	failures := make(map[string]error)

	for _, adapter := range f.registry.Adapters() {
		series, err := f.fetchFromAdapter(ctx, adapter, symbol, dateRange, timeframe)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failures[adapter.Name()] = err
			f.logger.WithFields(logrus.Fields{
				"provider": adapter.Name(),
				"symbol":   symbol.Canonical,
				"error":    err.Error(),
			}).Warn("Provider failed, moving to next source")
			continue
		}

		f.logger.WithFields(logrus.Fields{
			"provider": provider.DisplayName(adapter.Name()),
			"symbol":   symbol.Canonical,
			"bars":     series.Len(),
		}).Info("Fetched market data")

		return &FetchResult{
			Series:   series,
			Quality:  f.quality.Analyze(series),
			Provider: adapter.Name(),
		}, nil
	}

	if f.allowFallback && f.synthetic != nil && timeframe == models.TimeframeDaily {
		f.logger.WithField("symbol", symbol.Canonical).
			Warn("All providers failed, generating synthetic data")
		series := f.synthetic.GenerateSynthetic(symbol.Canonical, symbol.Market, dateRange)
		return &FetchResult{
			Series:   series,
			Quality:  f.quality.Analyze(series),
			Provider: "synthetic",
			Degraded: true,
		}, nil
	}

	return nil, &utils.AllProvidersExhaustedError{Symbol: symbol.Canonical, Failures: failures}
}

// fetchFromAdapter runs the retry loop for one adapter. Only transient
// errors earn another attempt; anything else is final for this source.
func (f *SourceChainFetcher) fetchFromAdapter(ctx context.Context, adapter provider.Adapter, symbol models.Symbol, dateRange models.DateRange, timeframe models.Timeframe) (*models.Series, error) {
	backoff := f.policy.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= f.policy.MaxAttempts; attempt++ {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		table, err := adapter.FetchRaw(ctx, symbol.Canonical, symbol.Market, dateRange, timeframe)
		if err == nil {
			series, stdErr := f.standardizer.Standardize(table, symbol, timeframe)
			if stdErr != nil {
				return nil, stdErr
			}
			if series.Empty() {
				return nil, &utils.EmptyResultError{Source: adapter.Name()}
			}
			return series, nil
		}

		lastErr = err
		if !utils.IsTransient(err) {
			return nil, err
		}

		if attempt < f.policy.MaxAttempts {
			f.logger.WithFields(logrus.Fields{
				"provider": adapter.Name(),
				"symbol":   symbol.Canonical,
				"attempt":  attempt,
				"backoff":  backoff.String(),
			}).Debug("Transient provider error, backing off")
			if err := sleepCtx(ctx, backoff); err != nil {
				return nil, err
			}
			backoff = time.Duration(float64(backoff) * f.policy.BackoffFactor)
			if backoff > f.policy.MaxBackoff {
				backoff = f.policy.MaxBackoff
			}
		}
	}
	return nil, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
