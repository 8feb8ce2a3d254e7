package services

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/marketlens/marketlens/internal/market"
	"github.com/marketlens/marketlens/internal/models"
)

// TimeframeOutput bundles everything produced for one timeframe of one
// symbol: the document, the optional chart, and the consistency verdict.
type TimeframeOutput struct {
	Timeframe   models.Timeframe
	Document    *models.OutputDocument
	Chart       *models.ChartArtifact
	Consistency *models.ConsistencyReport
}

// SymbolResult is the complete outcome of processing one symbol.
type SymbolResult struct {
	RunID    string
	Symbol   models.Symbol
	Provider string
	Degraded bool
	Quality  *models.QualityReport
	Outputs  map[models.Timeframe]*TimeframeOutput
}

// BatchResult aggregates a batch run. Results and Errors are disjoint:
// a symbol appears in exactly one of them.
type BatchResult struct {
	Results map[string]*SymbolResult
	Errors  map[string]error
}

// ConsistencyReports flattens the per-timeframe reports for the summary.
func (b *BatchResult) ConsistencyReports() map[string][]*models.ConsistencyReport {
	out := make(map[string][]*models.ConsistencyReport, len(b.Results))
	for symbol, result := range b.Results {
		for _, output := range result.Outputs {
			out[symbol] = append(out[symbol], output.Consistency)
		}
	}
	return out
}

// Pipeline drives a symbol end to end: market resolution, fetch,
// per-timeframe resampling, indicators, signals, dual output and
// consistency validation. Symbols never share mutable state, so a batch
// runs them concurrently without coordination beyond result collection.
type Pipeline struct {
	detector   *market.Detector
	fetcher    *SourceChainFetcher
	resampler  *Resampler
	indicators *IndicatorCalculator
	signals    *SignalDetector
	generator  *DualOutputGenerator
	validator  *ConsistencyValidator
	timeframes []models.Timeframe
	logger     *logrus.Logger
}

// PipelineOptions bundles the wiring for NewPipeline.
type PipelineOptions struct {
	Detector   *market.Detector
	Fetcher    *SourceChainFetcher
	Resampler  *Resampler
	Indicators *IndicatorCalculator
	Signals    *SignalDetector
	Generator  *DualOutputGenerator
	Validator  *ConsistencyValidator
	Timeframes []models.Timeframe
	Logger     *logrus.Logger
}

func NewPipeline(opts PipelineOptions) *Pipeline {
	if len(opts.Timeframes) == 0 {
		opts.Timeframes = models.AllTimeframes()
	}
	return &Pipeline{
		detector:   opts.Detector,
		fetcher:    opts.Fetcher,
		resampler:  opts.Resampler,
		indicators: opts.Indicators,
		signals:    opts.Signals,
		generator:  opts.Generator,
		validator:  opts.Validator,
		timeframes: opts.Timeframes,
		logger:     opts.Logger,
	}
}

// ProcessSymbol runs the full pipeline for one raw symbol string.
// Timeframes that resample to nothing (intraday from a daily source)
// are skipped rather than emitted as empty documents.
func (p *Pipeline) ProcessSymbol(ctx context.Context, raw string, dateRange models.DateRange) (*SymbolResult, error) {
	runID := uuid.New().String()
	symbol := p.detector.Resolve(raw)
	log := p.logger.WithFields(logrus.Fields{
		"run_id": runID,
		"symbol": symbol.Canonical,
		"market": symbol.Market,
	})

	fetched, err := p.fetcher.Fetch(ctx, symbol, dateRange, models.TimeframeDaily)
	if err != nil {
		return nil, err
	}

	result := &SymbolResult{
		RunID:    runID,
		Symbol:   symbol,
		Provider: fetched.Provider,
		Degraded: fetched.Degraded,
		Quality:  fetched.Quality,
		Outputs:  make(map[models.Timeframe]*TimeframeOutput, len(p.timeframes)),
	}

	processed := &models.ProcessedSeries{
		Symbol: symbol,
		Frames: make(map[models.Timeframe]*models.TimeframeData, len(p.timeframes)),
	}
	for _, tf := range p.timeframes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		series := p.resampler.Resample(fetched.Series, tf)
		if series.Empty() {
			log.WithField("timeframe", tf).Debug("No bars for timeframe, skipping")
			continue
		}

		data := &models.TimeframeData{
			Series:     series,
			Indicators: p.indicators.Compute(series),
		}
		data.Signals = p.signals.Detect(series, data.Indicators)
		processed.Frames[tf] = data
	}

	for _, tf := range p.timeframes {
		data, ok := processed.Frames[tf]
		if !ok {
			continue
		}

		doc, chart, err := p.generator.Generate(processed, tf, fetched.Provider)
		if err != nil {
			return nil, err
		}

		output := &TimeframeOutput{
			Timeframe:   tf,
			Document:    doc,
			Chart:       chart,
			Consistency: p.validator.Validate(doc, data),
		}
		if !output.Consistency.Passed() {
			log.WithFields(logrus.Fields{
				"timeframe":  tf,
				"mismatches": output.Consistency.TotalMismatches,
			}).Error("Consistency validation failed")
		}
		result.Outputs[tf] = output
	}

	log.WithFields(logrus.Fields{
		"provider":   result.Provider,
		"degraded":   result.Degraded,
		"timeframes": len(result.Outputs),
	}).Info("Symbol processed")
	return result, nil
}

// ProcessBatch fans the symbol list across a bounded worker pool. A
// cancelled context aborts the batch and discards partial results; a
// single symbol's failure is recorded and does not stop the others.
func (p *Pipeline) ProcessBatch(ctx context.Context, symbols []string, dateRange models.DateRange, workers int) (*BatchResult, error) {
	if workers < 1 {
		workers = 1
	}
	if workers > len(symbols) {
		workers = len(symbols)
	}

	batch := &BatchResult{
		Results: make(map[string]*SymbolResult, len(symbols)),
		Errors:  make(map[string]error),
	}

	jobs := make(chan string)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for raw := range jobs {
				result, err := p.ProcessSymbol(ctx, raw, dateRange)
				mu.Lock()
				if err != nil {
					batch.Errors[raw] = err
				} else {
					batch.Results[raw] = result
				}
				mu.Unlock()
			}
		}()
	}

	for _, raw := range symbols {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, ctx.Err()
		case jobs <- raw:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return batch, nil
}
