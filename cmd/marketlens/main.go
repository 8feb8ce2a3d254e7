package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/marketlens/marketlens/internal/config"
	"github.com/marketlens/marketlens/internal/logging"
	"github.com/marketlens/marketlens/internal/market"
	"github.com/marketlens/marketlens/internal/models"
	"github.com/marketlens/marketlens/internal/render"
	"github.com/marketlens/marketlens/internal/services"
	"github.com/marketlens/marketlens/pkg/provider"
)

func main() {
	// Load .env for local development; absence is fine.
	_ = godotenv.Load()

	outputDir := flag.String("output", "output", "directory for generated documents and charts")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.Environment)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logger.Warn("Interrupt received, aborting batch")
		cancel()
	}()

	pipeline, err := buildPipeline(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build pipeline")
	}

	dateRange, err := resolveDateRange(cfg.Batch)
	if err != nil {
		logger.WithError(err).Fatal("Invalid batch date range")
	}

	logger.WithFields(logrus.Fields{
		"symbols": cfg.Batch.Symbols,
		"workers": cfg.Batch.Workers,
		"start":   dateRange.Start.Format("2006-01-02"),
		"end":     dateRange.End.Format("2006-01-02"),
	}).Info("Starting batch run")

	batch, err := pipeline.ProcessBatch(ctx, cfg.Batch.Symbols, dateRange, cfg.Batch.Workers)
	if err != nil {
		logger.WithError(err).Fatal("Batch aborted")
	}

	if err := writeOutputs(batch, *outputDir, logger); err != nil {
		logger.WithError(err).Fatal("Failed to write outputs")
	}

	summary := services.SummaryReport(batch.ConsistencyReports(), time.Now())
	summaryPath := filepath.Join(*outputDir, "consistency_report.txt")
	if err := os.WriteFile(summaryPath, []byte(summary), 0o644); err != nil {
		logger.WithError(err).Fatal("Failed to write consistency report")
	}

	for raw, procErr := range batch.Errors {
		logger.WithFields(logrus.Fields{"symbol": raw, "error": procErr.Error()}).
			Error("Symbol failed")
	}
	logger.WithFields(logrus.Fields{
		"processed": len(batch.Results),
		"failed":    len(batch.Errors),
	}).Info("Batch complete")

	if len(batch.Errors) > 0 {
		os.Exit(1)
	}
}

func buildPipeline(cfg *config.Config, logger *logrus.Logger) (*services.Pipeline, error) {
	adapters := make([]provider.Adapter, 0, len(cfg.Providers.Gateways))
	for _, gw := range cfg.Providers.Gateways {
		var timeout time.Duration
		if gw.Timeout != "" {
			parsed, err := time.ParseDuration(gw.Timeout)
			if err != nil {
				return nil, fmt.Errorf("parsing timeout for gateway %q: %w", gw.Name, err)
			}
			timeout = parsed
		}
		client, err := provider.NewGatewayClient(provider.GatewayConfig{
			Name:       gw.Name,
			ServiceURL: gw.ServiceURL,
			Timeout:    timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("configuring gateway %q: %w", gw.Name, err)
		}
		adapters = append(adapters, client)
	}

	initialBackoff, _ := time.ParseDuration(cfg.Fetch.InitialBackoff)
	maxBackoff, _ := time.ParseDuration(cfg.Fetch.MaxBackoff)

	fetcher := services.NewSourceChainFetcher(services.FetcherOptions{
		Registry:     provider.NewRegistry(adapters...),
		Standardizer: services.NewStandardizer(logger),
		Quality:      services.NewQualityAnalyzer(),
		Synthetic:    provider.NewGBMGenerator(),
		Limiter:      rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst),
		Policy: services.RetryPolicy{
			MaxAttempts:    cfg.Fetch.MaxAttempts,
			InitialBackoff: initialBackoff,
			MaxBackoff:     maxBackoff,
			BackoffFactor:  cfg.Fetch.BackoffFactor,
		},
		AllowDegraded: cfg.Fetch.AllowDegraded,
		Logger:        logger,
	})

	timeframes := make([]models.Timeframe, 0, len(cfg.Pipeline.Timeframes))
	for _, s := range cfg.Pipeline.Timeframes {
		tf, ok := models.ParseTimeframe(s)
		if !ok {
			return nil, fmt.Errorf("unknown timeframe %q in pipeline configuration", s)
		}
		timeframes = append(timeframes, tf)
	}

	precision := services.OutputPrecision{
		Price:     cfg.Output.PrecisionPrice,
		Indicator: cfg.Output.PrecisionIndicator,
	}

	return services.NewPipeline(services.PipelineOptions{
		Detector:   market.NewDetector(logger, nil),
		Fetcher:    fetcher,
		Resampler:  services.NewResampler(cfg.Pipeline.Retention),
		Indicators: services.NewIndicatorCalculator(services.DefaultIndicatorConfig()),
		Signals:    services.NewSignalDetector(),
		Generator:  services.NewDualOutputGenerator(precision, render.NewCandlestickRenderer(logger), logger),
		Validator:  services.NewConsistencyValidator(cfg.Output.Tolerance, precision),
		Timeframes: timeframes,
		Logger:     logger,
	}), nil
}

// resolveDateRange defaults to the trailing year ending today.
func resolveDateRange(cfg config.BatchConfig) (models.DateRange, error) {
	end := time.Now()
	start := end.AddDate(-1, 0, 0)

	if cfg.RangeStart != "" {
		parsed, err := time.Parse("2006-01-02", cfg.RangeStart)
		if err != nil {
			return models.DateRange{}, fmt.Errorf("parsing batch.range_start: %w", err)
		}
		start = parsed
	}
	if cfg.RangeEnd != "" {
		parsed, err := time.Parse("2006-01-02", cfg.RangeEnd)
		if err != nil {
			return models.DateRange{}, fmt.Errorf("parsing batch.range_end: %w", err)
		}
		end = parsed
	}
	if end.Before(start) {
		return models.DateRange{}, fmt.Errorf("batch range end %s precedes start %s",
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	return models.DateRange{Start: start, End: end}, nil
}

func writeOutputs(batch *services.BatchResult, dir string, logger *logrus.Logger) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	for _, result := range batch.Results {
		symbolDir := filepath.Join(dir, result.Symbol.Canonical)
		if err := os.MkdirAll(symbolDir, 0o755); err != nil {
			return err
		}

		for tf, output := range result.Outputs {
			docBytes, err := json.MarshalIndent(output.Document, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding document for %s %s: %w", result.Symbol.Canonical, tf, err)
			}
			docPath := filepath.Join(symbolDir, fmt.Sprintf("%s.json", tf))
			if err := os.WriteFile(docPath, docBytes, 0o644); err != nil {
				return err
			}

			if output.Chart != nil {
				chartPath := filepath.Join(symbolDir, fmt.Sprintf("%s.%s", tf, output.Chart.Format))
				if err := os.WriteFile(chartPath, output.Chart.Data, 0o644); err != nil {
					return err
				}
			}
		}

		logger.WithFields(logrus.Fields{
			"symbol": result.Symbol.Canonical,
			"dir":    symbolDir,
		}).Info("Wrote outputs")
	}
	return nil
}
