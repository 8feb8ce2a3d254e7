package services

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/marketlens/marketlens/internal/models"
	"github.com/marketlens/marketlens/pkg/provider"
)

// RoundTo rounds v half-up to the given number of decimal places. Every
// value written into an output document goes through this one function,
// and the consistency validator applies the same rounding to in-memory
// values before comparing, so a freshly generated document always
// validates clean. NaN passes through untouched.
func RoundTo(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	rounded, _ := decimal.NewFromFloat(v).Round(int32(places)).Float64()
	return rounded
}

// ChartRenderer turns a timeframe's bars and indicators into an opaque
// chart artifact. The generator does not care how it draws.
type ChartRenderer interface {
	Render(symbol models.Symbol, data *models.TimeframeData) (*models.ChartArtifact, error)
}

// OutputPrecision holds the per-category decimal places used by the
// generator and the validator alike.
type OutputPrecision struct {
	Price     int
	Indicator int
}

// DefaultOutputPrecision matches the upstream document format.
func DefaultOutputPrecision() OutputPrecision {
	return OutputPrecision{Price: 4, Indicator: 4}
}

// DualOutputGenerator produces both halves of the output for one
// timeframe from a single processed dataset: the structured document and
// the chart. Neither half is ever built from separately fetched data.
type DualOutputGenerator struct {
	precision OutputPrecision
	renderer  ChartRenderer
	clock     func() time.Time
	logger    *logrus.Logger
}

func NewDualOutputGenerator(precision OutputPrecision, renderer ChartRenderer, logger *logrus.Logger) *DualOutputGenerator {
	return &DualOutputGenerator{
		precision: precision,
		renderer:  renderer,
		clock:     time.Now,
		logger:    logger,
	}
}

// Generate builds the document and, when a renderer is wired, the chart
// for one timeframe of a processed symbol. An empty series yields a
// document with zero bars and no chart.
func (g *DualOutputGenerator) Generate(processed *models.ProcessedSeries, tf models.Timeframe, dataSource string) (*models.OutputDocument, *models.ChartArtifact, error) {
	if processed == nil {
		return nil, nil, fmt.Errorf("no processed series")
	}
	symbol := processed.Symbol
	data := processed.Frames[tf]
	if data == nil || data.Series == nil {
		return nil, nil, fmt.Errorf("no %s data for %s", tf, symbol.Canonical)
	}

	doc := g.buildDocument(symbol, data, dataSource)

	var chart *models.ChartArtifact
	if g.renderer != nil && !data.Series.Empty() {
		rendered, err := g.renderer.Render(symbol, data)
		if err != nil {
			return nil, nil, fmt.Errorf("rendering chart for %s %s: %w", symbol.Canonical, data.Series.Timeframe, err)
		}
		chart = rendered
	}

	g.logger.WithFields(logrus.Fields{
		"symbol":    symbol.Canonical,
		"timeframe": data.Series.Timeframe,
		"bars":      len(doc.Bars),
	}).Debug("Generated output document")

	return doc, chart, nil
}

func (g *DualOutputGenerator) buildDocument(symbol models.Symbol, data *models.TimeframeData, dataSource string) *models.OutputDocument {
	series := data.Series
	names := data.Indicators.Names()
	sort.Strings(names)

	doc := &models.OutputDocument{
		Metadata: models.DocumentMetadata{
			Symbol:      symbol.Canonical,
			Timeframe:   series.Timeframe,
			DataPoints:  series.Len(),
			Indicators:  names,
			GeneratedAt: g.clock().UTC(),
			DataSource:  provider.DisplayName(dataSource),
		},
		Bars: make([]models.BarRecord, 0, series.Len()),
	}
	if !series.Empty() {
		doc.Metadata.Period = [2]string{
			series.Bars[0].Timestamp.Format(time.RFC3339),
			series.Bars[series.Len()-1].Timestamp.Format(time.RFC3339),
		}
	}

	for i, bar := range series.Bars {
		record := models.BarRecord{
			Timestamp: bar.Timestamp.Format(time.RFC3339),
			OHLCV: [5]float64{
				RoundTo(bar.Open, g.precision.Price),
				RoundTo(bar.High, g.precision.Price),
				RoundTo(bar.Low, g.precision.Price),
				RoundTo(bar.Close, g.precision.Price),
				RoundTo(bar.Volume, 0),
			},
		}
		for _, name := range names {
			if !data.Indicators.Defined(name, i) {
				continue
			}
			if record.Indicators == nil {
				record.Indicators = make(map[string]float64, len(names))
			}
			record.Indicators[name] = RoundTo(data.Indicators.Value(name, i), g.precision.Indicator)
		}
		doc.Bars = append(doc.Bars, record)
	}
	return doc
}
