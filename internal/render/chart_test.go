package render

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketlens/marketlens/internal/models"
)

func chartData(n int) *models.TimeframeData {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]models.Bar, n)
	for i := range bars {
		base := 10 + float64(i)*0.3
		bars[i] = models.Bar{
			Timestamp: start.AddDate(0, 0, i),
			Open:      base,
			High:      base + 1,
			Low:       base - 1,
			Close:     base + 0.5,
			Volume:    1000 + float64(i)*10,
		}
	}
	series := &models.Series{
		Symbol:    models.Symbol{Raw: "00700", Canonical: "00700", Market: models.HongKongEquity},
		Timeframe: models.TimeframeDaily,
		Bars:      bars,
	}
	return &models.TimeframeData{
		Series:     series,
		Indicators: models.IndicatorFrame{},
		Signals:    &models.SignalFlags{},
	}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestRenderProducesPDF(t *testing.T) {
	renderer := NewCandlestickRenderer(quietLogger())
	data := chartData(30)

	artifact, err := renderer.Render(data.Series.Symbol, data)
	require.NoError(t, err)

	assert.Equal(t, models.TimeframeDaily, artifact.Timeframe)
	assert.Equal(t, "pdf", artifact.Format)
	require.NotEmpty(t, artifact.Data)
	assert.Equal(t, "%PDF", string(artifact.Data[:4]))
}

func TestRenderEmptySeriesFails(t *testing.T) {
	renderer := NewCandlestickRenderer(quietLogger())
	data := &models.TimeframeData{
		Series: &models.Series{
			Symbol:    models.Symbol{Canonical: "00700", Market: models.HongKongEquity},
			Timeframe: models.TimeframeDaily,
		},
		Indicators: models.IndicatorFrame{},
	}

	_, err := renderer.Render(data.Series.Symbol, data)
	assert.Error(t, err)
}

func TestRenderDeterministicSize(t *testing.T) {
	renderer := NewCandlestickRenderer(quietLogger())
	data := chartData(10)

	first, err := renderer.Render(data.Series.Symbol, data)
	require.NoError(t, err)
	second, err := renderer.Render(data.Series.Symbol, data)
	require.NoError(t, err)

	// Same input draws the same geometry.
	assert.Equal(t, len(first.Data), len(second.Data))
}
