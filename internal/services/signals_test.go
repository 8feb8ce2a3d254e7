package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marketlens/marketlens/internal/models"
)

func frameWith(n int, columns map[string][]float64) models.IndicatorFrame {
	frame := models.IndicatorFrame{}
	for name, values := range columns {
		padded := make([]float64, n)
		for i := range padded {
			padded[i] = math.NaN()
		}
		copy(padded[n-len(values):], values)
		frame[name] = padded
	}
	return frame
}

func TestDetectGoldenCross(t *testing.T) {
	detector := NewSignalDetector()
	series := seriesFromCloses([]float64{10, 11}, nil)
	frame := frameWith(2, map[string][]float64{
		models.IndicatorMA5:  {9.8, 10.2},
		models.IndicatorMA20: {10.0, 10.1},
	})

	flags := detector.Detect(series, frame)
	assert.True(t, flags.GoldenCross)
	assert.False(t, flags.DeathCross)
}

func TestDetectDeathCross(t *testing.T) {
	detector := NewSignalDetector()
	series := seriesFromCloses([]float64{11, 10}, nil)
	frame := frameWith(2, map[string][]float64{
		models.IndicatorMA5:  {10.2, 9.8},
		models.IndicatorMA20: {10.1, 10.0},
	})

	flags := detector.Detect(series, frame)
	assert.True(t, flags.DeathCross)
	assert.False(t, flags.GoldenCross)
}

func TestDetectNoCrossWhenAlreadyAbove(t *testing.T) {
	detector := NewSignalDetector()
	series := seriesFromCloses([]float64{10, 11}, nil)
	frame := frameWith(2, map[string][]float64{
		models.IndicatorMA5:  {10.5, 10.6},
		models.IndicatorMA20: {10.0, 10.1},
	})

	flags := detector.Detect(series, frame)
	assert.False(t, flags.GoldenCross)
	assert.False(t, flags.DeathCross)
}

func TestDetectCrossSkippedDuringWarmup(t *testing.T) {
	detector := NewSignalDetector()
	series := seriesFromCloses([]float64{10, 11}, nil)
	frame := frameWith(2, map[string][]float64{
		models.IndicatorMA5:  {9.8, 10.2},
		models.IndicatorMA20: {math.NaN(), 10.1},
	})

	flags := detector.Detect(series, frame)
	assert.False(t, flags.GoldenCross)
}

func TestDetectVolumeSpike(t *testing.T) {
	detector := NewSignalDetector()
	series := seriesFromCloses([]float64{10, 11}, []float64{1000, 5000})
	frame := frameWith(2, map[string][]float64{
		models.IndicatorVolumeMA5: {1000, 2000},
	})

	flags := detector.Detect(series, frame)
	assert.True(t, flags.VolumeSpike)
	assert.InDelta(t, 2.5, flags.VolumeRatio, 1e-9)
}

func TestDetectNoVolumeSpikeAtThreshold(t *testing.T) {
	detector := NewSignalDetector()
	series := seriesFromCloses([]float64{10, 11}, []float64{1000, 4000})
	frame := frameWith(2, map[string][]float64{
		models.IndicatorVolumeMA5: {1000, 2000},
	})

	// Exactly 2x is not a spike; the threshold is strict.
	flags := detector.Detect(series, frame)
	assert.False(t, flags.VolumeSpike)
}

func TestDetectUpperBreakout(t *testing.T) {
	detector := NewSignalDetector()
	series := seriesFromCloses([]float64{10, 12}, nil)
	frame := frameWith(2, map[string][]float64{
		models.IndicatorBBUpper: {11, 11.5},
		models.IndicatorBBLower: {9, 9.5},
	})

	flags := detector.Detect(series, frame)
	assert.True(t, flags.UpperBreakout)
	assert.False(t, flags.LowerBreakout)
}

func TestDetectLowerBreakout(t *testing.T) {
	detector := NewSignalDetector()
	series := seriesFromCloses([]float64{10, 9}, nil)
	frame := frameWith(2, map[string][]float64{
		models.IndicatorBBUpper: {11, 11.5},
		models.IndicatorBBLower: {10, 9.5},
	})

	flags := detector.Detect(series, frame)
	assert.True(t, flags.LowerBreakout)
	assert.False(t, flags.UpperBreakout)
}

func TestDetectTooFewBars(t *testing.T) {
	detector := NewSignalDetector()
	series := seriesFromCloses([]float64{10}, nil)

	flags := detector.Detect(series, models.IndicatorFrame{})
	assert.Equal(t, &models.SignalFlags{}, flags)
}
