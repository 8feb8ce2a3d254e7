package services

import (
	"math"

	"github.com/marketlens/marketlens/internal/models"
)

// volumeSpikeRatio is the multiple of the 5-bar average volume above
// which the latest bar counts as a spike.
const volumeSpikeRatio = 2.0

// SignalDetector inspects the latest bar of a series for advisory
// technical events. Signals annotate output only; they never feed back
// into validation or processing.
type SignalDetector struct{}

func NewSignalDetector() *SignalDetector {
	return &SignalDetector{}
}

// Detect evaluates crossover, volume and band-breakout conditions on the
// most recent bar against the bar before it. Fewer than two bars, or an
// undefined indicator on either side, means the condition simply does
// not fire.
func (d *SignalDetector) Detect(series *models.Series, frame models.IndicatorFrame) *models.SignalFlags {
	flags := &models.SignalFlags{}
	if series == nil || series.Len() < 2 {
		return flags
	}

	last := series.Len() - 1
	prev := last - 1

	d.detectCross(frame, prev, last, flags)
	d.detectVolumeSpike(series, frame, last, flags)
	d.detectBreakout(series, frame, prev, last, flags)
	return flags
}

func (d *SignalDetector) detectCross(frame models.IndicatorFrame, prev, last int, flags *models.SignalFlags) {
	if !frame.Defined(models.IndicatorMA5, prev) || !frame.Defined(models.IndicatorMA20, prev) ||
		!frame.Defined(models.IndicatorMA5, last) || !frame.Defined(models.IndicatorMA20, last) {
		return
	}
	prevFast := frame.Value(models.IndicatorMA5, prev)
	prevSlow := frame.Value(models.IndicatorMA20, prev)
	lastFast := frame.Value(models.IndicatorMA5, last)
	lastSlow := frame.Value(models.IndicatorMA20, last)

	if prevFast <= prevSlow && lastFast > lastSlow {
		flags.GoldenCross = true
	} else if prevFast >= prevSlow && lastFast < lastSlow {
		flags.DeathCross = true
	}
}

func (d *SignalDetector) detectVolumeSpike(series *models.Series, frame models.IndicatorFrame, last int, flags *models.SignalFlags) {
	avg := frame.Value(models.IndicatorVolumeMA5, last)
	if math.IsNaN(avg) || avg <= 0 {
		return
	}
	ratio := series.Bars[last].Volume / avg
	if ratio > volumeSpikeRatio {
		flags.VolumeSpike = true
		flags.VolumeRatio = ratio
	}
}

func (d *SignalDetector) detectBreakout(series *models.Series, frame models.IndicatorFrame, prev, last int, flags *models.SignalFlags) {
	if !frame.Defined(models.IndicatorBBUpper, prev) || !frame.Defined(models.IndicatorBBUpper, last) ||
		!frame.Defined(models.IndicatorBBLower, prev) || !frame.Defined(models.IndicatorBBLower, last) {
		return
	}
	prevClose := series.Bars[prev].Close
	lastClose := series.Bars[last].Close

	if prevClose <= frame.Value(models.IndicatorBBUpper, prev) &&
		lastClose > frame.Value(models.IndicatorBBUpper, last) {
		flags.UpperBreakout = true
	} else if prevClose >= frame.Value(models.IndicatorBBLower, prev) &&
		lastClose < frame.Value(models.IndicatorBBLower, last) {
		flags.LowerBreakout = true
	}
}
