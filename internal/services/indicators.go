package services

import (
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"

	"github.com/marketlens/marketlens/internal/models"
)

// Indicator window configuration, matching the upstream analysis system.
type IndicatorConfig struct {
	MAPeriods       []int
	VolumeMAPeriods []int
	MACDFast        int
	MACDSlow        int
	MACDSignal      int
	RSIPeriod       int
	BBPeriod        int
	BBStdDev        float64
}

// DefaultIndicatorConfig returns the standard window set.
func DefaultIndicatorConfig() IndicatorConfig {
	return IndicatorConfig{
		MAPeriods:       []int{5, 20, 60},
		VolumeMAPeriods: []int{5, 10, 20},
		MACDFast:        12,
		MACDSlow:        26,
		MACDSignal:      9,
		RSIPeriod:       14,
		BBPeriod:        20,
		BBStdDev:        2.0,
	}
}

// IndicatorCalculator computes the full indicator frame for a series.
// Every result series is index-aligned with the input bars; positions
// before a window fills are NaN, never zero.
type IndicatorCalculator struct {
	config IndicatorConfig
}

// NewIndicatorCalculator creates a calculator with the given windows.
func NewIndicatorCalculator(config IndicatorConfig) *IndicatorCalculator {
	return &IndicatorCalculator{config: config}
}

// Compute is a pure function of the series; the input is not mutated.
func (c *IndicatorCalculator) Compute(series *models.Series) models.IndicatorFrame {
	frame := models.IndicatorFrame{}
	if series.Empty() {
		return frame
	}

	closes := series.Closes()
	volumes := series.Volumes()

	maNames := map[int]string{5: models.IndicatorMA5, 20: models.IndicatorMA20, 60: models.IndicatorMA60}
	for _, period := range c.config.MAPeriods {
		if name, ok := maNames[period]; ok {
			frame[name] = sma(closes, period)
		}
	}
	volNames := map[int]string{5: models.IndicatorVolumeMA5, 10: models.IndicatorVolumeMA10, 20: models.IndicatorVolumeMA20}
	for _, period := range c.config.VolumeMAPeriods {
		if name, ok := volNames[period]; ok {
			frame[name] = sma(volumes, period)
		}
	}

	dif, dea, hist := macd(closes, c.config.MACDFast, c.config.MACDSlow, c.config.MACDSignal)
	frame[models.IndicatorMACDDIF] = dif
	frame[models.IndicatorMACDDEA] = dea
	frame[models.IndicatorMACDHist] = hist

	frame[models.IndicatorRSI14] = rsi(closes, c.config.RSIPeriod)

	upper, middle, lower := bollinger(closes, c.config.BBPeriod, c.config.BBStdDev)
	frame[models.IndicatorBBUpper] = upper
	frame[models.IndicatorBBMiddle] = middle
	frame[models.IndicatorBBLower] = lower

	frame[models.IndicatorOBV] = obv(closes, volumes)

	return frame
}

// sma computes a simple moving average aligned to the input: the library
// emits only the filled windows, so the warm-up prefix is padded with NaN.
func sma(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if len(values) < period {
		return out
	}
	ind := trend.NewSmaWithPeriod[float64](period)
	result := helper.ChanToSlice(ind.Compute(helper.SliceToChan(values)))
	offset := len(values) - len(result)
	for i, v := range result {
		out[offset+i] = v
	}
	return out
}

// ema is the recursive exponential average with smoothing 2/(n+1),
// seeded from the first value, defined at every position.
func ema(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / (float64(period) + 1.0)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

func macd(closes []float64, fast, slow, signal int) (dif, dea, hist []float64) {
	emaFast := ema(closes, fast)
	emaSlow := ema(closes, slow)

	dif = nanSlice(len(closes))
	for i := range closes {
		dif[i] = emaFast[i] - emaSlow[i]
	}
	dea = ema(dif, signal)
	hist = nanSlice(len(closes))
	for i := range closes {
		hist[i] = dif[i] - dea[i]
	}
	return dif, dea, hist
}

// rsi uses rolling-mean gains and losses over the trailing window.
// When the average loss is zero the value is defined as 100, not
// infinite, so the result stays inside [0, 100].
func rsi(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if len(closes) <= period {
		return out
	}

	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	for i := period; i < len(closes); i++ {
		var avgGain, avgLoss float64
		for j := i - period + 1; j <= i; j++ {
			avgGain += gains[j]
			avgLoss += losses[j]
		}
		avgGain /= float64(period)
		avgLoss /= float64(period)

		if avgLoss == 0 {
			out[i] = 100
			continue
		}
		rs := avgGain / avgLoss
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// bollinger uses the sample standard deviation of the trailing window
// around the SMA middle band.
func bollinger(closes []float64, period int, stdDev float64) (upper, middle, lower []float64) {
	middle = sma(closes, period)
	upper = nanSlice(len(closes))
	lower = nanSlice(len(closes))

	for i := period - 1; i < len(closes); i++ {
		mean := middle[i]
		if math.IsNaN(mean) {
			continue
		}
		var variance float64
		for j := i - period + 1; j <= i; j++ {
			diff := closes[j] - mean
			variance += diff * diff
		}
		sd := math.Sqrt(variance / float64(period-1))
		upper[i] = mean + stdDev*sd
		lower[i] = mean - stdDev*sd
	}
	return upper, middle, lower
}

// obv is the cumulative signed volume: the sign follows the day-over-day
// close change and an unchanged close contributes zero, not a carried
// sign. The first bar has no prior close and contributes zero.
func obv(closes, volumes []float64) []float64 {
	out := nanSlice(len(closes))
	if len(closes) == 0 {
		return out
	}
	out[0] = 0
	for i := 1; i < len(closes); i++ {
		out[i] = out[i-1]
		switch {
		case closes[i] > closes[i-1]:
			out[i] += volumes[i]
		case closes[i] < closes[i-1]:
			out[i] -= volumes[i]
		}
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
