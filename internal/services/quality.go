package services

import (
	"fmt"
	"math"

	"github.com/marketlens/marketlens/internal/models"
)

// minCompleteness is the fraction of defined OHLCV values below which a
// series is demoted to WARNING.
const minCompleteness = 0.95

// priceSanityCeiling flags obviously broken price columns. Legitimate
// prices in the supported markets stay well below this.
const priceSanityCeiling = 100000.0

// QualityAnalyzer inspects a standardized series and produces a quality
// report. Analysis never mutates or drops bars; ordering violations and
// gaps are counted and surfaced, leaving the decision to the caller.
type QualityAnalyzer struct{}

func NewQualityAnalyzer() *QualityAnalyzer {
	return &QualityAnalyzer{}
}

// Analyze grades a series PASS, WARNING or FAIL. An empty series is a
// structural failure since nothing downstream can use it.
func (a *QualityAnalyzer) Analyze(series *models.Series) *models.QualityReport {
	report := &models.QualityReport{Status: models.QualityPass}

	if series == nil || series.Empty() {
		report.Status = models.QualityFail
		report.Issues = append(report.Issues, "series contains no bars")
		return report
	}

	a.checkPriceSanity(series, report)
	a.checkOrdering(series, report)
	a.checkCompleteness(series, report)
	a.checkGaps(series, report)
	report.Stats = computeStats(series)

	return report
}

func (a *QualityAnalyzer) checkPriceSanity(series *models.Series, report *models.QualityReport) {
	maxima := map[string]float64{}
	for _, bar := range series.Bars {
		for name, v := range map[string]float64{
			"open": bar.Open, "high": bar.High, "low": bar.Low, "close": bar.Close,
		} {
			if !math.IsNaN(v) && v > maxima[name] {
				maxima[name] = v
			}
		}
	}
	for _, name := range []string{"open", "high", "low", "close"} {
		if maxima[name] > priceSanityCeiling {
			report.Issues = append(report.Issues,
				fmt.Sprintf("%s price abnormally high: %.2f", name, maxima[name]))
		}
	}
}

func (a *QualityAnalyzer) checkOrdering(series *models.Series, report *models.QualityReport) {
	for _, bar := range series.Bars {
		if !bar.OrderingValid() {
			report.OrderingViolations++
		}
	}
	if report.OrderingViolations > 0 {
		report.Issues = append(report.Issues,
			fmt.Sprintf("found %d bars violating OHLC ordering", report.OrderingViolations))
	}
}

func (a *QualityAnalyzer) checkCompleteness(series *models.Series, report *models.QualityReport) {
	total := len(series.Bars) * 5
	missing := 0
	for _, bar := range series.Bars {
		for _, v := range []float64{bar.Open, bar.High, bar.Low, bar.Close, bar.Volume} {
			if math.IsNaN(v) {
				missing++
			}
		}
	}
	if total > 0 {
		report.Completeness = 1.0 - float64(missing)/float64(total)
	}
	if report.Completeness < minCompleteness {
		report.Status = models.QualityWarning
		report.Issues = append(report.Issues,
			fmt.Sprintf("low data completeness: %.2f%%", report.Completeness*100))
	}
}

// checkGaps counts calendar gaps larger than one day between consecutive
// bars. Weekends show up here for daily data; the count is a signal, not
// a failure.
func (a *QualityAnalyzer) checkGaps(series *models.Series, report *models.QualityReport) {
	for i := 1; i < len(series.Bars); i++ {
		days := series.Bars[i].Timestamp.Sub(series.Bars[i-1].Timestamp).Hours() / 24
		if days > 1 {
			report.GapCount++
		}
	}
	if report.GapCount > 0 {
		report.Issues = append(report.Issues,
			fmt.Sprintf("found %d gaps wider than one day", report.GapCount))
	}
}

func computeStats(series *models.Series) models.QualityStats {
	stats := models.QualityStats{
		DataPoints: series.Len(),
		FirstDate:  series.Bars[0].Timestamp,
		LastDate:   series.Bars[series.Len()-1].Timestamp,
	}

	closeMean, closeStd := meanStd(series.Closes())
	stats.CloseMean = closeMean
	stats.CloseStd = closeStd
	volMean, _ := meanStd(series.Volumes())
	stats.VolumeMean = volMean
	return stats
}

// meanStd ignores NaN entries and uses the sample standard deviation.
func meanStd(values []float64) (mean, std float64) {
	var sum float64
	n := 0
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN(), math.NaN()
	}
	mean = sum / float64(n)
	if n < 2 {
		return mean, 0
	}
	var variance float64
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		diff := v - mean
		variance += diff * diff
	}
	std = math.Sqrt(variance / float64(n-1))
	return mean, std
}
