package services

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/marketlens/marketlens/internal/models"
)

// maxDiscrepancyPreview caps how many individual mismatches a report
// lists in full; the total count is always exact.
const maxDiscrepancyPreview = 5

// ConsistencyValidator verifies that an OutputDocument faithfully
// reflects the in-memory data it was generated from. In-memory values
// are passed through the same rounding as the document before comparing,
// so the only differences a clean round trip can show are genuine bugs.
type ConsistencyValidator struct {
	tolerance float64
	precision OutputPrecision
}

func NewConsistencyValidator(tolerance float64, precision OutputPrecision) *ConsistencyValidator {
	return &ConsistencyValidator{tolerance: tolerance, precision: precision}
}

// Validate compares the document against the processed data for one
// timeframe. A record-count mismatch is a hard failure with nothing else
// checked, since positional comparison would be meaningless.
func (v *ConsistencyValidator) Validate(doc *models.OutputDocument, data *models.TimeframeData) *models.ConsistencyReport {
	report := &models.ConsistencyReport{
		Timeframe:       doc.Metadata.Timeframe,
		OHLCVMatch:      true,
		IndicatorsMatch: true,
		TimestampMatch:  true,
	}

	series := data.Series
	if len(doc.Bars) != series.Len() {
		report.OHLCVMatch = false
		v.record(report, fmt.Sprintf("record count mismatch: document=%d, series=%d", len(doc.Bars), series.Len()))
		return report
	}

	for i, record := range doc.Bars {
		bar := series.Bars[i]

		docTime, err := time.Parse(time.RFC3339, record.Timestamp)
		if err != nil || !docTime.Truncate(time.Second).Equal(bar.Timestamp.Truncate(time.Second)) {
			report.TimestampMatch = false
			v.record(report, fmt.Sprintf("bar %d: timestamp mismatch: document=%s, series=%s",
				i, record.Timestamp, bar.Timestamp.Format(time.RFC3339)))
		}

		ohlcv := []struct {
			name   string
			value  float64
			places int
		}{
			{"open", bar.Open, v.precision.Price},
			{"high", bar.High, v.precision.Price},
			{"low", bar.Low, v.precision.Price},
			{"close", bar.Close, v.precision.Price},
			{"volume", bar.Volume, 0},
		}
		for j, field := range ohlcv {
			if !v.compare(report, field.name, i, record.OHLCV[j], RoundTo(field.value, field.places)) {
				report.OHLCVMatch = false
			}
		}

		for name, docValue := range record.Indicators {
			memValue := RoundTo(data.Indicators.Value(name, i), v.precision.Indicator)
			if !v.compare(report, name, i, docValue, memValue) {
				report.IndicatorsMatch = false
			}
		}
	}

	return report
}

// compare checks one document value against one in-memory value using
// relative error. A NaN in memory is acceptable only when the document
// carries zero or omitted nothing; any other value disagrees with data
// that does not exist.
func (v *ConsistencyValidator) compare(report *models.ConsistencyReport, field string, index int, docValue, memValue float64) bool {
	if math.IsNaN(memValue) {
		if docValue == 0 {
			return true
		}
		v.record(report, fmt.Sprintf("bar %d %s: document=%g, series=NaN", index, field, docValue))
		return false
	}

	diff := math.Abs(docValue - memValue)
	relative := diff
	if memValue != 0 {
		relative = diff / math.Abs(memValue)
	}
	if relative > v.tolerance {
		v.record(report, fmt.Sprintf("bar %d %s: document=%g, series=%g, deviation=%.4f%%",
			index, field, docValue, memValue, relative*100))
		return false
	}
	return true
}

func (v *ConsistencyValidator) record(report *models.ConsistencyReport, msg string) {
	report.TotalMismatches++
	if len(report.Discrepancies) < maxDiscrepancyPreview {
		report.Discrepancies = append(report.Discrepancies, msg)
	}
}

// SummaryReport renders a human-readable consistency summary across a
// batch of symbols, one block per symbol plus pass-rate totals.
func SummaryReport(results map[string][]*models.ConsistencyReport, now time.Time) string {
	var b strings.Builder
	line := strings.Repeat("=", 60)

	b.WriteString(line + "\n")
	b.WriteString("Data Consistency Report\n")
	b.WriteString(line + "\n")
	b.WriteString(fmt.Sprintf("Generated: %s\n\n", now.Format("2006-01-02 15:04:05")))

	total, passed := 0, 0
	for symbol, reports := range results {
		total++
		b.WriteString(fmt.Sprintf("Symbol: %s\n", symbol))
		b.WriteString(strings.Repeat("-", 40) + "\n")

		allPassed := true
		for _, r := range reports {
			if !r.Passed() {
				allPassed = false
			}
		}
		if allPassed {
			b.WriteString("All consistency checks passed\n")
			passed++
		} else {
			b.WriteString("Inconsistencies found:\n")
			for _, r := range reports {
				if r.Passed() {
					continue
				}
				b.WriteString(fmt.Sprintf("  [%s]\n", r.Timeframe))
				if !r.OHLCVMatch {
					b.WriteString("  - OHLCV values do not match\n")
				}
				if !r.IndicatorsMatch {
					b.WriteString("  - indicator values do not match\n")
				}
				if !r.TimestampMatch {
					b.WriteString("  - timestamps do not match\n")
				}
				for _, d := range r.Discrepancies {
					b.WriteString(fmt.Sprintf("    %s\n", d))
				}
				if r.TotalMismatches > len(r.Discrepancies) {
					b.WriteString(fmt.Sprintf("    ... %d more\n", r.TotalMismatches-len(r.Discrepancies)))
				}
			}
		}
		b.WriteString("\n")
	}

	b.WriteString(line + "\n")
	b.WriteString("Summary\n")
	b.WriteString(line + "\n")
	b.WriteString(fmt.Sprintf("Symbols checked: %d\n", total))
	b.WriteString(fmt.Sprintf("Passed: %d\n", passed))
	b.WriteString(fmt.Sprintf("Failed: %d\n", total-passed))
	if total > 0 {
		b.WriteString(fmt.Sprintf("Pass rate: %.1f%%\n", float64(passed)/float64(total)*100))
	}
	return b.String()
}
