package render

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/sirupsen/logrus"

	"github.com/marketlens/marketlens/internal/models"
)

// Page geometry in millimetres for a landscape A4 chart. The price panel
// sits above the volume panel with a shared horizontal axis.
const (
	pageLeft    = 15.0
	pageRight   = 282.0
	priceTop    = 25.0
	priceBottom = 140.0
	volumeTop   = 150.0
	volumeBot   = 195.0
)

// maLineColors maps moving-average overlays to their draw colors.
var maLineColors = map[string][3]int{
	models.IndicatorMA5:  {230, 126, 34},
	models.IndicatorMA20: {52, 152, 219},
	models.IndicatorMA60: {155, 89, 182},
}

// CandlestickRenderer draws one timeframe of bars and indicator overlays
// into a single-page PDF. The renderer reads the exact dataset the
// document generator reads; it never refetches or recomputes anything.
type CandlestickRenderer struct {
	logger *logrus.Logger
}

func NewCandlestickRenderer(logger *logrus.Logger) *CandlestickRenderer {
	return &CandlestickRenderer{logger: logger}
}

// Render produces the chart artifact for one timeframe.
func (r *CandlestickRenderer) Render(symbol models.Symbol, data *models.TimeframeData) (*models.ChartArtifact, error) {
	series := data.Series
	if series.Empty() {
		return nil, fmt.Errorf("cannot render empty series for %s", symbol.Canonical)
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	title := fmt.Sprintf("%s (%s) - %s", symbol.Canonical, symbol.Market, series.Timeframe)
	pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")

	priceScale, volumeScale := scales(series)
	r.drawAxes(pdf, series, priceScale)
	r.drawCandles(pdf, series, priceScale, volumeScale)
	r.drawMAOverlays(pdf, series, data.Indicators, priceScale)
	r.drawLegend(pdf, data)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("writing chart PDF: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"symbol":    symbol.Canonical,
		"timeframe": series.Timeframe,
		"bytes":     buf.Len(),
	}).Debug("Rendered chart")

	return &models.ChartArtifact{
		Timeframe: series.Timeframe,
		Format:    "pdf",
		Data:      buf.Bytes(),
	}, nil
}

// linearScale maps a data range onto a vertical span of the page.
type linearScale struct {
	min, max    float64
	top, bottom float64
}

func (s linearScale) y(v float64) float64 {
	if s.max == s.min {
		return (s.top + s.bottom) / 2
	}
	return s.bottom - (v-s.min)/(s.max-s.min)*(s.bottom-s.top)
}

func scales(series *models.Series) (price, volume linearScale) {
	price = linearScale{min: math.Inf(1), max: math.Inf(-1), top: priceTop, bottom: priceBottom}
	volume = linearScale{min: 0, max: 0, top: volumeTop, bottom: volumeBot}

	for _, bar := range series.Bars {
		if !math.IsNaN(bar.Low) && bar.Low < price.min {
			price.min = bar.Low
		}
		if !math.IsNaN(bar.High) && bar.High > price.max {
			price.max = bar.High
		}
		if !math.IsNaN(bar.Volume) && bar.Volume > volume.max {
			volume.max = bar.Volume
		}
	}
	// Breathing room so extremes do not touch the frame.
	pad := (price.max - price.min) * 0.05
	price.min -= pad
	price.max += pad
	return price, volume
}

func barSlot(i, n int) (x, width float64) {
	slot := (pageRight - pageLeft) / float64(n)
	width = slot * 0.7
	x = pageLeft + float64(i)*slot + (slot-width)/2
	return x, width
}

func (r *CandlestickRenderer) drawAxes(pdf *fpdf.Fpdf, series *models.Series, price linearScale) {
	pdf.SetDrawColor(120, 120, 120)
	pdf.SetLineWidth(0.2)
	pdf.Rect(pageLeft, priceTop, pageRight-pageLeft, priceBottom-priceTop, "D")
	pdf.Rect(pageLeft, volumeTop, pageRight-pageLeft, volumeBot-volumeTop, "D")

	pdf.SetFont("Arial", "", 7)
	pdf.SetTextColor(80, 80, 80)
	for i := 0; i <= 4; i++ {
		v := price.min + (price.max-price.min)*float64(i)/4
		y := price.y(v)
		pdf.SetDrawColor(220, 220, 220)
		pdf.Line(pageLeft, y, pageRight, y)
		pdf.Text(pageLeft-13, y+1, fmt.Sprintf("%.2f", v))
	}

	// Date labels: first, middle, last bar.
	n := series.Len()
	for _, i := range []int{0, n / 2, n - 1} {
		x, w := barSlot(i, n)
		pdf.Text(x+w/2-8, priceBottom+5, series.Bars[i].Timestamp.Format("2006-01-02"))
	}
}

func (r *CandlestickRenderer) drawCandles(pdf *fpdf.Fpdf, series *models.Series, price, volume linearScale) {
	n := series.Len()
	for i, bar := range series.Bars {
		x, w := barSlot(i, n)
		up := bar.Close >= bar.Open

		if up {
			pdf.SetFillColor(217, 83, 79)
			pdf.SetDrawColor(217, 83, 79)
		} else {
			pdf.SetFillColor(92, 184, 92)
			pdf.SetDrawColor(92, 184, 92)
		}

		// Wick.
		pdf.SetLineWidth(0.2)
		pdf.Line(x+w/2, price.y(bar.High), x+w/2, price.y(bar.Low))

		// Body; a doji still gets a visible sliver.
		bodyTop := price.y(math.Max(bar.Open, bar.Close))
		bodyBot := price.y(math.Min(bar.Open, bar.Close))
		if bodyBot-bodyTop < 0.3 {
			bodyBot = bodyTop + 0.3
		}
		pdf.Rect(x, bodyTop, w, bodyBot-bodyTop, "F")

		if !math.IsNaN(bar.Volume) && volume.max > 0 {
			vy := volumeBot - bar.Volume/volume.max*(volumeBot-volumeTop)
			pdf.Rect(x, vy, w, volumeBot-vy, "F")
		}
	}
}

func (r *CandlestickRenderer) drawMAOverlays(pdf *fpdf.Fpdf, series *models.Series, frame models.IndicatorFrame, price linearScale) {
	n := series.Len()
	pdf.SetLineWidth(0.35)
	for name, color := range maLineColors {
		pdf.SetDrawColor(color[0], color[1], color[2])
		prevDefined := false
		var prevX, prevY float64
		for i := 0; i < n; i++ {
			if !frame.Defined(name, i) {
				prevDefined = false
				continue
			}
			x, w := barSlot(i, n)
			cx, cy := x+w/2, price.y(frame.Value(name, i))
			if prevDefined {
				pdf.Line(prevX, prevY, cx, cy)
			}
			prevX, prevY, prevDefined = cx, cy, true
		}
	}
}

func (r *CandlestickRenderer) drawLegend(pdf *fpdf.Fpdf, data *models.TimeframeData) {
	pdf.SetFont("Arial", "", 8)
	x := pageLeft
	for _, name := range []string{models.IndicatorMA5, models.IndicatorMA20, models.IndicatorMA60} {
		color := maLineColors[name]
		pdf.SetDrawColor(color[0], color[1], color[2])
		pdf.SetLineWidth(0.6)
		pdf.Line(x, 20, x+6, 20)
		pdf.SetTextColor(60, 60, 60)
		pdf.Text(x+7, 21.5, name)
		x += 22
	}

	if s := data.Signals; s != nil {
		var tags []string
		if s.GoldenCross {
			tags = append(tags, "golden cross")
		}
		if s.DeathCross {
			tags = append(tags, "death cross")
		}
		if s.VolumeSpike {
			tags = append(tags, fmt.Sprintf("volume spike %.1fx", s.VolumeRatio))
		}
		if s.UpperBreakout {
			tags = append(tags, "upper band breakout")
		}
		if s.LowerBreakout {
			tags = append(tags, "lower band breakout")
		}
		if len(tags) > 0 {
			pdf.SetTextColor(180, 30, 30)
			pdf.Text(x+10, 21.5, "signals: "+strings.Join(tags, ", "))
		}
	}
}
