package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/gait.report/internal/gait"
)

// NewChart builds an interactive line chart of the filtered signal with the
// hysteresis band as mark lines and a mark point on every counted step.
func NewChart(res *gait.Result, title string, rateHz float64) *charts.Line {
	if rateHz <= 0 {
		rateHz = gait.BandpassSampleRateHz
	}
	x := make([]string, len(res.Filtered))
	filtered := make([]opts.LineData, len(res.Filtered))
	vertical := make([]opts.LineData, len(res.Filtered))
	mean := 0.0
	for _, v := range res.Vertical {
		mean += v
	}
	if len(res.Vertical) > 0 {
		mean /= float64(len(res.Vertical))
	}
	for i, y := range res.Filtered {
		x[i] = strconv.FormatFloat(float64(i)/rateHz, 'f', 2, 64)
		filtered[i] = opts.LineData{Value: y}
		if i < len(res.Vertical) {
			vertical[i] = opts.LineData{Value: res.Vertical[i] - mean}
		}
	}

	marks := make([]opts.MarkPointNameCoordItem, 0, len(res.StepIndices))
	for n, idx := range res.StepIndices {
		marks = append(marks, opts.MarkPointNameCoordItem{
			Name:       fmt.Sprintf("step %d", n+1),
			Coordinate: []interface{}{x[idx], res.Filtered[idx]},
			Symbol:     "pin",
			SymbolSize: 20,
		})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "560px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("samples=%d steps=%d rms=%.4f cadence=%.1f/min", res.Samples, res.Steps, res.RMS, res.CadenceSPM),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "5%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "time (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "acceleration", NameLocation: "middle", NameGap: 40}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)
	line.SetXAxis(x).
		AddSeries("vertical", vertical,
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		).
		AddSeries("filtered", filtered,
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
			charts.WithMarkLineNameYAxisItemOpts(
				opts.MarkLineNameYAxisItem{Name: "hi", YAxis: res.Thresholds.Hi},
				opts.MarkLineNameYAxisItem{Name: "lo", YAxis: res.Thresholds.Lo},
			),
			charts.WithMarkPointNameCoordItemOpts(marks...),
		)
	return line
}

// WriteChartHTML renders the chart as a standalone HTML page.
func WriteChartHTML(w io.Writer, res *gait.Result, title string, rateHz float64) error {
	if err := NewChart(res, title, rateHz).Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
