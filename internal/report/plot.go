package report

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/gait.report/internal/fsutil"
	"github.com/banshee-data/gait.report/internal/gait"
	"github.com/banshee-data/gait.report/internal/security"
)

const (
	plotWidth  = 14 * vg.Inch
	plotHeight = 6 * vg.Inch
)

var (
	verticalColor  = color.RGBA{R: 160, G: 160, B: 160, A: 255}
	filteredColor  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	thresholdColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	stepColor      = color.RGBA{R: 44, G: 160, B: 44, A: 255}
)

func seriesXYs(ys []float64, rate float64) plotter.XYs {
	pts := make(plotter.XYs, len(ys))
	for i, y := range ys {
		pts[i] = plotter.XY{X: float64(i) / rate, Y: y}
	}
	return pts
}

// NewPlot draws the vertical and filtered signals, the hysteresis band and a
// marker at every counted step against time in seconds.
func NewPlot(res *gait.Result, title string, rateHz float64) (*plot.Plot, error) {
	if rateHz <= 0 {
		rateHz = gait.BandpassSampleRateHz
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = "acceleration"
	p.Add(plotter.NewGrid())

	vertical, err := plotter.NewLine(seriesXYs(centred(res.Vertical), rateHz))
	if err != nil {
		return nil, fmt.Errorf("vertical series: %w", err)
	}
	vertical.Color = verticalColor
	vertical.Width = vg.Points(0.75)

	filtered, err := plotter.NewLine(seriesXYs(res.Filtered, rateHz))
	if err != nil {
		return nil, fmt.Errorf("filtered series: %w", err)
	}
	filtered.Color = filteredColor
	filtered.Width = vg.Points(1)

	p.Add(vertical, filtered)
	p.Legend.Add("vertical (mean removed)", vertical)
	p.Legend.Add("filtered", filtered)

	end := float64(len(res.Filtered)) / rateHz
	for _, level := range []float64{res.Thresholds.Hi, res.Thresholds.Lo} {
		l, err := plotter.NewLine(plotter.XYs{{X: 0, Y: level}, {X: end, Y: level}})
		if err != nil {
			return nil, fmt.Errorf("threshold line: %w", err)
		}
		l.Color = thresholdColor
		l.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(l)
		if level == res.Thresholds.Hi {
			p.Legend.Add("thresholds", l)
		}
	}

	if len(res.StepIndices) > 0 {
		pts := make(plotter.XYs, len(res.StepIndices))
		for i, idx := range res.StepIndices {
			pts[i] = plotter.XY{X: float64(idx) / rateHz, Y: res.Filtered[idx]}
		}
		steps, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, fmt.Errorf("step markers: %w", err)
		}
		steps.GlyphStyle.Color = stepColor
		steps.GlyphStyle.Radius = vg.Points(3)
		steps.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(steps)
		p.Legend.Add(fmt.Sprintf("steps (%d)", res.Steps), steps)
	}
	p.Legend.Top = true
	return p, nil
}

// centred removes the mean so the vertical signal shares an axis with the
// zero-centred filter output.
func centred(xs []float64) []float64 {
	if len(xs) == 0 {
		return nil
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = x - mean
	}
	return out
}

// WritePNG renders the analysis plot as PNG to w.
func WritePNG(w io.Writer, res *gait.Result, title string, rateHz float64) error {
	p, err := NewPlot(res, title, rateHz)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(plotWidth, plotHeight, "png")
	if err != nil {
		return fmt.Errorf("failed to render plot: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// SavePNG writes the analysis plot to path after checking that path stays
// under the working or temp directory.
func SavePNG(fsys fsutil.FileSystem, path string, res *gait.Result, title string, rateHz float64) error {
	if err := security.ValidateOutputPath(path); err != nil {
		return err
	}
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create plot file: %w", err)
	}
	if err := WritePNG(f, res, title, rateHz); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
