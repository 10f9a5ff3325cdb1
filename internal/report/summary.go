// Package report renders analysis results as text, JSON-ready summaries,
// static PNG plots and interactive HTML charts.
package report

import (
	"fmt"
	"io"

	"github.com/banshee-data/gait.report/internal/gait"
	"github.com/banshee-data/gait.report/internal/units"
)

// Summary is the scalar outcome of an analysis, with RMS and thresholds
// expressed in Units.
type Summary struct {
	RunID           string          `json:"run_id,omitempty"`
	Samples         int             `json:"samples"`
	Gravity         [3]float64      `json:"gravity"`
	RMS             float64         `json:"rms"`
	Thresholds      gait.Thresholds `json:"thresholds"`
	Units           string          `json:"units"`
	Steps           int             `json:"steps"`
	DurationSeconds float64         `json:"duration_s"`
	CadenceSPM      float64         `json:"cadence_spm"`
}

// NewSummary converts res, whose samples were recorded in unit from, into a
// Summary reported in unit to.
func NewSummary(res *gait.Result, from, to string) (Summary, error) {
	conv := func(v float64) (float64, error) { return units.ConvertAccel(v, from, to) }
	rms, err := conv(res.RMS)
	if err != nil {
		return Summary{}, err
	}
	hi, err := conv(res.Thresholds.Hi)
	if err != nil {
		return Summary{}, err
	}
	lo, err := conv(res.Thresholds.Lo)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		Samples:         res.Samples,
		Gravity:         [3]float64{res.Gravity.X, res.Gravity.Y, res.Gravity.Z},
		RMS:             rms,
		Thresholds:      gait.Thresholds{Hi: hi, Lo: lo},
		Units:           to,
		Steps:           res.Steps,
		DurationSeconds: res.Duration.Seconds(),
		CadenceSPM:      res.CadenceSPM,
	}, nil
}

// WriteText prints the four-line console report: sample count, unit gravity
// direction, filtered RMS and step count.
func (s Summary) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		"vectors read: %d\nnormalized gravity vector: %f %f %f\nrms: %f\ncnt: %d\n",
		s.Samples, s.Gravity[0], s.Gravity[1], s.Gravity[2], s.RMS, s.Steps)
	return err
}

// WriteDetails prints the optional lines that follow the console report.
func (s Summary) WriteDetails(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		"units: %s\nthresholds: %f %f\nduration: %.2fs\ncadence: %.1f steps/min\n",
		units.Symbol(s.Units), s.Thresholds.Hi, s.Thresholds.Lo, s.DurationSeconds, s.CadenceSPM)
	return err
}
