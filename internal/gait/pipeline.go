package gait

import (
	"fmt"
	"time"
)

// Options tunes Analyze. The zero value reproduces the reference pipeline.
type Options struct {
	// ThresholdFactor scales the filtered RMS into the hysteresis band.
	// Zero selects DefaultThresholdFactor.
	ThresholdFactor float64

	// ZeroState starts the bandpass from zeroed memory instead of its preset.
	ZeroState bool

	// SampleRateHz is the recording rate used for Duration and CadenceSPM.
	// It does not change the filter, which is designed for 20 Hz. Zero
	// selects BandpassSampleRateHz.
	SampleRateHz float64
}

func (o Options) thresholdFactor() float64 {
	if o.ThresholdFactor == 0 {
		return DefaultThresholdFactor
	}
	return o.ThresholdFactor
}

func (o Options) sampleRate() float64 {
	if o.SampleRateHz <= 0 {
		return BandpassSampleRateHz
	}
	return o.SampleRateHz
}

// Result holds every intermediate and final value of one analysis.
type Result struct {
	Samples     int
	Gravity     Vec
	Vertical    []float64
	Filtered    []float64
	RMS         float64
	Thresholds  Thresholds
	Steps       int
	StepIndices []int
	Duration    time.Duration
	CadenceSPM  float64
}

// Analyze runs the whole pipeline over a complete recording. Filter and
// counter state are created per call, so concurrent calls are independent.
func Analyze(samples []Vec, opts Options) (*Result, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("analyze: %w", ErrEmptyInput)
	}

	g, err := EstimateGravity(samples)
	if err != nil {
		return nil, err
	}
	vertical := Project(samples, g)

	f := NewBandpass()
	if opts.ZeroState {
		f = NewBandpassZeroState()
	}
	filtered, err := f.Apply(vertical)
	if err != nil {
		return nil, err
	}

	rms, err := RMS(filtered)
	if err != nil {
		return nil, err
	}
	th := NewThresholds(rms, opts.thresholdFactor())
	idx := StepIndices(filtered, th)

	res := &Result{
		Samples:     len(samples),
		Gravity:     g,
		Vertical:    vertical,
		Filtered:    filtered,
		RMS:         rms,
		Thresholds:  th,
		Steps:       len(idx),
		StepIndices: idx,
		Duration:    time.Duration(float64(len(samples)) * float64(time.Second) / opts.sampleRate()),
	}
	if res.Duration > 0 {
		res.CadenceSPM = float64(res.Steps) / res.Duration.Minutes()
	}
	return res, nil
}
