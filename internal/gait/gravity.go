package gait

import (
	"fmt"
	"math"
)

// EstimateGravity returns the unit "down" direction of the recording: the
// normalised sum of every sample.
//
// This assumes the non-gravitational acceleration averages out to zero over
// the recording. Motion segments are not excluded, so long one-sided
// accelerations bias the estimate.
func EstimateGravity(samples []Vec) (Vec, error) {
	s := Sum(samples)
	m := Magnitude(s)
	if m == 0 || math.IsNaN(m) || math.IsInf(m, 0) {
		return Vec{}, fmt.Errorf("estimate gravity over %d samples: %w", len(samples), ErrDegenerateInput)
	}
	return Scale(s, 1/m), nil
}

// Project reduces each sample to its component along dir. The output has the
// same length and order as samples.
func Project(samples []Vec, dir Vec) []float64 {
	out := make([]float64, len(samples))
	for i, v := range samples {
		out[i] = Dot(v, dir)
	}
	return out
}
