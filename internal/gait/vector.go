// Package gait turns a recording of 3-axis accelerometer samples into a step
// count. The pipeline estimates the gravity direction from the whole
// recording, projects every sample onto it, band-pass filters the resulting
// vertical signal and counts hysteresis cycles on the filtered output.
package gait

import "gonum.org/v1/gonum/spatial/r3"

// Vec is a single accelerometer reading (x, y, z).
type Vec = r3.Vec

// Sum accumulates all vectors component-wise. An empty slice sums to the
// zero vector.
func Sum(vs []Vec) Vec {
	var s Vec
	for _, v := range vs {
		s = r3.Add(s, v)
	}
	return s
}

// Magnitude returns the Euclidean length of v.
func Magnitude(v Vec) float64 {
	return r3.Norm(v)
}

// Scale multiplies every component of v by a.
func Scale(v Vec, a float64) Vec {
	return r3.Scale(a, v)
}

// Dot returns the scalar product of a and b.
func Dot(a, b Vec) float64 {
	return r3.Dot(a, b)
}
