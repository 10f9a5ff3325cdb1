package gait

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// RMS returns the root-mean-square of xs.
func RMS(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return 0, fmt.Errorf("rms: %w", ErrEmptyInput)
	}
	return math.Sqrt(floats.Dot(xs, xs) / float64(len(xs))), nil
}
