package gait

import "errors"

var (
	// ErrDegenerateInput is returned when the samples sum to a vector with
	// zero (or non-finite) magnitude, so no gravity direction exists.
	ErrDegenerateInput = errors.New("degenerate input: summed acceleration has zero magnitude")

	// ErrEmptyInput is returned by operations that need at least one value.
	ErrEmptyInput = errors.New("empty input")

	// ErrInvalidOrder is returned when filter coefficients do not describe a
	// filter of non-negative order with matching state length.
	ErrInvalidOrder = errors.New("invalid filter order")
)
