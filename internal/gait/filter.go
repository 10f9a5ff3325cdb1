package gait

import "fmt"

// Filter is a causal linear recursive filter realised in transposed direct
// form II. The state z has one entry per order and is owned by a single run;
// build a new Filter (or call Reset) before filtering an unrelated signal.
type Filter struct {
	b    []float64
	a    []float64 // a[0] is assumed to be 1 and never read
	z    []float64
	init []float64
}

// NewFilter builds a filter of order len(b)-1 from feed-forward coefficients
// b, feedback coefficients a (a[0] normalised to 1) and initial state z. The
// slices are copied.
func NewFilter(b, a, z []float64) (*Filter, error) {
	order := len(b) - 1
	if order < 0 {
		return nil, fmt.Errorf("%w: no feed-forward coefficients", ErrInvalidOrder)
	}
	if len(a) != len(b) {
		return nil, fmt.Errorf("%w: %d feedback coefficients for order %d", ErrInvalidOrder, len(a), order)
	}
	if len(z) != order {
		return nil, fmt.Errorf("%w: state length %d for order %d", ErrInvalidOrder, len(z), order)
	}
	f := &Filter{
		b:    append([]float64(nil), b...),
		a:    append([]float64(nil), a...),
		z:    append([]float64(nil), z...),
		init: append([]float64(nil), z...),
	}
	return f, nil
}

// Order returns the number of state variables.
func (f *Filter) Order() int { return len(f.b) - 1 }

// State returns a copy of the current filter memory.
func (f *Filter) State() []float64 {
	return append([]float64(nil), f.z...)
}

// Reset restores the state the filter was constructed with.
func (f *Filter) Reset() {
	copy(f.z, f.init)
}

// Step filters one sample and advances the state.
func (f *Filter) Step(x float64) float64 {
	k := len(f.b) - 1
	if k == 0 {
		return f.b[0] * x
	}

	y := f.b[0]*x + f.z[0]
	// Ascending order: z[i] is read before it is overwritten on the next pass.
	for i := 1; i < k; i++ {
		f.z[i-1] = f.b[i]*x + f.z[i] - f.a[i]*y
	}
	f.z[k-1] = f.b[k]*x - f.a[k]*y
	return y
}

// Apply filters xs in order, carrying state across samples, and returns a
// new slice of the same length.
func (f *Filter) Apply(xs []float64) ([]float64, error) {
	if len(xs) == 0 {
		return nil, fmt.Errorf("filter: %w", ErrEmptyInput)
	}
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = f.Step(x)
	}
	return ys, nil
}
