package gait

// BandpassSampleRateHz is the only sample rate the bandpass coefficients are
// valid for.
const BandpassSampleRateHz = 20.0

// 4th order Butterworth bandpass, 1-3 Hz at 20 Hz, as transfer function
// coefficients of an order 8 filter.
var (
	bandpassB = [9]float64{0.00482434, 0, -0.01929737, 0, 0.02894606, 0, -0.01929737, 0, 0.00482434}
	bandpassA = [9]float64{1, -5.41823139, 13.5293587, -20.31926512, 20.07119886, -13.34437166, 5.83210677, -1.53473005, 0.18737949}

	// Preset memory matching these coefficients; it shortens the startup
	// transient compared to a zero state.
	bandpassZ = [8]float64{-0.00482434, -0.00482434, 0.01447303, 0.01447303, -0.01447303, -0.01447303, 0.00482434, 0.00482434}
)

// NewBandpass returns a fresh gait bandpass filter starting from its preset
// state.
func NewBandpass() *Filter {
	f, err := NewFilter(bandpassB[:], bandpassA[:], bandpassZ[:])
	if err != nil {
		panic(err) // constants are fixed
	}
	return f
}

// NewBandpassZeroState returns the same bandpass with zeroed memory. Output
// takes longer to settle at the start of a recording.
func NewBandpassZeroState() *Filter {
	f, err := NewFilter(bandpassB[:], bandpassA[:], make([]float64, len(bandpassZ)))
	if err != nil {
		panic(err)
	}
	return f
}
