package gait

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRMS(t *testing.T) {
	t.Parallel()

	for _, c := range []float64{0, 1, -2.5, 0.00482434, 1e3} {
		for _, n := range []int{1, 2, 7, 100, 2048} {
			xs := make([]float64, n)
			for i := range xs {
				xs[i] = c
			}
			got, err := RMS(xs)
			require.NoError(t, err)
			want := c
			if want < 0 {
				want = -want
			}
			assert.InDelta(t, want, got, 1e-12*(1+want), "c=%v n=%d", c, n)
		}
	}

	got, err := RMS([]float64{3, -4, 3, -4})
	require.NoError(t, err)
	assert.InDelta(t, 3.5355339059327378, got, 1e-15)

	_, err = RMS(nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}
