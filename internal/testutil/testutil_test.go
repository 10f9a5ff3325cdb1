package testutil

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gait.report/internal/gait"
	"github.com/banshee-data/gait.report/internal/ingest"
)

func TestDefaultWalkCountsSteps(t *testing.T) {
	res, err := gait.Analyze(DefaultWalk().Vectors(), gait.Options{})
	require.NoError(t, err)
	assert.InDelta(t, 60, res.Steps, 2)
}

func TestWalkCSVRoundTrip(t *testing.T) {
	w := DefaultWalk()
	w.Samples = 5
	got, err := ingest.ReadCSV(strings.NewReader(w.CSV()), ingest.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, w.Vectors(), got)
}

func TestStationary(t *testing.T) {
	res, err := gait.Analyze(Stationary(100), gait.Options{})
	require.NoError(t, err)
	// the preset filter state is the steady state for a unit input
	assert.Less(t, res.RMS, 1e-9)
}

func TestNewLoopbackRequest(t *testing.T) {
	req := NewLoopbackRequest(http.MethodGet, "/debug/", nil)
	assert.Equal(t, "127.0.0.1:40000", req.RemoteAddr)
}
