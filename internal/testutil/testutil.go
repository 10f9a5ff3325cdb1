// Package testutil provides recording fixtures and request helpers shared by
// tests across packages.
package testutil

import (
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/banshee-data/gait.report/internal/gait"
	"github.com/banshee-data/gait.report/internal/ingest"
)

// Walk describes a synthetic walking recording: a unit gravity vector along
// Down plus a sinusoidal vertical bounce.
type Walk struct {
	Samples   int
	RateHz    float64
	StepHz    float64
	Amplitude float64
	Down      gait.Vec
}

// DefaultWalk is thirty seconds of walking at 120 steps per minute.
func DefaultWalk() Walk {
	return Walk{
		Samples:   600,
		RateHz:    gait.BandpassSampleRateHz,
		StepHz:    2,
		Amplitude: 0.3,
		Down:      gait.Vec{X: 0.6, Z: 0.8},
	}
}

// Vectors renders the walk as accelerometer samples.
func (w Walk) Vectors() []gait.Vec {
	out := make([]gait.Vec, w.Samples)
	for i := range out {
		bounce := w.Amplitude * math.Sin(2*math.Pi*w.StepHz*float64(i)/w.RateHz)
		out[i] = gait.Scale(w.Down, 1+bounce)
	}
	return out
}

// CSV renders the walk as a recording file with an x,y,z header.
func (w Walk) CSV() string {
	var b strings.Builder
	if err := ingest.WriteCSV(&b, w.Vectors()); err != nil {
		panic(err)
	}
	return b.String()
}

// Stationary returns n samples of a device lying still with gravity on z.
func Stationary(n int) []gait.Vec {
	out := make([]gait.Vec, n)
	for i := range out {
		out[i] = gait.Vec{Z: 1}
	}
	return out
}

// NewLoopbackRequest builds a request that tsweb debug handlers accept.
func NewLoopbackRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.RemoteAddr = "127.0.0.1:40000"
	return req
}
