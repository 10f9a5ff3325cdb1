package capture

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gait.report/internal/gait"
	"github.com/banshee-data/gait.report/internal/serialmux"
	"github.com/banshee-data/gait.report/internal/timeutil"
)

func startMux(t *testing.T) (*serialmux.TestableSerialPort, *serialmux.SerialMux[*serialmux.TestableSerialPort]) {
	t.Helper()
	port := serialmux.NewTestableSerialPort()
	mux := serialmux.NewSerialMux(port)
	ctx, cancel := context.WithCancel(context.Background())
	go mux.Monitor(ctx)
	t.Cleanup(func() {
		cancel()
		mux.Close()
	})
	return port, mux
}

func TestCaptureMaxSamples(t *testing.T) {
	port, mux := startMux(t)

	done := make(chan struct{})
	var (
		s   *Session
		err error
	)
	go func() {
		s, err = Capture(context.Background(), mux, Options{MaxSamples: 3})
		close(done)
	}()

	// the subscription must exist before lines flow
	time.Sleep(20 * time.Millisecond)
	port.AddReadData("x,y,z\n# battery ok\n0,0,1\n0.1,0,0.9\n1,,2\n-0.1,0,1.1\n0,0,5\n")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("capture did not finish")
	}
	require.NoError(t, err)
	assert.Equal(t, []gait.Vec{{Z: 1}, {X: 0.1, Z: 0.9}, {X: -0.1, Z: 1.1}}, s.Samples)
	assert.Equal(t, 2, s.Skipped)
	assert.Equal(t, 1, s.Malformed)
	assert.Equal(t, "reached 3 samples", s.Reason)
}

func TestCaptureDuration(t *testing.T) {
	port, mux := startMux(t)
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	done := make(chan struct{})
	var (
		s   *Session
		err error
	)
	go func() {
		s, err = Capture(context.Background(), mux, Options{Duration: time.Minute, Clock: clock})
		close(done)
	}()

	require.Eventually(t, func() bool { return clock.Waiters() == 1 }, 2*time.Second, time.Millisecond)
	port.AddReadData("0,0,1\n0,0,1\n")
	time.Sleep(50 * time.Millisecond)
	clock.Advance(time.Minute)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("capture did not stop at deadline")
	}
	require.NoError(t, err)
	assert.Len(t, s.Samples, 2)
	assert.Equal(t, "duration elapsed", s.Reason)
	assert.Equal(t, time.Minute, s.Finished.Sub(s.Started))
}

func TestCaptureCancelledWithoutSamples(t *testing.T) {
	_, mux := startMux(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := Capture(ctx, mux, Options{})
	assert.ErrorIs(t, err, ErrNoSamples)
	assert.Equal(t, "cancelled", s.Reason)
}

func TestCaptureDeviceClosed(t *testing.T) {
	d := serialmux.NewDisabledSerialMux()
	go func() {
		time.Sleep(20 * time.Millisecond)
		d.Close()
	}()

	s, err := Capture(context.Background(), d, Options{})
	assert.ErrorIs(t, err, ErrNoSamples)
	assert.Equal(t, "device closed", s.Reason)
}
