// Package capture records a complete accelerometer recording from a live
// serial device so it can be analysed as a whole.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/gait.report/internal/gait"
	"github.com/banshee-data/gait.report/internal/ingest"
	"github.com/banshee-data/gait.report/internal/monitoring"
	"github.com/banshee-data/gait.report/internal/serialmux"
	"github.com/banshee-data/gait.report/internal/timeutil"
)

// ErrNoSamples is returned when a capture ends before any sample arrived.
var ErrNoSamples = errors.New("capture ended without samples")

// Options bounds a capture session. At least one of Duration and MaxSamples
// should be set, otherwise the session runs until ctx is cancelled or the
// device stops.
type Options struct {
	Duration   time.Duration
	MaxSamples int
	// ProgressInterval logs the running sample count; zero disables it.
	ProgressInterval time.Duration
	Clock            timeutil.Clock
}

// Session is a finished capture.
type Session struct {
	Samples   []gait.Vec
	Started   time.Time
	Finished  time.Time
	Skipped   int // header, comment and unknown lines
	Malformed int // lines that looked like samples but failed to parse
	Reason    string
}

// Capture subscribes to mux and collects samples until the duration
// elapses, MaxSamples is reached, ctx is cancelled or the subscription
// closes. Cancellation is not an error: whatever was collected is returned.
func Capture(ctx context.Context, mux serialmux.SerialMuxInterface, opts Options) (*Session, error) {
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	id, lines := mux.Subscribe()
	defer mux.Unsubscribe(id)

	var deadline <-chan time.Time
	if opts.Duration > 0 {
		deadline = clock.After(opts.Duration)
	}
	var progress <-chan time.Time
	if opts.ProgressInterval > 0 {
		tk := clock.NewTicker(opts.ProgressInterval)
		defer tk.Stop()
		progress = tk.C()
	}

	s := &Session{Started: clock.Now()}
	finish := func(reason string) (*Session, error) {
		s.Finished = clock.Now()
		s.Reason = reason
		monitoring.Logf("capture stopped (%s): %d samples, %d skipped, %d malformed",
			reason, len(s.Samples), s.Skipped, s.Malformed)
		if len(s.Samples) == 0 {
			return s, ErrNoSamples
		}
		return s, nil
	}

	for {
		select {
		case <-ctx.Done():
			return finish("cancelled")
		case <-deadline:
			return finish("duration elapsed")
		case <-progress:
			monitoring.Logf("capturing: %d samples", len(s.Samples))
		case line, ok := <-lines:
			if !ok {
				return finish("device closed")
			}
			if serialmux.ClassifyLine(line) != serialmux.LineTypeSample {
				s.Skipped++
				continue
			}
			v, err := ingest.ParseLine(line)
			if err != nil {
				s.Malformed++
				monitoring.Debugf("dropping malformed line %q: %v", line, err)
				continue
			}
			s.Samples = append(s.Samples, v)
			if opts.MaxSamples > 0 && len(s.Samples) >= opts.MaxSamples {
				return finish(fmt.Sprintf("reached %d samples", opts.MaxSamples))
			}
		}
	}
}
