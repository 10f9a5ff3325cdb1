package gait

// DefaultThresholdFactor scales the filtered RMS into the hysteresis band.
const DefaultThresholdFactor = 0.5

// Thresholds is the hysteresis band used by Counter. Callers supply
// Hi > 0 > Lo.
type Thresholds struct {
	Hi float64 `json:"hi"`
	Lo float64 `json:"lo"`
}

// NewThresholds returns the symmetric band (k*rms, -k*rms).
func NewThresholds(rms, k float64) Thresholds {
	hi := rms * k
	return Thresholds{Hi: hi, Lo: -hi}
}

// State is the position of a Counter in its cycle.
type State int

const (
	// AboveWaiting waits for the signal to rise above Hi.
	AboveWaiting State = iota
	// BelowWaiting waits for the signal to fall below Lo.
	BelowWaiting
)

func (s State) String() string {
	switch s {
	case AboveWaiting:
		return "above-waiting"
	case BelowWaiting:
		return "below-waiting"
	default:
		return "unknown"
	}
}

// Counter counts full excursions: a rise above Hi followed later by a fall
// below Lo. The zero value is not usable; use NewCounter.
type Counter struct {
	th    Thresholds
	state State
	count int
}

// NewCounter returns a counter in the AboveWaiting state with no steps.
func NewCounter(th Thresholds) *Counter {
	return &Counter{th: th, state: AboveWaiting}
}

// Step consumes one filtered value and reports whether it completed a cycle.
func (c *Counter) Step(v float64) bool {
	switch c.state {
	case AboveWaiting:
		if v > c.th.Hi {
			c.state = BelowWaiting
		}
	case BelowWaiting:
		if v < c.th.Lo {
			c.state = AboveWaiting
			c.count++
			return true
		}
	}
	return false
}

// Count returns the number of completed cycles so far.
func (c *Counter) Count() int { return c.count }

// State returns the current state.
func (c *Counter) State() State { return c.state }

// CountSteps runs a fresh Counter over xs and returns the final count.
func CountSteps(xs []float64, th Thresholds) int {
	c := NewCounter(th)
	for _, v := range xs {
		c.Step(v)
	}
	return c.Count()
}

// StepIndices returns the index of the sample that completed each cycle.
func StepIndices(xs []float64, th Thresholds) []int {
	c := NewCounter(th)
	var idx []int
	for i, v := range xs {
		if c.Step(v) {
			idx = append(idx, i)
		}
	}
	return idx
}
