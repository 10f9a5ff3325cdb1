// Package ingest reads and writes accelerometer recordings in the CSV layout
// produced by the logger: header line(s) followed by one "x,y,z" sample per
// line.
package ingest

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/gait.report/internal/fsutil"
	"github.com/banshee-data/gait.report/internal/gait"
	"github.com/banshee-data/gait.report/internal/monitoring"
)

// MaxLineSize bounds a single line of a recording.
const MaxLineSize = 1024

// Header is written as the first line of every recording this package creates.
const Header = "x,y,z"

// Options controls how a recording is read.
type Options struct {
	// HeaderLines is the number of leading lines skipped before samples.
	HeaderLines int
	// MaxSamples caps the number of samples kept; lines past the cap are
	// counted and ignored. Zero keeps every sample.
	MaxSamples int
}

// DefaultOptions skips one header line and keeps every sample.
func DefaultOptions() Options {
	return Options{HeaderLines: 1}
}

// ParseLine parses one "x,y,z" sample. Fields may carry surrounding spaces.
// Trailing fields such as a logger timestamp are ignored.
func ParseLine(line string) (gait.Vec, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) < 3 {
		return gait.Vec{}, fmt.Errorf("expected at least 3 fields, got %d", len(fields))
	}
	var xyz [3]float64
	for i, f := range fields[:3] {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return gait.Vec{}, fmt.Errorf("failed to parse field %d: %w", i+1, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return gait.Vec{}, fmt.Errorf("field %d is not finite: %q", i+1, f)
		}
		xyz[i] = v
	}
	return gait.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}

// ReadCSV reads a complete recording from r. Blank lines are skipped;
// malformed lines fail with their line number.
func ReadCSV(r io.Reader, opts Options) ([]gait.Vec, error) {
	scan := bufio.NewScanner(r)
	scan.Buffer(make([]byte, 0, MaxLineSize), MaxLineSize)

	var (
		samples []gait.Vec
		lineNo  int
		dropped int
	)
	for scan.Scan() {
		lineNo++
		if lineNo <= opts.HeaderLines {
			continue
		}
		line := scan.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if opts.MaxSamples > 0 && len(samples) >= opts.MaxSamples {
			dropped++
			continue
		}
		v, err := ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		samples = append(samples, v)
	}
	if err := scan.Err(); err != nil {
		return nil, fmt.Errorf("failed to read recording at line %d: %w", lineNo+1, err)
	}
	if dropped > 0 {
		monitoring.Logf("recording exceeds %d samples, ignored %d trailing lines", opts.MaxSamples, dropped)
	}
	return samples, nil
}

// ReadFile opens path on fsys and reads it with ReadCSV.
func ReadFile(fsys fsutil.FileSystem, path string, opts Options) ([]gait.Vec, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording: %w", err)
	}
	defer f.Close()

	samples, err := ReadCSV(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	monitoring.Debugf("read %d samples from %s", len(samples), path)
	return samples, nil
}

// WriteCSV writes samples with a single header line, so ReadCSV with
// DefaultOptions reads them back unchanged.
func WriteCSV(w io.Writer, samples []gait.Vec) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(Header + "\n"); err != nil {
		return err
	}
	for _, v := range samples {
		if _, err := bw.WriteString(FormatLine(v) + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile creates path on fsys and writes samples with WriteCSV.
func WriteFile(fsys fsutil.FileSystem, path string, samples []gait.Vec) error {
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create recording: %w", err)
	}
	if err := WriteCSV(f, samples); err != nil {
		f.Close()
		return fmt.Errorf("failed to write recording: %w", err)
	}
	return f.Close()
}

// FormatLine renders v as a recording line with the shortest exact
// representation of each component.
func FormatLine(v gait.Vec) string {
	return strconv.FormatFloat(v.X, 'g', -1, 64) + "," +
		strconv.FormatFloat(v.Y, 'g', -1, 64) + "," +
		strconv.FormatFloat(v.Z, 'g', -1, 64)
}
