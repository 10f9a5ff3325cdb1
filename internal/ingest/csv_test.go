package ingest

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gait.report/internal/fsutil"
	"github.com/banshee-data/gait.report/internal/gait"
	"github.com/banshee-data/gait.report/internal/monitoring"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    gait.Vec
		wantErr string
	}{
		{"plain", "0.1,-0.2,0.98", gait.Vec{X: 0.1, Y: -0.2, Z: 0.98}, ""},
		{"spaces", " 1 , 2 ,3 \r", gait.Vec{X: 1, Y: 2, Z: 3}, ""},
		{"exponent", "1e-3,0,-9.8E0", gait.Vec{X: 0.001, Z: -9.8}, ""},
		{"too few", "1,2", gait.Vec{}, "expected at least 3 fields"},
		{"timestamp column", "1,2,3,1697500000.25", gait.Vec{X: 1, Y: 2, Z: 3}, ""},
		{"unparsed trailing field", "0.5,0,-1,t=12", gait.Vec{X: 0.5, Z: -1}, ""},
		{"not a number", "1,abc,3", gait.Vec{}, "field 2"},
		{"nan", "NaN,0,0", gait.Vec{}, "not finite"},
		{"inf", "0,0,+Inf", gait.Vec{}, "not finite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLine(tt.line)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadCSV(t *testing.T) {
	in := "ax,ay,az\n0,0,1\n\n0.5,0.25,-1\n1,1,1\n"

	got, err := ReadCSV(strings.NewReader(in), DefaultOptions())
	require.NoError(t, err)
	want := []gait.Vec{{Z: 1}, {X: 0.5, Y: 0.25, Z: -1}, {X: 1, Y: 1, Z: 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("samples mismatch (-want +got):\n%s", diff)
	}

	t.Run("no header", func(t *testing.T) {
		got, err := ReadCSV(strings.NewReader("1,2,3\n"), Options{})
		require.NoError(t, err)
		assert.Equal(t, []gait.Vec{{X: 1, Y: 2, Z: 3}}, got)
	})

	t.Run("timestamp column ignored", func(t *testing.T) {
		in := "x,y,z,t\n0,0,1,0.00\n0.5,0.25,-1,0.05\n"
		got, err := ReadCSV(strings.NewReader(in), DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, []gait.Vec{{Z: 1}, {X: 0.5, Y: 0.25, Z: -1}}, got)
	})

	t.Run("header only", func(t *testing.T) {
		got, err := ReadCSV(strings.NewReader("x,y,z\n"), DefaultOptions())
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("malformed line reports line number", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader("x,y,z\n1,2,3\n1,2\n"), DefaultOptions())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 3")
	})

	t.Run("line too long", func(t *testing.T) {
		long := "x,y,z\n" + strings.Repeat("1", MaxLineSize+1) + ",0,0\n"
		_, err := ReadCSV(strings.NewReader(long), DefaultOptions())
		assert.Error(t, err)
	})
}

func TestReadCSVMaxSamples(t *testing.T) {
	original := monitoring.Logf
	defer func() { monitoring.Logf = original }()
	var logged []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logged = append(logged, fmt.Sprintf(format, v...))
	})

	// lines past the cap are not parsed, so a bad trailing line is ignored
	in := "x,y,z\n1,0,0\n2,0,0\n3,0,0\nbad\n"
	got, err := ReadCSV(strings.NewReader(in), Options{HeaderLines: 1, MaxSamples: 2})
	require.NoError(t, err)
	assert.Equal(t, []gait.Vec{{X: 1}, {X: 2}}, got)
	require.Len(t, logged, 1)
	assert.Contains(t, logged[0], "ignored 2 trailing lines")
}

func TestWriteReadRoundTrip(t *testing.T) {
	samples := []gait.Vec{{X: 0.1, Y: -0.2, Z: 0.98}, {X: 1.0 / 3, Y: 2e-9, Z: -7}}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, samples))
	assert.True(t, strings.HasPrefix(buf.String(), Header+"\n"))

	got, err := ReadCSV(&buf, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, samples, got)
}

func TestReadWriteFile(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	samples := []gait.Vec{{Z: 1}, {X: 0.2, Z: 0.9}}

	require.NoError(t, WriteFile(fsys, "walk.csv", samples))
	got, err := ReadFile(fsys, "walk.csv", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, samples, got)

	_, err = ReadFile(fsys, "missing.csv", DefaultOptions())
	assert.ErrorContains(t, err, "failed to open recording")

	assert.Error(t, WriteFile(fsys, "nodir/walk.csv", samples))
}
