package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gait.report/internal/db"
	"github.com/banshee-data/gait.report/internal/gait"
	"github.com/banshee-data/gait.report/internal/report"
	"github.com/banshee-data/gait.report/internal/serialmux"
	"github.com/banshee-data/gait.report/internal/testutil"
	"github.com/banshee-data/gait.report/internal/version"
)

type recordingPublisher struct {
	mu        sync.Mutex
	summaries []report.Summary
}

func (p *recordingPublisher) Publish(_ context.Context, s report.Summary) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.summaries = append(p.summaries, s)
	return nil
}

func (p *recordingPublisher) Close() {}

func setupServer(t *testing.T) (*Server, *db.DB, *recordingPublisher) {
	t.Helper()
	store, err := db.NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	pub := &recordingPublisher{}
	return NewServer(nil, store, nil, pub), store, pub
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func TestAnalyze(t *testing.T) {
	s, _, pub := setupServer(t)

	rec := do(t, s, http.MethodPost, "/api/analyze", testutil.DefaultWalk().CSV())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[AnalyzeResponse](t, rec)
	assert.Equal(t, 600, resp.Summary.Samples)
	assert.InDelta(t, 60, resp.Summary.Steps, 2)
	assert.Len(t, resp.StepIndices, resp.Summary.Steps)
	assert.Empty(t, resp.RecordingID)
	assert.Empty(t, resp.Summary.RunID)
	assert.InDelta(t, 0.6, resp.Summary.Gravity[0], 1e-9)
	assert.InDelta(t, 0.8, resp.Summary.Gravity[2], 1e-9)

	require.Len(t, pub.summaries, 1)
	assert.Equal(t, resp.Summary, pub.summaries[0])
}

func TestAnalyzeStoreThenBrowse(t *testing.T) {
	s, _, _ := setupServer(t)

	rec := do(t, s, http.MethodPost, "/api/analyze?store=true&name=hallway&threshold_factor=0.4", testutil.DefaultWalk().CSV())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[AnalyzeResponse](t, rec)
	require.NotEmpty(t, resp.RecordingID)
	require.NotEmpty(t, resp.Summary.RunID)

	rec = do(t, s, http.MethodGet, "/api/runs/"+resp.Summary.RunID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	run := decode[db.Run](t, rec)
	assert.Equal(t, 0.4, run.ThresholdFactor)
	assert.Equal(t, resp.Summary.Steps, run.Steps)
	assert.Equal(t, resp.RecordingID, run.RecordingID)

	rec = do(t, s, http.MethodGet, "/api/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]db.Run](t, rec), 1)

	rec = do(t, s, http.MethodGet, "/api/recordings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	recs := decode[[]db.Recording](t, rec)
	require.Len(t, recs, 1)
	assert.Equal(t, "hallway", recs[0].Name)
	assert.Equal(t, 600, recs[0].SampleCount)

	rec = do(t, s, http.MethodGet, "/api/recordings/"+resp.RecordingID, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/runs/"+resp.Summary.RunID+"/chart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "<title>hallway</title>")

	rec = do(t, s, http.MethodGet, "/api/runs/"+resp.Summary.RunID+"/plot.png", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
}

func TestRerunRecording(t *testing.T) {
	s, store, _ := setupServer(t)
	recording, err := store.CreateRecording(context.Background(), db.Recording{
		Name: "stored", Source: "test", Units: "g", SampleRateHz: 20,
	}, testutil.DefaultWalk().Vectors())
	require.NoError(t, err)

	rec := do(t, s, http.MethodPost, "/api/recordings/"+recording.ID+"/runs?zero_state=true", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	run := decode[db.Run](t, rec)
	assert.True(t, run.ZeroState)
	assert.Equal(t, recording.ID, run.RecordingID)

	rec = do(t, s, http.MethodPost, "/api/recordings/missing/runs", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		body   string
		status int
	}{
		{"empty recording", "/api/analyze", "x,y,z\n", http.StatusUnprocessableEntity},
		{"zero gravity", "/api/analyze", "x,y,z\n1,0,0\n-1,0,0\n", http.StatusUnprocessableEntity},
		{"malformed line", "/api/analyze", "x,y,z\n1,2\n", http.StatusBadRequest},
		{"bad threshold", "/api/analyze?threshold_factor=-1", "x,y,z\n0,0,1\n", http.StatusBadRequest},
		{"bad units", "/api/analyze?units=furlongs", "x,y,z\n0,0,1\n", http.StatusBadRequest},
		{"bad store flag", "/api/analyze?store=maybe", "x,y,z\n0,0,1\n", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, pub := setupServer(t)
			rec := do(t, s, http.MethodPost, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Empty(t, pub.summaries)
		})
	}
}

func TestAnalyzeUnitsConversion(t *testing.T) {
	s, _, _ := setupServer(t)
	g := decode[AnalyzeResponse](t, do(t, s, http.MethodPost, "/api/analyze", testutil.DefaultWalk().CSV()))
	m := decode[AnalyzeResponse](t, do(t, s, http.MethodPost, "/api/analyze?units=mps2", testutil.DefaultWalk().CSV()))

	assert.Equal(t, "mps2", m.Summary.Units)
	assert.InDelta(t, g.Summary.RMS*9.80665, m.Summary.RMS, 1e-9)
	assert.Equal(t, g.Summary.Steps, m.Summary.Steps)
}

func TestAnalyzeWithoutStore(t *testing.T) {
	s := NewServer(nil, nil, nil, nil)

	rec := do(t, s, http.MethodPost, "/api/analyze?store=true", testutil.DefaultWalk().CSV())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/runs", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/analyze", testutil.DefaultWalk().CSV())
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunLookupErrors(t *testing.T) {
	s, store, _ := setupServer(t)

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/runs/nope", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/runs/nope/chart", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/recordings/nope", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/runs?limit=x", "").Code)

	orphan, err := store.RecordRun(context.Background(), db.Run{ThresholdFactor: 0.5})
	require.NoError(t, err)
	rec := do(t, s, http.MethodGet, "/api/runs/"+orphan.ID+"/chart", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "no stored recording")
}

func TestMethodRouting(t *testing.T) {
	s, _, _ := setupServer(t)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, s, http.MethodGet, "/api/analyze", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, s, http.MethodDelete, "/api/runs", "").Code)
}

func TestShowVersionAndConfig(t *testing.T) {
	s, _, _ := setupServer(t)

	rec := do(t, s, http.MethodGet, "/api/version", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, version.Version, decode[map[string]string](t, rec)["version"])

	rec = do(t, s, http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cfg := decode[map[string]any](t, rec)
	assert.Equal(t, gait.DefaultThresholdFactor, cfg["threshold_factor"])
	assert.Equal(t, "g", cfg["units"])
}

func TestSendCommand(t *testing.T) {
	port := serialmux.NewTestableSerialPort()
	store, err := db.NewDB(":memory:")
	require.NoError(t, err)
	defer store.Close()
	s := NewServer(serialmux.NewSerialMux(port), store, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/command", strings.NewReader("command=rate+20"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "rate 20\n", port.Written())

	rec = do(t, s, http.MethodPost, "/api/command", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoggingMiddleware(t *testing.T) {
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, statusCodeColor(http.StatusTeapot), "418")
}
