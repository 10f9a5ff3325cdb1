package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/banshee-data/gait.report/internal/db"
	"github.com/banshee-data/gait.report/internal/gait"
	"github.com/banshee-data/gait.report/internal/httputil"
	"github.com/banshee-data/gait.report/internal/ingest"
	"github.com/banshee-data/gait.report/internal/monitoring"
	"github.com/banshee-data/gait.report/internal/report"
	"github.com/banshee-data/gait.report/internal/units"
	"github.com/banshee-data/gait.report/internal/version"
)

// AnalyzeResponse is returned by POST /api/analyze.
type AnalyzeResponse struct {
	Summary     report.Summary `json:"summary"`
	RecordingID string         `json:"recording_id,omitempty"`
	StepIndices []int          `json:"step_indices"`
}

// requestOptions overlays query parameters on the configured defaults.
type requestOptions struct {
	gait   gait.Options
	ingest ingest.Options
	units  string
	name   string
	store  bool
}

func (s *Server) requestOptions(r *http.Request) (requestOptions, error) {
	q := r.URL.Query()
	o := requestOptions{
		gait:   s.cfg.GaitOptions(),
		ingest: s.cfg.IngestOptions(),
		units:  s.cfg.GetUnits(),
		name:   q.Get("name"),
	}
	if v := q.Get("threshold_factor"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return o, fmt.Errorf("invalid threshold_factor %q", v)
		}
		o.gait.ThresholdFactor = f
	}
	if v := q.Get("zero_state"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return o, fmt.Errorf("invalid zero_state %q", v)
		}
		o.gait.ZeroState = b
	}
	if v := q.Get("header_lines"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return o, fmt.Errorf("invalid header_lines %q", v)
		}
		o.ingest.HeaderLines = n
	}
	if v := q.Get("units"); v != "" {
		if !units.IsValid(v) {
			return o, fmt.Errorf("invalid units %q: must be one of %s", v, units.GetValidUnitsString())
		}
		o.units = v
	}
	if v := q.Get("store"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return o, fmt.Errorf("invalid store %q", v)
		}
		o.store = b
	}
	return o, nil
}

// writeAnalysisError maps pipeline failures onto status codes: unusable
// recordings are 422, everything else is a server fault.
func writeAnalysisError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gait.ErrEmptyInput), errors.Is(err, gait.ErrDegenerateInput):
		httputil.UnprocessableEntity(w, err.Error())
	default:
		httputil.InternalServerError(w, err)
	}
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	o, err := s.requestOptions(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if o.store && s.db == nil {
		httputil.BadRequest(w, "storage is not configured")
		return
	}

	samples, err := ingest.ReadCSV(http.MaxBytesReader(w, r.Body, maxUploadBytes), o.ingest)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteJSONError(w, http.StatusRequestEntityTooLarge, "recording too large")
			return
		}
		httputil.BadRequest(w, err.Error())
		return
	}

	res, err := gait.Analyze(samples, o.gait)
	if err != nil {
		writeAnalysisError(w, err)
		return
	}
	summary, err := report.NewSummary(res, s.cfg.GetUnits(), o.units)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	resp := AnalyzeResponse{StepIndices: res.StepIndices}
	if resp.StepIndices == nil {
		resp.StepIndices = []int{}
	}
	if o.store {
		name := o.name
		if name == "" {
			name = "upload"
		}
		rec, err := s.db.CreateRecording(r.Context(), db.Recording{
			Name:         name,
			Source:       "api",
			Units:        s.cfg.GetUnits(),
			SampleRateHz: o.gait.SampleRateHz,
		}, samples)
		if err != nil {
			httputil.InternalServerError(w, err)
			return
		}
		run, err := s.db.RecordRun(r.Context(), db.NewRun(rec.ID, o.gait, res))
		if err != nil {
			httputil.InternalServerError(w, err)
			return
		}
		resp.RecordingID = rec.ID
		summary.RunID = run.ID
	}
	resp.Summary = summary

	if err := s.pub.Publish(r.Context(), summary); err != nil {
		monitoring.Logf("failed to publish summary: %v", err)
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) requireDB(w http.ResponseWriter) bool {
	if s.db == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "storage is not configured")
		return false
	}
	return true
}

func writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	httputil.InternalServerError(w, err)
}

func parseLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid limit %q", v)
	}
	return n, nil
}

func (s *Server) listRecordings(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	recs, err := s.db.ListRecordings(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, err)
		return
	}
	httputil.WriteJSONOK(w, recs)
}

func (s *Server) showRecording(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	rec, err := s.db.Recording(r.Context(), r.PathValue("id"))
	if err != nil {
		writeLookupError(w, err)
		return
	}
	httputil.WriteJSONOK(w, rec)
}

// rerunRecording analyses a stored recording again, typically with a
// different threshold factor or filter start state.
func (s *Server) rerunRecording(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	o, err := s.requestOptions(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	id := r.PathValue("id")
	rec, err := s.db.Recording(r.Context(), id)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	samples, err := s.db.RecordingSamples(r.Context(), id)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	o.gait.SampleRateHz = rec.SampleRateHz
	res, err := gait.Analyze(samples, o.gait)
	if err != nil {
		writeAnalysisError(w, err)
		return
	}
	run, err := s.db.RecordRun(r.Context(), db.NewRun(rec.ID, o.gait, res))
	if err != nil {
		httputil.InternalServerError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, run)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	runs, err := s.db.ListRuns(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, err)
		return
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) showRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	run, err := s.db.Run(r.Context(), r.PathValue("id"))
	if err != nil {
		writeLookupError(w, err)
		return
	}
	httputil.WriteJSONOK(w, run)
}

// replayRun reruns the analysis behind a stored run so its signals can be
// drawn. Only the scalars of a run are stored.
func (s *Server) replayRun(w http.ResponseWriter, r *http.Request) (*gait.Result, db.Recording, bool) {
	if !s.requireDB(w) {
		return nil, db.Recording{}, false
	}
	run, err := s.db.Run(r.Context(), r.PathValue("id"))
	if err != nil {
		writeLookupError(w, err)
		return nil, db.Recording{}, false
	}
	if run.RecordingID == "" {
		httputil.NotFound(w, "run has no stored recording")
		return nil, db.Recording{}, false
	}
	rec, err := s.db.Recording(r.Context(), run.RecordingID)
	if err != nil {
		writeLookupError(w, err)
		return nil, db.Recording{}, false
	}
	samples, err := s.db.RecordingSamples(r.Context(), run.RecordingID)
	if err != nil {
		writeLookupError(w, err)
		return nil, db.Recording{}, false
	}
	res, err := gait.Analyze(samples, gait.Options{
		ThresholdFactor: run.ThresholdFactor,
		ZeroState:       run.ZeroState,
		SampleRateHz:    rec.SampleRateHz,
	})
	if err != nil {
		writeAnalysisError(w, err)
		return nil, db.Recording{}, false
	}
	return res, rec, true
}

func (s *Server) showRunChart(w http.ResponseWriter, r *http.Request) {
	res, rec, ok := s.replayRun(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.WriteChartHTML(w, res, rec.Name, rec.SampleRateHz); err != nil {
		monitoring.Logf("failed to render chart: %v", err)
	}
}

func (s *Server) showRunPlot(w http.ResponseWriter, r *http.Request) {
	res, rec, ok := s.replayRun(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := report.WritePNG(w, res, rec.Name, rec.SampleRateHz); err != nil {
		monitoring.Logf("failed to render plot: %v", err)
	}
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]any{
		"threshold_factor": s.cfg.GetThresholdFactor(),
		"zero_state":       s.cfg.GetZeroState(),
		"sample_rate_hz":   s.cfg.GetSampleRateHz(),
		"header_lines":     s.cfg.GetHeaderLines(),
		"max_samples":      s.cfg.GetMaxSamples(),
		"units":            s.cfg.GetUnits(),
	})
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	})
}

func (s *Server) sendCommand(w http.ResponseWriter, r *http.Request) {
	command := r.FormValue("command")
	if command == "" {
		httputil.BadRequest(w, "missing command")
		return
	}
	if err := s.m.SendCommand(command); err != nil {
		httputil.InternalServerError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "Command sent successfully")
}
