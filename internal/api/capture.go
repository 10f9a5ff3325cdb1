package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/banshee-data/gait.report/internal/capture"
	"github.com/banshee-data/gait.report/internal/db"
	"github.com/banshee-data/gait.report/internal/gait"
	"github.com/banshee-data/gait.report/internal/httputil"
	"github.com/banshee-data/gait.report/internal/monitoring"
	"github.com/banshee-data/gait.report/internal/report"
)

// CaptureResponse is returned by POST /api/capture.
type CaptureResponse struct {
	AnalyzeResponse
	Capture struct {
		Skipped   int    `json:"skipped"`
		Malformed int    `json:"malformed"`
		Reason    string `json:"reason"`
	} `json:"capture"`
}

// captureAndAnalyze records from the attached device for ?duration= (default
// from config), then analyses and stores the recording. The request blocks
// for the whole capture.
func (s *Server) captureAndAnalyze(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	o, err := s.requestOptions(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	duration := s.cfg.GetCaptureDuration()
	if v := r.URL.Query().Get("duration"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			httputil.BadRequest(w, fmt.Sprintf("invalid duration %q", v))
			return
		}
		duration = d
	}
	if duration > maxCaptureDuration {
		httputil.BadRequest(w, fmt.Sprintf("duration exceeds %s", maxCaptureDuration))
		return
	}

	session, err := capture.Capture(r.Context(), s.m, capture.Options{
		Duration:   duration,
		MaxSamples: o.ingest.MaxSamples,
	})
	if err != nil {
		if errors.Is(err, capture.ErrNoSamples) {
			httputil.UnprocessableEntity(w, err.Error())
			return
		}
		httputil.InternalServerError(w, err)
		return
	}

	res, err := gait.Analyze(session.Samples, o.gait)
	if err != nil {
		writeAnalysisError(w, err)
		return
	}
	summary, err := report.NewSummary(res, s.cfg.GetUnits(), o.units)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	name := o.name
	if name == "" {
		name = "capture " + session.Started.UTC().Format(time.RFC3339)
	}
	rec, err := s.db.CreateRecording(r.Context(), db.Recording{
		Name:         name,
		Source:       "serial",
		Units:        s.cfg.GetUnits(),
		SampleRateHz: o.gait.SampleRateHz,
		CreatedAt:    session.Started,
	}, session.Samples)
	if err != nil {
		httputil.InternalServerError(w, err)
		return
	}
	run, err := s.db.RecordRun(r.Context(), db.NewRun(rec.ID, o.gait, res))
	if err != nil {
		httputil.InternalServerError(w, err)
		return
	}
	summary.RunID = run.ID

	if err := s.pub.Publish(r.Context(), summary); err != nil {
		monitoring.Logf("failed to publish summary: %v", err)
	}

	var resp CaptureResponse
	resp.Summary = summary
	resp.RecordingID = rec.ID
	resp.StepIndices = res.StepIndices
	if resp.StepIndices == nil {
		resp.StepIndices = []int{}
	}
	resp.Capture.Skipped = session.Skipped
	resp.Capture.Malformed = session.Malformed
	resp.Capture.Reason = session.Reason
	httputil.WriteJSONOK(w, resp)
}
