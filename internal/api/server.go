// Package api serves the gait analysis HTTP API.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/gait.report/internal/config"
	"github.com/banshee-data/gait.report/internal/db"
	"github.com/banshee-data/gait.report/internal/monitoring"
	"github.com/banshee-data/gait.report/internal/publish"
	"github.com/banshee-data/gait.report/internal/serialmux"
)

// ANSI escape codes for request logging
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// maxUploadBytes bounds a posted recording (about 16 hours at 20 Hz).
const maxUploadBytes = 32 << 20

// maxCaptureDuration bounds a capture requested over HTTP.
const maxCaptureDuration = 10 * time.Minute

type Server struct {
	m   serialmux.SerialMuxInterface
	db  *db.DB
	cfg *config.AnalysisConfig
	pub publish.Publisher
}

// NewServer wires the API to its store. m and pub may be nil, in which case
// serial commands are rejected and summaries are not published.
func NewServer(m serialmux.SerialMuxInterface, store *db.DB, cfg *config.AnalysisConfig, pub publish.Publisher) *Server {
	if m == nil {
		m = serialmux.NewDisabledSerialMux()
	}
	if cfg == nil {
		cfg = config.EmptyAnalysisConfig()
	}
	if pub == nil {
		pub = publish.NopPublisher{}
	}
	return &Server{m: m, db: store, cfg: cfg, pub: pub}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the API routes. Admin and debug routes are attached
// separately by the caller.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/analyze", s.analyze)
	mux.HandleFunc("GET /api/recordings", s.listRecordings)
	mux.HandleFunc("GET /api/recordings/{id}", s.showRecording)
	mux.HandleFunc("POST /api/recordings/{id}/runs", s.rerunRecording)
	mux.HandleFunc("GET /api/runs", s.listRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.showRun)
	mux.HandleFunc("GET /api/runs/{id}/chart", s.showRunChart)
	mux.HandleFunc("GET /api/runs/{id}/plot.png", s.showRunPlot)
	mux.HandleFunc("GET /api/config", s.showConfig)
	mux.HandleFunc("GET /api/version", s.showVersion)
	mux.HandleFunc("POST /api/command", s.sendCommand)
	mux.HandleFunc("POST /api/capture", s.captureAndAnalyze)
	return mux
}
