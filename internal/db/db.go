// Package db persists recordings and analysis runs in SQLite.
package db

import (
	"compress/gzip"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/gait.report/internal/gait"
	"github.com/banshee-data/gait.report/internal/monitoring"
)

// ErrNotFound is returned when a recording or run id does not exist.
var ErrNotFound = errors.New("not found")

type DB struct {
	*sql.DB
	path string
}

// NewDB opens the database at path and brings its schema up to date. Use
// ":memory:" for a throwaway database.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases coherent and
	// serialises writers the way sqlite wants anyway.
	sqlDB.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	db := &DB{DB: sqlDB, path: path}
	if err := db.MigrateUp(MigrationsFS()); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Recording is a stored accelerometer recording.
type Recording struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Source       string    `json:"source"`
	Units        string    `json:"units"`
	SampleRateHz float64   `json:"sample_rate_hz"`
	SampleCount  int       `json:"sample_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// Run is the stored outcome of one analysis.
type Run struct {
	ID              string          `json:"id"`
	RecordingID     string          `json:"recording_id,omitempty"`
	ThresholdFactor float64         `json:"threshold_factor"`
	ZeroState       bool            `json:"zero_state"`
	SampleCount     int             `json:"sample_count"`
	Gravity         gait.Vec        `json:"gravity"`
	RMS             float64         `json:"rms"`
	Thresholds      gait.Thresholds `json:"thresholds"`
	Steps           int             `json:"steps"`
	Duration        time.Duration   `json:"duration_ns"`
	CadenceSPM      float64         `json:"cadence_spm"`
	CreatedAt       time.Time       `json:"created_at"`
}

// NewRun captures the parameters and outcome of an analysis.
func NewRun(recordingID string, opts gait.Options, res *gait.Result) Run {
	return Run{
		RecordingID:     recordingID,
		ThresholdFactor: opts.ThresholdFactor,
		ZeroState:       opts.ZeroState,
		SampleCount:     res.Samples,
		Gravity:         res.Gravity,
		RMS:             res.RMS,
		Thresholds:      res.Thresholds,
		Steps:           res.Steps,
		Duration:        res.Duration,
		CadenceSPM:      res.CadenceSPM,
	}
}

// timeLayout has fixed-width fractions so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t, nil
}

// CreateRecording stores rec and its samples in one transaction. The id and
// sample count are assigned here; CreatedAt defaults to now.
func (db *DB) CreateRecording(ctx context.Context, rec Recording, samples []gait.Vec) (Recording, error) {
	rec.ID = uuid.New().String()
	rec.SampleCount = len(samples)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Recording{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO recordings (recording_id, name, source, units, sample_rate_hz, sample_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.Source, rec.Units, rec.SampleRateHz, rec.SampleCount, formatTime(rec.CreatedAt),
	); err != nil {
		return Recording{}, fmt.Errorf("failed to insert recording: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO recording_samples (recording_id, seq, x, y, z) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return Recording{}, err
	}
	defer stmt.Close()
	for i, v := range samples {
		if _, err := stmt.ExecContext(ctx, rec.ID, i, v.X, v.Y, v.Z); err != nil {
			return Recording{}, fmt.Errorf("failed to insert sample %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Recording{}, err
	}
	return rec, nil
}

const recordingColumns = `recording_id, name, source, units, sample_rate_hz, sample_count, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecording(s scanner) (Recording, error) {
	var (
		rec     Recording
		created string
	)
	if err := s.Scan(&rec.ID, &rec.Name, &rec.Source, &rec.Units, &rec.SampleRateHz, &rec.SampleCount, &created); err != nil {
		return Recording{}, err
	}
	t, err := parseTime(created)
	if err != nil {
		return Recording{}, err
	}
	rec.CreatedAt = t
	return rec, nil
}

// Recording returns the recording with the given id.
func (db *DB) Recording(ctx context.Context, id string) (Recording, error) {
	row := db.QueryRowContext(ctx, `SELECT `+recordingColumns+` FROM recordings WHERE recording_id = ?`, id)
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Recording{}, fmt.Errorf("recording %s: %w", id, ErrNotFound)
	}
	return rec, err
}

// RecordingSamples returns the samples of a recording in capture order.
func (db *DB) RecordingSamples(ctx context.Context, id string) ([]gait.Vec, error) {
	if _, err := db.Recording(ctx, id); err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		`SELECT x, y, z FROM recording_samples WHERE recording_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []gait.Vec
	for rows.Next() {
		var v gait.Vec
		if err := rows.Scan(&v.X, &v.Y, &v.Z); err != nil {
			return nil, err
		}
		samples = append(samples, v)
	}
	return samples, rows.Err()
}

// ListRecordings returns the newest recordings first. limit <= 0 means 100.
func (db *DB) ListRecordings(ctx context.Context, limit int) ([]Recording, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+recordingColumns+` FROM recordings ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recs := []Recording{}
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// RecordRun stores run and returns it with its id assigned.
func (db *DB) RecordRun(ctx context.Context, run Run) (Run, error) {
	run.ID = uuid.New().String()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	run.CreatedAt = run.CreatedAt.UTC()

	var recordingID sql.NullString
	if run.RecordingID != "" {
		recordingID = sql.NullString{String: run.RecordingID, Valid: true}
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO runs (
			run_id, recording_id, threshold_factor, zero_state, sample_count,
			gravity_x, gravity_y, gravity_z, rms, threshold_hi, threshold_lo,
			steps, duration_ms, cadence_spm, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, recordingID, run.ThresholdFactor, run.ZeroState, run.SampleCount,
		run.Gravity.X, run.Gravity.Y, run.Gravity.Z, run.RMS, run.Thresholds.Hi, run.Thresholds.Lo,
		run.Steps, run.Duration.Milliseconds(), run.CadenceSPM, formatTime(run.CreatedAt),
	)
	if err != nil {
		return Run{}, fmt.Errorf("failed to insert run: %w", err)
	}
	return run, nil
}

const runColumns = `run_id, recording_id, threshold_factor, zero_state, sample_count,
	gravity_x, gravity_y, gravity_z, rms, threshold_hi, threshold_lo,
	steps, duration_ms, cadence_spm, created_at`

func scanRun(s scanner) (Run, error) {
	var (
		run         Run
		recordingID sql.NullString
		durationMs  int64
		created     string
	)
	if err := s.Scan(
		&run.ID, &recordingID, &run.ThresholdFactor, &run.ZeroState, &run.SampleCount,
		&run.Gravity.X, &run.Gravity.Y, &run.Gravity.Z, &run.RMS, &run.Thresholds.Hi, &run.Thresholds.Lo,
		&run.Steps, &durationMs, &run.CadenceSPM, &created,
	); err != nil {
		return Run{}, err
	}
	t, err := parseTime(created)
	if err != nil {
		return Run{}, err
	}
	run.RecordingID = recordingID.String
	run.Duration = time.Duration(durationMs) * time.Millisecond
	run.CreatedAt = t
	return run, nil
}

// Run returns the run with the given id.
func (db *DB) Run(ctx context.Context, id string) (Run, error) {
	row := db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return run, err
}

// ListRuns returns the newest runs first. limit <= 0 means 100.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// AttachAdminRoutes mounts tailsql and a backup download under /debug/.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+filepath.Base(db.path), db.DB, &tailsql.DBOptions{
		Label: "Gait DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(db.serveBackup))
	return nil
}

func (db *DB) serveBackup(w http.ResponseWriter, r *http.Request) {
	backupPath := filepath.Join(os.TempDir(), fmt.Sprintf("gait-backup-%d.db", time.Now().UnixNano()))
	if _, err := db.ExecContext(r.Context(), "VACUUM INTO ?", backupPath); err != nil {
		http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := os.Remove(backupPath); err != nil {
			monitoring.Logf("failed to remove backup file: %v", err)
		}
	}()

	f, err := os.Open(backupPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", filepath.Base(backupPath)))
	w.Header().Set("Content-Type", "application/gzip")
	gz := gzip.NewWriter(w)
	defer gz.Close()
	if _, err := io.Copy(gz, f); err != nil {
		monitoring.Logf("failed to stream backup: %v", err)
	}
}
