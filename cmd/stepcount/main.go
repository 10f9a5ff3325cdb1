// Command stepcount counts the steps in an accelerometer recording.
//
//	stepcount [flags] recording.csv
//	stepcount [flags] -capture /dev/ttyACM0 -duration 30s
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/banshee-data/gait.report/internal/capture"
	"github.com/banshee-data/gait.report/internal/config"
	"github.com/banshee-data/gait.report/internal/db"
	"github.com/banshee-data/gait.report/internal/fsutil"
	"github.com/banshee-data/gait.report/internal/gait"
	"github.com/banshee-data/gait.report/internal/ingest"
	"github.com/banshee-data/gait.report/internal/monitoring"
	"github.com/banshee-data/gait.report/internal/publish"
	"github.com/banshee-data/gait.report/internal/report"
	"github.com/banshee-data/gait.report/internal/security"
	"github.com/banshee-data/gait.report/internal/serialmux"
	"github.com/banshee-data/gait.report/internal/units"
	"github.com/banshee-data/gait.report/internal/version"
)

// openSerial is replaced in tests.
var openSerial = func(path string, opts serialmux.PortOptions) (serialmux.SerialMuxInterface, error) {
	return serialmux.NewRealSerialMux(path, opts)
}

type options struct {
	configPath      string
	thresholdFactor float64
	zeroState       bool
	units           string
	details         bool
	jsonOut         bool
	plotPath        string
	chartPath       string
	dbPath          string
	name            string
	mqttBroker      string
	mqttTopic       string
	debug           bool
	showVersion     bool
	capturePort     string
	captureBaud     int
	duration        time.Duration
	outPath         string
}

func parseFlags(args []string, stderr io.Writer) (*options, []string, error) {
	fs := flag.NewFlagSet("stepcount", flag.ContinueOnError)
	fs.SetOutput(stderr)
	o := &options{}
	fs.StringVar(&o.configPath, "config", "", "Analysis config file (.json or .yaml)")
	fs.Float64Var(&o.thresholdFactor, "threshold-factor", 0, "Hysteresis threshold as a fraction of RMS (0 uses config)")
	fs.BoolVar(&o.zeroState, "zero-state", false, "Start the bandpass filter from zero instead of its preset state")
	fs.StringVar(&o.units, "units", "", "Report RMS in these units ("+units.GetValidUnitsString()+"); defaults to the recording units")
	fs.BoolVar(&o.details, "details", false, "Print thresholds, duration and cadence after the summary")
	fs.BoolVar(&o.jsonOut, "json", false, "Print the summary as JSON instead of text")
	fs.StringVar(&o.plotPath, "plot", "", "Write a PNG plot of the signals to this path")
	fs.StringVar(&o.chartPath, "chart", "", "Write an interactive HTML chart to this path")
	fs.StringVar(&o.dbPath, "db", "", "Store the recording and run in this sqlite database")
	fs.StringVar(&o.name, "name", "", "Recording name when storing (defaults to the file name)")
	fs.StringVar(&o.mqttBroker, "mqtt-broker", "", "Publish the summary to this MQTT broker (overrides config)")
	fs.StringVar(&o.mqttTopic, "mqtt-topic", "", "MQTT topic for the summary (overrides config)")
	fs.BoolVar(&o.debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&o.showVersion, "version", false, "Print version and exit")
	fs.StringVar(&o.capturePort, "capture", "", "Record from this serial port instead of reading a file")
	fs.IntVar(&o.captureBaud, "baud", 0, "Serial baud rate (0 uses config or 115200)")
	fs.DurationVar(&o.duration, "duration", 0, "Capture length (0 uses config or 1m)")
	fs.StringVar(&o.outPath, "out", "", "Save the captured recording as CSV")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: stepcount [flags] <recording.csv>\n       stepcount [flags] -capture <port>\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return o, fs.Args(), nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, rest, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if o.showVersion {
		fmt.Fprintf(stdout, "stepcount %s\n", version.String())
		return 0
	}
	if o.capturePort == "" && len(rest) != 1 {
		fmt.Fprintf(stderr, "usage: stepcount [flags] <recording.csv>\n")
		return 1
	}
	monitoring.SetDebug(o.debug)

	if err := analyze(ctx, o, rest, stdout); err != nil {
		fmt.Fprintf(stderr, "stepcount: %v\n", err)
		return 1
	}
	return 0
}

func loadConfig(o *options) (*config.AnalysisConfig, error) {
	if o.configPath == "" {
		return config.EmptyAnalysisConfig(), nil
	}
	return config.LoadAnalysisConfig(o.configPath)
}

func analyze(ctx context.Context, o *options, rest []string, stdout io.Writer) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}
	outUnits := cfg.GetUnits()
	if o.units != "" {
		if !units.IsValid(o.units) {
			return fmt.Errorf("invalid units %q: must be one of %s", o.units, units.GetValidUnitsString())
		}
		outUnits = o.units
	}
	opts := cfg.GaitOptions()
	if o.thresholdFactor > 0 {
		opts.ThresholdFactor = o.thresholdFactor
	}
	if o.zeroState {
		opts.ZeroState = true
	}

	fsys := fsutil.OSFileSystem{}
	var (
		samples []gait.Vec
		source  string
	)
	if o.capturePort != "" {
		samples, err = captureRecording(ctx, o, cfg)
		if err != nil {
			return err
		}
		// An interrupt ends the capture, not the run: the samples collected
		// so far are still analysed, stored and published.
		ctx = context.WithoutCancel(ctx)
		source = o.capturePort
		if o.outPath != "" {
			if err := security.ValidateOutputPath(o.outPath); err != nil {
				return err
			}
			if err := ingest.WriteFile(fsys, o.outPath, samples); err != nil {
				return err
			}
			monitoring.Logf("saved %d samples to %s", len(samples), o.outPath)
		}
	} else {
		source = rest[0]
		samples, err = ingest.ReadFile(fsys, source, cfg.IngestOptions())
		if err != nil {
			return err
		}
	}

	res, err := gait.Analyze(samples, opts)
	if err != nil {
		return err
	}
	summary, err := report.NewSummary(res, cfg.GetUnits(), outUnits)
	if err != nil {
		return err
	}

	name := o.name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	}
	if o.dbPath != "" {
		runID, err := store(ctx, o.dbPath, name, source, cfg, opts, samples, res)
		if err != nil {
			return err
		}
		summary.RunID = runID
	}

	if o.jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return err
		}
	} else {
		if err := summary.WriteText(stdout); err != nil {
			return err
		}
		if o.details {
			if err := summary.WriteDetails(stdout); err != nil {
				return err
			}
		}
	}

	if o.plotPath != "" {
		if err := report.SavePNG(fsys, o.plotPath, res, name, opts.SampleRateHz); err != nil {
			return err
		}
	}
	if o.chartPath != "" {
		if err := saveChart(fsys, o.chartPath, res, name, opts.SampleRateHz); err != nil {
			return err
		}
	}
	return publishSummary(ctx, o, cfg, summary)
}

func saveChart(fsys fsutil.FileSystem, path string, res *gait.Result, name string, rate float64) error {
	if err := security.ValidateOutputPath(path); err != nil {
		return err
	}
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	if err := report.WriteChartHTML(f, res, name, rate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func store(ctx context.Context, path, name, source string, cfg *config.AnalysisConfig, opts gait.Options, samples []gait.Vec, res *gait.Result) (string, error) {
	d, err := db.NewDB(path)
	if err != nil {
		return "", fmt.Errorf("failed to open database: %w", err)
	}
	defer d.Close()

	rec, err := d.CreateRecording(ctx, db.Recording{
		Name:         name,
		Source:       source,
		Units:        cfg.GetUnits(),
		SampleRateHz: opts.SampleRateHz,
	}, samples)
	if err != nil {
		return "", err
	}
	run, err := d.RecordRun(ctx, db.NewRun(rec.ID, opts, res))
	if err != nil {
		return "", err
	}
	monitoring.Logf("stored recording %s and run %s in %s", rec.ID, run.ID, path)
	return run.ID, nil
}

func publishSummary(ctx context.Context, o *options, cfg *config.AnalysisConfig, s report.Summary) error {
	broker, topic, clientID := o.mqttBroker, o.mqttTopic, "stepcount"
	if cfg.MQTT != nil {
		if broker == "" {
			broker = cfg.MQTT.Broker
		}
		if cfg.MQTT.ClientID != "" {
			clientID = cfg.MQTT.ClientID
		}
	}
	if broker == "" {
		return nil
	}
	if topic == "" {
		topic = cfg.GetMQTTTopic()
	}
	pub, err := publish.NewMQTTPublisher(publish.MQTTOptions{Broker: broker, Topic: topic, ClientID: clientID})
	if err != nil {
		return err
	}
	defer pub.Close()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return pub.Publish(ctx, s)
}

func captureRecording(ctx context.Context, o *options, cfg *config.AnalysisConfig) ([]gait.Vec, error) {
	portOpts := serialmux.PortOptions{BaudRate: o.captureBaud}
	var initCommands []string
	if sc := cfg.Serial; sc != nil {
		if portOpts.BaudRate == 0 {
			portOpts.BaudRate = sc.BaudRate
		}
		portOpts.DataBits = sc.DataBits
		portOpts.StopBits = sc.StopBits
		portOpts.Parity = sc.Parity
		initCommands = sc.InitCommands
	}
	portOpts, err := portOpts.Normalize()
	if err != nil {
		return nil, err
	}

	mux, err := openSerial(o.capturePort, portOpts)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	defer mux.Close()

	monitorCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := mux.Monitor(monitorCtx); err != nil && !errors.Is(err, context.Canceled) {
			monitoring.Logf("serial monitor stopped: %v", err)
		}
	}()
	if err := mux.Initialize(initCommands...); err != nil {
		return nil, err
	}

	duration := o.duration
	if duration <= 0 {
		duration = cfg.GetCaptureDuration()
	}
	monitoring.Logf("capturing from %s for %s", o.capturePort, duration)
	session, err := capture.Capture(ctx, mux, capture.Options{
		Duration:         duration,
		MaxSamples:       cfg.GetMaxSamples(),
		ProgressInterval: 10 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	return session.Samples, nil
}
