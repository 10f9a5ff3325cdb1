// Command gaitd serves the gait analysis API, optionally attached to a live
// accelerometer on a serial port.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/gait.report/internal/api"
	"github.com/banshee-data/gait.report/internal/config"
	"github.com/banshee-data/gait.report/internal/db"
	"github.com/banshee-data/gait.report/internal/fsutil"
	"github.com/banshee-data/gait.report/internal/monitoring"
	"github.com/banshee-data/gait.report/internal/publish"
	"github.com/banshee-data/gait.report/internal/serialmux"
	"github.com/banshee-data/gait.report/internal/version"
)

var (
	devMode     = flag.Bool("dev", false, "Replay -fixture instead of opening a serial port")
	fixture     = flag.String("fixture", "testdata/walk.csv", "Recording replayed in dev mode")
	listen      = flag.String("listen", ":8080", "Listen address")
	port        = flag.String("port", "", "Serial port of the accelerometer (empty disables serial)")
	dbPath      = flag.String("db", "gait.db", "Path to the sqlite database")
	configPath  = flag.String("config", "", "Analysis config file (.json or .yaml)")
	mqttBroker  = flag.String("mqtt-broker", "", "Publish summaries to this MQTT broker (overrides config)")
	debug       = flag.Bool("debug", false, "Enable debug logging")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func loadConfig(path string) (*config.AnalysisConfig, error) {
	if path == "" {
		return config.EmptyAnalysisConfig(), nil
	}
	return config.LoadAnalysisConfig(path)
}

// openSerial picks the line source: a fixture replay in dev mode, the real
// port when one is configured, otherwise a disabled mux.
func openSerial(cfg *config.AnalysisConfig, fsys fsutil.FileSystem) (serialmux.SerialMuxInterface, error) {
	if *devMode {
		data, err := fsys.ReadFile(*fixture)
		if err != nil {
			return nil, fmt.Errorf("failed to read fixture: %w", err)
		}
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		interval := time.Duration(float64(time.Second) / cfg.GetSampleRateHz())
		return serialmux.NewReplaySerialMux(lines, interval), nil
	}

	path := *port
	opts := serialmux.PortOptions{}
	if sc := cfg.Serial; sc != nil {
		if path == "" {
			path = sc.Port
		}
		opts = serialmux.PortOptions{BaudRate: sc.BaudRate, DataBits: sc.DataBits, StopBits: sc.StopBits, Parity: sc.Parity}
	}
	if path == "" {
		return serialmux.NewDisabledSerialMux(), nil
	}
	return serialmux.NewRealSerialMux(path, opts)
}

func newPublisher(cfg *config.AnalysisConfig) (publish.Publisher, error) {
	broker := *mqttBroker
	clientID := "gaitd"
	if cfg.MQTT != nil {
		if broker == "" {
			broker = cfg.MQTT.Broker
		}
		if cfg.MQTT.ClientID != "" {
			clientID = cfg.MQTT.ClientID
		}
	}
	if broker == "" {
		return publish.NopPublisher{}, nil
	}
	return publish.NewMQTTPublisher(publish.MQTTOptions{
		Broker:   broker,
		Topic:    cfg.GetMQTTTopic(),
		ClientID: clientID,
	})
}

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Printf("gaitd %s\n", version.String())
		return
	}
	if *listen == "" {
		monitoring.Logf("listen address is required")
		os.Exit(1)
	}
	monitoring.SetDebug(*debug)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		monitoring.Logf("failed to load config: %v", err)
		os.Exit(1)
	}

	sensor, err := openSerial(cfg, fsutil.OSFileSystem{})
	if err != nil {
		monitoring.Logf("failed to open accelerometer: %v", err)
		os.Exit(1)
	}
	defer sensor.Close()

	var initCommands []string
	if cfg.Serial != nil {
		initCommands = cfg.Serial.InitCommands
	}
	if err := sensor.Initialize(initCommands...); err != nil {
		monitoring.Logf("failed to initialize device: %v", err)
		os.Exit(1)
	}

	store, err := db.NewDB(*dbPath)
	if err != nil {
		monitoring.Logf("failed to open database: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	pub, err := newPublisher(cfg)
	if err != nil {
		monitoring.Logf("failed to connect publisher: %v", err)
		os.Exit(1)
	}
	defer pub.Close()

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// the monitor routine owns IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sensor.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			monitoring.Logf("failed to monitor serial port: %v", err)
		}
		monitoring.Logf("monitor routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(sensor, store, cfg, pub).ServeMux()
		sensor.AttachAdminRoutes(mux)
		if err := store.AttachAdminRoutes(mux); err != nil {
			monitoring.Logf("admin routes unavailable: %v", err)
		}

		server := &http.Server{
			Addr:              *listen,
			Handler:           api.LoggingMiddleware(mux),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			monitoring.Logf("listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				monitoring.Logf("failed to start server: %v", err)
				stop()
			}
		}()

		<-ctx.Done()
		monitoring.Logf("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			monitoring.Logf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				monitoring.Logf("HTTP server force close error: %v", err)
			}
		}
		monitoring.Logf("HTTP server routine stopped")
	}()

	wg.Wait()
	monitoring.Logf("graceful shutdown complete")
}
