package serialmux

import (
	"errors"
	"fmt"

	"go.bug.st/serial"

	"github.com/banshee-data/gait.report/internal/monitoring"
)

// ErrNoDevice is returned when no accelerometer device path is configured.
var ErrNoDevice = errors.New("no serial device path")

// openPort is replaced in tests.
var openPort = serial.Open

// NewRealSerialMux opens the accelerometer at path with opts (defaults
// applied) and returns a mux over it. Errors name the device.
func NewRealSerialMux(path string, opts PortOptions) (*SerialMux[serial.Port], error) {
	if path == "" {
		return nil, ErrNoDevice
	}
	opts, err := opts.Normalize()
	if err != nil {
		return nil, fmt.Errorf("serial options for %s: %w", path, err)
	}
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, fmt.Errorf("serial options for %s: %w", path, err)
	}

	port, err := openPort(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open accelerometer at %s: %w", path, err)
	}
	monitoring.Logf("opened accelerometer %s at %d baud %d%s%d",
		path, opts.BaudRate, opts.DataBits, opts.Parity, opts.StopBits)

	return NewSerialMux[serial.Port](port), nil
}
