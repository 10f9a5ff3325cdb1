package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gait.report/internal/config"
	"github.com/banshee-data/gait.report/internal/fsutil"
	"github.com/banshee-data/gait.report/internal/publish"
	"github.com/banshee-data/gait.report/internal/serialmux"
)

func setFlag[T any](t *testing.T, p *T, v T) {
	t.Helper()
	orig := *p
	*p = v
	t.Cleanup(func() { *p = orig })
}

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, ":8080", *listen)
	assert.Equal(t, "gait.db", *dbPath)
	assert.False(t, *devMode)
	assert.Empty(t, *port)
}

func TestOpenSerialDisabledWithoutPort(t *testing.T) {
	m, err := openSerial(config.EmptyAnalysisConfig(), fsutil.NewMemoryFileSystem())
	require.NoError(t, err)
	_, ok := m.(*serialmux.DisabledSerialMux)
	assert.True(t, ok)
}

func TestOpenSerialDevReplay(t *testing.T) {
	setFlag(t, devMode, true)
	setFlag(t, fixture, "walk.csv")
	fsys := fsutil.NewMemoryFileSystem()
	fsys.WriteFile("walk.csv", []byte("x,y,z\n0,0,1\n0,0,1.1\n"))

	m, err := openSerial(config.EmptyAnalysisConfig(), fsys)
	require.NoError(t, err)
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	id, lines := m.Subscribe()
	defer m.Unsubscribe(id)
	go m.Monitor(ctx)

	select {
	case line := <-lines:
		assert.Contains(t, []string{"x,y,z", "0,0,1", "0,0,1.1"}, line)
	case <-time.After(2 * time.Second):
		t.Fatal("no replayed line")
	}
}

func TestOpenSerialDevMissingFixture(t *testing.T) {
	setFlag(t, devMode, true)
	setFlag(t, fixture, "missing.csv")
	_, err := openSerial(config.EmptyAnalysisConfig(), fsutil.NewMemoryFileSystem())
	assert.ErrorContains(t, err, "fixture")
}

func TestOpenSerialBadOptions(t *testing.T) {
	cfg := config.EmptyAnalysisConfig()
	cfg.Serial = &config.SerialConfig{Port: "/dev/ttyTEST", Parity: "mark"}
	_, err := openSerial(cfg, fsutil.NewMemoryFileSystem())
	assert.ErrorContains(t, err, "parity")
}

func TestNewPublisherDefaultsToNop(t *testing.T) {
	pub, err := newPublisher(config.EmptyAnalysisConfig())
	require.NoError(t, err)
	assert.IsType(t, publish.NopPublisher{}, pub)
}
