package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidatesWithPort(t *testing.T) {
	cfg := Default()
	require.Error(t, cfg.Validate(), "serial port must be explicit")

	cfg.SerialPort = "/dev/ttyUSB0"
	assert.NoError(t, cfg.Validate())
}

func TestLoadLayersFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
serial_port: /dev/ttyUSB1
run_at_startup: true
topic_prefix: site42
sinks: [pubsub, mcap]
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/dev/ttyUSB1", cfg.SerialPort)
	assert.True(t, cfg.RunAtStartup)
	assert.Equal(t, "site42", cfg.TopicPrefix)
	assert.Equal(t, []string{SinkPubSub, SinkMCAP}, cfg.Sinks)

	// Untouched fields keep their defaults.
	assert.Equal(t, "laser_scan", cfg.ScanTopic)
	assert.Equal(t, 10, cfg.RevolutionQueue)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsUnknownSink(t *testing.T) {
	cfg := Default()
	cfg.SerialPort = "/dev/ttyUSB0"
	cfg.Sinks = []string{"carrier-pigeon"}
	assert.Error(t, cfg.Validate())
}

func TestValidateSinkRequirements(t *testing.T) {
	cfg := Default()
	cfg.SerialPort = "/dev/ttyUSB0"

	cfg.MCAPPath = ""
	assert.Error(t, cfg.Validate())

	cfg.Sinks = []string{SinkPubSub}
	assert.NoError(t, cfg.Validate())

	cfg.Sinks = nil
	assert.Error(t, cfg.Validate())
}

func TestHasSink(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.HasSink(SinkMCAP))
	cfg.Sinks = []string{SinkPubSub}
	assert.False(t, cfg.HasSink(SinkMCAP))
}
