// Package config is the bridge's explicit configuration object, constructed
// once at startup and handed to the components that need it. There are no
// lazy global registries; everything derived from it (schemas, sink
// registrations) is built before the pipeline starts.
package config

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Sink names accepted in the Sinks list.
const (
	SinkPubSub    = "pubsub"
	SinkWebsocket = "websocket"
	SinkMCAP      = "mcap"
)

var knownSinks = []string{SinkPubSub, SinkWebsocket, SinkMCAP}

// Config holds everything the bridge needs to run. Zero values are filled in
// by Default; Load layers a YAML file on top.
type Config struct {
	// SerialPort is the sensor serial device path.
	SerialPort string `yaml:"serial_port"`

	// RunAtStartup starts acquisition immediately instead of waiting for a
	// control command.
	RunAtStartup bool `yaml:"run_at_startup"`

	// FrameID is stamped on every telemetry frame.
	FrameID string `yaml:"frame_id"`

	// NATSURL is the bus endpoint for the pub/sub sink and control subject.
	NATSURL string `yaml:"nats_url"`

	ScanTopic      string `yaml:"scan_topic"`
	CloudTopic     string `yaml:"cloud_topic"`
	ControlSubject string `yaml:"control_subject"`

	// TopicPrefix is prepended (dot-separated) to pub/sub subjects only.
	TopicPrefix string `yaml:"topic_prefix"`

	// WebsocketListen is the visualization server bind address.
	WebsocketListen string `yaml:"websocket_listen"`

	// MCAPPath is the log sink output file.
	MCAPPath string `yaml:"mcap_path"`

	// Sinks is the declarative sink list driving the fan-out.
	Sinks []string `yaml:"sinks"`

	// RevolutionQueue bounds the hardware-to-async hand-off. Shallow by
	// design: backpressure here throttles the sensor poll, not motor
	// control.
	RevolutionQueue int `yaml:"revolution_queue"`

	// SinkQueue bounds each sink's payload queue.
	SinkQueue int `yaml:"sink_queue"`

	// StatsIntervalSeconds is the period of the fan-out counter log lines.
	StatsIntervalSeconds int `yaml:"stats_interval_seconds"`
}

// Default returns the stock configuration. The serial port has no default;
// it must come from the file or a flag.
func Default() *Config {
	return &Config{
		FrameID:              "lidar",
		NATSURL:              "nats://127.0.0.1:4222",
		ScanTopic:            "laser_scan",
		CloudTopic:           "point_cloud",
		ControlSubject:       "lidar_state",
		WebsocketListen:      "127.0.0.1:8765",
		MCAPPath:             "out.mcap",
		Sinks:                []string{SinkPubSub, SinkWebsocket, SinkMCAP},
		RevolutionQueue:      10,
		SinkQueue:            32,
		StatsIntervalSeconds: 30,
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults untouched.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot start with.
func (c *Config) Validate() error {
	if c.SerialPort == "" {
		return fmt.Errorf("config: serial_port is required")
	}
	if len(c.Sinks) == 0 {
		return fmt.Errorf("config: at least one sink is required")
	}
	for _, s := range c.Sinks {
		if !slices.Contains(knownSinks, s) {
			return fmt.Errorf("config: unknown sink %q (known: %v)", s, knownSinks)
		}
	}
	if c.RevolutionQueue <= 0 {
		return fmt.Errorf("config: revolution_queue must be positive")
	}
	if c.SinkQueue <= 0 {
		return fmt.Errorf("config: sink_queue must be positive")
	}
	if c.StatsIntervalSeconds <= 0 {
		return fmt.Errorf("config: stats_interval_seconds must be positive")
	}
	if slices.Contains(c.Sinks, SinkMCAP) && c.MCAPPath == "" {
		return fmt.Errorf("config: mcap_path is required for the mcap sink")
	}
	if slices.Contains(c.Sinks, SinkWebsocket) && c.WebsocketListen == "" {
		return fmt.Errorf("config: websocket_listen is required for the websocket sink")
	}
	return nil
}

// HasSink reports whether the named sink is enabled.
func (c *Config) HasSink(name string) bool {
	return slices.Contains(c.Sinks, name)
}
