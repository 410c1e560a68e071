// Command lidar-bridge drives a spinning-lidar sensor and fans its telemetry
// out to a pub/sub bus, a websocket visualization endpoint and an MCAP log.
// One pipeline core serves every sink combination; the sink list is
// configuration, not a separate binary.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/banshee-data/lidar-bridge/internal/config"
	"github.com/banshee-data/lidar-bridge/internal/control"
	"github.com/banshee-data/lidar-bridge/internal/device"
	"github.com/banshee-data/lidar-bridge/internal/frame"
	"github.com/banshee-data/lidar-bridge/internal/monitoring"
	"github.com/banshee-data/lidar-bridge/internal/rplidar"
	"github.com/banshee-data/lidar-bridge/internal/scan"
	"github.com/banshee-data/lidar-bridge/internal/sink"
	"github.com/banshee-data/lidar-bridge/internal/sink/mcaplog"
	"github.com/banshee-data/lidar-bridge/internal/sink/pubsub"
	"github.com/banshee-data/lidar-bridge/internal/sink/viz"
	"github.com/banshee-data/lidar-bridge/internal/vizserver"
)

var (
	configPath  = flag.String("config", "", "Path to YAML configuration file")
	serialPort  = flag.String("serial-port", "", "Serial port for the lidar")
	lidarOn     = flag.Bool("lidar-on", false, "Start acquiring immediately instead of waiting for a control command")
	scanTopic   = flag.String("scan-topic", "", "Laser scan publish topic")
	cloudTopic  = flag.String("cloud-topic", "", "Point cloud publish topic")
	frameID     = flag.String("frame-id", "", "Frame identifier stamped on telemetry")
	natsURL     = flag.String("nats-url", "", "Bus endpoint for pub/sub and control")
	wsListen    = flag.String("ws-listen", "", "Websocket visualization bind address")
	mcapOut     = flag.String("mcap-out", "", "MCAP log output path")
	sinkList    = flag.String("sinks", "", "Comma-separated sink list (pubsub,websocket,mcap)")
	logInterval = flag.Int("log-interval", 0, "Fan-out statistics logging interval in seconds")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	applyFlagOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	regs := sink.Registrations(cfg.ScanTopic, cfg.CloudTopic)
	run := device.NewRunState(cfg.RunAtStartup)

	// The bus carries the control subject as well as the pub/sub sink, so
	// it is always connected. A bus that is down at startup is retried in
	// the background rather than treated as fatal.
	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name("lidar-bridge"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		log.Fatalf("Failed to connect to bus at %s: %v", cfg.NATSURL, err)
	}
	defer nc.Close()

	controlSub, err := control.Listen(nc, cfg.ControlSubject, run)
	if err != nil {
		log.Fatalf("Failed to subscribe to control subject %s: %v", cfg.ControlSubject, err)
	}
	monitoring.Logf("listening for control commands on %s", cfg.ControlSubject)

	var wg sync.WaitGroup
	var sinks []sink.Sink

	if cfg.HasSink(config.SinkPubSub) {
		sinks = append(sinks, pubsub.New(nc, regs, cfg.TopicPrefix))
	}

	if cfg.HasSink(config.SinkWebsocket) {
		server := vizserver.New("lidar-bridge")
		vizSink, err := viz.New(server, regs)
		if err != nil {
			log.Fatalf("Failed to create visualization channels: %v", err)
		}
		sinks = append(sinks, vizSink)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.ListenAndServe(ctx, cfg.WebsocketListen); err != nil {
				monitoring.Logf("visualization server: %v", err)
				stop()
			}
		}()
	}

	if cfg.HasSink(config.SinkMCAP) {
		mcapSink, err := mcaplog.New(cfg.MCAPPath, regs)
		if err != nil {
			log.Fatalf("Failed to open log output: %v", err)
		}
		sinks = append(sinks, mcapSink)
		monitoring.Logf("logging frames to %s", cfg.MCAPPath)
	}

	revolutions := make(chan scan.Revolution, cfg.RevolutionQueue)

	controller := device.NewController(run, revolutions)
	var fatalErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(revolutions)
		open := func() (rplidar.Device, error) { return rplidar.Open(cfg.SerialPort) }
		if err := device.Supervise(ctx, open, controller); err != nil {
			monitoring.Logf("device supervisor: %v", err)
			fatalErr = err
			stop()
		}
	}()

	fanout := sink.NewFanout(cfg.FrameID, frame.ZeroPose(), sinks)
	fanout.QueueCapacity = cfg.SinkQueue
	fanout.StatsInterval = time.Duration(cfg.StatsIntervalSeconds) * time.Second

	wg.Add(1)
	go func() {
		defer wg.Done()
		// Run returns once the revolution channel closes, after draining
		// queues and closing every sink (the MCAP trailer is written there).
		if err := fanout.Run(context.Background(), revolutions); err != nil {
			monitoring.Logf("fanout shutdown: %v", err)
		}
	}()

	<-ctx.Done()
	monitoring.Logf("shutting down")

	if err := controlSub.Drain(); err != nil {
		monitoring.Logf("control drain: %v", err)
	}

	wg.Wait()
	monitoring.Logf("shutdown complete")

	if fatalErr != nil {
		os.Exit(1)
	}
}

// applyFlagOverrides layers explicitly set flags over the file configuration.
func applyFlagOverrides(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "serial-port":
			cfg.SerialPort = *serialPort
		case "lidar-on":
			cfg.RunAtStartup = *lidarOn
		case "scan-topic":
			cfg.ScanTopic = *scanTopic
		case "cloud-topic":
			cfg.CloudTopic = *cloudTopic
		case "frame-id":
			cfg.FrameID = *frameID
		case "nats-url":
			cfg.NATSURL = *natsURL
		case "ws-listen":
			cfg.WebsocketListen = *wsListen
		case "mcap-out":
			cfg.MCAPPath = *mcapOut
		case "sinks":
			cfg.Sinks = splitSinks(*sinkList)
		case "log-interval":
			cfg.StatsIntervalSeconds = *logInterval
		}
	})
}

func splitSinks(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
