// Package control consumes remote on/off commands from the bus and folds
// them into the device run flag. It is fully decoupled from acquisition: a
// slow or dead control path can never stall the sensor loop.
package control

import (
	"strings"
	"unicode/utf8"

	"github.com/nats-io/nats.go"

	"github.com/banshee-data/lidar-bridge/internal/device"
	"github.com/banshee-data/lidar-bridge/internal/monitoring"
)

// decodeCommand interprets a raw control payload. The vocabulary is
// deliberately permissive: any text whose lowercased form ends with "on"
// means run, anything else means stop, so a garbled command fails safe to
// stopped. Non-text payloads are rejected.
func decodeCommand(data []byte) (on bool, ok bool) {
	if !utf8.Valid(data) {
		return false, false
	}
	return strings.HasSuffix(strings.ToLower(string(data)), "on"), true
}

// Handler returns the message handler that applies control commands to rs.
// Split out from Listen so it can be exercised without a running bus.
func Handler(rs *device.RunState) nats.MsgHandler {
	return func(msg *nats.Msg) {
		on, ok := decodeCommand(msg.Data)
		if !ok {
			monitoring.Logf("control: ignoring non-text command (%d bytes)", len(msg.Data))
			return
		}
		if on {
			monitoring.Logf("control: run command received")
		} else {
			monitoring.Logf("control: stop command received")
		}
		rs.Set(on)
	}
}

// Listen subscribes to the control subject and applies each command to rs.
// The returned subscription is drained by the caller on shutdown.
func Listen(nc *nats.Conn, subject string, rs *device.RunState) (*nats.Subscription, error) {
	return nc.Subscribe(subject, Handler(rs))
}
