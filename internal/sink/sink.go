// Package sink is the fan-out layer: it encodes each revolution once per
// frame kind and ships the payloads to every configured sink on its own
// goroutine, so one slow or broken consumer never stalls acquisition or its
// peers. Delivery is best-effort, at most once, per sink.
package sink

import (
	"github.com/banshee-data/lidar-bridge/internal/frame"
)

// Kind identifies which telemetry stream a payload belongs to.
type Kind int

const (
	KindLaserScan Kind = iota
	KindPointCloud
	numKinds
)

func (k Kind) String() string {
	switch k {
	case KindLaserScan:
		return "laser_scan"
	case KindPointCloud:
		return "point_cloud"
	}
	return "unknown"
}

// Registration binds a telemetry stream to a physical channel: topic name,
// content type, schema identity and bytes, and the latched flag honoured by
// the visualization sink. Registrations are created once at startup and are
// immutable afterwards.
type Registration struct {
	Topic           string
	ContentType     string
	SchemaName      string
	SchemaEncoding  string
	MessageEncoding string
	Schema          []byte
	Latched         bool
}

// Registrations builds the fixed per-kind registration table for the given
// topic names. Every sink registers from this table before the first frame.
func Registrations(scanTopic, cloudTopic string) map[Kind]Registration {
	return map[Kind]Registration{
		KindLaserScan: {
			Topic:           scanTopic,
			ContentType:     frame.ContentType,
			SchemaName:      frame.LaserScanSchemaName,
			SchemaEncoding:  frame.SchemaEncoding,
			MessageEncoding: frame.MessageEncoding,
			Schema:          frame.LaserScanSchema(),
			Latched:         false,
		},
		KindPointCloud: {
			Topic:           cloudTopic,
			ContentType:     frame.ContentType,
			SchemaName:      frame.PointCloudSchemaName,
			SchemaEncoding:  frame.SchemaEncoding,
			MessageEncoding: frame.MessageEncoding,
			Schema:          frame.PointCloudSchema(),
			Latched:         false,
		},
	}
}

// Sink is one frame consumer. WriteFrame receives the per-sink sequence
// number for the kind and the capture time in nanoseconds since the epoch.
// Implementations are called from a single fan-out goroutine and never
// concurrently.
type Sink interface {
	Name() string
	WriteFrame(kind Kind, seq uint64, logTimeNanos uint64, payload []byte) error
	Close() error
}
