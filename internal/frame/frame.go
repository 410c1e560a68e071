// Package frame assembles one revolution of range samples into the two wire
// records shipped to every sink: a polar LaserScan and a packed-binary
// Cartesian PointCloud. Field layout and schemas are fixed per frame kind and
// registered with sinks exactly once, before the first send.
package frame

import (
	"encoding/json"
	"time"
)

// Timestamp is the capture time split into seconds and nanoseconds since the
// Unix epoch, matching the wire schema.
type Timestamp struct {
	Sec  int64 `json:"sec"`
	Nsec int32 `json:"nsec"`
}

// TimestampOf converts a time.Time into a wire timestamp.
func TimestampOf(t time.Time) Timestamp {
	return Timestamp{Sec: t.Unix(), Nsec: int32(t.Nanosecond())}
}

// Vector3 is a position in meters.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is an orientation.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Pose is the fixed reference pose stamped on every frame.
type Pose struct {
	Position    Vector3    `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// ZeroPose returns the all-zero pose published with every frame. The
// orientation is deliberately the zero quaternion rather than identity; the
// consumers expect the historical wire value.
func ZeroPose() Pose {
	return Pose{}
}

// LaserScanFrame is the polar telemetry record for one revolution. Ranges and
// intensities always have one entry per sample, invalid samples included.
type LaserScanFrame struct {
	Timestamp   Timestamp `json:"timestamp"`
	FrameID     string    `json:"frame_id"`
	Pose        Pose      `json:"pose"`
	StartAngle  float64   `json:"start_angle"`
	EndAngle    float64   `json:"end_angle"`
	Ranges      []float64 `json:"ranges"`
	Intensities []float64 `json:"intensities"`
}

// PointCloudFrame is the Cartesian telemetry record for one revolution. Data
// holds the valid points packed back to back with no padding; its length is
// always an exact multiple of PointStride.
type PointCloudFrame struct {
	Timestamp   Timestamp     `json:"timestamp"`
	FrameID     string        `json:"frame_id"`
	Pose        Pose          `json:"pose"`
	PointStride uint32        `json:"point_stride"`
	Fields      []PackedField `json:"fields"`
	Data        []byte        `json:"data"`
}

// Marshal renders the frame in its wire encoding.
func (f *LaserScanFrame) Marshal() ([]byte, error) {
	return json.Marshal(f)
}

// Marshal renders the frame in its wire encoding. The point buffer is
// base64-encoded by the JSON codec.
func (f *PointCloudFrame) Marshal() ([]byte, error) {
	return json.Marshal(f)
}
