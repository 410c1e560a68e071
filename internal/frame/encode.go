package frame

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/lidar-bridge/internal/scan"
)

// Encode turns one sorted revolution into both wire records. The laser scan
// keeps every sample, invalid ones included as their raw distance; the point
// cloud keeps only valid samples, projected and packed. An empty revolution
// yields zero start/end angles, empty arrays and an empty point buffer.
func Encode(rev scan.Revolution, captureTime time.Time, frameID string, pose Pose) (LaserScanFrame, PointCloudFrame) {
	ts := TimestampOf(captureTime)

	ranges := make([]float64, len(rev))
	intensities := make([]float64, len(rev))
	for i, s := range rev {
		ranges[i] = s.Distance
		intensities[i] = float64(s.Quality)
	}

	var startAngle, endAngle float64
	if len(rev) > 0 {
		startAngle = rev[0].Angle
		endAngle = rev[len(rev)-1].Angle
	}

	laser := LaserScanFrame{
		Timestamp:   ts,
		FrameID:     frameID,
		Pose:        pose,
		StartAngle:  startAngle,
		EndAngle:    endAngle,
		Ranges:      ranges,
		Intensities: intensities,
	}

	data := make([]byte, 0, PointStride*len(rev))
	for _, s := range rev {
		p, ok := scan.Project(s)
		if !ok {
			continue
		}
		data = appendPoint(data, p)
	}

	cloud := PointCloudFrame{
		Timestamp:   ts,
		FrameID:     frameID,
		Pose:        pose,
		PointStride: PointStride,
		Fields:      PointFields(),
		Data:        data,
	}

	return laser, cloud
}

// appendPoint packs one point in declared field order, each field
// little-endian, no padding.
func appendPoint(data []byte, p scan.ProjectedPoint) []byte {
	var buf [PointStride]byte
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(p.X))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(p.Y))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(p.Distance))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(p.Angle))
	buf[16] = p.Quality
	return append(data, buf[:]...)
}

// UnpackPoints decodes a packed point buffer back into projected points using
// the declared field layout. The buffer length must be an exact multiple of
// PointStride.
func UnpackPoints(data []byte) ([]scan.ProjectedPoint, error) {
	if len(data)%PointStride != 0 {
		return nil, fmt.Errorf("frame: buffer length %d is not a multiple of stride %d", len(data), PointStride)
	}
	points := make([]scan.ProjectedPoint, 0, len(data)/PointStride)
	for off := 0; off < len(data); off += PointStride {
		rec := data[off : off+PointStride]
		points = append(points, scan.ProjectedPoint{
			X:        math.Float32frombits(binary.LittleEndian.Uint32(rec[0:4])),
			Y:        math.Float32frombits(binary.LittleEndian.Uint32(rec[4:8])),
			Distance: math.Float32frombits(binary.LittleEndian.Uint32(rec[8:12])),
			Angle:    math.Float32frombits(binary.LittleEndian.Uint32(rec[12:16])),
			Quality:  rec[16],
		})
	}
	return points, nil
}
