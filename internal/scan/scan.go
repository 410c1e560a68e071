// Package scan holds the raw sample model for one sensor revolution and the
// polar-to-Cartesian projection applied before point cloud packing.
package scan

import "sort"

// RawSample is a single range reading as delivered by the sensor transport.
type RawSample struct {
	// Angle is the beam angle in radians. The sensor-native convention is
	// clockwise-increasing.
	Angle float64

	// Distance is the measured range in meters. Zero when there was no echo.
	Distance float64

	// Quality is the 0-255 return strength reported by the sensor.
	Quality uint8

	// Valid reports whether the driver considered this reading usable.
	Valid bool
}

// Revolution is one full rotation's batch of samples. The sensor delivers
// near-sorted batches; SortByAngle must run before the batch is encoded.
type Revolution []RawSample

// SortByAngle orders the revolution by ascending angle in place. The sort is
// stable so samples sharing an angle keep their delivery order, which also
// makes re-sorting an already sorted revolution a no-op.
func SortByAngle(rev Revolution) {
	sort.SliceStable(rev, func(i, j int) bool {
		return rev[i].Angle < rev[j].Angle
	})
}

// ValidCount returns the number of samples that pass the validity filter.
func ValidCount(rev Revolution) int {
	n := 0
	for _, s := range rev {
		if s.Valid {
			n++
		}
	}
	return n
}
