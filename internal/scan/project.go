package scan

import "math"

// ProjectedPoint is a valid sample projected into the Cartesian frame used by
// downstream consumers. Distance, angle and quality are carried alongside so a
// packed point round-trips without loss. Fields are float32 because that is
// the packed wire width.
type ProjectedPoint struct {
	X        float32
	Y        float32
	Distance float32
	Angle    float32
	Quality  uint8
}

// Project converts a raw sample into a projected point. It reports false for
// samples the driver flagged invalid (no echo or out of range); those are
// excluded from point clouds.
//
// The angle sign is inverted: the sensor measures clockwise while consumers
// expect the right-handed counter-clockwise convention. This is a fixed
// property of the coordinate contract, not a configuration knob.
func Project(s RawSample) (ProjectedPoint, bool) {
	if !s.Valid {
		return ProjectedPoint{}, false
	}
	return ProjectedPoint{
		X:        float32(s.Distance * math.Cos(-s.Angle)),
		Y:        float32(s.Distance * math.Sin(-s.Angle)),
		Distance: float32(s.Distance),
		Angle:    float32(s.Angle),
		Quality:  s.Quality,
	}, true
}
