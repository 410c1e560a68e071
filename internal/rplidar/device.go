// Package rplidar is the boundary to the spinning-lidar hardware. It exposes
// the four operations the pipeline needs (start motor, stop motor, start
// scan, grab one revolution) behind a Device interface, with a serial-backed
// implementation and a scriptable mock for tests.
package rplidar

import (
	"errors"

	"github.com/banshee-data/lidar-bridge/internal/scan"
)

// ErrTimeout is returned by GrabRevolution when the sensor produced no data
// within the read timeout. Callers retry immediately; it is not a fault.
var ErrTimeout = errors.New("rplidar: read timed out")

// Device is the minimal hardware surface driven by the device controller.
// Implementations are not safe for concurrent use; a device is owned by
// exactly one goroutine.
type Device interface {
	// StartMotor spins up the scan motor.
	StartMotor() error

	// StopMotor halts the scan motor and any active scan.
	StopMotor() error

	// StartScan puts the sensor into scan mode. The motor must be running.
	StartScan() error

	// GrabRevolution blocks until one full rotation of samples has been
	// read, returning ErrTimeout if the sensor stays silent.
	GrabRevolution() (scan.Revolution, error)

	// Close releases the underlying transport.
	Close() error
}
