package rplidar

import (
	"fmt"
	"math"
	"time"

	"go.bug.st/serial"

	"github.com/banshee-data/lidar-bridge/internal/scan"
)

// RPLIDAR legacy scan protocol constants. Requests are two bytes (sync +
// command); scan responses are a 7 byte descriptor followed by an endless
// stream of 5 byte samples.
const (
	syncByte      = 0xA5
	syncByte2     = 0x5A
	cmdStop       = 0x25
	cmdScan       = 0x20
	descriptorLen = 7
	sampleLen     = 5
)

const defaultBaudRate = 115200

// readTimeout bounds a single serial read so the acquisition loop can observe
// the run flag even when the sensor is silent.
const readTimeout = time.Second

// SerialDevice drives an RPLIDAR-class sensor over a serial port. The motor
// is controlled through DTR as on the stock USB adapter: DTR asserted stops
// the motor, deasserted lets it spin.
type SerialDevice struct {
	port     serial.Port
	scanning bool

	// pending holds the start-of-revolution sample that terminated the
	// previous grab; it opens the next revolution.
	pending *sample
}

type sample struct {
	startFlag bool
	angle     float64 // radians
	distance  float64 // meters
	quality   uint8
}

// Open opens the sensor serial port. Failure here is the one fatal hardware
// error in the system; everything after a successful open is retried.
func Open(path string) (*SerialDevice, error) {
	mode := &serial.Mode{
		BaudRate: defaultBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("rplidar: open %s: %w", path, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("rplidar: set read timeout: %w", err)
	}
	// Motor off until the controller asks for it.
	if err := port.SetDTR(true); err != nil {
		port.Close()
		return nil, fmt.Errorf("rplidar: set DTR: %w", err)
	}
	return &SerialDevice{port: port}, nil
}

// StartMotor releases DTR so the adapter powers the scan motor.
func (d *SerialDevice) StartMotor() error {
	if err := d.port.SetDTR(false); err != nil {
		return fmt.Errorf("rplidar: start motor: %w", err)
	}
	return nil
}

// StopMotor sends the stop request and reasserts DTR to cut motor power.
func (d *SerialDevice) StopMotor() error {
	if _, err := d.port.Write([]byte{syncByte, cmdStop}); err != nil {
		return fmt.Errorf("rplidar: stop request: %w", err)
	}
	// The protocol requires a short settle time after STOP before the next
	// request.
	time.Sleep(10 * time.Millisecond)
	d.scanning = false
	d.pending = nil
	if err := d.port.SetDTR(true); err != nil {
		return fmt.Errorf("rplidar: stop motor: %w", err)
	}
	return nil
}

// StartScan issues the scan request and consumes the response descriptor.
func (d *SerialDevice) StartScan() error {
	if err := d.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("rplidar: reset input: %w", err)
	}
	if _, err := d.port.Write([]byte{syncByte, cmdScan}); err != nil {
		return fmt.Errorf("rplidar: scan request: %w", err)
	}
	desc := make([]byte, descriptorLen)
	if err := d.readFull(desc); err != nil {
		return fmt.Errorf("rplidar: scan descriptor: %w", err)
	}
	if desc[0] != syncByte || desc[1] != syncByte2 {
		return fmt.Errorf("rplidar: bad scan descriptor %x", desc[:2])
	}
	d.scanning = true
	d.pending = nil
	return nil
}

// GrabRevolution accumulates samples until the next start-of-revolution flag.
func (d *SerialDevice) GrabRevolution() (scan.Revolution, error) {
	if !d.scanning {
		return nil, fmt.Errorf("rplidar: grab before scan start")
	}

	rev := make(scan.Revolution, 0, 360)
	if d.pending != nil {
		rev = append(rev, d.pending.raw())
		d.pending = nil
	}

	buf := make([]byte, sampleLen)
	for {
		if err := d.readFull(buf); err != nil {
			return nil, err
		}
		s, err := parseSample(buf)
		if err != nil {
			// Byte slip on the stream; realign on the next check bit.
			if err := d.resync(buf); err != nil {
				return nil, err
			}
			continue
		}
		if s.startFlag && len(rev) > 0 {
			pending := s
			d.pending = &pending
			return rev, nil
		}
		rev = append(rev, s.raw())
	}
}

// Close closes the serial port. The motor is left in whatever state the
// controller last requested.
func (d *SerialDevice) Close() error {
	return d.port.Close()
}

// readFull fills buf, mapping a zero-byte timed-out read to ErrTimeout.
// io.ReadFull is unsuitable because the serial layer signals a timeout as
// (0, nil).
func (d *SerialDevice) readFull(buf []byte) error {
	read := 0
	for read < len(buf) {
		n, err := d.port.Read(buf[read:])
		if err != nil {
			return fmt.Errorf("rplidar: read: %w", err)
		}
		if n == 0 {
			return ErrTimeout
		}
		read += n
	}
	return nil
}

// resync slides the stream one byte at a time until a plausible sample
// boundary (inverted start bit pair plus check bit) comes around again.
func (d *SerialDevice) resync(buf []byte) error {
	one := make([]byte, 1)
	for i := 0; i < 2*sampleLen*360; i++ {
		copy(buf, buf[1:])
		if err := d.readFull(one); err != nil {
			return err
		}
		buf[sampleLen-1] = one[0]
		if _, err := parseSample(buf); err == nil {
			d.pending = nil
			return nil
		}
	}
	return fmt.Errorf("rplidar: could not re-align sample stream")
}

// parseSample decodes one 5 byte legacy scan sample. Angle arrives in 1/64
// degree, distance in 1/4 mm; both are converted to SI here so the rest of
// the pipeline only sees radians and meters.
func parseSample(b []byte) (sample, error) {
	start := b[0]&0x01 != 0
	inverted := b[0]&0x02 != 0
	if start == inverted {
		return sample{}, fmt.Errorf("rplidar: start bits out of sync")
	}
	if b[1]&0x01 != 1 {
		return sample{}, fmt.Errorf("rplidar: check bit clear")
	}

	angleQ6 := uint16(b[1])>>1 | uint16(b[2])<<7
	distQ2 := uint16(b[3]) | uint16(b[4])<<8

	return sample{
		startFlag: start,
		angle:     float64(angleQ6) / 64.0 * math.Pi / 180.0,
		distance:  float64(distQ2) / 4.0 / 1000.0,
		quality:   b[0] >> 2,
	}, nil
}

func (s sample) raw() scan.RawSample {
	return scan.RawSample{
		Angle:    s.angle,
		Distance: s.distance,
		Quality:  s.quality,
		Valid:    s.distance > 0,
	}
}
