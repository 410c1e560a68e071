package rplidar

import (
	"sync"
	"time"

	"github.com/banshee-data/lidar-bridge/internal/scan"
)

// MockDevice is a scriptable Device for tests: queue revolutions and errors,
// then inspect the motor call sequence afterwards.
type MockDevice struct {
	mu       sync.Mutex
	calls    []string
	motorOn  bool
	scanning bool
	closed   bool

	revs          chan scan.Revolution
	errs          chan error
	startMotorErr error

	// GrabTimeout is how long GrabRevolution waits for a queued revolution
	// before reporting ErrTimeout.
	GrabTimeout time.Duration
}

// NewMockDevice returns a mock with room for buffered scripted revolutions.
func NewMockDevice() *MockDevice {
	return &MockDevice{
		revs:        make(chan scan.Revolution, 64),
		errs:        make(chan error, 16),
		GrabTimeout: 5 * time.Millisecond,
	}
}

// QueueRevolution schedules a revolution for a future GrabRevolution call.
func (m *MockDevice) QueueRevolution(rev scan.Revolution) {
	m.revs <- rev
}

// QueueError schedules a grab error ahead of any queued revolutions.
func (m *MockDevice) QueueError(err error) {
	m.errs <- err
}

func (m *MockDevice) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

// Calls returns the ordered motor/scan call log.
func (m *MockDevice) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named call was made.
func (m *MockDevice) CallCount(call string) int {
	n := 0
	for _, c := range m.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

// FailStartMotor configures every subsequent StartMotor call to return err.
func (m *MockDevice) FailStartMotor(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startMotorErr = err
}

func (m *MockDevice) StartMotor() error {
	m.record("start-motor")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startMotorErr != nil {
		return m.startMotorErr
	}
	m.motorOn = true
	return nil
}

func (m *MockDevice) StopMotor() error {
	m.record("stop-motor")
	m.mu.Lock()
	m.motorOn = false
	m.scanning = false
	m.mu.Unlock()
	return nil
}

func (m *MockDevice) StartScan() error {
	m.record("start-scan")
	m.mu.Lock()
	m.scanning = true
	m.mu.Unlock()
	return nil
}

func (m *MockDevice) GrabRevolution() (scan.Revolution, error) {
	select {
	case err := <-m.errs:
		return nil, err
	default:
	}
	select {
	case rev := <-m.revs:
		return rev, nil
	case <-time.After(m.GrabTimeout):
		return nil, ErrTimeout
	}
}

func (m *MockDevice) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockDevice) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

var _ Device = (*MockDevice)(nil)
