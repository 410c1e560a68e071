package device

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lidar-bridge/internal/rplidar"
	"github.com/banshee-data/lidar-bridge/internal/scan"
)

func newTestController(rs *RunState, out chan scan.Revolution) *Controller {
	c := NewController(rs, out)
	c.PollInterval = time.Millisecond
	c.RestartBackoff = time.Millisecond
	return c
}

// drain consumes revolutions so the controller never blocks on the hand-off.
func drain(out chan scan.Revolution) {
	go func() {
		for range out {
		}
	}()
}

func TestControllerOneStartStopPerToggle(t *testing.T) {
	dev := rplidar.NewMockDevice()
	rs := NewRunState(false)
	out := make(chan scan.Revolution, 10)
	drain(out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- newTestController(rs, out).Loop(ctx, dev) }()

	// Desynchronised start: desired off, assumed active, so the first
	// iteration must issue a stop.
	require.Eventually(t, func() bool {
		return dev.CallCount("stop-motor") == 1
	}, time.Second, time.Millisecond)
	assert.Zero(t, dev.CallCount("start-motor"))

	rs.Set(true)
	require.Eventually(t, func() bool {
		return dev.CallCount("start-motor") == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, 1, dev.CallCount("start-scan"))

	// Stays started across many idle grabs; no second start without an
	// intervening stop.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, dev.CallCount("start-motor"))

	rs.Set(false)
	require.Eventually(t, func() bool {
		return dev.CallCount("stop-motor") == 2
	}, time.Second, time.Millisecond)

	rs.Set(true)
	require.Eventually(t, func() bool {
		return dev.CallCount("start-motor") == 2
	}, time.Second, time.Millisecond)

	// The full call log alternates: never two starts in a row.
	var last string
	for _, call := range dev.Calls() {
		if call == "start-scan" {
			continue
		}
		assert.NotEqual(t, last, call, "calls: %v", dev.Calls())
		last = call
	}

	cancel()
	require.NoError(t, <-done)
}

func TestControllerForwardsSortedRevolutions(t *testing.T) {
	dev := rplidar.NewMockDevice()
	rs := NewRunState(true)
	out := make(chan scan.Revolution, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go newTestController(rs, out).Loop(ctx, dev)

	dev.QueueRevolution(scan.Revolution{
		{Angle: 0.2, Distance: 1, Valid: true},
		{Angle: 0.1, Distance: 2, Valid: true},
	})

	select {
	case rev := <-out:
		require.Len(t, rev, 2)
		assert.Equal(t, 0.1, rev[0].Angle)
		assert.Equal(t, 0.2, rev[1].Angle)
	case <-time.After(time.Second):
		t.Fatal("no revolution forwarded")
	}
}

func TestControllerContinuesAfterGrabError(t *testing.T) {
	dev := rplidar.NewMockDevice()
	rs := NewRunState(true)
	out := make(chan scan.Revolution, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go newTestController(rs, out).Loop(ctx, dev)

	dev.QueueError(errors.New("checksum mismatch"))
	dev.QueueRevolution(scan.Revolution{{Angle: 0.5, Distance: 1, Valid: true}})

	select {
	case rev := <-out:
		assert.Len(t, rev, 1)
	case <-time.After(time.Second):
		t.Fatal("controller did not survive the grab error")
	}
	assert.Equal(t, 1, dev.CallCount("start-motor"), "grab errors must not restart the session")
}

func TestSuperviseFatalFirstOpen(t *testing.T) {
	rs := NewRunState(false)
	out := make(chan scan.Revolution)
	c := newTestController(rs, out)

	openErr := errors.New("no such port")
	err := Supervise(context.Background(), func() (rplidar.Device, error) {
		return nil, openErr
	}, c)
	assert.ErrorIs(t, err, openErr)
}

func TestSuperviseRestartsAfterSessionFault(t *testing.T) {
	rs := NewRunState(true)
	out := make(chan scan.Revolution, 10)
	drain(out)
	c := newTestController(rs, out)

	var opens atomic.Int32
	first := rplidar.NewMockDevice()
	// A failed start command kills the first session and forces a reopen.
	first.FailStartMotor(errors.New("io fault"))

	open := func() (rplidar.Device, error) {
		if opens.Add(1) == 1 {
			return first, nil
		}
		return rplidar.NewMockDevice(), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Supervise(ctx, open, c) }()

	require.Eventually(t, func() bool {
		return opens.Load() >= 2
	}, time.Second, time.Millisecond)
	assert.True(t, first.Closed(), "faulted session must close its device")

	cancel()
	require.NoError(t, <-done)
}
