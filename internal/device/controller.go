package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/lidar-bridge/internal/monitoring"
	"github.com/banshee-data/lidar-bridge/internal/rplidar"
	"github.com/banshee-data/lidar-bridge/internal/scan"
)

// DefaultPollInterval is how long the loop sleeps between run-flag checks
// while the sensor is idle.
const DefaultPollInterval = 500 * time.Millisecond

// DefaultRestartBackoff is the pause before the supervisor reopens the port
// after a hardware session dies.
const DefaultRestartBackoff = time.Second

// Controller runs the two-state acquisition machine for one sensor. It owns
// the device handle exclusively while its loop runs and hands sorted
// revolutions downstream over a bounded channel.
type Controller struct {
	run *RunState
	out chan<- scan.Revolution

	// PollInterval and RestartBackoff default to the package constants;
	// tests shorten them.
	PollInterval   time.Duration
	RestartBackoff time.Duration
}

// NewController returns a controller that reads the run flag from rs and
// pushes revolutions into out.
func NewController(rs *RunState, out chan<- scan.Revolution) *Controller {
	return &Controller{
		run:            rs,
		out:            out,
		PollInterval:   DefaultPollInterval,
		RestartBackoff: DefaultRestartBackoff,
	}
}

// Loop drives one hardware session until the context ends or the device
// faults. Read timeouts are retried in place; other grab errors are logged
// and the loop continues; motor and scan command failures end the session so
// the supervisor can reopen the port.
//
// The hardware-active flag deliberately starts desynchronised from the
// desired state so the first iteration always issues the correct start or
// stop command instead of trusting the sensor's power-on state.
func (c *Controller) Loop(ctx context.Context, dev rplidar.Device) error {
	active := !c.run.Get()

	for {
		if ctx.Err() != nil {
			if active {
				if err := dev.StopMotor(); err != nil {
					monitoring.Logf("lidar: stop on shutdown: %v", err)
				}
			}
			return nil
		}

		if c.run.Get() {
			if !active {
				monitoring.Logf("lidar: starting motor and scan")
				if err := dev.StartMotor(); err != nil {
					return fmt.Errorf("start motor: %w", err)
				}
				if err := dev.StartScan(); err != nil {
					return fmt.Errorf("start scan: %w", err)
				}
				active = true
			}

			rev, err := dev.GrabRevolution()
			if err != nil {
				if errors.Is(err, rplidar.ErrTimeout) {
					continue
				}
				monitoring.Logf("lidar: grab error: %v", err)
				continue
			}

			scan.SortByAngle(rev)
			select {
			case c.out <- rev:
			case <-ctx.Done():
			}
			continue
		}

		if active {
			monitoring.Logf("lidar: stopping motor")
			if err := dev.StopMotor(); err != nil {
				return fmt.Errorf("stop motor: %w", err)
			}
			active = false
			continue
		}

		select {
		case <-time.After(c.PollInterval):
		case <-ctx.Done():
		}
	}
}

// Supervise opens the device and runs the controller loop, reopening the
// hardware session after a backoff whenever the loop dies. The first open
// failure is fatal and is returned; once one session has been established,
// open failures are retried like any other session fault. This is the only
// retry in the system and it never touches the sink path.
func Supervise(ctx context.Context, open func() (rplidar.Device, error), c *Controller) error {
	opened := false

	for {
		if ctx.Err() != nil {
			return nil
		}

		dev, err := open()
		if err != nil {
			if !opened {
				return fmt.Errorf("device: initial open: %w", err)
			}
			monitoring.Logf("lidar: reopen failed: %v (retrying in %s)", err, c.RestartBackoff)
			sleepCtx(ctx, c.RestartBackoff)
			continue
		}
		opened = true

		err = c.Loop(ctx, dev)
		if closeErr := dev.Close(); closeErr != nil {
			monitoring.Logf("lidar: close: %v", closeErr)
		}
		if err == nil {
			// Loop only returns nil on context cancellation.
			return nil
		}

		monitoring.Logf("lidar: session failed: %v (restarting in %s)", err, c.RestartBackoff)
		sleepCtx(ctx, c.RestartBackoff)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
