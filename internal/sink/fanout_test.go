package sink

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lidar-bridge/internal/frame"
	"github.com/banshee-data/lidar-bridge/internal/monitoring"
	"github.com/banshee-data/lidar-bridge/internal/scan"
)

type record struct {
	kind    Kind
	seq     uint64
	logTime uint64
	payload []byte
}

type captureSink struct {
	mu      sync.Mutex
	name    string
	records []record
	failing bool
	closed  bool
}

func (c *captureSink) Name() string { return c.name }

func (c *captureSink) WriteFrame(kind Kind, seq uint64, logTime uint64, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return errors.New("sink down")
	}
	c.records = append(c.records, record{kind, seq, logTime, payload})
	return nil
}

func (c *captureSink) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *captureSink) byKind(kind Kind) []record {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []record
	for _, r := range c.records {
		if r.kind == kind {
			out = append(out, r)
		}
	}
	return out
}

func runFanout(t *testing.T, sinks []Sink, revs []scan.Revolution) {
	t.Helper()
	in := make(chan scan.Revolution, len(revs))
	for _, rev := range revs {
		in <- rev
	}
	close(in)

	f := NewFanout("lidar", frame.ZeroPose(), sinks)
	require.NoError(t, f.Run(context.Background(), in))
}

func someRevolutions(n int) []scan.Revolution {
	revs := make([]scan.Revolution, n)
	for i := range revs {
		revs[i] = scan.Revolution{
			{Angle: 0.1, Distance: float64(i) + 1, Quality: uint8(i), Valid: true},
		}
	}
	return revs
}

func TestFanoutDeliversBothKindsInOrder(t *testing.T) {
	s := &captureSink{name: "capture"}
	runFanout(t, []Sink{s}, someRevolutions(5))

	for _, kind := range []Kind{KindLaserScan, KindPointCloud} {
		recs := s.byKind(kind)
		require.Len(t, recs, 5, kind.String())
		for i, r := range recs {
			assert.Equal(t, uint64(i), r.seq, "sequence must be monotone per kind")
			assert.NotZero(t, r.logTime)
			assert.NotEmpty(t, r.payload)
		}
	}
	assert.True(t, s.closed, "Run must close sinks when input ends")
}

func TestFanoutIsolatesFailingSink(t *testing.T) {
	defer monitoring.Mute()()

	healthy := &captureSink{name: "healthy"}
	broken := &captureSink{name: "broken", failing: true}
	runFanout(t, []Sink{broken, healthy}, someRevolutions(3))

	assert.Len(t, healthy.byKind(KindLaserScan), 3)
	assert.Len(t, healthy.byKind(KindPointCloud), 3)
	assert.Empty(t, broken.records)
	assert.True(t, broken.closed)
}

type blockingSink struct {
	captureSink
	release chan struct{}
}

func (b *blockingSink) WriteFrame(kind Kind, seq uint64, logTime uint64, payload []byte) error {
	<-b.release
	return b.captureSink.WriteFrame(kind, seq, logTime, payload)
}

// A wedged sink must shed frames rather than stall the input loop.
func TestFanoutShedsWhenSinkQueueFull(t *testing.T) {
	defer monitoring.Mute()()

	blocked := &blockingSink{captureSink: captureSink{name: "wedged"}, release: make(chan struct{})}
	in := make(chan scan.Revolution)

	f := NewFanout("lidar", frame.ZeroPose(), []Sink{blocked})
	f.QueueCapacity = 1

	done := make(chan error, 1)
	go func() { done <- f.Run(context.Background(), in) }()

	for _, rev := range someRevolutions(50) {
		select {
		case in <- rev:
		case <-time.After(time.Second):
			t.Fatal("fan-out blocked the producer")
		}
	}

	close(blocked.release)
	close(in)
	require.NoError(t, <-done)

	assert.Positive(t, f.workers[0].drops.Load())
}

func TestFanoutStopsOnContextCancel(t *testing.T) {
	s := &captureSink{name: "capture"}
	in := make(chan scan.Revolution)

	ctx, cancel := context.WithCancel(context.Background())
	f := NewFanout("lidar", frame.ZeroPose(), []Sink{s})

	done := make(chan error, 1)
	go func() { done <- f.Run(ctx, in) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return on cancellation")
	}
	assert.True(t, s.closed)
}
